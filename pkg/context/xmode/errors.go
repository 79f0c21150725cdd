package xmode

import "errors"

var (
	// ErrEmptyMode 表示执行模式字符串为空。
	ErrEmptyMode = errors.New("xmode: empty execution mode")

	// ErrInvalidMode 表示执行模式字符串无法识别。
	ErrInvalidMode = errors.New("xmode: invalid execution mode")
)
