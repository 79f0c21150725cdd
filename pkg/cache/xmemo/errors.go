package xmemo

import "errors"

var (
	// ErrNilStore 表示未注入缓存目标。
	ErrNilStore = errors.New("xmemo: nil store")

	// ErrNilFunc 表示被包装的函数为 nil。
	ErrNilFunc = errors.New("xmemo: nil function")

	// ErrEmptyKeyPrefix 表示缺少必填的键前缀。
	ErrEmptyKeyPrefix = errors.New("xmemo: empty key prefix")
)
