package xmongo

import "errors"

var (
	// ErrNilClient MongoDB 客户端为 nil。
	ErrNilClient = errors.New("xmongo: nil client")
)
