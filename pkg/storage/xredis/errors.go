package xredis

import "errors"

var (
	// ErrNilClient Redis 客户端为 nil。
	ErrNilClient = errors.New("xredis: nil client")
)
