package xbreaker

import "errors"

var (
	// ErrEmptyPrefix 前缀为空。空前缀会匹配所有键，必须显式拒绝。
	ErrEmptyPrefix = errors.New("xbreaker: prefix cannot be empty")

	// ErrInvalidOpenDuration 开启时长必须为正。
	ErrInvalidOpenDuration = errors.New("xbreaker: open duration must be positive")

	// ErrNilBreaker 传入的 PrefixBreaker 为 nil。
	ErrNilBreaker = errors.New("xbreaker: prefix breaker cannot be nil")
)
