package xhybrid

import "errors"

var (
	// ErrInvalidTTL 表示配置中的 TTL 为负数。
	ErrInvalidTTL = errors.New("xhybrid: invalid ttl")

	// ErrClosed 表示适配器已关闭。
	ErrClosed = errors.New("xhybrid: store is closed")

	// ErrBackingDenied 表示熔断器拒绝了后备存储访问。
	// 只出现在 SweepResult.Err 中，读写路径的拒绝静默降级。
	ErrBackingDenied = errors.New("xhybrid: backing access denied by breaker")
)
