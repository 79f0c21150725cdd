package xlru

import "errors"

var (
	// ErrInvalidCapacity 表示容量配置无效（必须大于 0）。
	ErrInvalidCapacity = errors.New("xlru: capacity must be greater than 0")

	// ErrCapacityExceedsMax 表示容量超过上限 (16,777,216)。
	ErrCapacityExceedsMax = errors.New("xlru: capacity must not exceed 16777216")

	// ErrInvalidMaxWeight 表示权重预算配置无效。
	// 构造时 0 表示不限制；运行期 SetMaxWeight 不允许改回不限制。
	ErrInvalidMaxWeight = errors.New("xlru: max weight must be positive")

	// ErrInvalidTTL 表示默认 TTL 配置无效。
	ErrInvalidTTL = errors.New("xlru: TTL must not be negative")

	// ErrInvalidStaleGrace 表示软过期宽限窗口配置无效。
	ErrInvalidStaleGrace = errors.New("xlru: stale grace must not be negative")

	// ErrEntryTooHeavy 表示单个条目的权重超过了整个缓存的权重预算。
	// 这类写入被拒绝并记录日志，缓存内容保持不变。
	ErrEntryTooHeavy = errors.New("xlru: entry weight exceeds max weight")
)
