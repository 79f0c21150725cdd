package xlru

import (
	"log/slog"
	"time"
)

// Reason 标识一次物理删除的原因。
type Reason uint8

const (
	// ReasonCapacity 条目数达到容量上限，从尾部淘汰。
	ReasonCapacity Reason = iota

	// ReasonWeight 总权重超过预算，从尾部淘汰。
	ReasonWeight

	// ReasonManual 显式删除：Delete、Clear、ClearPrefix。
	ReasonManual

	// ReasonExpired 硬过期后的惰性清理或 RemoveExpired 清扫。
	ReasonExpired
)

// reasonCount Reason 取值数量，统计数组按此定长。
const reasonCount = 4

// String 返回原因的小写名称。
func (r Reason) String() string {
	switch r {
	case ReasonCapacity:
		return "capacity"
	case ReasonWeight:
		return "weight"
	case ReasonManual:
		return "manual"
	case ReasonExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// EvictionRecord 描述一次物理删除。每次删除恰好产生一条记录。
type EvictionRecord[V any] struct {
	Key    string
	Value  V
	Weight int64
	Reason Reason
}

// Entry 是条目的只读快照，由 Entries 返回。
type Entry[V any] struct {
	Key      string
	Value    V
	Weight   int64
	StoredAt time.Time

	// FreshUntil 软过期截止时间，零值表示永不过期。
	FreshUntil time.Time

	// StaleUntil 硬过期截止时间。未配置 StaleGrace 时等于 FreshUntil。
	StaleUntil time.Time
}

// Config 定义缓存配置。
type Config struct {
	// Capacity 缓存最大条目数。
	// 必须大于 0 且不超过 16,777,216。
	Capacity int

	// MaxWeight 总权重预算。
	// 0 表示不限制，不允许负值。非 0 时必须能容纳权重为 1 的条目。
	MaxWeight int64

	// DefaultTTL 条目默认过期时间。
	// 0 表示永不过期，不允许负值。可被 Set 的 WithTTL/WithNoExpiry 覆盖。
	DefaultTTL time.Duration

	// StaleGrace 软过期后的保留窗口。
	// 0 表示经典单截止过期；大于 0 时，软过期条目在窗口内仍可被
	// GetStale 读到，窗口结束后物理删除。
	StaleGrace time.Duration

	// HotKeyCapacity 热点键统计表的容量。
	// 0 使用默认值 256，负值关闭热点键统计。
	HotKeyCapacity int

	// Logger 记录拒绝写入、监听器 panic 等事件。nil 使用 slog.Default()。
	Logger *slog.Logger

	// Now 时钟注入点，nil 使用 time.Now。
	Now func() time.Time
}

// Option 定义缓存可选配置函数类型。
type Option[V any] func(*options[V])

// options 内部可选配置。
type options[V any] struct {
	sizeOf func(V) int64
}

// WithSizeOf 设置值的字节大小估算函数，用于维护报告的内存估算。
// 不设置时值的贡献按 0 计，内存估算只包含键长度。
func WithSizeOf[V any](fn func(V) int64) Option[V] {
	return func(o *options[V]) {
		o.sizeOf = fn
	}
}

// SetOption 定义 Set 的单次调用选项。
type SetOption func(*setOptions)

type setOptions struct {
	weight int64
	ttl    *time.Duration
}

// WithWeight 设置条目权重，必须 ≥ 1。
// 非法权重导致 Set 拒绝写入并返回 false。
func WithWeight(w int64) SetOption {
	return func(o *setOptions) {
		o.weight = w
	}
}

// WithTTL 覆盖本次写入的过期时间。d ≤ 0 等价于 WithNoExpiry。
func WithTTL(d time.Duration) SetOption {
	return func(o *setOptions) {
		o.ttl = &d
	}
}

// WithNoExpiry 本次写入的条目永不过期，覆盖 DefaultTTL。
func WithNoExpiry() SetOption {
	return func(o *setOptions) {
		var zero time.Duration
		o.ttl = &zero
	}
}
