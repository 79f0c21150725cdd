package xhybrid

import (
	"time"

	"github.com/omeyang/cachekit/pkg/cache/xlru"
	"github.com/omeyang/cachekit/pkg/context/xmode"
	"github.com/omeyang/cachekit/pkg/storage/xbacking"
)

// =============================================================================
// 配置
// =============================================================================

const (
	// DefaultCapacity 内存层默认条目容量。
	DefaultCapacity = 4096

	// DefaultPersistentTTL 持久键的默认存活时间。
	DefaultPersistentTTL = 7 * 24 * time.Hour

	// DefaultEphemeralTTL 短暂键的默认存活时间。
	DefaultEphemeralTTL = time.Hour

	// DefaultStaleGrace 软过期条目的默认保留窗口，
	// 也是允许陈旧读（WithStale）的预算上限。
	DefaultStaleGrace = 24 * time.Hour

	// DefaultOpTimeout 单次后备存储调用的默认超时。
	DefaultOpTimeout = 3 * time.Second

	// DefaultNegativeTTL 负缓存墓碑的建议存活时间，
	// 供 WithNegativeCache 的调用方使用。
	DefaultNegativeTTL = 30 * time.Second
)

// Config 定义适配器的核心配置。
// 数值字段为零时使用对应默认值，为负时 New 返回错误。
type Config struct {
	// Mode 进程执行模式，决定持久键的读写路由方向。
	Mode xmode.Mode

	// Backing 后备存储，nil 表示纯内存运行。
	// 生命周期由调用方管理，适配器关闭时不会关闭它。
	Backing xbacking.Store

	// Capacity 内存层最大条目数。
	Capacity int

	// MaxWeight 内存层总权重预算（字节），0 表示不限。
	// 未显式指定权重的条目按值的字节长度计重。
	MaxWeight int64

	// PersistentTTL 持久键的存活时间。
	PersistentTTL time.Duration

	// EphemeralTTL 短暂键的存活时间。
	EphemeralTTL time.Duration

	// StaleGrace 软过期条目在内存层额外保留的窗口。
	StaleGrace time.Duration
}

// =============================================================================
// 读写选项
// =============================================================================

type readOptions struct {
	allowStale bool
	maxStale   time.Duration
}

// ReadOption 定义单次读取的选项。
type ReadOption func(*readOptions)

// WithStale 允许本次读取在正常路径全部未命中时返回软过期副本。
// maxAge 限定副本自写入起的最大年龄，通常应大于条目的新鲜 TTL；
// 超出 StaleGrace 的副本已被内存层回收，不会被返回。
// maxAge ≤ 0 时忽略此选项。
func WithStale(maxAge time.Duration) ReadOption {
	return func(o *readOptions) {
		if maxAge > 0 {
			o.allowStale = true
			o.maxStale = maxAge
		}
	}
}

type writeOptions struct {
	ttl          *time.Duration
	weight       int64
	forcePersist bool
}

// WriteOption 定义单次写入的选项。
type WriteOption func(*writeOptions)

// WithTTL 覆盖本次写入的存活时间，替代按键类别推导的默认值。
// d ≤ 0 表示永不过期。
func WithTTL(d time.Duration) WriteOption {
	return func(o *writeOptions) {
		o.ttl = &d
	}
}

// WithWeight 覆盖本次写入在内存层的权重。
// w ≤ 0 时忽略此选项，仍按值的字节长度计重。
func WithWeight(w int64) WriteOption {
	return func(o *writeOptions) {
		if w > 0 {
			o.weight = w
		}
	}
}

// WithForcePersist 强制将本次写入按持久键处理，无论分类器如何判定。
func WithForcePersist() WriteOption {
	return func(o *writeOptions) {
		o.forcePersist = true
	}
}

// =============================================================================
// 统计与报告
// =============================================================================

// Stats 汇总适配器两层的运行计数。
type Stats struct {
	// Memory 内存层的完整快照。
	Memory xlru.Snapshot

	// BackingReads 发起的后备读取次数（含失败）。
	BackingReads uint64

	// BackingWrites 发起的后备变更调用次数（含失败），
	// 覆盖 upsert、delete、批量删除与过期清理。
	BackingWrites uint64

	// BackingErrors 后备调用失败次数，未命中不算失败。
	BackingErrors uint64

	// BreakerDenied 被熔断器拒绝的后备访问次数。
	BreakerDenied uint64

	// StaleServed 以软过期副本满足的读取次数。
	StaleServed uint64

	// NegativeHits 被负缓存墓碑挡下的后备读取次数。
	NegativeHits uint64

	// ScopeHits 由请求范围缓存满足的读取次数。
	ScopeHits uint64
}

// SweepResult 描述一次过期清扫的结果。
type SweepResult struct {
	// MemoryExpired 内存层清除的硬过期条目数。
	MemoryExpired int

	// BackingExpired 后备存储回收的过期记录数。
	BackingExpired int64

	// Duration 本次清扫耗时。
	Duration time.Duration

	// Err 后备清理的失败原因，nil 表示成功或未配置后备。
	Err error
}

// Report 汇总两层的运维视图。
type Report struct {
	// Memory 内存层的维护报告。
	Memory xlru.MaintenanceReport

	// Backing 后备存储的健康视图，nil 表示未配置后备。
	Backing *BackingReport
}

// BackingReport 描述后备存储的健康状况。
type BackingReport struct {
	// Healthy 健康检查是否通过。
	Healthy bool

	// Err 健康检查的失败原因。
	Err error

	// Len 后备存储的记录条数，-1 表示连接器不支持计数。
	Len int
}
