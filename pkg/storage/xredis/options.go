package xredis

import (
	"time"

	"github.com/omeyang/cachekit/internal/storeopt"
	"github.com/omeyang/cachekit/pkg/observability/xmetrics"
)

// =============================================================================
// 慢操作信息
// =============================================================================

// SlowOpInfo 慢操作详细信息。
type SlowOpInfo struct {
	// Op 操作类型（get、upsert、delete、delete_by_prefix、health）。
	Op string

	// Key 完整存储键（含键空间前缀）。批量操作时为扫描模式。
	Key string

	// Duration 操作耗时。
	Duration time.Duration
}

// =============================================================================
// 配置选项
// =============================================================================

// DefaultKeyspace 默认键空间前缀。
const DefaultKeyspace = "cachekit:"

// Options 定义 Redis 连接器的配置选项。
type Options struct {
	// Keyspace 键空间前缀。
	// 默认为 DefaultKeyspace。所有记录键都带此前缀写入 Redis。
	Keyspace string

	// HealthTimeout 健康检查超时时间。
	// 默认为 5 秒。
	HealthTimeout time.Duration

	// SlowOpThreshold 慢操作阈值。
	// 为 0 时禁用慢操作检测。
	SlowOpThreshold time.Duration

	// SlowOpHook 慢操作同步回调钩子，在请求路径上同步执行。
	SlowOpHook storeopt.SyncHook[SlowOpInfo]

	// AsyncSlowOpHook 慢操作异步回调钩子。
	// 通过内部 worker pool 异步执行，不阻塞请求路径。
	AsyncSlowOpHook storeopt.AsyncHook[SlowOpInfo]

	// AsyncSlowOpWorkers 异步慢操作 worker pool 大小。默认为 4。
	AsyncSlowOpWorkers int

	// AsyncSlowOpQueueSize 异步慢操作任务队列大小。默认为 256。
	AsyncSlowOpQueueSize int

	// Observer 统一观测接口（metrics/tracing）。
	Observer xmetrics.Observer

	// Clock 时钟注入，测试用。默认为 time.Now。
	Clock func() time.Time
}

// Option 定义配置 Redis 连接器的函数类型。
type Option func(*Options)

// defaultOptions 返回默认配置。
func defaultOptions() *Options {
	return &Options{
		Keyspace:             DefaultKeyspace,
		HealthTimeout:        storeopt.DefaultHealthTimeout,
		AsyncSlowOpWorkers:   storeopt.DefaultAsyncWorkers,
		AsyncSlowOpQueueSize: storeopt.DefaultAsyncQueueSize,
		Observer:             xmetrics.NoopObserver{},
		Clock:                time.Now,
	}
}

// WithKeyspace 设置键空间前缀。空串被忽略（保持默认值），
// 无前缀会让 DeleteByPrefix 的 SCAN 失去隔离边界。
func WithKeyspace(keyspace string) Option {
	return func(o *Options) {
		if keyspace != "" {
			o.Keyspace = keyspace
		}
	}
}

// WithHealthTimeout 设置健康检查超时时间。非正值被忽略。
func WithHealthTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		if timeout > 0 {
			o.HealthTimeout = timeout
		}
	}
}

// WithSlowOpThreshold 设置慢操作阈值。设置为 0 禁用慢操作检测。
func WithSlowOpThreshold(threshold time.Duration) Option {
	return func(o *Options) {
		o.SlowOpThreshold = threshold
	}
}

// WithSlowOpHook 设置慢操作同步回调钩子。
func WithSlowOpHook(hook storeopt.SyncHook[SlowOpInfo]) Option {
	return func(o *Options) {
		o.SlowOpHook = hook
	}
}

// WithAsyncSlowOpHook 设置慢操作异步回调钩子。
func WithAsyncSlowOpHook(hook storeopt.AsyncHook[SlowOpInfo]) Option {
	return func(o *Options) {
		o.AsyncSlowOpHook = hook
	}
}

// WithAsyncSlowOpWorkers 设置异步慢操作 worker pool 大小。
func WithAsyncSlowOpWorkers(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.AsyncSlowOpWorkers = n
		}
	}
}

// WithAsyncSlowOpQueueSize 设置异步慢操作任务队列大小。
func WithAsyncSlowOpQueueSize(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.AsyncSlowOpQueueSize = n
		}
	}
}

// WithObserver 设置统一观测接口。传入 nil 被忽略。
func WithObserver(observer xmetrics.Observer) Option {
	return func(o *Options) {
		if observer != nil {
			o.Observer = observer
		}
	}
}

// WithClock 注入时钟，测试用。传入 nil 被忽略。
func WithClock(now func() time.Time) Option {
	return func(o *Options) {
		if now != nil {
			o.Clock = now
		}
	}
}
