package xmongo

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
	// Op 操作类型（get、upsert、delete、delete_by_prefix、cleanup_expired、
	// ensure_indexes）。
	Op string

	// Key 记录键。批量操作时为前缀，清理操作时为空。
	Key string

	// Duration 操作耗时。
	Duration time.Duration
}

// =============================================================================
// 配置选项
// =============================================================================

// 默认存储位置。
const (
	DefaultDatabase   = "cachekit"
	DefaultCollection = "cache_records"
)

// Options 定义 MongoDB 连接器的配置选项。
type Options struct {
	// Database 数据库名。默认为 DefaultDatabase。
	Database string

	// Collection 集合名。默认为 DefaultCollection。
	Collection string

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
	// 默认为 NoopObserver。
	Observer xmetrics.Observer

	// Clock 时钟源，决定时间戳字段与读取时的过期判定。
	// 默认为 time.Now，测试中可注入假时钟。
	Clock func() time.Time
}

// defaultOptions 返回默认配置。
func defaultOptions() *Options {
	return &Options{
		Database:             DefaultDatabase,
		Collection:           DefaultCollection,
		HealthTimeout:        storeopt.DefaultHealthTimeout,
		AsyncSlowOpWorkers:   storeopt.DefaultAsyncWorkers,
		AsyncSlowOpQueueSize: storeopt.DefaultAsyncQueueSize,
		Observer:             xmetrics.NoopObserver{},
		Clock:                time.Now,
	}
}

// Option 定义配置选项函数。
type Option func(*Options)

// WithDatabase 设置数据库名。传入空串被忽略，保留默认值。
func WithDatabase(name string) Option {
	return func(o *Options) {
		if name != "" {
			o.Database = name
		}
	}
}

// WithCollection 设置集合名。传入空串被忽略，保留默认值。
func WithCollection(name string) Option {
	return func(o *Options) {
		if name != "" {
			o.Collection = name
		}
	}
}

// WithHealthTimeout 设置健康检查超时时间。
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
