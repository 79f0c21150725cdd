package xsqlite

import (
	"time"

	"github.com/omeyang/cachekit/internal/storeopt"
	"github.com/omeyang/cachekit/pkg/observability/xmetrics"
)

// SlowOpInfo 慢操作详细信息。
type SlowOpInfo struct {
	// Op 操作类型（get、upsert、delete、delete_by_prefix、cleanup、health）。
	Op string

	// Key 操作的键。批量操作时为前缀。
	Key string

	// Duration 操作耗时。
	Duration time.Duration
}

// Options 定义 SQLite 连接器的配置选项。
type Options struct {
	// HealthTimeout 健康检查超时时间。默认为 5 秒。
	HealthTimeout time.Duration

	// SlowOpThreshold 慢操作阈值。为 0 时禁用慢操作检测。
	SlowOpThreshold time.Duration

	// SlowOpHook 慢操作同步回调钩子，在请求路径上同步执行。
	SlowOpHook storeopt.SyncHook[SlowOpInfo]

	// AsyncSlowOpHook 慢操作异步回调钩子。
	AsyncSlowOpHook storeopt.AsyncHook[SlowOpInfo]

	// AsyncSlowOpWorkers 异步慢操作 worker pool 大小。默认为 4。
	AsyncSlowOpWorkers int

	// AsyncSlowOpQueueSize 异步慢操作任务队列大小。默认为 256。
	AsyncSlowOpQueueSize int

	// Observer 统一观测接口（metrics/tracing）。
	Observer xmetrics.Observer

	// Clock 时钟注入，测试用。默认为 time.Now。
	// 影响记录时间戳与读取时的过期判定。
	Clock func() time.Time
}

// Option 定义配置 SQLite 连接器的函数类型。
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		HealthTimeout:        storeopt.DefaultHealthTimeout,
		AsyncSlowOpWorkers:   storeopt.DefaultAsyncWorkers,
		AsyncSlowOpQueueSize: storeopt.DefaultAsyncQueueSize,
		Observer:             xmetrics.NoopObserver{},
		Clock:                time.Now,
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
