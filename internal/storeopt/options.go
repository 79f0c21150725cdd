package storeopt

import (
	"context"
	"time"

	"github.com/omeyang/cachekit/pkg/observability/xmetrics"
)

// =============================================================================
// 通用钩子类型
// =============================================================================

// SyncHook 同步钩子函数类型。
// T 是慢操作信息的具体类型（如 xredis.SlowOpInfo 或 xmongo.SlowOpInfo）。
//
// ⚠️  警告：此钩子在请求路径上同步执行！
//
// 钩子函数的执行时间会直接增加请求延迟。以下操作应避免在同步钩子中执行：
//   - 网络 IO（如发送告警、写入远程日志）
//   - 磁盘 IO（如写入文件日志）
//   - 任何可能阻塞的操作
//
// 如需避免阻塞，请使用 AsyncHook。
type SyncHook[T any] func(ctx context.Context, info T)

// AsyncHook 异步钩子函数类型。
// 通过内部 worker pool 异步执行，不阻塞请求路径。
//
// 注意：此钩子不接收 context 参数，因为异步执行时原始 context 可能已取消。
// 当 AsyncHook 和 SyncHook 同时设置时，两者都会被调用。
type AsyncHook[T any] func(info T)

// =============================================================================
// 通用配置选项
// =============================================================================

// BaseOptions 定义后备存储连接器的通用配置选项。
// T 是慢操作信息的具体类型。
type BaseOptions[T any] struct {
	// HealthTimeout 健康检查超时时间。
	// 默认为 5 秒。
	HealthTimeout time.Duration

	// SlowOpThreshold 慢操作阈值。
	// 为 0 时禁用慢操作检测。
	SlowOpThreshold time.Duration

	// SlowOpHook 慢操作同步回调钩子。
	// 当操作耗时超过 SlowOpThreshold 时调用，在请求路径上同步执行。
	SlowOpHook SyncHook[T]

	// AsyncSlowOpHook 慢操作异步回调钩子。
	// 通过内部 worker pool 异步执行，不阻塞请求路径。
	AsyncSlowOpHook AsyncHook[T]

	// AsyncWorkers 异步慢操作 worker pool 大小。
	// 仅当设置 AsyncSlowOpHook 时生效。默认为 4。
	AsyncWorkers int

	// AsyncQueueSize 异步慢操作任务队列大小。
	// 仅当设置 AsyncSlowOpHook 时生效。
	// 默认为 256。当队列满时，新任务将被丢弃并记录日志。
	AsyncQueueSize int

	// Observer 是统一观测接口（metrics/tracing）。
	Observer xmetrics.Observer
}

// OptionFunc 定义配置 BaseOptions 的函数类型。
type OptionFunc[T any] func(*BaseOptions[T])

// DefaultBaseOptions 返回默认配置。
func DefaultBaseOptions[T any]() BaseOptions[T] {
	return BaseOptions[T]{
		HealthTimeout:   DefaultHealthTimeout,
		SlowOpThreshold: 0,
		AsyncWorkers:    DefaultAsyncWorkers,
		AsyncQueueSize:  DefaultAsyncQueueSize,
		Observer:        xmetrics.NoopObserver{},
	}
}

// =============================================================================
// 通用 With* 配置函数
// =============================================================================

// WithHealthTimeout 设置健康检查超时时间。
func WithHealthTimeout[T any](timeout time.Duration) OptionFunc[T] {
	return func(o *BaseOptions[T]) {
		if timeout > 0 {
			o.HealthTimeout = timeout
		}
	}
}

// WithSlowOpThreshold 设置慢操作阈值。
// 当操作耗时超过此阈值时，如果设置了钩子，将触发回调。
// 设置为 0 禁用慢操作检测。
func WithSlowOpThreshold[T any](threshold time.Duration) OptionFunc[T] {
	return func(o *BaseOptions[T]) {
		o.SlowOpThreshold = threshold
	}
}

// WithSlowOpHook 设置慢操作同步回调钩子。
func WithSlowOpHook[T any](hook SyncHook[T]) OptionFunc[T] {
	return func(o *BaseOptions[T]) {
		o.SlowOpHook = hook
	}
}

// WithAsyncSlowOpHook 设置慢操作异步回调钩子。
// 通过内部 worker pool 异步执行，不阻塞请求路径。
func WithAsyncSlowOpHook[T any](hook AsyncHook[T]) OptionFunc[T] {
	return func(o *BaseOptions[T]) {
		o.AsyncSlowOpHook = hook
	}
}

// WithAsyncWorkers 设置异步慢操作 worker pool 大小。
// 默认为 4。
func WithAsyncWorkers[T any](n int) OptionFunc[T] {
	return func(o *BaseOptions[T]) {
		if n > 0 {
			o.AsyncWorkers = n
		}
	}
}

// WithAsyncQueueSize 设置异步慢操作任务队列大小。
// 默认为 256。
func WithAsyncQueueSize[T any](n int) OptionFunc[T] {
	return func(o *BaseOptions[T]) {
		if n > 0 {
			o.AsyncQueueSize = n
		}
	}
}

// WithObserver 设置统一观测接口。
func WithObserver[T any](observer xmetrics.Observer) OptionFunc[T] {
	return func(o *BaseOptions[T]) {
		if observer != nil {
			o.Observer = observer
		}
	}
}
