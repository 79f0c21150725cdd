package storeopt

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/omeyang/cachekit/pkg/util/xpool"
)

// SlowOpOptions 慢操作检测配置。
type SlowOpOptions[T any] struct {
	// Threshold 慢操作阈值。为 0 时禁用慢操作检测。
	Threshold time.Duration

	// SyncHook 同步回调钩子，在请求路径上同步执行。
	SyncHook SyncHook[T]

	// AsyncHook 异步回调钩子，通过内部 worker pool 执行。
	// 当 AsyncHook 和 SyncHook 同时设置时，两者都会被调用。
	AsyncHook AsyncHook[T]

	// AsyncWorkers 异步 worker pool 大小。仅当设置 AsyncHook 时生效。
	AsyncWorkers int

	// AsyncQueueSize 异步任务队列大小。仅当设置 AsyncHook 时生效。
	// 当队列满时，新任务将被静默丢弃。
	AsyncQueueSize int
}

// 默认值常量。
const (
	DefaultAsyncWorkers   = 4
	DefaultAsyncQueueSize = 256
)

// SlowOpDetector 慢操作检测器。
// 封装了同步/异步钩子的调用逻辑。
type SlowOpDetector[T any] struct {
	options SlowOpOptions[T]
	pool    *xpool.Pool[T]
	mu      sync.RWMutex
	closed  bool
}

// NewSlowOpDetector 创建慢操作检测器。
//
// 设计决策: AsyncHook 非 nil 时立即创建 pool（eager init），将参数校验错误
// 暴露给调用方，避免运行时静默失效。Threshold 为 0 时 pool 不会被使用，
// 少量 goroutine 开销可接受，换取 fail-fast 语义。
func NewSlowOpDetector[T any](opts SlowOpOptions[T]) (*SlowOpDetector[T], error) {
	if opts.AsyncWorkers <= 0 {
		opts.AsyncWorkers = DefaultAsyncWorkers
	}
	if opts.AsyncQueueSize <= 0 {
		opts.AsyncQueueSize = DefaultAsyncQueueSize
	}

	d := &SlowOpDetector[T]{
		options: opts,
	}

	if opts.AsyncHook != nil {
		pool, err := xpool.New(
			opts.AsyncWorkers,
			opts.AsyncQueueSize,
			opts.AsyncHook,
		)
		if err != nil {
			return nil, fmt.Errorf("storeopt: create async pool: %w", err)
		}
		d.pool = pool
	}

	return d, nil
}

// MaybeSlowOp 检测并可能触发慢操作钩子。
// 返回是否触发了慢操作检测。
//
// 使用 >= 比较：duration 达到阈值即触发。
func (d *SlowOpDetector[T]) MaybeSlowOp(ctx context.Context, info T, duration time.Duration) bool {
	if d.options.Threshold == 0 {
		return false
	}
	if duration < d.options.Threshold {
		return false
	}

	if d.options.SyncHook != nil {
		d.options.SyncHook(ctx, info)
	}

	d.mu.RLock()
	if !d.closed && d.pool != nil {
		d.pool.Submit(info) //nolint:errcheck // 队列满时丢弃慢操作通知，可接受的降级行为
	}
	d.mu.RUnlock()

	return true
}

// Close 关闭检测器，释放资源。
//
// 设计决策: pool 引用在锁内取出后立即释放锁，pool.Close() 在锁外执行。
// 这避免了 pool 排空期间占用写锁导致并发 MaybeSlowOp 阻塞（尾延迟）。
// 并发的 MaybeSlowOp 会快速看到 closed == true 并跳过提交。
func (d *SlowOpDetector[T]) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	pool := d.pool
	d.pool = nil
	d.mu.Unlock()

	if pool != nil {
		pool.Close()
	}
}

// MeasureOperation 返回自 start 以来的耗时。
// 与 SlowOpDetector 配合使用，统一各连接器的计时口径。
func MeasureOperation(start time.Time) time.Duration {
	return time.Since(start)
}
