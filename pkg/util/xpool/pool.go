package xpool

import (
	"log/slog"
	"sync"
)

// Pool 是一个泛型 worker pool 实现。
// 用于异步执行任务（如慢操作回调的异步分发），支持优雅关闭和 panic 恢复。
type Pool[T any] struct {
	workers   int
	queueSize int
	handler   func(T)
	queue     chan T
	wg        sync.WaitGroup
	closeOnce sync.Once
	stopped   chan struct{}
	logger    *slog.Logger
	name      string
}

// New 创建并启动 worker pool。
//
// 参数：
//   - workers: worker 数量，必须 >= 1
//   - queueSize: 任务队列大小，必须 >= 1
//   - handler: 任务处理函数，不能为 nil
//
// 设计决策: New 校验参数并返回错误（fail-fast），而不是静默钳位。
// 调用方（如 storeopt 的异步钩子）依赖此语义在构造期暴露配置错误，
// 避免运行时任务被静默丢弃却无从排查。
//
// worker 在 New 返回前已全部启动，无需单独的 Start 调用。
func New[T any](workers, queueSize int, handler func(T), opts ...Option) (*Pool[T], error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	if workers < 1 {
		return nil, ErrInvalidWorkers
	}
	if queueSize < 1 {
		return nil, ErrInvalidQueueSize
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	p := &Pool[T]{
		workers:   workers,
		queueSize: queueSize,
		handler:   handler,
		queue:     make(chan T, queueSize),
		stopped:   make(chan struct{}),
		logger:    o.logger,
		name:      o.name,
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p, nil
}

// worker 是工作协程。
// 只从 queue 中读取任务，不检查 stopped 信号。
// 这确保在 Close() 时能处理完队列中的剩余任务（优雅关闭）。
func (p *Pool[T]) worker() {
	defer p.wg.Done()
	for task := range p.queue {
		p.run(task)
	}
}

// run 安全执行 handler，捕获 panic。
func (p *Pool[T]) run(task T) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("xpool: worker panic recovered",
				slog.String("pool", p.name), slog.Any("panic", r))
		}
	}()
	p.handler(task)
}

// Submit 提交任务到 worker pool。
//
// 队列满时返回 ErrQueueFull，任务被丢弃并记录日志；
// pool 已关闭时返回 ErrPoolStopped。
func (p *Pool[T]) Submit(task T) (err error) {
	// 捕获 Close() 与 Submit() 并发时可能的 send on closed channel panic。
	// 该窗口出现在 Close 关闭 p.stopped 后、关闭 p.queue 前，
	// Submit 的 select 恰好选中了 p.queue <- task 分支。
	defer func() {
		if r := recover(); r != nil {
			err = ErrPoolStopped
		}
	}()

	select {
	case <-p.stopped:
		return ErrPoolStopped
	case p.queue <- task:
		return nil
	default:
		p.logger.Warn("xpool: async queue full, task dropped",
			slog.String("pool", p.name))
		return ErrQueueFull
	}
}

// Close 关闭 worker pool。
// 会等待队列中所有剩余任务处理完成后再返回（优雅关闭）。
// 多次调用是安全的。
func (p *Pool[T]) Close() {
	p.closeOnce.Do(func() {
		// 1. 先标记为已停止，拒绝新任务提交
		close(p.stopped)
		// 2. 关闭队列，让 worker 退出循环
		close(p.queue)
		// 3. 等待所有 worker 处理完剩余任务后退出
		p.wg.Wait()
	})
}

// Workers 返回 worker 数量。
func (p *Pool[T]) Workers() int {
	return p.workers
}

// QueueSize 返回队列大小。
func (p *Pool[T]) QueueSize() int {
	return p.queueSize
}
