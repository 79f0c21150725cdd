package xjanitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/omeyang/cachekit/pkg/cache/xhybrid"
)

var (
	// ErrNilSweeper 表示清扫目标为 nil。
	ErrNilSweeper = errors.New("xjanitor: sweeper cannot be nil")

	// ErrInvalidSchedule 表示 cron 表达式不合法。
	ErrInvalidSchedule = errors.New("xjanitor: invalid schedule")

	// ErrSweepRunning 表示上一趟清扫尚未结束。
	ErrSweepRunning = errors.New("xjanitor: sweep already in progress")

	// ErrClosed 表示清扫器已停止。
	ErrClosed = errors.New("xjanitor: janitor closed")
)

// Sweeper 是清扫目标的最小契约，xhybrid.Store 天然满足。
type Sweeper interface {
	// Sweep 清扫过期数据并返回本趟计数。
	Sweep(ctx context.Context) xhybrid.SweepResult
}

// SweepFunc 让普通函数充当 Sweeper。
type SweepFunc func(ctx context.Context) xhybrid.SweepResult

// Sweep 实现 Sweeper 接口。
func (f SweepFunc) Sweep(ctx context.Context) xhybrid.SweepResult {
	return f(ctx)
}

// Janitor 周期性触发过期清扫的维护调度器。
// 并发安全；Start 之后清扫在调度 goroutine 上执行。
type Janitor struct {
	target Sweeper
	cron   *cron.Cron
	entry  cron.EntryID
	logger *slog.Logger

	// baseCtx 是调度触发清扫的根上下文，Stop 时取消。
	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu      sync.Mutex // 串行化 Start/Stop
	closed  atomic.Bool
	running atomic.Bool // 清扫重叠防护

	runs           atomic.Int64
	skips          atomic.Int64
	failures       atomic.Int64
	memoryExpired  atomic.Int64
	backingExpired atomic.Int64

	statsMu      sync.RWMutex
	lastRun      time.Time
	lastDuration time.Duration
	lastErr      error
}

// New 创建清扫器。默认每 5 分钟触发一次，设置 WithSchedule 后
// 改按 cron 表达式触发。创建后需调用 Start 才会开始周期调度；
// RunOnce 不依赖 Start，可直接用于手动触发。
func New(target Sweeper, opts ...Option) (*Janitor, error) {
	if target == nil {
		return nil, ErrNilSweeper
	}

	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	parser := cron.NewParser(
		cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)

	j := &Janitor{
		target: target,
		cron:   cron.New(cron.WithParser(parser), cron.WithLocation(o.location)),
		logger: o.logger,
	}

	if o.schedule != "" {
		id, err := j.cron.AddJob(o.schedule, cron.FuncJob(j.run))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
		}
		j.entry = id
	} else {
		j.entry = j.cron.Schedule(cron.Every(o.interval), cron.FuncJob(j.run))
	}

	j.baseCtx, j.baseCancel = context.WithCancel(context.Background())
	return j, nil
}

// Start 启动周期调度。重复调用无效果，停止后调用返回 ErrClosed。
func (j *Janitor) Start() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed.Load() {
		return ErrClosed
	}
	j.cron.Start()
	return nil
}

// Stop 停止调度并等待进行中的调度清扫结束，重复停止返回 ErrClosed。
// 进行中清扫的上下文会被取消，使其尽快收尾。
func (j *Janitor) Stop() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	j.baseCancel()
	<-j.cron.Stop().Done()
	return nil
}

// NextRun 返回下一次调度触发时刻，尚未 Start 时为零值。
func (j *Janitor) NextRun() time.Time {
	return j.cron.Entry(j.entry).Next
}

// RunOnce 立即执行一趟清扫并返回结果，与调度触发共享重叠防护：
// 已有清扫进行中时返回 ErrSweepRunning，清扫器停止后返回 ErrClosed。
func (j *Janitor) RunOnce(ctx context.Context) xhybrid.SweepResult {
	if j.closed.Load() {
		return xhybrid.SweepResult{Err: ErrClosed}
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if !j.running.CompareAndSwap(false, true) {
		j.skips.Add(1)
		return xhybrid.SweepResult{Err: ErrSweepRunning}
	}
	defer j.running.Store(false)

	return j.sweep(ctx)
}

// run 是调度触发入口，实现 cron.FuncJob。
func (j *Janitor) run() {
	if j.closed.Load() {
		return
	}
	if !j.running.CompareAndSwap(false, true) {
		j.skips.Add(1)
		j.logger.Warn("xjanitor: previous sweep still running, tick skipped")
		return
	}
	defer j.running.Store(false)

	j.sweep(j.baseCtx)
}

// sweep 执行一趟清扫并记账，panic 被隔离并按失败趟记录。
func (j *Janitor) sweep(ctx context.Context) (res xhybrid.SweepResult) {
	defer func() {
		if r := recover(); r != nil {
			res = xhybrid.SweepResult{Err: fmt.Errorf("xjanitor: sweep panicked: %v", r)}
			j.record(res)
			j.logger.Error("xjanitor: sweep panicked", "panic", r)
		}
	}()

	res = j.target.Sweep(ctx)
	j.record(res)

	if res.Err != nil {
		j.logger.Warn("xjanitor: sweep completed with error",
			"memory_expired", res.MemoryExpired,
			"backing_expired", res.BackingExpired,
			"duration", res.Duration,
			"error", res.Err)
	} else {
		j.logger.Info("xjanitor: sweep completed",
			"memory_expired", res.MemoryExpired,
			"backing_expired", res.BackingExpired,
			"duration", res.Duration)
	}
	return res
}
