package xbacking

import (
	"context"
	"errors"
	"log/slog"
	"time"

	retry "github.com/avast/retry-go/v5"
)

// 重试装饰器默认值
const (
	DefaultRetryAttempts = 3                     // 总尝试次数，含首次
	DefaultRetryDelay    = 50 * time.Millisecond // 基础延迟
	DefaultRetryMaxDelay = time.Second           // 退避上限
)

// 确保 *Retrying 实现 Store 接口
var _ Store = (*Retrying)(nil)

// Retrying 为任意 Store 的点读点写加上有限重试。
//
// 只对 ErrUnavailable 重试，其余错误（ErrNotFound、ErrEmptyKey、
// 上下文取消等）立即返回。默认指数退避加随机抖动。
//
// DeleteByPrefix 与 CleanupExpired 不重试：批量清理由调度器周期触发，
// 失败等下一轮即可，不值得占住调用方的延迟预算。Health 也不重试，
// 探测要反映存储的真实现状，重试只会掩盖抖动。
type Retrying struct {
	next     Store
	attempts uint
	delay    time.Duration
	maxDelay time.Duration
	fixed    bool
	logger   *slog.Logger
}

// RetryOption 重试装饰器配置选项
type RetryOption func(*Retrying)

// WithAttempts 设置总尝试次数（含首次）。0 被忽略。
func WithAttempts(n uint) RetryOption {
	return func(r *Retrying) {
		if n > 0 {
			r.attempts = n
		}
	}
}

// WithDelay 设置基础延迟。非正值被忽略。
func WithDelay(d time.Duration) RetryOption {
	return func(r *Retrying) {
		if d > 0 {
			r.delay = d
		}
	}
}

// WithMaxDelay 设置退避延迟上限。非正值被忽略。
func WithMaxDelay(d time.Duration) RetryOption {
	return func(r *Retrying) {
		if d > 0 {
			r.maxDelay = d
		}
	}
}

// WithFixedDelay 使用固定延迟而非指数退避。
func WithFixedDelay() RetryOption {
	return func(r *Retrying) {
		r.fixed = true
	}
}

// WithRetryLogger 设置日志器。传入 nil 被忽略。
func WithRetryLogger(logger *slog.Logger) RetryOption {
	return func(r *Retrying) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRetrying 包装一个已有的 Store。next 为 nil 返回 ErrNilStore。
func NewRetrying(next Store, opts ...RetryOption) (*Retrying, error) {
	if next == nil {
		return nil, ErrNilStore
	}
	r := &Retrying{
		next:     next,
		attempts: DefaultRetryAttempts,
		delay:    DefaultRetryDelay,
		maxDelay: DefaultRetryMaxDelay,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

func (r *Retrying) retryOpts(ctx context.Context, op string) []retry.Option {
	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(r.attempts),
		retry.Delay(r.delay),
		retry.MaxDelay(r.maxDelay),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, ErrUnavailable)
		}),
		retry.OnRetry(func(n uint, err error) {
			// retry-go 的 n 从 0 开始，转为 1-based 的"第几次失败"
			r.logger.Warn("backing store retry",
				slog.String("op", op),
				slog.Uint64("attempt", uint64(n)+1),
				slog.Any("error", err))
		}),
		retry.LastErrorOnly(true),
	}
	if r.fixed {
		opts = append(opts, retry.DelayType(retry.FixedDelay))
	} else {
		opts = append(opts, retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)))
	}
	return opts
}

// Get 带重试读取。
func (r *Retrying) Get(ctx context.Context, key string) (*Record, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	return retry.NewWithData[*Record](r.retryOpts(ctx, "get")...).Do(func() (*Record, error) {
		return r.next.Get(ctx, key)
	})
}

// Upsert 带重试写入。
func (r *Retrying) Upsert(ctx context.Context, key string, value []byte, expiresAt *time.Time) error {
	if ctx == nil {
		return ErrNilContext
	}
	return retry.New(r.retryOpts(ctx, "upsert")...).Do(func() error {
		return r.next.Upsert(ctx, key, value, expiresAt)
	})
}

// Delete 带重试删除。
func (r *Retrying) Delete(ctx context.Context, key string) error {
	if ctx == nil {
		return ErrNilContext
	}
	return retry.New(r.retryOpts(ctx, "delete")...).Do(func() error {
		return r.next.Delete(ctx, key)
	})
}

// DeleteByPrefix 直接透传，不重试。
func (r *Retrying) DeleteByPrefix(ctx context.Context, prefix string) (int64, error) {
	return r.next.DeleteByPrefix(ctx, prefix)
}

// CleanupExpired 直接透传，不重试。
func (r *Retrying) CleanupExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	return r.next.CleanupExpired(ctx, olderThan)
}

// Health 直接透传，不重试。
func (r *Retrying) Health(ctx context.Context) error {
	return r.next.Health(ctx)
}

// Close 关闭被装饰的存储。
func (r *Retrying) Close() error {
	return r.next.Close()
}

// Unwrap 返回被装饰的存储。
func (r *Retrying) Unwrap() Store {
	return r.next
}
