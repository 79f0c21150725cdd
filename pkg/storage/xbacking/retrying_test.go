package xbacking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyStore 先失败 failures 次再委托给内层存储，用于验证重试行为。
type flakyStore struct {
	inner    Store
	failures int
	failWith error

	getCalls     int
	upsertCalls  int
	deleteCalls  int
	prefixCalls  int
	cleanupCalls int
}

var _ Store = (*flakyStore)(nil)

func (f *flakyStore) fail() bool {
	if f.failures > 0 {
		f.failures--
		return true
	}
	return false
}

func (f *flakyStore) Get(ctx context.Context, key string) (*Record, error) {
	f.getCalls++
	if f.fail() {
		return nil, f.failWith
	}
	return f.inner.Get(ctx, key)
}

func (f *flakyStore) Upsert(ctx context.Context, key string, value []byte, expiresAt *time.Time) error {
	f.upsertCalls++
	if f.fail() {
		return f.failWith
	}
	return f.inner.Upsert(ctx, key, value, expiresAt)
}

func (f *flakyStore) Delete(ctx context.Context, key string) error {
	f.deleteCalls++
	if f.fail() {
		return f.failWith
	}
	return f.inner.Delete(ctx, key)
}

func (f *flakyStore) DeleteByPrefix(ctx context.Context, prefix string) (int64, error) {
	f.prefixCalls++
	if f.fail() {
		return 0, f.failWith
	}
	return f.inner.DeleteByPrefix(ctx, prefix)
}

func (f *flakyStore) CleanupExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	f.cleanupCalls++
	if f.fail() {
		return 0, f.failWith
	}
	return f.inner.CleanupExpired(ctx, olderThan)
}

func (f *flakyStore) Health(ctx context.Context) error { return f.inner.Health(ctx) }
func (f *flakyStore) Close() error                     { return f.inner.Close() }

// fastRetry 用毫秒级固定延迟，让重试测试瞬间跑完。
func fastRetry(t *testing.T, next Store, opts ...RetryOption) *Retrying {
	t.Helper()
	all := append([]RetryOption{
		WithFixedDelay(),
		WithDelay(time.Millisecond),
	}, opts...)
	r, err := NewRetrying(next, all...)
	require.NoError(t, err)
	return r
}

func TestNewRetrying(t *testing.T) {
	t.Run("nil store", func(t *testing.T) {
		r, err := NewRetrying(nil)
		assert.Nil(t, r)
		assert.ErrorIs(t, err, ErrNilStore)
	})

	t.Run("defaults", func(t *testing.T) {
		r, err := NewRetrying(NewMemory())
		require.NoError(t, err)
		assert.Equal(t, uint(DefaultRetryAttempts), r.attempts)
		assert.Equal(t, DefaultRetryDelay, r.delay)
		assert.Equal(t, DefaultRetryMaxDelay, r.maxDelay)
		assert.False(t, r.fixed)
	})

	t.Run("invalid options ignored", func(t *testing.T) {
		r, err := NewRetrying(NewMemory(), WithAttempts(0), WithDelay(0), WithMaxDelay(-1), WithRetryLogger(nil))
		require.NoError(t, err)
		assert.Equal(t, uint(DefaultRetryAttempts), r.attempts)
		assert.Equal(t, DefaultRetryDelay, r.delay)
		assert.NotNil(t, r.logger)
	})
}

func TestRetrying_RecoversFromTransientFailure(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	require.NoError(t, mem.Upsert(ctx, "k", []byte("v"), nil))

	flaky := &flakyStore{inner: mem, failures: 2, failWith: ErrUnavailable}
	r := fastRetry(t, flaky, WithAttempts(3))

	rec, err := r.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), rec.Value)
	assert.Equal(t, 3, flaky.getCalls, "两次失败加一次成功")
}

func TestRetrying_ExhaustsAttempts(t *testing.T) {
	ctx := context.Background()
	flaky := &flakyStore{inner: NewMemory(), failures: 100, failWith: ErrUnavailable}
	r := fastRetry(t, flaky, WithAttempts(3))

	_, err := r.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrUnavailable, "LastErrorOnly 只留最后一个错误")
	assert.Equal(t, 3, flaky.getCalls)
}

func TestRetrying_NonRetryableError(t *testing.T) {
	ctx := context.Background()

	// ErrNotFound 不可重试，只打一次
	flaky := &flakyStore{inner: NewMemory(), failures: 100, failWith: ErrNotFound}
	r := fastRetry(t, flaky, WithAttempts(5))
	_, err := r.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, flaky.getCalls)
}

func TestRetrying_WritesRetried(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	flaky := &flakyStore{inner: mem, failures: 1, failWith: ErrUnavailable}
	r := fastRetry(t, flaky, WithAttempts(3))

	require.NoError(t, r.Upsert(ctx, "k", []byte("v"), nil))
	assert.Equal(t, 2, flaky.upsertCalls)

	flaky.failures = 1
	require.NoError(t, r.Delete(ctx, "k"))
	assert.Equal(t, 2, flaky.deleteCalls)
}

func TestRetrying_BulkOpsSingleShot(t *testing.T) {
	ctx := context.Background()
	flaky := &flakyStore{inner: NewMemory(), failures: 100, failWith: ErrUnavailable}
	r := fastRetry(t, flaky, WithAttempts(5))

	_, err := r.DeleteByPrefix(ctx, "session:")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 1, flaky.prefixCalls, "批量删除不重试")

	_, err = r.CleanupExpired(ctx, time.Now())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 1, flaky.cleanupCalls, "过期清理不重试")
}

func TestRetrying_ContextCancelStopsRetry(t *testing.T) {
	flaky := &flakyStore{inner: NewMemory(), failures: 100, failWith: ErrUnavailable}
	r := fastRetry(t, flaky, WithAttempts(100), WithDelay(20*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := r.Get(ctx, "k")
	require.Error(t, err)
	assert.Less(t, flaky.getCalls, 10, "取消后不再继续重试")
}

func TestRetrying_PassThrough(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	r := fastRetry(t, mem)

	assert.NoError(t, r.Health(ctx))
	assert.Same(t, Store(mem), r.Unwrap())
	assert.NoError(t, r.Close())
	assert.ErrorIs(t, r.Health(ctx), ErrClosed)
}
