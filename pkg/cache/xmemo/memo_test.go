package xmemo

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/cachekit/pkg/cache/xhybrid"
	"github.com/omeyang/cachekit/pkg/context/xreq"
	"github.com/omeyang/cachekit/pkg/storage/xbacking"
)

// =============================================================================
// 测试辅助
// =============================================================================

type memoClock struct {
	mu  sync.Mutex
	now time.Time
}

func newMemoClock() *memoClock {
	return &memoClock{now: time.Unix(1700000000, 0).UTC()}
}

func (c *memoClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *memoClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// countingTarget 包一层真实缓存，只记录往返次数。
type countingTarget struct {
	inner xhybrid.Store
	gets  atomic.Int64
	sets  atomic.Int64
}

func (c *countingTarget) Get(ctx context.Context, key string, opts ...xhybrid.ReadOption) ([]byte, bool) {
	c.gets.Add(1)
	return c.inner.Get(ctx, key, opts...)
}

func (c *countingTarget) Set(ctx context.Context, key string, value []byte, opts ...xhybrid.WriteOption) {
	c.sets.Add(1)
	c.inner.Set(ctx, key, value, opts...)
}

func newMemoryStore(t *testing.T, clk *memoClock, cfg xhybrid.Config) xhybrid.Store {
	t.Helper()
	if cfg.Capacity == 0 {
		cfg.Capacity = 64
	}
	if cfg.StaleGrace == 0 {
		cfg.StaleGrace = time.Hour
	}
	store, err := xhybrid.New(cfg, xhybrid.WithClock(clk.Now))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})
	return store
}

type profile struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

// =============================================================================
// 构造校验
// =============================================================================

func TestMemoize_Validation(t *testing.T) {
	clk := newMemoClock()
	store := newMemoryStore(t, clk, xhybrid.Config{})
	fn := func(_ context.Context, id string) (string, error) { return "v:" + id, nil }

	t.Run("nil store", func(t *testing.T) {
		_, err := Memoize(nil, fn, WithKeyPrefix("p:"))
		assert.ErrorIs(t, err, ErrNilStore)
	})

	t.Run("nil function", func(t *testing.T) {
		_, err := Memoize[string, string](store, nil, WithKeyPrefix("p:"))
		assert.ErrorIs(t, err, ErrNilFunc)
	})

	t.Run("missing key prefix", func(t *testing.T) {
		_, err := Memoize(store, fn)
		assert.ErrorIs(t, err, ErrEmptyKeyPrefix)

		_, err = Memoize(store, fn, WithKeyPrefix("   "))
		assert.ErrorIs(t, err, ErrEmptyKeyPrefix)
	})

	t.Run("invalid options ignored", func(t *testing.T) {
		wrapped, err := Memoize(store, fn,
			nil,
			WithKeyPrefix("p:"),
			WithTTL(-time.Minute),
			WithWeight(0),
			WithStaleFallback(-1),
			WithCallTimeout(-1),
			WithCodec(nil),
			WithLogger(nil),
		)
		require.NoError(t, err)

		out, err := wrapped(context.Background(), "u1")
		require.NoError(t, err)
		assert.Equal(t, "v:u1", out)
	})
}

// =============================================================================
// 记忆语义
// =============================================================================

func TestMemoize_CachesResults(t *testing.T) {
	clk := newMemoClock()
	target := &countingTarget{inner: newMemoryStore(t, clk, xhybrid.Config{})}

	var calls atomic.Int64
	fetch := func(_ context.Context, id string) (profile, error) {
		calls.Add(1)
		return profile{Name: "ada-" + id, Age: 36}, nil
	}

	lookup, err := Memoize(target, fetch, WithKeyPrefix("profile:"))
	require.NoError(t, err)

	ctx := context.Background()
	first, err := lookup(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, profile{Name: "ada-u1", Age: 36}, first)
	assert.EqualValues(t, 1, calls.Load())
	assert.EqualValues(t, 1, target.sets.Load())

	second, err := lookup(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, calls.Load(), "重复调用不应再触发原函数")
	assert.EqualValues(t, 1, target.sets.Load())
}

func TestMemoize_DistinctArguments(t *testing.T) {
	clk := newMemoClock()
	store := newMemoryStore(t, clk, xhybrid.Config{})

	var calls atomic.Int64
	fetch := func(_ context.Context, id string) (string, error) {
		calls.Add(1)
		return "v:" + id, nil
	}

	lookup, err := Memoize(store, fetch, WithKeyPrefix("profile:"))
	require.NoError(t, err)

	ctx := context.Background()
	a, err := lookup(ctx, "u1")
	require.NoError(t, err)
	b, err := lookup(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, "v:u1", a)
	assert.Equal(t, "v:u2", b)
	assert.EqualValues(t, 2, calls.Load())

	// 各自独立命中。
	a2, err := lookup(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, a, a2)
	assert.EqualValues(t, 2, calls.Load())
}

func TestMemoize_ErrorsNeverCached(t *testing.T) {
	clk := newMemoClock()
	target := &countingTarget{inner: newMemoryStore(t, clk, xhybrid.Config{})}
	errUpstream := errors.New("upstream down")

	var calls atomic.Int64
	var healthy atomic.Bool
	fetch := func(_ context.Context, id string) (string, error) {
		calls.Add(1)
		if !healthy.Load() {
			return "", errUpstream
		}
		return "v:" + id, nil
	}

	lookup, err := Memoize(target, fetch, WithKeyPrefix("profile:"))
	require.NoError(t, err)

	ctx := context.Background()
	_, err = lookup(ctx, "u1")
	assert.ErrorIs(t, err, errUpstream)
	_, err = lookup(ctx, "u1")
	assert.ErrorIs(t, err, errUpstream)
	assert.EqualValues(t, 2, calls.Load(), "失败结果不得被记忆")
	assert.EqualValues(t, 0, target.sets.Load())

	healthy.Store(true)
	out, err := lookup(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "v:u1", out)
	assert.EqualValues(t, 3, calls.Load())
	assert.EqualValues(t, 1, target.sets.Load())

	_, err = lookup(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, calls.Load())
}

func TestMemoize_UndecodableEntryRecomputed(t *testing.T) {
	clk := newMemoClock()
	store := newMemoryStore(t, clk, xhybrid.Config{})

	var calls atomic.Int64
	fetch := func(_ context.Context, id string) (profile, error) {
		calls.Add(1)
		return profile{Name: id, Age: 7}, nil
	}

	lookup, err := Memoize(store, fetch, WithKeyPrefix("profile:"))
	require.NoError(t, err)

	// 预埋一条解不开的脏数据。
	key, err := Key("profile:", "u1")
	require.NoError(t, err)
	ctx := context.Background()
	store.Set(ctx, key, []byte("{corrupt"))

	out, err := lookup(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, profile{Name: "u1", Age: 7}, out)
	assert.EqualValues(t, 1, calls.Load())

	// 重算结果已覆盖脏数据。
	again, err := lookup(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, out, again)
	assert.EqualValues(t, 1, calls.Load())
}

func TestMemoize_UncacheableArgument(t *testing.T) {
	clk := newMemoClock()
	target := &countingTarget{inner: newMemoryStore(t, clk, xhybrid.Config{})}

	var calls atomic.Int64
	fetch := func(_ context.Context, _ chan int) (string, error) {
		calls.Add(1)
		return "computed", nil
	}

	lookup, err := Memoize(target, fetch, WithKeyPrefix("bad:"))
	require.NoError(t, err)

	ctx := context.Background()
	arg := make(chan int)
	out, err := lookup(ctx, arg)
	require.NoError(t, err)
	assert.Equal(t, "computed", out)

	_, err = lookup(ctx, arg)
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load(), "键算不出来就只能每次透传")
	assert.EqualValues(t, 0, target.sets.Load())
	assert.EqualValues(t, 0, target.gets.Load())
}

func TestMemoize_UnencodableResult(t *testing.T) {
	clk := newMemoClock()
	target := &countingTarget{inner: newMemoryStore(t, clk, xhybrid.Config{})}

	var calls atomic.Int64
	fetch := func(_ context.Context, _ string) (chan int, error) {
		calls.Add(1)
		return make(chan int), nil
	}

	lookup, err := Memoize(target, fetch, WithKeyPrefix("bad:"))
	require.NoError(t, err)

	ctx := context.Background()
	out, err := lookup(ctx, "u1")
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.EqualValues(t, 0, target.sets.Load(), "编不出来的结果不落缓存")

	_, err = lookup(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())
}

// =============================================================================
// 陈旧回退
// =============================================================================

func TestMemoize_StaleFallback(t *testing.T) {
	clk := newMemoClock()
	store := newMemoryStore(t, clk, xhybrid.Config{})

	var healthy atomic.Bool
	healthy.Store(true)
	fetch := func(_ context.Context, id string) (string, error) {
		if !healthy.Load() {
			return "", errors.New("upstream down")
		}
		return "fresh:" + id, nil
	}

	generous, err := Memoize(store, fetch,
		WithKeyPrefix("profile:"), WithTTL(time.Minute), WithStaleFallback(10*time.Minute))
	require.NoError(t, err)
	strict, err := Memoize(store, fetch,
		WithKeyPrefix("profile:"), WithTTL(time.Minute), WithStaleFallback(30*time.Second))
	require.NoError(t, err)
	none, err := Memoize(store, fetch,
		WithKeyPrefix("profile:"), WithTTL(time.Minute))
	require.NoError(t, err)

	ctx := context.Background()
	seeded, err := generous(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "fresh:u1", seeded)

	// 条目软过期且上游失效：只剩陈旧副本可用。
	clk.Advance(2 * time.Minute)
	healthy.Store(false)

	out, err := generous(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "fresh:u1", out, "预算内应取到陈旧结果")

	_, err = strict(ctx, "u1")
	assert.Error(t, err, "年龄两分钟超出 30s 预算")

	_, err = none(ctx, "u1")
	assert.Error(t, err, "未开启回退只能透出失败")
}

func TestMemoize_CallerCancelSkipsStaleFallback(t *testing.T) {
	clk := newMemoClock()
	store := newMemoryStore(t, clk, xhybrid.Config{})

	seed, err := Memoize(store,
		func(_ context.Context, id string) (string, error) { return "old:" + id, nil },
		WithKeyPrefix("profile:"), WithTTL(time.Minute))
	require.NoError(t, err)

	ctx := context.Background()
	_, err = seed(ctx, "u1")
	require.NoError(t, err)
	clk.Advance(2 * time.Minute)

	released := make(chan struct{})
	blocked, err := Memoize(store,
		func(ctx context.Context, _ string) (string, error) {
			defer close(released)
			<-ctx.Done()
			return "", ctx.Err()
		},
		WithKeyPrefix("profile:"), WithTTL(time.Minute),
		WithStaleFallback(10*time.Minute), WithCallTimeout(50*time.Millisecond))
	require.NoError(t, err)

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = blocked(canceled, "u1")
	assert.ErrorIs(t, err, context.Canceled, "调用方自己放弃时不该拿到陈旧结果")

	<-released
}

// =============================================================================
// 并发去重
// =============================================================================

func TestMemoize_CollapsesConcurrentCalls(t *testing.T) {
	clk := newMemoClock()
	store := newMemoryStore(t, clk, xhybrid.Config{})

	gate := make(chan struct{})
	var calls atomic.Int64
	fetch := func(ctx context.Context, _ string) (string, error) {
		calls.Add(1)
		select {
		case <-gate:
			return "shared", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	lookup, err := Memoize(store, fetch, WithKeyPrefix("profile:"))
	require.NoError(t, err)

	const workers = 5
	results := make([]string, workers)
	errs := make([]error, workers)
	var ready, done sync.WaitGroup
	for i := range workers {
		ready.Add(1)
		done.Add(1)
		go func() {
			defer done.Done()
			ready.Done()
			results[i], errs[i] = lookup(context.Background(), "u1")
		}()
	}
	ready.Wait()
	time.Sleep(50 * time.Millisecond)
	close(gate)
	done.Wait()

	for i := range workers {
		require.NoError(t, errs[i])
		assert.Equal(t, "shared", results[i])
	}
	assert.EqualValues(t, 1, calls.Load(), "同键并发应收拢为一次调用")
}

func TestMemoize_SingleflightDisabled(t *testing.T) {
	clk := newMemoClock()
	store := newMemoryStore(t, clk, xhybrid.Config{})

	gate := make(chan struct{})
	var arrivals atomic.Int64
	fetch := func(_ context.Context, _ string) (string, error) {
		arrivals.Add(1)
		<-gate
		return "v", nil
	}

	lookup, err := Memoize(store, fetch, WithKeyPrefix("profile:"), WithSingleflight(false))
	require.NoError(t, err)

	const workers = 3
	var done sync.WaitGroup
	for range workers {
		done.Add(1)
		go func() {
			defer done.Done()
			_, _ = lookup(context.Background(), "u1")
		}()
	}
	require.Eventually(t, func() bool { return arrivals.Load() == workers },
		2*time.Second, 5*time.Millisecond, "关闭去重后各调用方独立回源")
	close(gate)
	done.Wait()
}

func TestMemoize_FlightSurvivesCallerCancel(t *testing.T) {
	clk := newMemoClock()
	store := newMemoryStore(t, clk, xhybrid.Config{})

	gate := make(chan struct{})
	var arrivals atomic.Int64
	fetch := func(ctx context.Context, _ string) (string, error) {
		arrivals.Add(1)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-gate:
			return "fresh", nil
		}
	}

	lookup, err := Memoize(store, fetch, WithKeyPrefix("profile:"))
	require.NoError(t, err)

	firstCtx, cancel := context.WithCancel(context.Background())
	var firstErr error
	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		_, firstErr = lookup(firstCtx, "u1")
	}()
	require.Eventually(t, func() bool { return arrivals.Load() == 1 },
		2*time.Second, 5*time.Millisecond)

	// 首个调用方放弃，航班继续飞。
	cancel()
	<-firstDone
	require.ErrorIs(t, firstErr, context.Canceled)

	var secondOut string
	var secondErr error
	secondDone := make(chan struct{})
	go func() {
		defer close(secondDone)
		secondOut, secondErr = lookup(context.Background(), "u1")
	}()
	time.Sleep(30 * time.Millisecond)
	close(gate)
	<-secondDone

	require.NoError(t, secondErr)
	assert.Equal(t, "fresh", secondOut)
	assert.EqualValues(t, 1, arrivals.Load(), "取消不应击落航班，后来者应搭上同一班")

	// 航班结果已被记忆。
	third, err := lookup(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "fresh", third)
	assert.EqualValues(t, 1, arrivals.Load())
}

func TestMemoize_CallTimeoutBoundsFlight(t *testing.T) {
	clk := newMemoClock()
	store := newMemoryStore(t, clk, xhybrid.Config{})

	fetch := func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}

	lookup, err := Memoize(store, fetch,
		WithKeyPrefix("profile:"), WithCallTimeout(30*time.Millisecond))
	require.NoError(t, err)

	started := time.Now()
	_, err = lookup(context.Background(), "u1")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(started), 2*time.Second)
}

// =============================================================================
// 写配置透传
// =============================================================================

func TestMemoize_WriteOptionsReachBacking(t *testing.T) {
	clk := newMemoClock()
	backing := xbacking.NewMemory(xbacking.WithClock(clk.Now))
	store, err := xhybrid.New(xhybrid.Config{
		Backing:    backing,
		Capacity:   64,
		StaleGrace: time.Hour,
	}, xhybrid.WithClock(clk.Now))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })

	lookup, err := Memoize(store,
		func(_ context.Context, q string) (string, error) { return "totals:" + q, nil },
		WithKeyPrefix("report:"), WithForcePersist(), WithTTL(time.Minute))
	require.NoError(t, err)

	ctx := context.Background()
	out, err := lookup(ctx, "q3")
	require.NoError(t, err)
	assert.Equal(t, "totals:q3", out)

	key, err := Key("report:", "q3")
	require.NoError(t, err)
	rec, err := backing.Get(ctx, key)
	require.NoError(t, err, "强制持久的记忆条目应已落后备")
	assert.Equal(t, []byte(`"totals:q3"`), rec.Value)
	require.NotNil(t, rec.ExpiresAt)
	assert.True(t, rec.ExpiresAt.Equal(clk.Now().Add(time.Minute)))
}

func TestMemoize_ExplicitWeightEvicts(t *testing.T) {
	clk := newMemoClock()
	store := newMemoryStore(t, clk, xhybrid.Config{Capacity: 64, MaxWeight: 10})

	var calls atomic.Int64
	fetch := func(_ context.Context, id string) (string, error) {
		calls.Add(1)
		return "v" + id, nil
	}

	lookup, err := Memoize(store, fetch, WithKeyPrefix("profile:"), WithWeight(8))
	require.NoError(t, err)

	ctx := context.Background()
	_, err = lookup(ctx, "a")
	require.NoError(t, err)
	_, err = lookup(ctx, "b")
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())

	// 显式权重 8+8 超出上限 10，先入的条目已被挤出。
	_, err = lookup(ctx, "a")
	require.NoError(t, err)
	assert.EqualValues(t, 3, calls.Load())
}

// =============================================================================
// 请求范围
// =============================================================================

func TestMemoize_RequestScopeShortCircuits(t *testing.T) {
	clk := newMemoClock()
	store := newMemoryStore(t, clk, xhybrid.Config{})

	var calls atomic.Int64
	fetch := func(_ context.Context, id string) (string, error) {
		calls.Add(1)
		return "v:" + id, nil
	}

	lookup, err := Memoize(store, fetch, WithKeyPrefix("profile:"))
	require.NoError(t, err)

	ctx, _ := xreq.WithScope(context.Background())
	first, err := lookup(ctx, "u1")
	require.NoError(t, err)

	second, err := lookup(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, calls.Load())

	stats := store.Stats()
	assert.EqualValues(t, 1, stats.ScopeHits, "同请求重复调用应由请求范围层短路")
	assert.EqualValues(t, 0, stats.Memory.Hits)
}
