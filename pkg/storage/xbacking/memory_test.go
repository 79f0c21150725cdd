package xbacking

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memClock 可手动推进的时钟。
type memClock struct {
	mu  sync.Mutex
	now time.Time
}

func newMemClock() *memClock {
	return &memClock{now: time.Unix(1700000000, 0).UTC()}
}

func (c *memClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *memClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func timePtr(t time.Time) *time.Time { return &t }

func TestMemory_GetUpsert(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	t.Run("round trip", func(t *testing.T) {
		require.NoError(t, m.Upsert(ctx, "user:1", []byte("alice"), nil))

		rec, err := m.Get(ctx, "user:1")
		require.NoError(t, err)
		assert.Equal(t, "user:1", rec.Key)
		assert.Equal(t, []byte("alice"), rec.Value)
		assert.Nil(t, rec.ExpiresAt)
		assert.False(t, rec.CreatedAt.IsZero())
		assert.False(t, rec.UpdatedAt.IsZero())
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := m.Get(ctx, "user:404")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("empty key", func(t *testing.T) {
		_, err := m.Get(ctx, "")
		assert.ErrorIs(t, err, ErrEmptyKey)
		assert.ErrorIs(t, m.Upsert(ctx, "", []byte("x"), nil), ErrEmptyKey)
	})

	t.Run("value isolation", func(t *testing.T) {
		src := []byte("original")
		require.NoError(t, m.Upsert(ctx, "iso", src, nil))
		src[0] = 'X' // 写入后改源切片不影响存储

		rec, err := m.Get(ctx, "iso")
		require.NoError(t, err)
		assert.Equal(t, []byte("original"), rec.Value)

		rec.Value[0] = 'Y' // 改返回值不影响存储
		again, err := m.Get(ctx, "iso")
		require.NoError(t, err)
		assert.Equal(t, []byte("original"), again.Value)
	})
}

func TestMemory_UpsertPreservesCreatedAt(t *testing.T) {
	ctx := context.Background()
	clock := newMemClock()
	m := NewMemory(WithClock(clock.Now))

	require.NoError(t, m.Upsert(ctx, "k", []byte("v1"), nil))
	first := clock.Now()

	clock.Advance(time.Hour)
	require.NoError(t, m.Upsert(ctx, "k", []byte("v2"), nil))

	rec, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), rec.Value)
	assert.Equal(t, first, rec.CreatedAt, "覆盖写保留首次创建时间")
	assert.Equal(t, first.Add(time.Hour), rec.UpdatedAt)
}

func TestMemory_Expiry(t *testing.T) {
	ctx := context.Background()
	clock := newMemClock()
	m := NewMemory(WithClock(clock.Now))

	t.Run("expired reads as absent", func(t *testing.T) {
		exp := clock.Now().Add(time.Minute)
		require.NoError(t, m.Upsert(ctx, "tmp", []byte("v"), &exp))

		rec, err := m.Get(ctx, "tmp")
		require.NoError(t, err)
		require.NotNil(t, rec.ExpiresAt)
		assert.Equal(t, exp, *rec.ExpiresAt)

		clock.Advance(2 * time.Minute)
		_, err = m.Get(ctx, "tmp")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Zero(t, m.Len(), "过期记录被惰性回收")
	})

	t.Run("reupsert after expiry resets created at", func(t *testing.T) {
		exp := clock.Now().Add(time.Minute)
		require.NoError(t, m.Upsert(ctx, "renew", []byte("v1"), &exp))
		clock.Advance(2 * time.Minute)

		require.NoError(t, m.Upsert(ctx, "renew", []byte("v2"), nil))
		rec, err := m.Get(ctx, "renew")
		require.NoError(t, err)
		assert.Equal(t, clock.Now(), rec.CreatedAt, "过期旧记录视同不存在")
	})
}

func TestMemory_Delete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Upsert(ctx, "k", []byte("v"), nil))
	require.NoError(t, m.Delete(ctx, "k"))
	_, err := m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, m.Delete(ctx, "k"), "删除不存在的键不是错误")
	assert.ErrorIs(t, m.Delete(ctx, ""), ErrEmptyKey)
}

func TestMemory_DeleteByPrefix(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	for _, key := range []string{"session:a", "session:b", "user:1"} {
		require.NoError(t, m.Upsert(ctx, key, []byte("v"), nil))
	}

	n, err := m.DeleteByPrefix(ctx, "session:")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 1, m.Len())

	_, err = m.Get(ctx, "user:1")
	assert.NoError(t, err)

	_, err = m.DeleteByPrefix(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestMemory_CleanupExpired(t *testing.T) {
	ctx := context.Background()
	clock := newMemClock()
	m := NewMemory(WithClock(clock.Now))

	base := clock.Now()
	require.NoError(t, m.Upsert(ctx, "gone", []byte("v"), timePtr(base.Add(time.Minute))))
	require.NoError(t, m.Upsert(ctx, "alive", []byte("v"), timePtr(base.Add(time.Hour))))
	require.NoError(t, m.Upsert(ctx, "forever", []byte("v"), nil))

	clock.Advance(10 * time.Minute)
	n, err := m.CleanupExpired(ctx, clock.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 2, m.Len())

	// 无过期时间的记录永远不被清理
	n, err = m.CleanupExpired(ctx, base.Add(1000*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	rec, err := m.Get(ctx, "forever")
	require.NoError(t, err)
	assert.Nil(t, rec.ExpiresAt)
}

func TestMemory_ClosedSemantics(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Upsert(ctx, "k", []byte("v"), nil))

	assert.NoError(t, m.Health(ctx))
	require.NoError(t, m.Close())
	assert.ErrorIs(t, m.Close(), ErrClosed)

	_, err := m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, m.Upsert(ctx, "k", []byte("v"), nil), ErrClosed)
	assert.ErrorIs(t, m.Delete(ctx, "k"), ErrClosed)
	_, err = m.DeleteByPrefix(ctx, "k")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = m.CleanupExpired(ctx, time.Now())
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, m.Health(ctx), ErrClosed)
}

func TestMemory_ContextCanceled(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, m.Upsert(ctx, "k", []byte("v"), nil), context.Canceled)

	var nilCtx context.Context
	_, err = m.Get(nilCtx, "k")
	assert.ErrorIs(t, err, ErrNilContext)
}

func TestMemory_Concurrent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("g%d:k%d", g, i%10)
				switch i % 4 {
				case 0:
					_ = m.Upsert(ctx, key, []byte("v"), nil)
				case 1:
					_, _ = m.Get(ctx, key)
				case 2:
					_ = m.Delete(ctx, key)
				default:
					_, _ = m.DeleteByPrefix(ctx, fmt.Sprintf("g%d:", g))
				}
			}
		}(g)
	}
	wg.Wait()
}
