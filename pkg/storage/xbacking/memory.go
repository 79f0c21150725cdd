package xbacking

import (
	"context"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// 确保 *Memory 实现 Store 接口
var _ Store = (*Memory)(nil)

// Memory 纯内存后备存储。
//
// 完整满足 Store 契约，含跨 Upsert 的 CreatedAt 保留与过期语义。
// 进程退出即丢失数据，适合测试与不需要跨实例共享的单机部署。
type Memory struct {
	mu      sync.RWMutex
	records map[string]*Record
	closed  atomic.Bool
	now     func() time.Time
}

// MemoryOption Memory 配置选项
type MemoryOption func(*Memory)

// WithClock 注入时钟，测试用。传入 nil 被忽略。
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemory 创建内存后备存储。
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		records: make(map[string]*Record),
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

func (m *Memory) precheck(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	if m.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

// Get 读取记录。过期记录视同不存在并被惰性回收。
func (m *Memory) Get(ctx context.Context, key string) (*Record, error) {
	if err := m.precheck(ctx); err != nil {
		return nil, err
	}
	if key == "" {
		return nil, ErrEmptyKey
	}

	m.mu.RLock()
	rec, ok := m.records[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	if rec.Expired(m.now()) {
		m.mu.Lock()
		// 重查：期间可能已被覆盖写
		if cur, ok := m.records[key]; ok && cur == rec {
			delete(m.records, key)
		}
		m.mu.Unlock()
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

// Upsert 写入记录。键已存在且未过期时保留 CreatedAt。
func (m *Memory) Upsert(ctx context.Context, key string, value []byte, expiresAt *time.Time) error {
	if err := m.precheck(ctx); err != nil {
		return err
	}
	if key == "" {
		return ErrEmptyKey
	}

	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	created := now
	if prev, ok := m.records[key]; ok && !prev.Expired(now) {
		created = prev.CreatedAt
	}
	var exp *time.Time
	if expiresAt != nil {
		t := *expiresAt
		exp = &t
	}
	m.records[key] = &Record{
		Key:       key,
		Value:     slices.Clone(value),
		ExpiresAt: exp,
		CreatedAt: created,
		UpdatedAt: now,
	}
	return nil
}

// Delete 删除记录。键不存在直接返回 nil。
func (m *Memory) Delete(ctx context.Context, key string) error {
	if err := m.precheck(ctx); err != nil {
		return err
	}
	if key == "" {
		return ErrEmptyKey
	}

	m.mu.Lock()
	delete(m.records, key)
	m.mu.Unlock()
	return nil
}

// DeleteByPrefix 删除所有以 prefix 开头的记录。空前缀拒绝。
func (m *Memory) DeleteByPrefix(ctx context.Context, prefix string) (int64, error) {
	if err := m.precheck(ctx); err != nil {
		return 0, err
	}
	if prefix == "" {
		return 0, ErrEmptyKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for key := range m.records {
		if strings.HasPrefix(key, prefix) {
			delete(m.records, key)
			n++
		}
	}
	return n, nil
}

// CleanupExpired 回收 ExpiresAt 早于 olderThan 的记录。
func (m *Memory) CleanupExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	if err := m.precheck(ctx); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for key, rec := range m.records {
		if rec.ExpiresAt != nil && rec.ExpiresAt.Before(olderThan) {
			delete(m.records, key)
			n++
		}
	}
	return n, nil
}

// Health 存储可用性探测。未关闭即健康。
func (m *Memory) Health(ctx context.Context) error {
	return m.precheck(ctx)
}

// Close 关闭存储并释放记录。重复关闭返回 ErrClosed。
func (m *Memory) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	m.mu.Lock()
	m.records = nil
	m.mu.Unlock()
	return nil
}

// Len 返回当前记录条数，含尚未回收的过期记录。
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
