package xbacking

import (
	"context"
	"slices"
	"time"
)

// Record 后备存储中的一条记录。
type Record struct {
	Key       string
	Value     []byte
	ExpiresAt *time.Time // nil 表示永不过期
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Expired 判断记录在 now 时刻是否已过期。恰好到达截止时间即视为过期。
func (r *Record) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && !r.ExpiresAt.After(now)
}

// Remaining 返回距离过期还剩多少时间。
// 无过期时间返回 (0, false)；已过期返回 (0, true)。
func (r *Record) Remaining(now time.Time) (time.Duration, bool) {
	if r.ExpiresAt == nil {
		return 0, false
	}
	d := r.ExpiresAt.Sub(now)
	if d < 0 {
		d = 0
	}
	return d, true
}

// Clone 返回记录的深拷贝，Value 与 ExpiresAt 均不与原记录共享。
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Value = slices.Clone(r.Value)
	if r.ExpiresAt != nil {
		t := *r.ExpiresAt
		cp.ExpiresAt = &t
	}
	return &cp
}

// Store 后备存储契约。语义约定见包文档。
type Store interface {
	// Get 读取一条记录。不存在或已过期返回 ErrNotFound。
	Get(ctx context.Context, key string) (*Record, error)

	// Upsert 写入或覆盖一条记录。expiresAt 为 nil 表示永不过期。
	Upsert(ctx context.Context, key string, value []byte, expiresAt *time.Time) error

	// Delete 删除一条记录。键不存在不算错误。
	Delete(ctx context.Context, key string) error

	// DeleteByPrefix 删除所有以 prefix 开头的记录，返回删除条数。
	DeleteByPrefix(ctx context.Context, prefix string) (int64, error)

	// CleanupExpired 物理回收 ExpiresAt 早于 olderThan 的记录，返回条数。
	CleanupExpired(ctx context.Context, olderThan time.Time) (int64, error)

	// Health 探测存储可用性。
	Health(ctx context.Context) error

	// Close 释放底层资源。重复关闭返回 ErrClosed。
	Close() error
}
