package xsqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	// 注册 "sqlite" 驱动（纯 Go 实现，无 CGO）
	_ "modernc.org/sqlite"

	"github.com/omeyang/cachekit/internal/storeopt"
	"github.com/omeyang/cachekit/pkg/observability/xmetrics"
	"github.com/omeyang/cachekit/pkg/storage/xbacking"
)

const (
	sqliteComponent = "xsqlite"

	createTableSQL = `
CREATE TABLE IF NOT EXISTS cache_records (
    key        TEXT PRIMARY KEY,
    value      BLOB NOT NULL,
    expires_at INTEGER,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
)`

	createIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_cache_records_expires_at
    ON cache_records(expires_at)`

	getSQL = `
SELECT value, expires_at, created_at, updated_at
  FROM cache_records
 WHERE key = ? AND (expires_at IS NULL OR expires_at > ?)`

	// 过期旧行视同不存在：冲突分支里按写入时刻重判创建时间
	upsertSQL = `
INSERT INTO cache_records (key, value, expires_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(key) DO UPDATE SET
    value      = excluded.value,
    expires_at = excluded.expires_at,
    created_at = CASE
        WHEN cache_records.expires_at IS NOT NULL
         AND cache_records.expires_at <= excluded.updated_at
        THEN excluded.created_at
        ELSE cache_records.created_at
    END,
    updated_at = excluded.updated_at`

	deleteSQL = `DELETE FROM cache_records WHERE key = ?`

	deleteByPrefixSQL = `DELETE FROM cache_records WHERE key LIKE ? ESCAPE '\'`

	cleanupSQL = `
DELETE FROM cache_records
 WHERE expires_at IS NOT NULL AND expires_at < ?`
)

// =============================================================================
// 接口定义
// =============================================================================

// Stats SQLite 连接器统计信息。
type Stats struct {
	// OpCount 记录操作总数。
	OpCount int64

	// OpErrors 记录操作错误数。
	OpErrors int64

	// PingCount 健康检查次数。
	PingCount int64

	// PingErrors 健康检查失败次数。
	PingErrors int64

	// SlowOps 慢操作次数。
	SlowOps int64
}

// Store SQLite 后备存储接口。
// 在 xbacking.Store 契约之上提供原生句柄逃生通道与统计信息。
type Store interface {
	xbacking.Store

	// DB 返回底层的 *sql.DB，用于执行原生 SQL。
	DB() *sql.DB

	// Stats 返回统计信息。
	Stats() Stats
}

// =============================================================================
// 工厂函数
// =============================================================================

// DSN 根据文件路径构造带默认 PRAGMA 的数据源名称。
// _pragma 参数逐连接生效，连接池里的每个连接都会应用。
func DSN(path string) string {
	return "file:" + filepath.Clean(path) +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=foreign_keys(ON)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=synchronous(NORMAL)"
}

// Open 打开（必要时创建）path 指向的数据库文件并初始化表结构，
// 父目录不存在时一并创建。
func Open(ctx context.Context, path string, opts ...Option) (Store, error) {
	if ctx == nil {
		return nil, xbacking.ErrNilContext
	}
	if strings.TrimSpace(path) == "" {
		return nil, ErrEmptyPath
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("xsqlite mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("xsqlite open: %w", err)
	}
	store, err := New(ctx, db, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// New 从已有的 *sql.DB 创建 SQLite 后备存储并初始化表结构。
// db 的生命周期转交给返回的 Store，Close 时会被一并关闭。
func New(ctx context.Context, db *sql.DB, opts ...Option) (Store, error) {
	if ctx == nil {
		return nil, xbacking.ErrNilContext
	}
	if db == nil {
		return nil, ErrNilDB
	}

	options := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("xsqlite ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		return nil, fmt.Errorf("xsqlite create table: %w", err)
	}
	if _, err := db.ExecContext(ctx, createIndexSQL); err != nil {
		return nil, fmt.Errorf("xsqlite create index: %w", err)
	}

	detector, err := storeopt.NewSlowOpDetector(storeopt.SlowOpOptions[SlowOpInfo]{
		Threshold:      options.SlowOpThreshold,
		SyncHook:       options.SlowOpHook,
		AsyncHook:      options.AsyncSlowOpHook,
		AsyncWorkers:   options.AsyncSlowOpWorkers,
		AsyncQueueSize: options.AsyncSlowOpQueueSize,
	})
	if err != nil {
		return nil, fmt.Errorf("xsqlite: create slow op detector: %w", err)
	}

	return &sqliteStore{
		db:      db,
		options: options,
		slowOps: detector,
	}, nil
}

// =============================================================================
// sqliteStore 实现
// =============================================================================

type sqliteStore struct {
	db      *sql.DB
	options *Options
	slowOps *storeopt.SlowOpDetector[SlowOpInfo]

	healthCounter storeopt.HealthCounter
	opCounter     storeopt.OpCounter
	slowCounter   storeopt.SlowOpCounter

	closed atomic.Bool
}

var _ Store = (*sqliteStore)(nil)

func toMilli(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMilli(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// escapeLike 转义 LIKE 模式中的 % _ 与反斜杠，前缀按字面值匹配。
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func (s *sqliteStore) precheck(ctx context.Context, key string) error {
	if ctx == nil {
		return xbacking.ErrNilContext
	}
	if s.closed.Load() {
		return xbacking.ErrClosed
	}
	if key == "" {
		return xbacking.ErrEmptyKey
	}
	return nil
}

func (s *sqliteStore) observeOp(ctx context.Context, op, key string, start time.Time) {
	dur := storeopt.MeasureOperation(start)
	if s.slowOps.MaybeSlowOp(ctx, SlowOpInfo{Op: op, Key: key, Duration: dur}, dur) {
		s.slowCounter.Inc()
	}
}

func wrapUnavailable(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("xsqlite %s: %w", op, err)
	}
	return fmt.Errorf("xsqlite %s: %w: %w", op, xbacking.ErrUnavailable, err)
}

// Get 读取一条记录，过期记录被谓词过滤。
func (s *sqliteStore) Get(ctx context.Context, key string) (rec *xbacking.Record, err error) {
	if err := s.precheck(ctx, key); err != nil {
		return nil, err
	}

	ctx, span := xmetrics.Start(ctx, s.options.Observer, xmetrics.SpanOptions{
		Component: sqliteComponent,
		Operation: "get",
		Kind:      xmetrics.KindClient,
		Attrs:     []xmetrics.Attr{xmetrics.String("db.system", "sqlite")},
	})
	defer func() { span.End(xmetrics.Result{Err: err}) }()
	defer s.observeOp(ctx, "get", key, time.Now())

	s.opCounter.IncOp()

	var (
		value     []byte
		expiresAt sql.NullInt64
		createdAt int64
		updatedAt int64
	)
	row := s.db.QueryRowContext(ctx, getSQL, key, toMilli(s.options.Clock()))
	if scanErr := row.Scan(&value, &expiresAt, &createdAt, &updatedAt); scanErr != nil {
		if errors.Is(scanErr, sql.ErrNoRows) {
			err = xbacking.ErrNotFound
			return nil, err
		}
		s.opCounter.IncOpError()
		err = wrapUnavailable("get", scanErr)
		return nil, err
	}

	record := &xbacking.Record{
		Key:       key,
		Value:     value,
		CreatedAt: fromMilli(createdAt),
		UpdatedAt: fromMilli(updatedAt),
	}
	if expiresAt.Valid {
		exp := fromMilli(expiresAt.Int64)
		record.ExpiresAt = &exp
	}
	return record, nil
}

// Upsert 写入一条记录。冲突时保留未过期旧行的创建时间。
func (s *sqliteStore) Upsert(ctx context.Context, key string, value []byte, expiresAt *time.Time) (err error) {
	if err := s.precheck(ctx, key); err != nil {
		return err
	}

	ctx, span := xmetrics.Start(ctx, s.options.Observer, xmetrics.SpanOptions{
		Component: sqliteComponent,
		Operation: "upsert",
		Kind:      xmetrics.KindClient,
		Attrs:     []xmetrics.Attr{xmetrics.String("db.system", "sqlite")},
	})
	defer func() { span.End(xmetrics.Result{Err: err}) }()
	defer s.observeOp(ctx, "upsert", key, time.Now())

	s.opCounter.IncOp()

	var exp sql.NullInt64
	if expiresAt != nil {
		exp = sql.NullInt64{Int64: toMilli(*expiresAt), Valid: true}
	}
	nowMs := toMilli(s.options.Clock())

	if value == nil {
		value = []byte{} // value 列 NOT NULL
	}
	if _, execErr := s.db.ExecContext(ctx, upsertSQL, key, value, exp, nowMs, nowMs); execErr != nil {
		s.opCounter.IncOpError()
		err = wrapUnavailable("upsert", execErr)
		return err
	}
	return nil
}

// Delete 删除一条记录。键不存在不算错误。
func (s *sqliteStore) Delete(ctx context.Context, key string) (err error) {
	if err := s.precheck(ctx, key); err != nil {
		return err
	}

	ctx, span := xmetrics.Start(ctx, s.options.Observer, xmetrics.SpanOptions{
		Component: sqliteComponent,
		Operation: "delete",
		Kind:      xmetrics.KindClient,
		Attrs:     []xmetrics.Attr{xmetrics.String("db.system", "sqlite")},
	})
	defer func() { span.End(xmetrics.Result{Err: err}) }()
	defer s.observeOp(ctx, "delete", key, time.Now())

	s.opCounter.IncOp()

	if _, execErr := s.db.ExecContext(ctx, deleteSQL, key); execErr != nil {
		s.opCounter.IncOpError()
		err = wrapUnavailable("delete", execErr)
		return err
	}
	return nil
}

// DeleteByPrefix 按前缀批量删除，单条谓词 DELETE。
func (s *sqliteStore) DeleteByPrefix(ctx context.Context, prefix string) (deleted int64, err error) {
	if err := s.precheck(ctx, prefix); err != nil {
		return 0, err
	}

	ctx, span := xmetrics.Start(ctx, s.options.Observer, xmetrics.SpanOptions{
		Component: sqliteComponent,
		Operation: "delete_by_prefix",
		Kind:      xmetrics.KindClient,
		Attrs:     []xmetrics.Attr{xmetrics.String("db.system", "sqlite")},
	})
	defer func() { span.End(xmetrics.Result{Err: err}) }()
	defer s.observeOp(ctx, "delete_by_prefix", prefix, time.Now())

	s.opCounter.IncOp()

	result, execErr := s.db.ExecContext(ctx, deleteByPrefixSQL, escapeLike(prefix)+"%")
	if execErr != nil {
		s.opCounter.IncOpError()
		err = wrapUnavailable("delete_by_prefix", execErr)
		return 0, err
	}
	deleted, err = result.RowsAffected()
	if err != nil {
		err = wrapUnavailable("delete_by_prefix", err)
		return 0, err
	}
	return deleted, nil
}

// CleanupExpired 物理回收过期行，单条谓词 DELETE，expires_at 索引覆盖。
func (s *sqliteStore) CleanupExpired(ctx context.Context, olderThan time.Time) (deleted int64, err error) {
	if ctx == nil {
		return 0, xbacking.ErrNilContext
	}
	if s.closed.Load() {
		return 0, xbacking.ErrClosed
	}

	ctx, span := xmetrics.Start(ctx, s.options.Observer, xmetrics.SpanOptions{
		Component: sqliteComponent,
		Operation: "cleanup_expired",
		Kind:      xmetrics.KindClient,
		Attrs:     []xmetrics.Attr{xmetrics.String("db.system", "sqlite")},
	})
	defer func() { span.End(xmetrics.Result{Err: err}) }()
	defer s.observeOp(ctx, "cleanup_expired", "", time.Now())

	s.opCounter.IncOp()

	result, execErr := s.db.ExecContext(ctx, cleanupSQL, toMilli(olderThan))
	if execErr != nil {
		s.opCounter.IncOpError()
		err = wrapUnavailable("cleanup_expired", execErr)
		return 0, err
	}
	deleted, err = result.RowsAffected()
	if err != nil {
		err = wrapUnavailable("cleanup_expired", err)
		return 0, err
	}
	return deleted, nil
}

// Health 执行健康检查（连接池 ping）。
func (s *sqliteStore) Health(ctx context.Context) (err error) {
	if ctx == nil {
		return xbacking.ErrNilContext
	}
	if s.closed.Load() {
		return xbacking.ErrClosed
	}

	ctx, span := xmetrics.Start(ctx, s.options.Observer, xmetrics.SpanOptions{
		Component: sqliteComponent,
		Operation: "health",
		Kind:      xmetrics.KindClient,
		Attrs:     []xmetrics.Attr{xmetrics.String("db.system", "sqlite")},
	})
	defer func() { span.End(xmetrics.Result{Err: err}) }()

	s.healthCounter.IncPing()

	ctx, cancel := storeopt.HealthContext(ctx, s.options.HealthTimeout)
	defer cancel()

	if pingErr := s.db.PingContext(ctx); pingErr != nil {
		s.healthCounter.IncPingError()
		err = wrapUnavailable("health", pingErr)
		return err
	}
	return nil
}

// Close 关闭连接器与底层数据库。重复关闭返回 ErrClosed。
func (s *sqliteStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return xbacking.ErrClosed
	}
	s.slowOps.Close()
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("xsqlite close: %w", err)
	}
	return nil
}

// DB 返回底层数据库句柄。
// 不检查 closed 状态，database/sql 在关闭后会自行返回明确错误。
func (s *sqliteStore) DB() *sql.DB {
	return s.db
}

// Stats 返回统计信息。
func (s *sqliteStore) Stats() Stats {
	return Stats{
		OpCount:    s.opCounter.OpCount(),
		OpErrors:   s.opCounter.OpErrors(),
		PingCount:  s.healthCounter.PingCount(),
		PingErrors: s.healthCounter.PingErrors(),
		SlowOps:    s.slowCounter.Count(),
	}
}
