package xredis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/omeyang/cachekit/internal/storeopt"
	"github.com/omeyang/cachekit/pkg/observability/xmetrics"
	"github.com/omeyang/cachekit/pkg/storage/xbacking"
)

const (
	redisComponent = "xredis"

	// 哈希字段名：值、创建时间(毫秒)、更新时间(毫秒)
	fieldValue     = "v"
	fieldCreatedAt = "c"
	fieldUpdatedAt = "u"

	// scanBatchSize SCAN 游标每轮的 COUNT 提示，同时是 DEL 的批大小。
	scanBatchSize = 512
)

// =============================================================================
// 接口定义
// =============================================================================

// Stats Redis 连接器统计信息。
type Stats struct {
	// OpCount 记录操作总数（get/upsert/delete/delete_by_prefix）。
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

// Store Redis 后备存储接口。
// 在 xbacking.Store 契约之上提供原生客户端逃生通道与统计信息。
type Store interface {
	xbacking.Store

	// Client 返回底层的 redis.UniversalClient，用于执行原生 Redis 操作。
	Client() redis.UniversalClient

	// Stats 返回统计信息。
	Stats() Stats

	// Keyspace 返回键空间前缀。
	Keyspace() string
}

// =============================================================================
// 工厂函数
// =============================================================================

// New 创建 Redis 后备存储。
// client 必须是已初始化的 redis.UniversalClient，Close 时会被一并关闭。
func New(client redis.UniversalClient, opts ...Option) (Store, error) {
	if client == nil {
		return nil, ErrNilClient
	}

	options := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}

	detector, err := storeopt.NewSlowOpDetector(storeopt.SlowOpOptions[SlowOpInfo]{
		Threshold:      options.SlowOpThreshold,
		SyncHook:       options.SlowOpHook,
		AsyncHook:      options.AsyncSlowOpHook,
		AsyncWorkers:   options.AsyncSlowOpWorkers,
		AsyncQueueSize: options.AsyncSlowOpQueueSize,
	})
	if err != nil {
		return nil, fmt.Errorf("xredis: create slow op detector: %w", err)
	}

	return &redisStore{
		client:  client,
		options: options,
		slowOps: detector,
	}, nil
}

// =============================================================================
// redisStore 实现
// =============================================================================

type redisStore struct {
	client  redis.UniversalClient
	options *Options
	slowOps *storeopt.SlowOpDetector[SlowOpInfo]

	healthCounter storeopt.HealthCounter
	opCounter     storeopt.OpCounter
	slowCounter   storeopt.SlowOpCounter

	closed atomic.Bool
}

var _ Store = (*redisStore)(nil)

func (s *redisStore) precheck(ctx context.Context, key string) error {
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

// observeOp 完成一次操作的慢操作检测与计数，配合 defer 使用。
func (s *redisStore) observeOp(ctx context.Context, op, key string, start time.Time) {
	dur := storeopt.MeasureOperation(start)
	if s.slowOps.MaybeSlowOp(ctx, SlowOpInfo{Op: op, Key: key, Duration: dur}, dur) {
		s.slowCounter.Inc()
	}
}

// wrapUnavailable 把驱动层错误归类为 ErrUnavailable。
// 调用方主动取消不算存储故障，原样透传。
func wrapUnavailable(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("xredis %s: %w", op, err)
	}
	return fmt.Errorf("xredis %s: %w: %w", op, xbacking.ErrUnavailable, err)
}

// parseMilli 解析毫秒时间戳字段。空字段返回零值时间。
func parseMilli(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(n).UTC(), nil
}

// escapeMatch 转义 SCAN MATCH 模式中的 glob 元字符，
// 让键里的 * ? [ ] 按字面值匹配。
func escapeMatch(s string) string {
	if !strings.ContainsAny(s, `*?[]^\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '*', '?', '[', ']', '^', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Get 读取一条记录。ExpiresAt 由 PTTL 反推，误差为一次网络往返。
func (s *redisStore) Get(ctx context.Context, key string) (rec *xbacking.Record, err error) {
	if err := s.precheck(ctx, key); err != nil {
		return nil, err
	}
	storageKey := s.options.Keyspace + key

	ctx, span := xmetrics.Start(ctx, s.options.Observer, xmetrics.SpanOptions{
		Component: redisComponent,
		Operation: "get",
		Kind:      xmetrics.KindClient,
		Attrs:     []xmetrics.Attr{xmetrics.String("db.system", "redis")},
	})
	defer func() { span.End(xmetrics.Result{Err: err}) }()
	defer s.observeOp(ctx, "get", storageKey, time.Now())

	s.opCounter.IncOp()

	pipe := s.client.Pipeline()
	getCmd := pipe.HGetAll(ctx, storageKey)
	ttlCmd := pipe.PTTL(ctx, storageKey)
	if _, execErr := pipe.Exec(ctx); execErr != nil {
		s.opCounter.IncOpError()
		err = wrapUnavailable("get", execErr)
		return nil, err
	}

	vals := getCmd.Val()
	if len(vals) == 0 {
		err = xbacking.ErrNotFound
		return nil, err
	}

	created, parseErr := parseMilli(vals[fieldCreatedAt])
	if parseErr != nil {
		err = fmt.Errorf("xredis get: malformed record %q: %w", key, parseErr)
		return nil, err
	}
	updated, parseErr := parseMilli(vals[fieldUpdatedAt])
	if parseErr != nil {
		err = fmt.Errorf("xredis get: malformed record %q: %w", key, parseErr)
		return nil, err
	}

	record := &xbacking.Record{
		Key:       key,
		Value:     []byte(vals[fieldValue]),
		CreatedAt: created,
		UpdatedAt: updated,
	}

	ttl := ttlCmd.Val()
	switch {
	case ttl > 0:
		exp := s.options.Clock().Add(ttl)
		record.ExpiresAt = &exp
	case ttl == -2:
		// 两条流水线命令之间键被过期或删除
		err = xbacking.ErrNotFound
		return nil, err
	}
	return record, nil
}

// Upsert 写入一条记录。MULTI/EXEC 保证字段写入与过期设置的原子性。
func (s *redisStore) Upsert(ctx context.Context, key string, value []byte, expiresAt *time.Time) (err error) {
	if err := s.precheck(ctx, key); err != nil {
		return err
	}
	storageKey := s.options.Keyspace + key

	ctx, span := xmetrics.Start(ctx, s.options.Observer, xmetrics.SpanOptions{
		Component: redisComponent,
		Operation: "upsert",
		Kind:      xmetrics.KindClient,
		Attrs:     []xmetrics.Attr{xmetrics.String("db.system", "redis")},
	})
	defer func() { span.End(xmetrics.Result{Err: err}) }()
	defer s.observeOp(ctx, "upsert", storageKey, time.Now())

	s.opCounter.IncOp()

	nowMs := s.options.Clock().UTC().UnixMilli()
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, storageKey, fieldValue, value, fieldUpdatedAt, nowMs)
	// 仅首次写入记创建时间；过期键已被 Redis 整体回收，自然重新计时
	pipe.HSetNX(ctx, storageKey, fieldCreatedAt, nowMs)
	if expiresAt != nil {
		pipe.PExpireAt(ctx, storageKey, *expiresAt)
	} else {
		pipe.Persist(ctx, storageKey)
	}
	if _, execErr := pipe.Exec(ctx); execErr != nil {
		s.opCounter.IncOpError()
		err = wrapUnavailable("upsert", execErr)
		return err
	}
	return nil
}

// Delete 删除一条记录。键不存在不算错误。
func (s *redisStore) Delete(ctx context.Context, key string) (err error) {
	if err := s.precheck(ctx, key); err != nil {
		return err
	}
	storageKey := s.options.Keyspace + key

	ctx, span := xmetrics.Start(ctx, s.options.Observer, xmetrics.SpanOptions{
		Component: redisComponent,
		Operation: "delete",
		Kind:      xmetrics.KindClient,
		Attrs:     []xmetrics.Attr{xmetrics.String("db.system", "redis")},
	})
	defer func() { span.End(xmetrics.Result{Err: err}) }()
	defer s.observeOp(ctx, "delete", storageKey, time.Now())

	s.opCounter.IncOp()

	if delErr := s.client.Del(ctx, storageKey).Err(); delErr != nil {
		s.opCounter.IncOpError()
		err = wrapUnavailable("delete", delErr)
		return err
	}
	return nil
}

// DeleteByPrefix 按前缀批量删除，SCAN 游标推进、批量 DEL。
//
// 已知限制: 集群部署下 SCAN 只覆盖单个节点，需要逐主节点执行；
// 当前实现面向单实例与哨兵部署。
func (s *redisStore) DeleteByPrefix(ctx context.Context, prefix string) (deleted int64, err error) {
	if err := s.precheck(ctx, prefix); err != nil {
		return 0, err
	}
	pattern := escapeMatch(s.options.Keyspace+prefix) + "*"

	ctx, span := xmetrics.Start(ctx, s.options.Observer, xmetrics.SpanOptions{
		Component: redisComponent,
		Operation: "delete_by_prefix",
		Kind:      xmetrics.KindClient,
		Attrs:     []xmetrics.Attr{xmetrics.String("db.system", "redis")},
	})
	defer func() { span.End(xmetrics.Result{Err: err}) }()
	defer s.observeOp(ctx, "delete_by_prefix", pattern, time.Now())

	s.opCounter.IncOp()

	var cursor uint64
	for {
		keys, next, scanErr := s.client.Scan(ctx, cursor, pattern, scanBatchSize).Result()
		if scanErr != nil {
			s.opCounter.IncOpError()
			err = wrapUnavailable("delete_by_prefix", scanErr)
			return deleted, err
		}
		if len(keys) > 0 {
			n, delErr := s.client.Del(ctx, keys...).Result()
			if delErr != nil {
				s.opCounter.IncOpError()
				err = wrapUnavailable("delete_by_prefix", delErr)
				return deleted, err
			}
			deleted += n
		}
		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}

// CleanupExpired 恒返回 0：过期由 Redis 原生 PEXPIREAT 执行，
// 无需应用层清扫。
func (s *redisStore) CleanupExpired(ctx context.Context, _ time.Time) (int64, error) {
	if ctx == nil {
		return 0, xbacking.ErrNilContext
	}
	if s.closed.Load() {
		return 0, xbacking.ErrClosed
	}
	return 0, nil
}

// Health 执行健康检查（PING）。
func (s *redisStore) Health(ctx context.Context) (err error) {
	if ctx == nil {
		return xbacking.ErrNilContext
	}
	if s.closed.Load() {
		return xbacking.ErrClosed
	}

	ctx, span := xmetrics.Start(ctx, s.options.Observer, xmetrics.SpanOptions{
		Component: redisComponent,
		Operation: "health",
		Kind:      xmetrics.KindClient,
		Attrs:     []xmetrics.Attr{xmetrics.String("db.system", "redis")},
	})
	defer func() { span.End(xmetrics.Result{Err: err}) }()

	s.healthCounter.IncPing()

	ctx, cancel := storeopt.HealthContext(ctx, s.options.HealthTimeout)
	defer cancel()

	if pingErr := s.client.Ping(ctx).Err(); pingErr != nil {
		s.healthCounter.IncPingError()
		err = wrapUnavailable("health", pingErr)
		return err
	}
	return nil
}

// Close 关闭连接器与底层客户端。重复关闭返回 ErrClosed。
func (s *redisStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return xbacking.ErrClosed
	}
	s.slowOps.Close()
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("xredis close: %w", err)
	}
	return nil
}

// Client 返回底层 Redis 客户端。
// 不检查 closed 状态，go-redis 在关闭后会自行返回明确错误。
func (s *redisStore) Client() redis.UniversalClient {
	return s.client
}

// Stats 返回统计信息。
func (s *redisStore) Stats() Stats {
	return Stats{
		OpCount:    s.opCounter.OpCount(),
		OpErrors:   s.opCounter.OpErrors(),
		PingCount:  s.healthCounter.PingCount(),
		PingErrors: s.healthCounter.PingErrors(),
		SlowOps:    s.slowCounter.Count(),
	}
}

// Keyspace 返回键空间前缀。
func (s *redisStore) Keyspace() string {
	return s.options.Keyspace
}
