package xmongo

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/omeyang/cachekit/internal/storeopt"
	"github.com/omeyang/cachekit/pkg/observability/xmetrics"
	"github.com/omeyang/cachekit/pkg/storage/xbacking"
)

const mongoComponent = "xmongo"

// =============================================================================
// mongoStore 实现
// =============================================================================

// mongoStore 实现 Store 接口。
type mongoStore struct {
	client    *mongo.Client        // 用于 Client() 方法返回
	clientOps clientOperations     // 用于内部操作（可注入 mock）
	coll      collectionOperations // 集合操作（可注入 mock）
	options   *Options

	slowOps *storeopt.SlowOpDetector[SlowOpInfo]

	healthCounter storeopt.HealthCounter
	opCounter     storeopt.OpCounter
	slowCounter   storeopt.SlowOpCounter

	// 设计决策: 使用 atomic.Bool 保护 closed 状态，
	// 确保并发调用 Close() 和其他方法时的线程安全。
	closed atomic.Bool
}

var _ Store = (*mongoStore)(nil)

func (s *mongoStore) precheck(ctx context.Context, key string) error {
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
func (s *mongoStore) observeOp(ctx context.Context, op, key string, start time.Time) {
	dur := storeopt.MeasureOperation(start)
	if s.slowOps.MaybeSlowOp(ctx, SlowOpInfo{Op: op, Key: key, Duration: dur}, dur) {
		s.slowCounter.Inc()
	}
}

// wrapUnavailable 把驱动层错误归类为 ErrUnavailable。
// 调用方主动取消不算存储故障，原样透传。
func wrapUnavailable(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("xmongo %s: %w", op, err)
	}
	return fmt.Errorf("xmongo %s: %w: %w", op, xbacking.ErrUnavailable, err)
}

func (s *mongoStore) span(ctx context.Context, op string) (context.Context, xmetrics.Span) {
	return xmetrics.Start(ctx, s.options.Observer, xmetrics.SpanOptions{
		Component: mongoComponent,
		Operation: op,
		Kind:      xmetrics.KindClient,
		Attrs: []xmetrics.Attr{
			xmetrics.String("db.system", "mongodb"),
			xmetrics.String("db.collection", s.coll.Name()),
		},
	})
}

// =============================================================================
// 记录操作
// =============================================================================

// Get 读取一条记录，过期文档被查询谓词过滤。
func (s *mongoStore) Get(ctx context.Context, key string) (rec *xbacking.Record, err error) {
	if err := s.precheck(ctx, key); err != nil {
		return nil, err
	}

	ctx, span := s.span(ctx, "get")
	defer func() { span.End(xmetrics.Result{Err: err}) }()
	defer s.observeOp(ctx, "get", key, time.Now())

	s.opCounter.IncOp()

	var doc mongoRecord
	res := s.coll.FindOne(ctx, liveKeyFilter(key, s.options.Clock().UTC()))
	if decodeErr := res.Decode(&doc); decodeErr != nil {
		if errors.Is(decodeErr, mongo.ErrNoDocuments) {
			err = xbacking.ErrNotFound
			return nil, err
		}
		s.opCounter.IncOpError()
		err = wrapUnavailable("get", decodeErr)
		return nil, err
	}
	return doc.toRecord(), nil
}

// Upsert 写入一条记录，单条原子 UpdateOne 完成覆盖与创建时间判定。
func (s *mongoStore) Upsert(ctx context.Context, key string, value []byte, expiresAt *time.Time) (err error) {
	if err := s.precheck(ctx, key); err != nil {
		return err
	}

	ctx, span := s.span(ctx, "upsert")
	defer func() { span.End(xmetrics.Result{Err: err}) }()
	defer s.observeOp(ctx, "upsert", key, time.Now())

	s.opCounter.IncOp()

	now := s.options.Clock().UTC().Truncate(time.Millisecond)
	update := upsertPipeline(value, expiresAt, now)
	if _, execErr := s.coll.UpdateOne(ctx, keyFilter(key), update,
		options.UpdateOne().SetUpsert(true)); execErr != nil {
		s.opCounter.IncOpError()
		err = wrapUnavailable("upsert", execErr)
		return err
	}
	return nil
}

// Delete 删除一条记录。键不存在不算错误。
func (s *mongoStore) Delete(ctx context.Context, key string) (err error) {
	if err := s.precheck(ctx, key); err != nil {
		return err
	}

	ctx, span := s.span(ctx, "delete")
	defer func() { span.End(xmetrics.Result{Err: err}) }()
	defer s.observeOp(ctx, "delete", key, time.Now())

	s.opCounter.IncOp()

	if _, execErr := s.coll.DeleteOne(ctx, keyFilter(key)); execErr != nil {
		s.opCounter.IncOpError()
		err = wrapUnavailable("delete", execErr)
		return err
	}
	return nil
}

// DeleteByPrefix 按前缀批量删除，锚定正则走 DeleteMany。
func (s *mongoStore) DeleteByPrefix(ctx context.Context, prefix string) (deleted int64, err error) {
	if err := s.precheck(ctx, prefix); err != nil {
		return 0, err
	}

	ctx, span := s.span(ctx, "delete_by_prefix")
	defer func() { span.End(xmetrics.Result{Err: err}) }()
	defer s.observeOp(ctx, "delete_by_prefix", prefix, time.Now())

	s.opCounter.IncOp()

	res, execErr := s.coll.DeleteMany(ctx, prefixFilter(prefix))
	if execErr != nil {
		s.opCounter.IncOpError()
		err = wrapUnavailable("delete_by_prefix", execErr)
		return 0, err
	}
	return res.DeletedCount, nil
}

// CleanupExpired 物理回收严格早于 olderThan 过期的文档。
func (s *mongoStore) CleanupExpired(ctx context.Context, olderThan time.Time) (deleted int64, err error) {
	if ctx == nil {
		return 0, xbacking.ErrNilContext
	}
	if s.closed.Load() {
		return 0, xbacking.ErrClosed
	}

	ctx, span := s.span(ctx, "cleanup_expired")
	defer func() { span.End(xmetrics.Result{Err: err}) }()
	defer s.observeOp(ctx, "cleanup_expired", "", time.Now())

	s.opCounter.IncOp()

	res, execErr := s.coll.DeleteMany(ctx, expiredFilter(olderThan.UTC()))
	if execErr != nil {
		s.opCounter.IncOpError()
		err = wrapUnavailable("cleanup_expired", execErr)
		return 0, err
	}
	return res.DeletedCount, nil
}

// =============================================================================
// 索引与生命周期
// =============================================================================

// EnsureIndexes 确保 expires_at 索引存在。
func (s *mongoStore) EnsureIndexes(ctx context.Context) (err error) {
	if ctx == nil {
		return xbacking.ErrNilContext
	}
	if s.closed.Load() {
		return xbacking.ErrClosed
	}

	ctx, span := s.span(ctx, "ensure_indexes")
	defer func() { span.End(xmetrics.Result{Err: err}) }()
	defer s.observeOp(ctx, "ensure_indexes", "", time.Now())

	if _, createErr := s.coll.CreateIndex(ctx, expiresAtIndex()); createErr != nil {
		err = wrapUnavailable("ensure_indexes", createErr)
		return err
	}
	return nil
}

// Health 执行健康检查。
func (s *mongoStore) Health(ctx context.Context) (err error) {
	if ctx == nil {
		return xbacking.ErrNilContext
	}
	if s.closed.Load() {
		return xbacking.ErrClosed
	}

	ctx, span := s.span(ctx, "health")
	defer func() { span.End(xmetrics.Result{Err: err}) }()

	s.healthCounter.IncPing()

	ctx, cancel := storeopt.HealthContext(ctx, s.options.HealthTimeout)
	defer cancel()

	if pingErr := s.clientOps.Ping(ctx, readpref.Primary()); pingErr != nil {
		s.healthCounter.IncPingError()
		err = wrapUnavailable("health", pingErr)
		return err
	}
	return nil
}

// Close 关闭连接器并断开客户端。重复关闭返回 ErrClosed。
//
// 设计决策: Disconnect 失败时不回滚 closed 状态（不支持重试）。
// 原因：(1) 标准 Go 模式，io.Closer 契约为"调用一次释放资源";
// (2) Disconnect 失败通常意味着网络不可达，重试同样会失败。
func (s *mongoStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return xbacking.ErrClosed
	}

	s.slowOps.Close()

	if s.clientOps == nil {
		return nil
	}
	if err := s.clientOps.Disconnect(context.Background()); err != nil {
		return fmt.Errorf("xmongo close: %w", err)
	}
	return nil
}

// Client 返回底层 MongoDB 客户端。
//
// 设计决策: 不检查 closed 状态。mongo.Client 在 Disconnect 后
// 会自行保护并返回明确错误。
func (s *mongoStore) Client() *mongo.Client {
	return s.client
}

// Stats 返回统计信息。
func (s *mongoStore) Stats() Stats {
	return Stats{
		OpCount:    s.opCounter.OpCount(),
		OpErrors:   s.opCounter.OpErrors(),
		PingCount:  s.healthCounter.PingCount(),
		PingErrors: s.healthCounter.PingErrors(),
		SlowOps:    s.slowCounter.Count(),
	}
}
