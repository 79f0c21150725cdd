package xhybrid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"golang.org/x/sync/singleflight"

	"github.com/omeyang/cachekit/pkg/cache/xlru"
	"github.com/omeyang/cachekit/pkg/context/xmode"
	"github.com/omeyang/cachekit/pkg/context/xreq"
	"github.com/omeyang/cachekit/pkg/observability/xmetrics"
	"github.com/omeyang/cachekit/pkg/resilience/xbreaker"
	"github.com/omeyang/cachekit/pkg/storage/xbacking"
)

const hybridComponent = "xhybrid"

// 命中层级，作为观测属性上报。
const (
	tierScope   = "scope"
	tierMemory  = "memory"
	tierBacking = "backing"
	tierStale   = "stale"
	tierNone    = "none"
)

// 负缓存墓碑的 cost 恒为 1，MaxCost 即墓碑条数上限。
const (
	negativeNumCounters = 100_000
	negativeMaxCost     = 10_000
	negativeBufferItems = 64
)

// =============================================================================
// Store 接口定义
// =============================================================================

// Store 是混合缓存适配器的完整接口。
// 读写方法从不返回错误：后备存储的故障在包内降级处理。
type Store interface {
	// Get 按路由矩阵读取键值。
	// 返回的切片与缓存共享底层数组，调用方不得修改。
	Get(ctx context.Context, key string, opts ...ReadOption) ([]byte, bool)

	// Set 按路由矩阵写入键值。
	Set(ctx context.Context, key string, value []byte, opts ...WriteOption)

	// Delete 删除内存副本；分类器判定为持久的键同时尽力删除后备记录。
	Delete(ctx context.Context, key string)

	// Clear 清空适配器域内的两层数据，返回两层清除数之和。
	// 未配置命名空间时只清内存层。
	Clear(ctx context.Context) int

	// ClearPrefix 清除两层中携带给定逻辑前缀的条目，返回两层清除数之和。
	// 空前缀直接返回 0。
	ClearPrefix(ctx context.Context, prefix string) int

	// Sweep 清扫两层的过期数据。
	Sweep(ctx context.Context) SweepResult

	// Report 汇总两层的运维视图。
	Report(ctx context.Context) Report

	// Stats 返回累计运行统计。
	Stats() Stats

	// Close 释放适配器持有的资源，重复关闭返回 ErrClosed。
	// 注入的后备存储由调用方关闭。
	Close() error
}

// =============================================================================
// 构造
// =============================================================================

type hybridStore struct {
	mode       xmode.Mode
	lru        *xlru.Cache[[]byte]
	backing    xbacking.Store
	classifier *Classifier

	logger    *slog.Logger
	observer  xmetrics.Observer
	breaker   Gate
	tripper   Monitor
	namespace string
	opTimeout time.Duration
	now       func() time.Time

	persistentTTL time.Duration
	ephemeralTTL  time.Duration

	negative    *ristretto.Cache[string, struct{}]
	negativeTTL time.Duration

	group  singleflight.Group
	closed atomic.Bool

	backingReads  atomic.Uint64
	backingWrites atomic.Uint64
	backingErrors atomic.Uint64
	breakerDenied atomic.Uint64
	staleServed   atomic.Uint64
	negativeHits  atomic.Uint64
	scopeHits     atomic.Uint64
}

// New 创建混合缓存适配器。
// cfg 的数值字段为零时使用默认值，为负时返回错误。
func New(cfg Config, opts ...Option) (Store, error) {
	options := defaultHybridOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}

	if cfg.PersistentTTL < 0 || cfg.EphemeralTTL < 0 {
		return nil, fmt.Errorf("%w: ttl must not be negative", ErrInvalidTTL)
	}

	capacity := cfg.Capacity
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	persistentTTL := cfg.PersistentTTL
	if persistentTTL == 0 {
		persistentTTL = DefaultPersistentTTL
	}
	ephemeralTTL := cfg.EphemeralTTL
	if ephemeralTTL == 0 {
		ephemeralTTL = DefaultEphemeralTTL
	}
	staleGrace := cfg.StaleGrace
	if staleGrace == 0 {
		staleGrace = DefaultStaleGrace
	}

	lru, err := xlru.New[[]byte](xlru.Config{
		Capacity:   capacity,
		MaxWeight:  cfg.MaxWeight,
		StaleGrace: staleGrace,
		Logger:     options.Logger,
		Now:        options.Clock,
	}, xlru.WithSizeOf(func(v []byte) int64 { return int64(len(v)) }))
	if err != nil {
		return nil, fmt.Errorf("xhybrid: create memory tier: %w", err)
	}

	classifier := options.Classifier
	if classifier == nil {
		classifier = NewClassifier()
	}

	h := &hybridStore{
		mode:          cfg.Mode,
		lru:           lru,
		backing:       cfg.Backing,
		classifier:    classifier,
		logger:        options.Logger,
		observer:      options.Observer,
		breaker:       options.Breaker,
		tripper:       options.Tripper,
		namespace:     options.Namespace,
		opTimeout:     options.OpTimeout,
		now:           options.Clock,
		persistentTTL: persistentTTL,
		ephemeralTTL:  ephemeralTTL,
	}

	if options.NegativeTTL > 0 {
		neg, err := ristretto.NewCache(&ristretto.Config[string, struct{}]{
			NumCounters: negativeNumCounters,
			MaxCost:     negativeMaxCost,
			BufferItems: negativeBufferItems,
		})
		if err != nil {
			return nil, fmt.Errorf("xhybrid: create negative cache: %w", err)
		}
		h.negative = neg
		h.negativeTTL = options.NegativeTTL
	}

	return h, nil
}

// =============================================================================
// 读路径
// =============================================================================

// Get 按路由矩阵读取键值。
func (h *hybridStore) Get(ctx context.Context, key string, opts ...ReadOption) ([]byte, bool) {
	if h.closed.Load() || key == "" {
		return nil, false
	}
	if ctx == nil {
		ctx = context.Background()
	}
	var ro readOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&ro)
		}
	}

	ctx, span := xmetrics.Start(ctx, h.observer, xmetrics.SpanOptions{
		Component: hybridComponent,
		Operation: "get",
		Kind:      xmetrics.KindInternal,
	})
	value, tier, ok := h.get(ctx, key, ro)
	span.End(xmetrics.Result{Attrs: []xmetrics.Attr{
		xmetrics.Bool("cache.hit", ok),
		xmetrics.String("cache.tier", tier),
	}})
	return value, ok
}

func (h *hybridStore) get(ctx context.Context, key string, ro readOptions) ([]byte, string, bool) {
	pkey := h.physicalKey(key)

	// 请求范围内已解析过的值最优先，同一请求内的重复读不穿透存储层。
	if scope, ok := xreq.FromContext(ctx); ok {
		if v, ok := scope.Lookup(pkey); ok {
			h.scopeHits.Add(1)
			return v, tierScope, true
		}
	}

	value, tier, ok := h.route(ctx, key, pkey)
	if !ok && ro.allowStale {
		if v, served := h.staleCopy(pkey, ro.maxStale); served {
			value, tier, ok = v, tierStale, true
		}
	}
	if !ok {
		return nil, tierNone, false
	}

	h.rememberScope(ctx, pkey, value)
	return value, tier, true
}

func (h *hybridStore) route(ctx context.Context, key, pkey string) ([]byte, string, bool) {
	if h.backing == nil || !h.classifier.Persistent(key) {
		v, ok := h.lru.Get(pkey)
		return v, tierMemory, ok
	}
	if h.mode.IsEphemeral() {
		return h.getBackingFirst(ctx, key, pkey)
	}
	return h.getMemoryFirst(ctx, key, pkey)
}

// getBackingFirst 短暂进程的持久键读路径：后备是事实来源，
// 内存副本只在后备不可达时兜底同一次调用内的数据。
func (h *hybridStore) getBackingFirst(ctx context.Context, key, pkey string) ([]byte, string, bool) {
	opCtx, cancel := context.WithTimeout(ctx, h.opTimeout)
	rec, ok := h.readBacking(opCtx, key, pkey)
	cancel()
	if ok {
		h.populate(pkey, rec)
		return rec.Value, tierBacking, true
	}
	if v, ok := h.lru.Get(pkey); ok {
		return v, tierMemory, true
	}
	return nil, tierNone, false
}

// getMemoryFirst 长驻进程的持久键读路径：内存是权威层，
// 未命中时经 singleflight 收拢回源。
func (h *hybridStore) getMemoryFirst(ctx context.Context, key, pkey string) ([]byte, string, bool) {
	if v, ok := h.lru.Get(pkey); ok {
		return v, tierMemory, true
	}
	rec, ok := h.collapsedRead(ctx, key, pkey)
	if !ok {
		return nil, tierNone, false
	}
	h.populate(pkey, rec)
	return rec.Value, tierBacking, true
}

// collapsedRead 把同一物理键的并发回源收拢为一次后备读取。
// 加载在脱离调用方取消链的独立超时内执行，首个调用方取消
// 不影响其他等待者；各调用方仍按自己的 ctx 独立放弃等待。
func (h *hybridStore) collapsedRead(ctx context.Context, key, pkey string) (*xbacking.Record, bool) {
	ch := h.group.DoChan(pkey, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(detach(ctx), h.opTimeout)
		defer cancel()
		rec, ok := h.readBacking(loadCtx, key, pkey)
		if !ok {
			return (*xbacking.Record)(nil), nil
		}
		return rec, nil
	})

	select {
	case <-ctx.Done():
		return nil, false
	case res := <-ch:
		rec, _ := res.Val.(*xbacking.Record)
		if rec == nil {
			return nil, false
		}
		return rec, true
	}
}

// readBacking 执行一次受负缓存与熔断器保护的后备读取。
// 确认不存在时种下墓碑，故障降级为未命中并记账。
func (h *hybridStore) readBacking(ctx context.Context, key, pkey string) (*xbacking.Record, bool) {
	if h.negativeBlocked(pkey) {
		h.negativeHits.Add(1)
		return nil, false
	}
	if !h.allow(pkey) {
		h.breakerDenied.Add(1)
		return nil, false
	}

	h.backingReads.Add(1)
	rec, err := h.backing.Get(ctx, pkey)
	h.observeOutcome(h.groupPrefix(key), err)
	switch {
	case err == nil:
		return rec, true
	case errors.Is(err, xbacking.ErrNotFound):
		h.plantNegative(pkey)
		return nil, false
	default:
		h.backingErrors.Add(1)
		h.logger.Warn("xhybrid: backing read failed, degrading to miss",
			"key", key, "error", err)
		return nil, false
	}
}

// populate 把后备记录镜像进内存层，TTL 不超过记录自身的剩余寿命。
func (h *hybridStore) populate(pkey string, rec *xbacking.Record) {
	ttl := h.persistentTTL
	if rec.ExpiresAt != nil {
		if remaining := rec.ExpiresAt.Sub(h.now()); remaining < ttl {
			ttl = remaining
		}
	}
	if ttl <= 0 {
		return
	}
	h.lru.Set(pkey, rec.Value, xlru.WithTTL(ttl), xlru.WithWeight(weightOf(rec.Value)))
}

// staleCopy 返回软过期副本。年龄从写入时刻起算，须在 maxAge 预算内；
// 超出陈旧宽限的副本已被内存层按硬截止时间回收，Inspect 不会返回。
func (h *hybridStore) staleCopy(pkey string, maxAge time.Duration) ([]byte, bool) {
	e, ok := h.lru.Inspect(pkey)
	if !ok {
		return nil, false
	}
	if e.FreshUntil.IsZero() {
		return e.Value, true
	}
	now := h.now()
	if !now.After(e.FreshUntil) {
		return e.Value, true
	}

	if now.Sub(e.StoredAt) > maxAge {
		return nil, false
	}
	h.staleServed.Add(1)
	return e.Value, true
}

// =============================================================================
// 写路径
// =============================================================================

// Set 按路由矩阵写入键值。
func (h *hybridStore) Set(ctx context.Context, key string, value []byte, opts ...WriteOption) {
	if h.closed.Load() || key == "" {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	var wo writeOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&wo)
		}
	}

	persistent := wo.forcePersist || h.classifier.Persistent(key)
	ctx, span := xmetrics.Start(ctx, h.observer, xmetrics.SpanOptions{
		Component: hybridComponent,
		Operation: "set",
		Kind:      xmetrics.KindInternal,
	})
	defer span.End(xmetrics.Result{Attrs: []xmetrics.Attr{
		xmetrics.Bool("cache.persistent", persistent),
	}})

	pkey := h.physicalKey(key)
	ttl := h.effectiveTTL(wo, persistent)
	h.clearNegative(pkey)

	writeBack := persistent && h.backing != nil
	if writeBack && h.mode.IsEphemeral() {
		// 短暂进程先等待后备落盘，这是唯一的持久性保证；
		// 失败时内存照常写入，保住同一次调用内的读一致性。
		h.writeBacking(ctx, key, pkey, value, ttl)
	}

	weight := wo.weight
	if weight <= 0 {
		weight = weightOf(value)
	}
	if !h.lru.Set(pkey, value, xlru.WithTTL(ttl), xlru.WithWeight(weight)) {
		h.logger.Warn("xhybrid: memory tier rejected value",
			"key", key, "weight", weight)
	}

	if writeBack && !h.mode.IsEphemeral() {
		h.writeBacking(ctx, key, pkey, value, ttl)
	}

	h.rememberScope(ctx, pkey, value)
}

func (h *hybridStore) effectiveTTL(wo writeOptions, persistent bool) time.Duration {
	if wo.ttl != nil {
		return *wo.ttl
	}
	if persistent {
		return h.persistentTTL
	}
	return h.ephemeralTTL
}

// writeBacking 执行一次受熔断器保护的后备写入，失败只记账不上抛。
func (h *hybridStore) writeBacking(ctx context.Context, key, pkey string, value []byte, ttl time.Duration) {
	if !h.allow(pkey) {
		h.breakerDenied.Add(1)
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, h.opTimeout)
	defer cancel()

	var expiresAt *time.Time
	if ttl > 0 {
		t := h.now().Add(ttl)
		expiresAt = &t
	}

	h.backingWrites.Add(1)
	err := h.backing.Upsert(opCtx, pkey, value, expiresAt)
	h.observeOutcome(h.groupPrefix(key), err)
	if err != nil {
		h.backingErrors.Add(1)
		h.logger.Warn("xhybrid: backing write failed, memory copy kept",
			"key", key, "error", err)
	}
}

// =============================================================================
// 删除与清空
// =============================================================================

// Delete 删除内存副本；分类器判定为持久的键同时尽力删除后备记录。
func (h *hybridStore) Delete(ctx context.Context, key string) {
	if h.closed.Load() || key == "" {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := xmetrics.Start(ctx, h.observer, xmetrics.SpanOptions{
		Component: hybridComponent,
		Operation: "delete",
		Kind:      xmetrics.KindInternal,
	})
	defer span.End(xmetrics.Result{})

	pkey := h.physicalKey(key)
	h.clearNegative(pkey)
	h.forgetScope(ctx, pkey)
	h.lru.Delete(pkey)

	if h.backing == nil || !h.classifier.Persistent(key) {
		return
	}
	if !h.allow(pkey) {
		h.breakerDenied.Add(1)
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, h.opTimeout)
	defer cancel()

	h.backingWrites.Add(1)
	err := h.backing.Delete(opCtx, pkey)
	h.observeOutcome(h.groupPrefix(key), err)
	if err != nil {
		h.backingErrors.Add(1)
		h.logger.Warn("xhybrid: backing delete failed, record expires by ttl",
			"key", key, "error", err)
	}
}

// Clear 清空适配器域内的两层数据。
func (h *hybridStore) Clear(ctx context.Context) int {
	if h.closed.Load() {
		return 0
	}
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := xmetrics.Start(ctx, h.observer, xmetrics.SpanOptions{
		Component: hybridComponent,
		Operation: "clear",
		Kind:      xmetrics.KindInternal,
	})

	var removed int
	if h.namespace != "" {
		removed = h.lru.ClearPrefix(h.namespace)
	} else {
		removed = h.lru.Clear()
	}
	if h.backing != nil && h.namespace != "" {
		removed += int(h.purgeBacking(ctx, h.namespace))
	}

	span.End(xmetrics.Result{Attrs: []xmetrics.Attr{
		xmetrics.Int("cache.removed", removed),
	}})
	return removed
}

// purgeBacking 按物理前缀批量删除后备记录，失败计 0。
func (h *hybridStore) purgeBacking(ctx context.Context, physicalPrefix string) int64 {
	if !h.allow(physicalPrefix) {
		h.breakerDenied.Add(1)
		return 0
	}

	opCtx, cancel := context.WithTimeout(ctx, h.opTimeout)
	defer cancel()

	h.backingWrites.Add(1)
	count, err := h.backing.DeleteByPrefix(opCtx, physicalPrefix)
	h.observeOutcome(physicalPrefix, err)
	if err != nil {
		h.backingErrors.Add(1)
		h.logger.Warn("xhybrid: backing purge failed",
			"prefix", physicalPrefix, "error", err)
		return 0
	}
	return count
}

// =============================================================================
// 统计
// =============================================================================

// Stats 返回累计运行统计。
func (h *hybridStore) Stats() Stats {
	return Stats{
		Memory:        h.lru.Stats(),
		BackingReads:  h.backingReads.Load(),
		BackingWrites: h.backingWrites.Load(),
		BackingErrors: h.backingErrors.Load(),
		BreakerDenied: h.breakerDenied.Load(),
		StaleServed:   h.staleServed.Load(),
		NegativeHits:  h.negativeHits.Load(),
		ScopeHits:     h.scopeHits.Load(),
	}
}

// =============================================================================
// 内部工具
// =============================================================================

func (h *hybridStore) physicalKey(key string) string {
	return h.namespace + key
}

func (h *hybridStore) allow(pkey string) bool {
	return h.breaker == nil || h.breaker.Allow(pkey)
}

// groupPrefix 返回键在熔断器里的分组前缀：命名空间 + 首个 ':' 结尾段。
// 开启的前缀永远是对应物理键的前缀，Gate 与 Monitor 视角一致。
func (h *hybridStore) groupPrefix(key string) string {
	return h.namespace + xbreaker.PrefixFor(key)
}

// observeOutcome 把一次后备调用结果喂给熔断策略。
// 未命中算成功（存储正常应答了），调用方取消不算后备故障。
func (h *hybridStore) observeOutcome(prefix string, err error) {
	if h.tripper == nil || prefix == "" {
		return
	}
	switch {
	case err == nil, errors.Is(err, xbacking.ErrNotFound):
		h.tripper.Observe(prefix, nil)
	case errors.Is(err, context.Canceled):
	default:
		h.tripper.Observe(prefix, err)
	}
}

func (h *hybridStore) negativeBlocked(pkey string) bool {
	if h.negative == nil {
		return false
	}
	_, ok := h.negative.Get(pkey)
	return ok
}

func (h *hybridStore) plantNegative(pkey string) {
	if h.negative == nil {
		return
	}
	h.negative.SetWithTTL(pkey, struct{}{}, 1, h.negativeTTL)
}

func (h *hybridStore) clearNegative(pkey string) {
	if h.negative == nil {
		return
	}
	h.negative.Del(pkey)
}

func (h *hybridStore) rememberScope(ctx context.Context, pkey string, value []byte) {
	if scope, ok := xreq.FromContext(ctx); ok {
		scope.Remember(pkey, value)
	}
}

func (h *hybridStore) forgetScope(ctx context.Context, pkey string) {
	if scope, ok := xreq.FromContext(ctx); ok {
		scope.Forget(pkey)
	}
}

// weightOf 按字节长度计重，空值至少计 1。
func weightOf(value []byte) int64 {
	if len(value) == 0 {
		return 1
	}
	return int64(len(value))
}

// detachedCtx 保留原 context 的 Value，但不继承其取消信号与截止时间。
type detachedCtx struct {
	context.Context
}

func (detachedCtx) Deadline() (time.Time, bool) { return time.Time{}, false }
func (detachedCtx) Done() <-chan struct{}       { return nil }
func (detachedCtx) Err() error                  { return nil }

func detach(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return detachedCtx{Context: ctx}
}
