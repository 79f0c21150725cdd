package xlru

import (
	"container/list"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// maxCapacity 缓存最大条目数上限。
const maxCapacity = 1 << 24 // 16,777,216

// defaultHotKeyCapacity 热点键统计表默认容量。
const defaultHotKeyCapacity = 256

// entry 链表节点负载。key 冗余存储，淘汰从链表节点出发时需要反查。
type entry[V any] struct {
	key        string
	value      V
	weight     int64
	storedAt   time.Time
	freshUntil time.Time // 零值 = 永不过期
	staleUntil time.Time // 未配置 StaleGrace 时等于 freshUntil
}

// evictListener 带序号的监听器，序号用于注销。
type evictListener[V any] struct {
	id int
	fn func(EvictionRecord[V])
}

// Cache 带权重与双截止时间 TTL 的 LRU 缓存。
// 必须通过 [New] 创建，零值不可用。所有方法并发安全。
type Cache[V any] struct {
	mu          sync.Mutex
	capacity    int
	maxWeight   int64 // 0 = 不限制
	defaultTTL  time.Duration
	staleGrace  time.Duration
	totalWeight int64

	ll    *list.List // Front = MRU, Back = LRU
	items map[string]*list.Element

	listeners  []evictListener[V]
	nextListID int

	stats   statsCore
	hotKeys *hotKeyTable

	sizeOf func(V) int64
	logger *slog.Logger
	now    func() time.Time
}

// New 创建缓存实例，配置非法时 fail fast。
func New[V any](cfg Config, opts ...Option[V]) (*Cache[V], error) {
	if cfg.Capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	if cfg.Capacity > maxCapacity {
		return nil, ErrCapacityExceedsMax
	}
	if cfg.MaxWeight < 0 {
		return nil, ErrInvalidMaxWeight
	}
	if cfg.DefaultTTL < 0 {
		return nil, ErrInvalidTTL
	}
	if cfg.StaleGrace < 0 {
		return nil, ErrInvalidStaleGrace
	}

	o := &options[V]{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	var hot *hotKeyTable
	if cfg.HotKeyCapacity >= 0 {
		hotCap := cfg.HotKeyCapacity
		if hotCap == 0 {
			hotCap = defaultHotKeyCapacity
		}
		table, err := newHotKeyTable(hotCap)
		if err != nil {
			return nil, err
		}
		hot = table
	}

	return &Cache[V]{
		capacity:   cfg.Capacity,
		maxWeight:  cfg.MaxWeight,
		defaultTTL: cfg.DefaultTTL,
		staleGrace: cfg.StaleGrace,
		ll:         list.New(),
		items:      make(map[string]*list.Element),
		hotKeys:    hot,
		sizeOf:     o.sizeOf,
		logger:     logger,
		now:        now,
	}, nil
}

// ===========================================================================
// 读路径
// ===========================================================================

// Get 获取缓存值并刷新访问顺序。
//
// 过期处理是惰性的：
//   - 硬过期条目在此处物理删除（reason expired）并按 miss 计
//   - 软过期条目按 miss 计但保留原位，访问顺序不变
//
// 键不存在或已过期时返回零值和 false。
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V

	c.mu.Lock()
	now := c.now()

	el, ok := c.items[key]
	if !ok {
		c.stats.misses++
		c.mu.Unlock()
		return zero, false
	}

	e := el.Value.(*entry[V])
	if hardExpired(e, now) {
		rec := c.removeElementLocked(el, ReasonExpired)
		c.stats.misses++
		listeners := c.snapshotListenersLocked(1)
		c.mu.Unlock()
		c.fire(listeners, []EvictionRecord[V]{rec})
		return zero, false
	}
	if softExpired(e, now) {
		c.stats.misses++
		c.mu.Unlock()
		return zero, false
	}

	c.ll.MoveToFront(el)
	c.stats.hits++
	c.hotKeys.touch(key, now)
	value := e.value
	c.mu.Unlock()
	return value, true
}

// Peek 获取缓存值但不刷新访问顺序，也不计入命中统计。
// 过期处理与 Get 相同：硬过期删除，软过期视为不存在。
func (c *Cache[V]) Peek(key string) (V, bool) {
	var zero V

	c.mu.Lock()
	now := c.now()

	el, ok := c.items[key]
	if !ok {
		c.mu.Unlock()
		return zero, false
	}

	e := el.Value.(*entry[V])
	if hardExpired(e, now) {
		rec := c.removeElementLocked(el, ReasonExpired)
		listeners := c.snapshotListenersLocked(1)
		c.mu.Unlock()
		c.fire(listeners, []EvictionRecord[V]{rec})
		return zero, false
	}
	if softExpired(e, now) {
		c.mu.Unlock()
		return zero, false
	}

	value := e.value
	c.mu.Unlock()
	return value, true
}

// GetStale 获取缓存值，软过期条目也可命中。
//
// 返回值 age 为条目写入至今的时长，fresh 标识条目是否仍在新鲜期。
// 新鲜命中的行为与 Get 一致（刷新访问顺序、计入命中）；
// 软过期命中不触碰访问顺序，也不计入命中或未命中，由调用方自行统计降级。
// 硬过期条目永远不会被返回。
func (c *Cache[V]) GetStale(key string) (value V, age time.Duration, fresh bool, ok bool) {
	var zero V

	c.mu.Lock()
	now := c.now()

	el, found := c.items[key]
	if !found {
		c.stats.misses++
		c.mu.Unlock()
		return zero, 0, false, false
	}

	e := el.Value.(*entry[V])
	if hardExpired(e, now) {
		rec := c.removeElementLocked(el, ReasonExpired)
		c.stats.misses++
		listeners := c.snapshotListenersLocked(1)
		c.mu.Unlock()
		c.fire(listeners, []EvictionRecord[V]{rec})
		return zero, 0, false, false
	}

	age = now.Sub(e.storedAt)
	if softExpired(e, now) {
		value = e.value
		c.mu.Unlock()
		return value, age, false, true
	}

	c.ll.MoveToFront(el)
	c.stats.hits++
	c.hotKeys.touch(key, now)
	value = e.value
	c.mu.Unlock()
	return value, age, true, true
}

// Inspect 返回条目的只读快照，不刷新访问顺序也不计入统计。
// 软过期条目照常返回，调用方可通过 FreshUntil 自行判断新鲜度；
// 硬过期条目按惰性清理处理，返回 false。
func (c *Cache[V]) Inspect(key string) (Entry[V], bool) {
	c.mu.Lock()
	now := c.now()

	el, ok := c.items[key]
	if !ok {
		c.mu.Unlock()
		return Entry[V]{}, false
	}

	e := el.Value.(*entry[V])
	if hardExpired(e, now) {
		rec := c.removeElementLocked(el, ReasonExpired)
		listeners := c.snapshotListenersLocked(1)
		c.mu.Unlock()
		c.fire(listeners, []EvictionRecord[V]{rec})
		return Entry[V]{}, false
	}

	snapshot := Entry[V]{
		Key:        e.key,
		Value:      e.value,
		Weight:     e.weight,
		StoredAt:   e.storedAt,
		FreshUntil: e.freshUntil,
		StaleUntil: e.staleUntil,
	}
	c.mu.Unlock()
	return snapshot, true
}

// ===========================================================================
// 写路径
// ===========================================================================

// Set 写入或覆盖条目，返回写入是否被接受。
//
// 已存在的键原地更新值、权重与截止时间并移到队首。新键先按条目数
// 从尾部腾位（reason capacity），再按权重腾位（reason weight）。
// 腾位时若尾部条目已硬过期，按 expired 记因。
//
// 拒绝写入的情形（返回 false，缓存保持原状，记录 WARN）：
//   - 权重 < 1
//   - 配置了 MaxWeight 且单条权重超过整个预算
func (c *Cache[V]) Set(key string, value V, opts ...SetOption) bool {
	o := setOptions{weight: 1}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	if o.weight < 1 {
		c.logger.Warn("xlru: rejected write with invalid weight",
			"key", key, "weight", o.weight)
		return false
	}

	c.mu.Lock()
	if c.maxWeight > 0 && o.weight > c.maxWeight {
		maxWeight := c.maxWeight
		c.mu.Unlock()
		c.logger.Warn("xlru: rejected write heavier than the whole budget",
			"key", key, "weight", o.weight, "max_weight", maxWeight,
			"err", ErrEntryTooHeavy)
		return false
	}

	now := c.now()
	freshUntil, staleUntil := c.deadlines(now, o)

	var records []EvictionRecord[V]
	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[V])
		c.totalWeight += o.weight - e.weight
		e.value = value
		e.weight = o.weight
		e.storedAt = now
		e.freshUntil = freshUntil
		e.staleUntil = staleUntil
		c.ll.MoveToFront(el)
		records = c.evictOverweightLocked(now, records)
	} else {
		for len(c.items) >= c.capacity {
			rec, removed := c.evictTailLocked(ReasonCapacity, now)
			if !removed {
				break
			}
			records = append(records, rec)
		}
		el := c.ll.PushFront(&entry[V]{
			key:        key,
			value:      value,
			weight:     o.weight,
			storedAt:   now,
			freshUntil: freshUntil,
			staleUntil: staleUntil,
		})
		c.items[key] = el
		c.totalWeight += o.weight
		records = c.evictOverweightLocked(now, records)
	}

	listeners := c.snapshotListenersLocked(len(records))
	c.mu.Unlock()
	c.fire(listeners, records)
	return true
}

// Delete 删除条目，返回条目此前是否（逻辑上）存在。
//
// 硬过期条目视为不存在：物理删除按 expired 记因并返回 false。
// 软过期条目仍在宽限窗口内，删除按 manual 记因并返回 true。
func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	el, ok := c.items[key]
	if !ok {
		c.mu.Unlock()
		return false
	}

	e := el.Value.(*entry[V])
	reason := ReasonManual
	existed := true
	if hardExpired(e, c.now()) {
		reason = ReasonExpired
		existed = false
	}

	rec := c.removeElementLocked(el, reason)
	listeners := c.snapshotListenersLocked(1)
	c.mu.Unlock()
	c.fire(listeners, []EvictionRecord[V]{rec})
	return existed
}

// Clear 删除全部条目（reason manual），返回删除数量。
func (c *Cache[V]) Clear() int {
	c.mu.Lock()
	records := make([]EvictionRecord[V], 0, len(c.items))
	for el := c.ll.Back(); el != nil; el = c.ll.Back() {
		records = append(records, c.removeElementLocked(el, ReasonManual))
	}
	listeners := c.snapshotListenersLocked(len(records))
	c.mu.Unlock()
	c.fire(listeners, records)
	return len(records)
}

// ClearPrefix 删除所有带指定前缀的条目（reason manual），返回删除数量。
func (c *Cache[V]) ClearPrefix(prefix string) int {
	c.mu.Lock()
	var records []EvictionRecord[V]
	for el := c.ll.Back(); el != nil; {
		prev := el.Prev()
		if e := el.Value.(*entry[V]); strings.HasPrefix(e.key, prefix) {
			records = append(records, c.removeElementLocked(el, ReasonManual))
		}
		el = prev
	}
	listeners := c.snapshotListenersLocked(len(records))
	c.mu.Unlock()
	c.fire(listeners, records)
	return len(records)
}

// RemoveExpired 全量清扫硬过期条目（reason expired），返回删除数量。
// 由维护任务周期调用；软过期条目不受影响。
func (c *Cache[V]) RemoveExpired() int {
	c.mu.Lock()
	now := c.now()
	var records []EvictionRecord[V]
	for el := c.ll.Back(); el != nil; {
		prev := el.Prev()
		if e := el.Value.(*entry[V]); hardExpired(e, now) {
			records = append(records, c.removeElementLocked(el, ReasonExpired))
		}
		el = prev
	}
	listeners := c.snapshotListenersLocked(len(records))
	c.mu.Unlock()
	c.fire(listeners, records)
	return len(records)
}

// ===========================================================================
// 运行期配置
// ===========================================================================

// SetCapacity 运行期调整容量，配置非法时 fail fast 且缓存保持原状。
// 收缩时从尾部淘汰至满足新容量（reason capacity）。
func (c *Cache[V]) SetCapacity(n int) error {
	if n <= 0 {
		return ErrInvalidCapacity
	}
	if n > maxCapacity {
		return ErrCapacityExceedsMax
	}

	c.mu.Lock()
	c.capacity = n
	now := c.now()
	var records []EvictionRecord[V]
	for len(c.items) > c.capacity {
		rec, removed := c.evictTailLocked(ReasonCapacity, now)
		if !removed {
			break
		}
		records = append(records, rec)
	}
	listeners := c.snapshotListenersLocked(len(records))
	c.mu.Unlock()
	c.fire(listeners, records)
	return nil
}

// SetMaxWeight 运行期调整权重预算，必须为正数。
// 运行期不允许改回"不限制"。收缩时从尾部淘汰至满足预算（reason weight）。
func (c *Cache[V]) SetMaxWeight(w int64) error {
	if w <= 0 {
		return ErrInvalidMaxWeight
	}

	c.mu.Lock()
	c.maxWeight = w
	records := c.evictOverweightLocked(c.now(), nil)
	listeners := c.snapshotListenersLocked(len(records))
	c.mu.Unlock()
	c.fire(listeners, records)
	return nil
}

// ===========================================================================
// 遍历与快照
// ===========================================================================

// Len 返回当前条目数，包含软过期但尚未物理删除的条目。
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// TotalWeight 返回当前总权重，包含软过期条目。
func (c *Cache[V]) TotalWeight() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalWeight
}

// Capacity 返回当前容量。
func (c *Cache[V]) Capacity() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capacity
}

// MaxWeight 返回当前权重预算，0 表示不限制。
func (c *Cache[V]) MaxWeight() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxWeight
}

// Keys 返回所有键，按最久未访问到最近访问排序（LRU → MRU）。
// 可能包含已过期但尚未清理的条目的键。
func (c *Cache[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, 0, len(c.items))
	for el := c.ll.Back(); el != nil; el = el.Prev() {
		out = append(out, el.Value.(*entry[V]).key)
	}
	return out
}

// Values 返回所有值，顺序与 Keys 一致（LRU → MRU）。
func (c *Cache[V]) Values() []V {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]V, 0, len(c.items))
	for el := c.ll.Back(); el != nil; el = el.Prev() {
		out = append(out, el.Value.(*entry[V]).value)
	}
	return out
}

// Entries 返回所有条目的只读快照，顺序与 Keys 一致（LRU → MRU）。
func (c *Cache[V]) Entries() []Entry[V] {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Entry[V], 0, len(c.items))
	for el := c.ll.Back(); el != nil; el = el.Prev() {
		e := el.Value.(*entry[V])
		out = append(out, Entry[V]{
			Key:        e.key,
			Value:      e.value,
			Weight:     e.weight,
			StoredAt:   e.storedAt,
			FreshUntil: e.freshUntil,
			StaleUntil: e.staleUntil,
		})
	}
	return out
}

// ===========================================================================
// 淘汰监听
// ===========================================================================

// OnEvict 注册淘汰监听器，返回注销函数（可重复调用）。
//
// 监听器在触发删除的调用内同步执行，但在缓存锁释放之后。每次物理
// 删除每个监听器恰好收到一条记录。监听器 panic 被 recover 并记录
// 日志，不影响其他监听器。监听器内可以安全调用 Cache 自身的方法。
func (c *Cache[V]) OnEvict(fn func(EvictionRecord[V])) func() {
	if fn == nil {
		return func() {}
	}

	c.mu.Lock()
	id := c.nextListID
	c.nextListID++
	c.listeners = append(c.listeners, evictListener[V]{id: id, fn: fn})
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, l := range c.listeners {
			if l.id == id {
				c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
				return
			}
		}
	}
}

// snapshotListenersLocked 在锁内快照监听器列表，供锁外分发。
// 没有待分发记录或没有监听器时返回 nil，省掉快照开销。
func (c *Cache[V]) snapshotListenersLocked(pending int) []func(EvictionRecord[V]) {
	if pending == 0 || len(c.listeners) == 0 {
		return nil
	}
	out := make([]func(EvictionRecord[V]), len(c.listeners))
	for i, l := range c.listeners {
		out[i] = l.fn
	}
	return out
}

// fire 在锁外将淘汰记录分发给监听器快照。
func (c *Cache[V]) fire(listeners []func(EvictionRecord[V]), records []EvictionRecord[V]) {
	if len(listeners) == 0 || len(records) == 0 {
		return
	}
	for _, rec := range records {
		for _, fn := range listeners {
			c.notifyOne(fn, rec)
		}
	}
}

// notifyOne 执行单个监听器，panic 被隔离并记录日志。
func (c *Cache[V]) notifyOne(fn func(EvictionRecord[V]), rec EvictionRecord[V]) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("xlru: eviction listener panicked",
				"key", rec.Key, "reason", rec.Reason.String(), "panic", r)
		}
	}()
	fn(rec)
}

// ===========================================================================
// 内部助手
// ===========================================================================

// deadlines 计算本次写入的软/硬截止时间。
func (c *Cache[V]) deadlines(now time.Time, o setOptions) (freshUntil, staleUntil time.Time) {
	ttl := c.defaultTTL
	if o.ttl != nil {
		ttl = *o.ttl
	}
	if ttl <= 0 {
		return time.Time{}, time.Time{}
	}
	freshUntil = now.Add(ttl)
	staleUntil = freshUntil
	if c.staleGrace > 0 {
		staleUntil = freshUntil.Add(c.staleGrace)
	}
	return freshUntil, staleUntil
}

// evictTailLocked 从尾部淘汰一个条目。尾部条目已硬过期时按 expired
// 记因，否则使用传入的原因。
func (c *Cache[V]) evictTailLocked(reason Reason, now time.Time) (EvictionRecord[V], bool) {
	el := c.ll.Back()
	if el == nil {
		return EvictionRecord[V]{}, false
	}
	if hardExpired(el.Value.(*entry[V]), now) {
		reason = ReasonExpired
	}
	return c.removeElementLocked(el, reason), true
}

// evictOverweightLocked 从尾部淘汰直到总权重回到预算内。
// 刚写入/更新的条目位于队首，其权重不超过预算，循环必然终止。
func (c *Cache[V]) evictOverweightLocked(now time.Time, records []EvictionRecord[V]) []EvictionRecord[V] {
	if c.maxWeight <= 0 {
		return records
	}
	for c.totalWeight > c.maxWeight {
		rec, removed := c.evictTailLocked(ReasonWeight, now)
		if !removed {
			break
		}
		records = append(records, rec)
	}
	return records
}

// removeElementLocked 物理删除链表节点，维护权重账目与淘汰计数。
func (c *Cache[V]) removeElementLocked(el *list.Element, reason Reason) EvictionRecord[V] {
	e := el.Value.(*entry[V])
	delete(c.items, e.key)
	c.ll.Remove(el)
	c.totalWeight -= e.weight
	c.stats.evictions[reason]++
	return EvictionRecord[V]{
		Key:    e.key,
		Value:  e.value,
		Weight: e.weight,
		Reason: reason,
	}
}

func hardExpired[V any](e *entry[V], now time.Time) bool {
	return !e.staleUntil.IsZero() && !e.staleUntil.After(now)
}

func softExpired[V any](e *entry[V], now time.Time) bool {
	return !e.freshUntil.IsZero() && !e.freshUntil.After(now)
}
