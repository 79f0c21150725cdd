package xlru

import (
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// statsCore 锁内维护的计数器。
type statsCore struct {
	hits      uint64
	misses    uint64
	evictions [reasonCount]uint64
}

// Snapshot 是某一时刻的统计快照，各字段互相一致。
type Snapshot struct {
	Size        int
	TotalWeight int64
	Hits        uint64
	Misses      uint64

	EvictedCapacity uint64
	EvictedWeight   uint64
	EvictedManual   uint64
	EvictedExpired  uint64
}

// TotalEvictions 返回各原因淘汰次数之和。
func (s Snapshot) TotalEvictions() uint64 {
	return s.EvictedCapacity + s.EvictedWeight + s.EvictedManual + s.EvictedExpired
}

// HitRate 返回命中率 hits/(hits+misses)，无访问时为 0。
func (s Snapshot) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// MissRate 返回未命中率，无访问时为 0。
func (s Snapshot) MissRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Misses) / float64(total)
}

// EvictionRate 返回累计淘汰次数与当前条目数的比值。
//
// 这是一个相对当前规模的粗粒度健康信号（值高说明淘汰压力大），
// 不是单位时间的吞吐率。空缓存按条目数 1 计算，避免除零。
func (s Snapshot) EvictionRate() float64 {
	size := s.Size
	if size < 1 {
		size = 1
	}
	return float64(s.TotalEvictions()) / float64(size)
}

// Stats 返回统计快照。
func (c *Cache[V]) Stats() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		Size:            len(c.items),
		TotalWeight:     c.totalWeight,
		Hits:            c.stats.hits,
		Misses:          c.stats.misses,
		EvictedCapacity: c.stats.evictions[ReasonCapacity],
		EvictedWeight:   c.stats.evictions[ReasonWeight],
		EvictedManual:   c.stats.evictions[ReasonManual],
		EvictedExpired:  c.stats.evictions[ReasonExpired],
	}
}

// ===========================================================================
// 热点键统计
// ===========================================================================

// KeyCount 热点键排名条目。
type KeyCount struct {
	Key  string
	Hits uint64
}

// TopKeys 返回命中次数最高的 n 个键，按命中次数降序。
// 并列时最近访问的键排在前面（排序稳定）。统计被关闭时返回 nil。
//
// 计数存放在有界 LRU 表中：条目被淘汰后计数仍保留（高频重建的键
// 不丢名次），长期未访问的键从表中自然滚出。
func (c *Cache[V]) TopKeys(n int) []KeyCount {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hotKeys.ranked(n)
}

// hotCount 单键命中计数。last 用于并列名次的先后裁决。
type hotCount struct {
	count uint64
	last  time.Time
}

// hotKeyTable 有界热点键计数表。nil 接收者表示统计被关闭。
type hotKeyTable struct {
	table *lru.Cache[string, *hotCount]
}

func newHotKeyTable(capacity int) (*hotKeyTable, error) {
	table, err := lru.New[string, *hotCount](capacity)
	if err != nil {
		return nil, err
	}
	return &hotKeyTable{table: table}, nil
}

// touch 记录一次命中。Get 既更新计数也刷新键在表内的新鲜度。
func (t *hotKeyTable) touch(key string, now time.Time) {
	if t == nil {
		return
	}
	if hc, ok := t.table.Get(key); ok {
		hc.count++
		hc.last = now
		return
	}
	t.table.Add(key, &hotCount{count: 1, last: now})
}

// ranked 返回前 n 名。Peek 避免排名查询扰动表内新鲜度。
func (t *hotKeyTable) ranked(n int) []KeyCount {
	if t == nil || n <= 0 {
		return nil
	}

	type rankEntry struct {
		key   string
		count uint64
		last  time.Time
	}

	keys := t.table.Keys()
	entries := make([]rankEntry, 0, len(keys))
	for _, k := range keys {
		if hc, ok := t.table.Peek(k); ok {
			entries = append(entries, rankEntry{key: k, count: hc.count, last: hc.last})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].last.After(entries[j].last)
	})

	if n > len(entries) {
		n = len(entries)
	}
	out := make([]KeyCount, n)
	for i := range out {
		out[i] = KeyCount{Key: entries[i].key, Hits: entries[i].count}
	}
	return out
}

// ===========================================================================
// 维护报告
// ===========================================================================

// MaintenanceReport 运维视角的缓存内容画像。
type MaintenanceReport struct {
	Entries     int
	TotalWeight int64

	// MemoryBytes 内存占用估算：Σ(键长度 + SizeOf(值))。
	// 未配置 SizeOf 时只含键长度。
	MemoryBytes int64

	// PrefixCounts 按键的首个 ':' 结尾段统计条目数。
	// 不含 ':' 的键归入空前缀桶。
	PrefixCounts map[string]int

	OldestAge  time.Duration
	AverageAge time.Duration
}

// Report 遍历全部条目生成维护报告，O(n) 且持锁期间完成。
func (c *Cache[V]) Report() MaintenanceReport {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	report := MaintenanceReport{
		Entries:      len(c.items),
		TotalWeight:  c.totalWeight,
		PrefixCounts: make(map[string]int),
	}

	var totalAge time.Duration
	for el := c.ll.Back(); el != nil; el = el.Prev() {
		e := el.Value.(*entry[V])
		report.MemoryBytes += int64(len(e.key))
		if c.sizeOf != nil {
			report.MemoryBytes += c.sizeOf(e.value)
		}
		report.PrefixCounts[keyPrefix(e.key)]++

		age := now.Sub(e.storedAt)
		if age > report.OldestAge {
			report.OldestAge = age
		}
		totalAge += age
	}

	if report.Entries > 0 {
		report.AverageAge = totalAge / time.Duration(report.Entries)
	}
	return report
}

// keyPrefix 返回键的首个 ':' 结尾段，如 "session:"。
func keyPrefix(key string) string {
	if idx := strings.IndexByte(key, ':'); idx >= 0 {
		return key[:idx+1]
	}
	return ""
}
