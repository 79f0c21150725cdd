package xbreaker

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// PrefixBreaker 按键前缀维护拒绝窗口的熔断表。
//
// 必须通过 [NewPrefixBreaker] 创建。所有方法并发安全。
// 表中没有半开状态：窗口截止后 Allow 直接放行，过期行在扫描时惰性清理。
type PrefixBreaker struct {
	mu   sync.RWMutex
	open map[string]time.Time // 前缀 → 开启截止时间
	now  func() time.Time
}

// PrefixBreakerOption PrefixBreaker 配置选项。
type PrefixBreakerOption func(*PrefixBreaker)

// WithClock 注入时钟，测试用。nil 被忽略。
func WithClock(now func() time.Time) PrefixBreakerOption {
	return func(p *PrefixBreaker) {
		if now != nil {
			p.now = now
		}
	}
}

// NewPrefixBreaker 创建前缀熔断表。
func NewPrefixBreaker(opts ...PrefixBreakerOption) *PrefixBreaker {
	p := &PrefixBreaker{
		open: make(map[string]time.Time),
		now:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Open 打开前缀的拒绝窗口，持续 d。
//
// 已有窗口只会向前延长，不会被更短的窗口缩短；这保证并发的
// Open 调用取最远截止时间。空前缀与非正时长 fail fast。
func (p *PrefixBreaker) Open(prefix string, d time.Duration) error {
	if prefix == "" {
		return ErrEmptyPrefix
	}
	if d <= 0 {
		return ErrInvalidOpenDuration
	}

	until := p.now().Add(d)
	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.open[prefix]; ok && existing.After(until) {
		return nil
	}
	p.open[prefix] = until
	return nil
}

// Allow 判定键当前是否放行。
//
// 键命中任一未过期前缀即拒绝。扫描过程中发现的过期行会被惰性清理，
// 因此长期运行不会积累死行。无任何开启前缀时恒为 true。
func (p *PrefixBreaker) Allow(key string) bool {
	now := p.now()

	p.mu.RLock()
	allowed := true
	var expired []string
	for prefix, until := range p.open {
		if !until.After(now) {
			expired = append(expired, prefix)
			continue
		}
		if strings.HasPrefix(key, prefix) {
			allowed = false
		}
	}
	p.mu.RUnlock()

	if len(expired) > 0 {
		p.pruneExpired(expired, now)
	}
	return allowed
}

// pruneExpired 在写锁下删除过期行。
// 读锁与写锁之间该前缀可能被重新开启，删除前必须复查截止时间。
func (p *PrefixBreaker) pruneExpired(prefixes []string, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, prefix := range prefixes {
		if until, ok := p.open[prefix]; ok && !until.After(now) {
			delete(p.open, prefix)
		}
	}
}

// OpenUntil 返回前缀拒绝窗口的截止时间。
// 前缀未开启或窗口已过期时返回零值和 false。
func (p *PrefixBreaker) OpenUntil(prefix string) (time.Time, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	until, ok := p.open[prefix]
	if !ok || !until.After(p.now()) {
		return time.Time{}, false
	}
	return until, true
}

// Reset 关闭前缀的拒绝窗口，返回窗口此前是否仍然生效。
// 过期残留行也会被顺带删除，但不计入返回值。
func (p *PrefixBreaker) Reset(prefix string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	until, ok := p.open[prefix]
	if !ok {
		return false
	}
	delete(p.open, prefix)
	return until.After(p.now())
}

// ResetAll 清空整张表，返回被关闭的生效窗口数量。
func (p *PrefixBreaker) ResetAll() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	active := 0
	for _, until := range p.open {
		if until.After(now) {
			active++
		}
	}
	p.open = make(map[string]time.Time)
	return active
}

// OpenPrefixes 返回当前仍在拒绝的前缀，按字典序排序。
func (p *PrefixBreaker) OpenPrefixes() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	now := p.now()
	out := make([]string, 0, len(p.open))
	for prefix, until := range p.open {
		if until.After(now) {
			out = append(out, prefix)
		}
	}
	sort.Strings(out)
	return out
}

// PrefixFor 返回键的熔断分组前缀：首个 ':' 结尾段，如 "session:"。
//
// 不含 ':' 的键返回键本身，每个键自成一组。不能返回空串——
// 空前缀会匹配所有键，把单键故障放大成全局拒绝。
func PrefixFor(key string) string {
	if idx := strings.IndexByte(key, ':'); idx >= 0 {
		return key[:idx+1]
	}
	return key
}
