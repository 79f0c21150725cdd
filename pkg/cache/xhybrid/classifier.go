package xhybrid

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// DefaultPatterns 判定持久键的默认子串集合。
// 会话、令牌与凭证类数据必须跨实例存活，否则用户会被随机登出。
var DefaultPatterns = []string{
	"session",
	"token",
	"active-sessions",
	"passkey",
	"credential",
}

// DefaultTokenLengths 被视为不透明令牌的键长集合。
// 32 与 64 覆盖常见的十六进制摘要与随机令牌长度。
var DefaultTokenLengths = []int{32, 64}

// Classifier 判定键的持久性，可在运行时增删匹配规则。
//
// 两条判定路径，命中任一即为持久键：
//   - 键（不区分大小写）包含任一配置的子串
//   - 键是配置长度之一的纯字母数字串（不透明令牌没有可读名字，
//     只能按形状识别）
type Classifier struct {
	mu       sync.RWMutex
	patterns []string
	tokenLen map[int]struct{}
}

// ClassifierOption 定义分类器的构造选项。
type ClassifierOption func(*Classifier)

// WithPatterns 替换默认子串集合。空白子串被忽略。
func WithPatterns(patterns ...string) ClassifierOption {
	return func(c *Classifier) {
		c.patterns = c.patterns[:0]
		for _, p := range patterns {
			c.addLocked(p)
		}
	}
}

// WithTokenLengths 替换默认令牌长度集合。非正长度被忽略。
func WithTokenLengths(lengths ...int) ClassifierOption {
	return func(c *Classifier) {
		c.tokenLen = make(map[int]struct{}, len(lengths))
		for _, n := range lengths {
			if n > 0 {
				c.tokenLen[n] = struct{}{}
			}
		}
	}
}

// NewClassifier 创建分类器，不带选项时使用默认规则。
func NewClassifier(opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		patterns: make([]string, 0, len(DefaultPatterns)),
		tokenLen: make(map[int]struct{}, len(DefaultTokenLengths)),
	}
	for _, p := range DefaultPatterns {
		c.addLocked(p)
	}
	for _, n := range DefaultTokenLengths {
		c.tokenLen[n] = struct{}{}
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Persistent 报告键是否应进入后备存储。
func (c *Classifier) Persistent(key string) bool {
	ok, _ := c.Explain(key)
	return ok
}

// Explain 与 Persistent 同判定，另返回命中的规则描述，
// 形如 `pattern "session"` 或 `token length 32`，未命中时为空串。
func (c *Classifier) Explain(key string) (bool, string) {
	if key == "" {
		return false, ""
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	lower := strings.ToLower(key)
	for _, p := range c.patterns {
		if strings.Contains(lower, p) {
			return true, fmt.Sprintf("pattern %q", p)
		}
	}

	if _, ok := c.tokenLen[len(key)]; ok && isAlphanumeric(key) {
		return true, fmt.Sprintf("token length %d", len(key))
	}
	return false, ""
}

// AddPattern 新增一个持久键子串，立即生效。
// 空白子串被忽略，重复子串不会累积。
func (c *Classifier) AddPattern(pattern string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addLocked(pattern)
}

// RemovePattern 移除一个持久键子串，返回是否存在。
func (c *Classifier) RemovePattern(pattern string) bool {
	p := strings.ToLower(strings.TrimSpace(pattern))
	if p == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.patterns {
		if existing == p {
			c.patterns = append(c.patterns[:i], c.patterns[i+1:]...)
			return true
		}
	}
	return false
}

// Patterns 返回当前子串集合的有序副本。
func (c *Classifier) Patterns() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, len(c.patterns))
	copy(out, c.patterns)
	sort.Strings(out)
	return out
}

func (c *Classifier) addLocked(pattern string) {
	p := strings.ToLower(strings.TrimSpace(pattern))
	if p == "" {
		return
	}
	for _, existing := range c.patterns {
		if existing == p {
			return
		}
	}
	c.patterns = append(c.patterns, p)
}

// isAlphanumeric 报告 s 是否只含 ASCII 字母与数字。
func isAlphanumeric(s string) bool {
	for i := 0; i < len(s); i++ {
		b := s[i]
		switch {
		case b >= '0' && b <= '9':
		case b >= 'a' && b <= 'z':
		case b >= 'A' && b <= 'Z':
		default:
			return false
		}
	}
	return true
}
