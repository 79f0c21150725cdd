package xhybrid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifier_DefaultPatterns(t *testing.T) {
	c := NewClassifier()

	tests := []struct {
		key        string
		persistent bool
	}{
		{"session:u1", true},
		{"auth-token:abc", true},
		{"active-sessions:u1", true},
		{"passkey:device-1", true},
		{"credential-store:x", true},
		{"SESSION:U1", true}, // 大小写不敏感
		{"user:profile:1", false},
		{"report:daily", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.persistent, c.Persistent(tt.key))
		})
	}
}

func TestClassifier_OpaqueTokens(t *testing.T) {
	c := NewClassifier()

	hex32 := "0123456789abcdef0123456789abcdef"

	tests := []struct {
		name       string
		key        string
		persistent bool
	}{
		{"32 位十六进制", hex32, true},
		{"64 位字母数字", hex32 + hex32, true},
		{"31 位不匹配", hex32[:31], false},
		{"33 位不匹配", hex32 + "a", false},
		{"含连字符不是令牌", "0123456789abcdef0123456789abcde-", false},
		{"含冒号不是令牌", "0123456789abcdef0123456789abcde:", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.persistent, c.Persistent(tt.key))
		})
	}
}

func TestClassifier_CustomRules(t *testing.T) {
	c := NewClassifier(WithPatterns("cart"), WithTokenLengths(8))

	assert.True(t, c.Persistent("cart:u1"))
	assert.False(t, c.Persistent("session:u1"), "自定义子串集合替换默认集合")
	assert.True(t, c.Persistent("abcd1234"), "8 位令牌")
	assert.False(t, c.Persistent("0123456789abcdef0123456789abcdef"), "默认令牌长度已被替换")
}

func TestClassifier_Explain(t *testing.T) {
	c := NewClassifier()

	t.Run("pattern hit", func(t *testing.T) {
		ok, rule := c.Explain("session:u1")
		assert.True(t, ok)
		assert.Equal(t, `pattern "session"`, rule)
	})

	t.Run("token length hit", func(t *testing.T) {
		ok, rule := c.Explain("0123456789abcdef0123456789abcdef")
		assert.True(t, ok)
		assert.Equal(t, "token length 32", rule)
	})

	t.Run("pattern wins over token shape", func(t *testing.T) {
		// 32 位纯字母数字且含默认子串，按声明顺序先命中子串
		key := "sessionsessionsessionsession1234"
		ok, rule := c.Explain(key)
		assert.True(t, ok)
		assert.Equal(t, `pattern "session"`, rule)
	})

	t.Run("miss", func(t *testing.T) {
		ok, rule := c.Explain("page:home")
		assert.False(t, ok)
		assert.Empty(t, rule)
	})

	t.Run("empty key", func(t *testing.T) {
		ok, rule := c.Explain("")
		assert.False(t, ok)
		assert.Empty(t, rule)
	})
}

func TestClassifier_RuntimeMutation(t *testing.T) {
	c := NewClassifier()

	t.Run("add takes effect immediately", func(t *testing.T) {
		assert.False(t, c.Persistent("wishlist:u1"))
		c.AddPattern("wishlist")
		assert.True(t, c.Persistent("wishlist:u1"))
	})

	t.Run("duplicate add not accumulated", func(t *testing.T) {
		before := len(c.Patterns())
		c.AddPattern("wishlist")
		c.AddPattern("WISHLIST") // 子串统一小写存储
		assert.Len(t, c.Patterns(), before)
	})

	t.Run("blank pattern ignored", func(t *testing.T) {
		before := len(c.Patterns())
		c.AddPattern("   ")
		assert.Len(t, c.Patterns(), before)
	})

	t.Run("remove takes effect immediately", func(t *testing.T) {
		assert.True(t, c.RemovePattern("wishlist"))
		assert.False(t, c.Persistent("wishlist:u1"))
		assert.False(t, c.RemovePattern("wishlist"), "再删返回 false")
	})

	t.Run("patterns returns sorted copy", func(t *testing.T) {
		got := c.Patterns()
		assert.IsIncreasing(t, got)

		got[0] = "mutated"
		assert.NotEqual(t, got[0], c.Patterns()[0], "返回副本，外部改动不影响内部状态")
	})
}
