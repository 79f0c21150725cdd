package xmemo

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lookupArgs struct {
	Tenant string   `json:"tenant"`
	IDs    []int    `json:"ids"`
	Fields []string `json:"fields,omitempty"`
}

func TestKey_Deterministic(t *testing.T) {
	arg := lookupArgs{Tenant: "acme", IDs: []int{3, 1, 2}}

	first, err := Key("profile:", arg)
	require.NoError(t, err)
	second, err := Key("profile:", arg)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestKey_MapOrderIndependent(t *testing.T) {
	// encoding/json 按字典序输出 map 键，插入顺序不影响结果。
	a := map[string]int{}
	a["alpha"] = 1
	a["beta"] = 2
	a["gamma"] = 3

	b := map[string]int{}
	b["gamma"] = 3
	b["alpha"] = 1
	b["beta"] = 2

	ka, err := Key("q:", a)
	require.NoError(t, err)
	kb, err := Key("q:", b)
	require.NoError(t, err)
	assert.Equal(t, ka, kb)
}

func TestKey_Shape(t *testing.T) {
	key, err := Key("session:", "user-42")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(key, "session:"))
	suffix := strings.TrimPrefix(key, "session:")
	assert.Len(t, suffix, 16)
	for _, c := range suffix {
		assert.Contains(t, hexDigits, string(c))
	}
}

func TestKey_DistinctArguments(t *testing.T) {
	ka, err := Key("profile:", "user-1")
	require.NoError(t, err)
	kb, err := Key("profile:", "user-2")
	require.NoError(t, err)
	assert.NotEqual(t, ka, kb)

	// 前缀也参与区分，同参不同前缀不会互相污染。
	kc, err := Key("roles:", "user-1")
	require.NoError(t, err)
	assert.NotEqual(t, ka, kc)
}

func TestKey_UnsupportedArgument(t *testing.T) {
	_, err := Key("bad:", make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marshal argument")

	_, err = Key("bad:", math.NaN())
	require.Error(t, err)
}

func TestRenderHash(t *testing.T) {
	assert.Equal(t, "0000000000000000", renderHash(0))
	assert.Equal(t, "00000000deadbeef", renderHash(0xdeadbeef))
	assert.Equal(t, "ffffffffffffffff", renderHash(math.MaxUint64))
	assert.Equal(t, "0123456789abcdef", renderHash(0x0123456789abcdef))
}

// =============================================================================
// 基准：键计算开销由参数序列化主导
// =============================================================================

func BenchmarkKey(b *testing.B) {
	b.Run("string", func(b *testing.B) {
		b.ReportAllocs()
		for b.Loop() {
			_, _ = Key("profile:", "user-12345")
		}
	})

	b.Run("struct", func(b *testing.B) {
		arg := lookupArgs{Tenant: "acme", IDs: []int{1, 2, 3, 4, 5}, Fields: []string{"name", "email"}}
		b.ReportAllocs()
		for b.Loop() {
			_, _ = Key("profile:", arg)
		}
	})

	b.Run("map", func(b *testing.B) {
		arg := map[string]any{"tenant": "acme", "limit": 50, "active": true}
		b.ReportAllocs()
		for b.Loop() {
			_, _ = Key("profile:", arg)
		}
	})
}
