package xreq

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithScope_FreshPerCall(t *testing.T) {
	ctx1, s1 := WithScope(context.Background())
	s1.Remember("user:1", []byte("alice"))

	// 再次 WithScope 建立全新作用域，旧数据不可见
	ctx2, s2 := WithScope(ctx1)
	assert.NotEqual(t, s1.ID(), s2.ID())
	_, ok := s2.Lookup("user:1")
	assert.False(t, ok)

	got, ok := FromContext(ctx2)
	require.True(t, ok)
	assert.Same(t, s2, got)

	got, ok = FromContext(ctx1)
	require.True(t, ok)
	assert.Same(t, s1, got)
}

func TestEnsureScope(t *testing.T) {
	ctx, s1 := EnsureScope(context.Background())
	ctx2, s2 := EnsureScope(ctx)

	assert.Same(t, s1, s2)
	assert.Equal(t, ctx, ctx2)
}

func TestFromContext_Absent(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	_, ok = FromContext(nil) //nolint:staticcheck // 故意传入 nil 验证兜底
	assert.False(t, ok)
}

func TestScope_RememberLookupForget(t *testing.T) {
	s := NewScope()
	assert.NotEmpty(t, s.ID())

	_, ok := s.Lookup("k")
	assert.False(t, ok)

	s.Remember("k", []byte("v"))
	got, ok := s.Lookup("k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)
	assert.Equal(t, 1, s.Len())

	assert.True(t, s.Forget("k"))
	assert.False(t, s.Forget("k"))
	_, ok = s.Lookup("k")
	assert.False(t, ok)
}

func TestScope_DefensiveCopies(t *testing.T) {
	s := NewScope()

	src := []byte("value")
	s.Remember("k", src)
	src[0] = 'X'

	got, ok := s.Lookup("k")
	require.True(t, ok)
	assert.Equal(t, []byte("value"), got, "Remember must copy the input")

	got[0] = 'Y'
	again, _ := s.Lookup("k")
	assert.Equal(t, []byte("value"), again, "Lookup must return a copy")
}

func TestScope_Reset(t *testing.T) {
	s := NewScope()
	oldID := s.ID()
	s.Remember("session:1", []byte("data"))

	s.Reset()

	assert.NotEqual(t, oldID, s.ID(), "Reset starts a new logical invocation")
	assert.Equal(t, 0, s.Len())
	_, ok := s.Lookup("session:1")
	assert.False(t, ok)
}

func TestScope_Concurrent(t *testing.T) {
	s := NewScope()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				s.Remember("k", []byte("v"))
				s.Lookup("k")
				s.Len()
			}
		}()
	}
	wg.Wait()

	got, ok := s.Lookup("k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)
}
