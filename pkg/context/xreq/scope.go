package xreq

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// 设计决策: contextKey 使用 string 而非 int+iota，理由如下：
//   - 作为包私有类型，不会与其他包的 context key 冲突（Go context 比较包含类型信息）
//   - 字符串值在调试/日志中可读性高，便于排查 context 传播问题
type contextKey string

const keyScope = contextKey("xreq:scope")

// Scope 是单次调用的请求作用域：一个请求标识加一张本次调用内
// 已解析 key→value 的暂存表。
//
// 作用域只服务于当前这一次逻辑调用。宿主进程在两次调用之间被复用时
// （如 FaaS 热实例），绝不能复用旧的 Scope，否则上一次调用的数据会
// 泄漏到下一次调用中；每次调用开始时通过 WithScope 建立全新作用域，
// 或对长期持有的 Scope 调用 Reset。
type Scope struct {
	mu     sync.Mutex
	id     string
	values map[string][]byte
}

// NewScope 创建全新的请求作用域，携带随机生成的请求标识。
func NewScope() *Scope {
	return &Scope{
		id:     uuid.NewString(),
		values: make(map[string][]byte),
	}
}

// WithScope 建立全新的请求作用域并注入 context。
//
// 总是创建新作用域：即使 ctx 中已存在一个，也会被新作用域遮蔽。
// 这是有意设计，调用入口处无条件调用即可保证隔离。
// nil ctx 会被替换为 context.Background()。
func WithScope(ctx context.Context) (context.Context, *Scope) {
	if ctx == nil {
		ctx = context.Background()
	}
	scope := NewScope()
	return context.WithValue(ctx, keyScope, scope), scope
}

// EnsureScope 确保 context 中存在请求作用域。
// 已存在时原样沿用；否则建立新作用域并注入。
func EnsureScope(ctx context.Context) (context.Context, *Scope) {
	if scope, ok := FromContext(ctx); ok {
		return ctx, scope
	}
	return WithScope(ctx)
}

// FromContext 从 context 提取请求作用域。
func FromContext(ctx context.Context) (*Scope, bool) {
	if ctx == nil {
		return nil, false
	}
	scope, ok := ctx.Value(keyScope).(*Scope)
	return scope, ok
}

// ID 返回请求标识。
func (s *Scope) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Lookup 查询本次调用内已解析的值。
// 返回的是副本，调用方可以安全持有或修改。
func (s *Scope) Lookup(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	if !ok {
		return nil, false
	}
	return cloneBytes(v), true
}

// Remember 记录本次调用内已解析的 key→value。
// 存储的是副本，后续对 value 的修改不影响作用域。
func (s *Scope) Remember(key string, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = cloneBytes(value)
}

// Forget 移除一条记录，返回其是否存在。
// 适配器在 Delete 路径调用，避免作用域继续返回已删除的值。
func (s *Scope) Forget(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.values[key]
	delete(s.values, key)
	return ok
}

// Reset 将作用域重置为全新调用：清空暂存表并更换请求标识。
// 用于在复用宿主进程时标记新一次逻辑调用的开始。
func (s *Scope) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = uuid.NewString()
	s.values = make(map[string][]byte)
}

// Len 返回暂存表中的记录数。
func (s *Scope) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.values)
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
