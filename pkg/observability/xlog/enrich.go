package xlog

import (
	"context"
	"log/slog"

	"github.com/omeyang/cachekit/pkg/context/xreq"
)

// EnrichHandler 自动从 context 提取请求作用域信息并注入日志
//
// 装饰模式实现，包装底层 slog.Handler，在 Handle() 时自动添加 request_id
// 属性。Best-effort 策略：context 中没有请求作用域时不影响日志记录。
//
// 设计决策: 调用 WithGroup 后，注入的 request_id 会被归入 group 下。
// 这是 slog handler 架构的固有限制——group 作用于 handler 处理的所有属性。
// 如需顶层 request_id，避免对带 enrich 的 logger 调用 WithGroup。
type EnrichHandler struct {
	base slog.Handler
}

// NewEnrichHandler 创建 EnrichHandler
func NewEnrichHandler(base slog.Handler) (*EnrichHandler, error) {
	if base == nil {
		return nil, ErrNilHandler
	}
	return &EnrichHandler{base: base}, nil
}

// Enabled 委托给底层 handler
func (h *EnrichHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

// Handle 在调用底层 handler 前注入请求作用域属性
//
// 根据 slog 契约，修改 record 前必须 Clone，避免影响共享同一 record
// 的其他 handler。ctx 为 nil 时安全退化为无注入。
func (h *EnrichHandler) Handle(ctx context.Context, r slog.Record) error {
	if scope, ok := xreq.FromContext(ctx); ok {
		r = r.Clone()
		r.AddAttrs(slog.String("request_id", scope.ID()))
	}
	return h.base.Handle(ctx, r)
}

// WithAttrs 返回带额外属性的新 handler
func (h *EnrichHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &EnrichHandler{base: h.base.WithAttrs(attrs)}
}

// WithGroup 返回带分组的新 handler
func (h *EnrichHandler) WithGroup(name string) slog.Handler {
	return &EnrichHandler{base: h.base.WithGroup(name)}
}
