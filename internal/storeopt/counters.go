package storeopt

import "sync/atomic"

// =============================================================================
// 通用统计计数器
// =============================================================================

// HealthCounter 健康检查计数器。
// 提供原子计数器用于追踪健康检查状态。
type HealthCounter struct {
	pingCount  atomic.Int64
	pingErrors atomic.Int64
}

// IncPing 增加 ping 计数。
func (h *HealthCounter) IncPing() {
	h.pingCount.Add(1)
}

// IncPingError 增加 ping 错误计数。
func (h *HealthCounter) IncPingError() {
	h.pingErrors.Add(1)
}

// PingCount 返回 ping 计数。
func (h *HealthCounter) PingCount() int64 {
	return h.pingCount.Load()
}

// PingErrors 返回 ping 错误计数。
func (h *HealthCounter) PingErrors() int64 {
	return h.pingErrors.Load()
}

// OpCounter 操作计数器。
// 提供原子计数器用于追踪点查/写入/删除等操作状态。
type OpCounter struct {
	opCount  atomic.Int64
	opErrors atomic.Int64
}

// IncOp 增加操作计数。
func (c *OpCounter) IncOp() {
	c.opCount.Add(1)
}

// IncOpError 增加操作错误计数。
func (c *OpCounter) IncOpError() {
	c.opErrors.Add(1)
}

// OpCount 返回操作计数。
func (c *OpCounter) OpCount() int64 {
	return c.opCount.Load()
}

// OpErrors 返回操作错误计数。
func (c *OpCounter) OpErrors() int64 {
	return c.opErrors.Load()
}

// SlowOpCounter 慢操作计数器。
type SlowOpCounter struct {
	count atomic.Int64
}

// Inc 增加慢操作计数。
func (s *SlowOpCounter) Inc() {
	s.count.Add(1)
}

// Count 返回慢操作计数。
func (s *SlowOpCounter) Count() int64 {
	return s.count.Load()
}
