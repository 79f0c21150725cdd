package xbreaker

import "github.com/sony/gobreaker/v2"

// Counts 统计窗口内的请求计数，透传 gobreaker 的定义。
type Counts = gobreaker.Counts

// State 熔断器状态，透传 gobreaker 的定义。
type State = gobreaker.State

// 熔断器状态常量
const (
	StateClosed   = gobreaker.StateClosed
	StateHalfOpen = gobreaker.StateHalfOpen
	StateOpen     = gobreaker.StateOpen
)

// TripPolicy 熔断判定策略接口。
// ReadyToTrip 返回 true 时，对应前缀的熔断器从 Closed 转为 Open。
type TripPolicy interface {
	ReadyToTrip(counts Counts) bool
}

// ConsecutiveFailuresPolicy 连续失败熔断策略。
//
// 连续失败次数达到阈值时触发，是最常用的策略。
type ConsecutiveFailuresPolicy struct {
	threshold uint32
}

// NewConsecutiveFailures 创建连续失败熔断策略。
//
// threshold 为 0 时回退到 DefaultTripThreshold，避免任意一次失败即熔断。
func NewConsecutiveFailures(threshold uint32) *ConsecutiveFailuresPolicy {
	if threshold == 0 {
		threshold = DefaultTripThreshold
	}
	return &ConsecutiveFailuresPolicy{threshold: threshold}
}

// ReadyToTrip 判断是否应该触发熔断。
func (p *ConsecutiveFailuresPolicy) ReadyToTrip(counts Counts) bool {
	return counts.ConsecutiveFailures >= p.threshold
}

// Threshold 返回阈值。
func (p *ConsecutiveFailuresPolicy) Threshold() uint32 {
	return p.threshold
}

// FailureRatioPolicy 失败率熔断策略。
//
// 失败率超过阈值且请求数达到最小样本量时触发。
type FailureRatioPolicy struct {
	ratio       float64 // 失败率阈值 (0.0 - 1.0)
	minRequests uint32  // 最小请求数
}

// NewFailureRatio 创建失败率熔断策略。
//
// ratio 超出 [0, 1] 时被夹到边界；minRequests 避免小样本误触发。
func NewFailureRatio(ratio float64, minRequests uint32) *FailureRatioPolicy {
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	return &FailureRatioPolicy{ratio: ratio, minRequests: minRequests}
}

// ReadyToTrip 判断是否应该触发熔断。
func (p *FailureRatioPolicy) ReadyToTrip(counts Counts) bool {
	// 请求数不足或为零，不触发（避免除零与小样本抖动）
	if counts.Requests == 0 || counts.Requests < p.minRequests {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= p.ratio
}

// Ratio 返回失败率阈值。
func (p *FailureRatioPolicy) Ratio() float64 {
	return p.ratio
}

// MinRequests 返回最小请求数。
func (p *FailureRatioPolicy) MinRequests() uint32 {
	return p.minRequests
}

// NeverTripPolicy 永不熔断策略，测试或观察模式用。
type NeverTripPolicy struct{}

// NewNeverTrip 创建永不熔断策略。
func NewNeverTrip() *NeverTripPolicy {
	return &NeverTripPolicy{}
}

// ReadyToTrip 永远返回 false。
func (p *NeverTripPolicy) ReadyToTrip(_ Counts) bool {
	return false
}

// AlwaysTripPolicy 任何失败都触发熔断，测试用。
type AlwaysTripPolicy struct{}

// NewAlwaysTrip 创建总是熔断策略。
func NewAlwaysTrip() *AlwaysTripPolicy {
	return &AlwaysTripPolicy{}
}

// ReadyToTrip 只要有失败就返回 true。
func (p *AlwaysTripPolicy) ReadyToTrip(counts Counts) bool {
	return counts.TotalFailures > 0
}
