package xbreaker

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Tripper 默认配置值
const (
	// DefaultTripThreshold 默认连续失败阈值。
	DefaultTripThreshold = 5

	// DefaultCooldown 默认冷却窗口。
	DefaultCooldown = 30 * time.Second
)

// Tripper 把操作结果流转换成 PrefixBreaker 的开启动作。
//
// 每个前缀对应一个惰性创建的 gobreaker 熔断器；策略判定熔断时，
// Tripper 打开 PrefixBreaker 中对应前缀的拒绝窗口（时长 = 冷却窗口）。
// gobreaker 自身的 Open→HalfOpen 超时与冷却窗口对齐：窗口过后首个
// 失败会立即再次熔断，首个成功则恢复常态。
type Tripper struct {
	breaker  *PrefixBreaker
	policy   TripPolicy
	cooldown time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	circuits map[string]*gobreaker.CircuitBreaker[any]
}

// TripperOption Tripper 配置选项。
type TripperOption func(*Tripper)

// WithTripPolicy 设置熔断判定策略，默认连续失败 5 次。nil 被忽略。
func WithTripPolicy(p TripPolicy) TripperOption {
	return func(t *Tripper) {
		if p != nil {
			t.policy = p
		}
	}
}

// WithCooldown 设置熔断后的拒绝窗口时长，默认 30 秒。非正值被忽略。
func WithCooldown(d time.Duration) TripperOption {
	return func(t *Tripper) {
		if d > 0 {
			t.cooldown = d
		}
	}
}

// WithLogger 设置日志器，默认 slog.Default()。nil 被忽略。
func WithLogger(logger *slog.Logger) TripperOption {
	return func(t *Tripper) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewTripper 创建 Tripper，熔断动作落到传入的 PrefixBreaker 上。
func NewTripper(breaker *PrefixBreaker, opts ...TripperOption) (*Tripper, error) {
	if breaker == nil {
		return nil, ErrNilBreaker
	}

	t := &Tripper{
		breaker:  breaker,
		policy:   NewConsecutiveFailures(DefaultTripThreshold),
		cooldown: DefaultCooldown,
		logger:   slog.Default(),
		circuits: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t, nil
}

// Observe 喂入一次操作结果。err 为 nil 记成功，否则记失败。
//
// 空前缀被忽略（无法归组的结果不参与熔断统计）。熔断器已处于 Open
// 状态时结果被丢弃：此时 PrefixBreaker 窗口也在拒绝，正常情况下
// 不会有结果流入。
func (t *Tripper) Observe(prefix string, err error) {
	if prefix == "" {
		return
	}
	cb := t.circuit(prefix)
	_, _ = cb.Execute(func() (any, error) { return nil, err })
}

// State 返回前缀对应熔断器的状态。从未观察过的前缀返回 false。
func (t *Tripper) State(prefix string) (State, bool) {
	t.mu.Lock()
	cb, ok := t.circuits[prefix]
	t.mu.Unlock()
	if !ok {
		return StateClosed, false
	}
	return cb.State(), true
}

// Prefixes 返回已有熔断器的前缀，按字典序排序。
func (t *Tripper) Prefixes() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]string, 0, len(t.circuits))
	for prefix := range t.circuits {
		out = append(out, prefix)
	}
	sort.Strings(out)
	return out
}

// circuit 返回前缀的熔断器，首次访问时创建。
func (t *Tripper) circuit(prefix string) *gobreaker.CircuitBreaker[any] {
	t.mu.Lock()
	defer t.mu.Unlock()

	if cb, ok := t.circuits[prefix]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        prefix,
		MaxRequests: 1,
		Timeout:     t.cooldown,
		ReadyToTrip: t.policy.ReadyToTrip,
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to != gobreaker.StateOpen {
				return
			}
			if err := t.breaker.Open(name, t.cooldown); err != nil {
				t.logger.Error("xbreaker: failed to open prefix window",
					"prefix", name, "err", err)
				return
			}
			t.logger.Warn("xbreaker: circuit opened",
				"prefix", name, "from", from.String(), "cooldown", t.cooldown)
		},
	})
	t.circuits[prefix] = cb
	return cb
}
