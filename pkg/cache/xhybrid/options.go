package xhybrid

import (
	"log/slog"
	"strings"
	"time"

	"github.com/omeyang/cachekit/pkg/observability/xmetrics"
)

// =============================================================================
// 协作接口
// =============================================================================

// Gate 在每次后备存储访问前放行或拒绝。
// *xbreaker.PrefixBreaker 满足此接口。
type Gate interface {
	// Allow 报告是否允许访问 key 对应的后备存储。
	Allow(key string) bool
}

// Monitor 接收后备存储的调用结果，用于熔断决策。
// *xbreaker.Tripper 满足此接口。
type Monitor interface {
	// Observe 记录一次按前缀分组的调用结果，err 为 nil 表示成功。
	Observe(prefix string, err error)
}

// =============================================================================
// 选项
// =============================================================================

// Options 定义适配器的可选配置。
type Options struct {
	// Logger 结构化日志器，默认 slog.Default()。
	Logger *slog.Logger

	// Observer 观测器，nil 表示不观测。
	Observer xmetrics.Observer

	// Classifier 键分类器，nil 时使用默认规则。
	Classifier *Classifier

	// Breaker 后备访问闸门，nil 表示不设熔断。
	Breaker Gate

	// Tripper 后备调用结果的接收方，nil 表示不上报。
	Tripper Monitor

	// Namespace 后备键前缀，同时是 Clear 的清理域。
	Namespace string

	// NegativeTTL 负缓存墓碑的存活时间，0 表示关闭负缓存。
	NegativeTTL time.Duration

	// OpTimeout 单次后备调用的超时。
	OpTimeout time.Duration

	// Clock 时间源，便于测试注入。
	Clock func() time.Time
}

// Option 定义配置适配器的函数类型。
type Option func(*Options)

// defaultHybridOptions 返回默认选项。
func defaultHybridOptions() *Options {
	return &Options{
		Logger:    slog.Default(),
		OpTimeout: DefaultOpTimeout,
		Clock:     time.Now,
	}
}

// WithLogger 设置结构化日志器。
// 如果 logger 为 nil，将忽略此设置。
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// WithObserver 设置观测器。
// 如果 observer 为 nil，将忽略此设置。
func WithObserver(observer xmetrics.Observer) Option {
	return func(o *Options) {
		if observer != nil {
			o.Observer = observer
		}
	}
}

// WithClassifier 替换键分类器。
// 如果 classifier 为 nil，将忽略此设置。
func WithClassifier(classifier *Classifier) Option {
	return func(o *Options) {
		if classifier != nil {
			o.Classifier = classifier
		}
	}
}

// WithBreaker 设置后备访问闸门。
// 如果 gate 为 nil，将忽略此设置。
func WithBreaker(gate Gate) Option {
	return func(o *Options) {
		if gate != nil {
			o.Breaker = gate
		}
	}
}

// WithTripper 设置后备调用结果的接收方。
// 如果 monitor 为 nil，将忽略此设置。
func WithTripper(monitor Monitor) Option {
	return func(o *Options) {
		if monitor != nil {
			o.Tripper = monitor
		}
	}
}

// WithNamespace 设置后备键前缀，内存层键同步加前缀，
// 使 Clear 与 ClearPrefix 的作用域在两层一致。
// 如果 namespace 为空白，将忽略此设置。
func WithNamespace(namespace string) Option {
	return func(o *Options) {
		ns := strings.TrimSpace(namespace)
		if ns != "" {
			o.Namespace = ns
		}
	}
}

// WithNegativeCache 启用负缓存：后备确认不存在的键会被记一个
// 墓碑，墓碑存活期内跳过后备读取。适合未命中率高且后备昂贵的场景。
// 如果 ttl ≤ 0，将忽略此设置（负缓存保持关闭）。
func WithNegativeCache(ttl time.Duration) Option {
	return func(o *Options) {
		if ttl > 0 {
			o.NegativeTTL = ttl
		}
	}
}

// WithOpTimeout 设置单次后备调用的超时。
// 如果 d ≤ 0，将忽略此设置。
func WithOpTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.OpTimeout = d
		}
	}
}

// WithClock 设置时间源。
// 如果 clock 为 nil，将忽略此设置。
func WithClock(clock func() time.Time) Option {
	return func(o *Options) {
		if clock != nil {
			o.Clock = clock
		}
	}
}
