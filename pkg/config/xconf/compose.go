package xconf

import (
	"strings"

	"github.com/omeyang/cachekit/pkg/cache/xhybrid"
	"github.com/omeyang/cachekit/pkg/cache/xlru"
	"github.com/omeyang/cachekit/pkg/context/xmode"
	"github.com/omeyang/cachekit/pkg/lifecycle/xjanitor"
	"github.com/omeyang/cachekit/pkg/resilience/xbreaker"
	"github.com/omeyang/cachekit/pkg/storage/xbacking"
)

// ResolveMode 返回生效的执行模式。
// Mode 为空时按环境自动探测，否则解析配置值；
// 解析失败（Validate 之前的手工构造）退回自动探测。
func (s *Settings) ResolveMode() xmode.Mode {
	raw := strings.TrimSpace(s.Mode)
	if raw == "" {
		return xmode.Detect()
	}
	mode, err := xmode.Parse(raw)
	if err != nil {
		return xmode.Detect()
	}
	return mode
}

// LRUConfig 返回独立内存层的配置，供只需要单层缓存的嵌入方使用。
// 默认 TTL 取短暂键的存活时长。
func (s *Settings) LRUConfig() xlru.Config {
	return xlru.Config{
		Capacity:   s.Cache.Capacity,
		MaxWeight:  s.Cache.MaxWeight,
		DefaultTTL: s.Cache.EphemeralTTL,
		StaleGrace: s.Cache.StaleGrace,
	}
}

// HybridConfig 返回混合适配器的核心配置。
// 执行模式与后备存储由装配方注入：模式通常来自 ResolveMode，
// 后备存储按 Backing.Driver 构造。
func (s *Settings) HybridConfig(mode xmode.Mode, backing xbacking.Store) xhybrid.Config {
	return xhybrid.Config{
		Mode:          mode,
		Backing:       backing,
		Capacity:      s.Cache.Capacity,
		MaxWeight:     s.Cache.MaxWeight,
		PersistentTTL: s.Cache.PersistentTTL,
		EphemeralTTL:  s.Cache.EphemeralTTL,
		StaleGrace:    s.Cache.StaleGrace,
	}
}

// NewClassifier 按分类器配置构造键分类器。
// withDefaults 保证两个列表非空，因此这里总是整体替换默认规则。
func (s *Settings) NewClassifier() *xhybrid.Classifier {
	return xhybrid.NewClassifier(
		xhybrid.WithPatterns(s.Classifier.Patterns...),
		xhybrid.WithTokenLengths(s.Classifier.TokenLengths...),
	)
}

// TripperOptions 返回熔断决策器的构造选项。
// 调用方需自行检查 Breaker.Enabled 决定是否装配熔断。
func (s *Settings) TripperOptions() []xbreaker.TripperOption {
	return []xbreaker.TripperOption{
		xbreaker.WithTripPolicy(xbreaker.NewConsecutiveFailures(s.Breaker.TripThreshold)),
		xbreaker.WithCooldown(s.Breaker.Cooldown),
	}
}

// RetryOptions 返回后备存储重试装饰器的构造选项。
// 调用方需自行检查 Backing.Retry.Enabled 决定是否包装。
func (s *Settings) RetryOptions() []xbacking.RetryOption {
	return []xbacking.RetryOption{
		xbacking.WithAttempts(s.Backing.Retry.Attempts),
		xbacking.WithDelay(s.Backing.Retry.Delay),
	}
}

// JanitorOptions 返回维护清扫器的构造选项。
// Schedule 非空时按 cron 表达式调度并优先于固定间隔，
// 表达式语法错误由 xjanitor.New 返回。
func (s *Settings) JanitorOptions() []xjanitor.Option {
	return []xjanitor.Option{
		xjanitor.WithInterval(s.Janitor.Interval),
		xjanitor.WithSchedule(s.Janitor.Schedule),
	}
}
