package xjanitor

import (
	"log/slog"
	"time"
)

// DefaultInterval 固定间隔调度的默认周期。
const DefaultInterval = 5 * time.Minute

// options 清扫器配置。
type options struct {
	interval time.Duration  // 固定间隔周期
	schedule string         // cron 表达式，非空时优先于固定间隔
	location *time.Location // cron 表达式的解释时区
	logger   *slog.Logger
}

// defaultOptions 返回默认配置。
func defaultOptions() *options {
	return &options{
		interval: DefaultInterval,
		location: time.Local,
		logger:   slog.Default(),
	}
}

// Option 定义清扫器的配置选项。
type Option func(*options)

// WithInterval 设置固定间隔的调度周期，默认 5 分钟。
// 非正值被忽略；不足 1 秒的间隔会被底层调度提升为 1 秒。
func WithInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithSchedule 设置 cron 表达式调度，设置后固定间隔被忽略。
// 表达式支持秒字段（六段式）与 @every、@hourly 等描述符，空串被忽略；
// 非法表达式由 New 返回 ErrInvalidSchedule。
//
// 用法：
//
//	// 每 10 分钟整点触发
//	jan, err := xjanitor.New(store, xjanitor.WithSchedule("0 */10 * * * *"))
func WithSchedule(expr string) Option {
	return func(o *options) {
		if expr != "" {
			o.schedule = expr
		}
	}
}

// WithLocation 设置 cron 表达式解释使用的时区，默认本地时区。
// nil 被忽略。固定间隔调度与时区无关。
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		if loc != nil {
			o.location = loc
		}
	}
}

// WithLogger 设置日志记录器，nil 被忽略，默认 slog.Default()。
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}
