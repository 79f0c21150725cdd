package xjanitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/omeyang/cachekit/pkg/cache/xhybrid"
)

// FuzzWithSchedule 模糊测试 cron 表达式的构造路径。
func FuzzWithSchedule(f *testing.F) {
	f.Add("@every 1m")
	f.Add("0 */10 * * * *")
	f.Add("* * * * * *")
	f.Add("@hourly")
	f.Add("not-a-schedule")
	f.Add("")
	f.Add("61 * * * * *")

	f.Fuzz(func(t *testing.T, expr string) {
		target := SweepFunc(func(context.Context) xhybrid.SweepResult {
			return xhybrid.SweepResult{}
		})

		j, err := New(target, WithSchedule(expr))
		if err != nil {
			// 非法表达式只能以 ErrInvalidSchedule 失败
			if !errors.Is(err, ErrInvalidSchedule) {
				t.Errorf("unexpected error kind: %v", err)
			}
			return
		}
		if j == nil {
			t.Error("janitor should not be nil on success")
			return
		}
		_ = j.Stop()
	})
}

// FuzzWithInterval 模糊测试固定间隔选项的取值语义。
func FuzzWithInterval(f *testing.F) {
	f.Add(int64(0))
	f.Add(int64(1000))
	f.Add(int64(-1000))
	f.Add(int64(300000))

	f.Fuzz(func(t *testing.T, ms int64) {
		d := time.Duration(ms) * time.Millisecond
		o := defaultOptions()

		WithInterval(d)(o)

		// 只有正值才会被应用
		if d > 0 {
			if o.interval != d {
				t.Errorf("interval should be %v, got %v", d, o.interval)
			}
		} else if o.interval != DefaultInterval {
			t.Errorf("interval should remain default for non-positive value")
		}
	})
}
