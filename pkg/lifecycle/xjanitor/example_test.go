package xjanitor_test

import (
	"context"
	"fmt"
	"time"

	"github.com/omeyang/cachekit/pkg/cache/xhybrid"
	"github.com/omeyang/cachekit/pkg/lifecycle/xjanitor"
)

// ExampleJanitor_RunOnce 演示手动触发一趟清扫。
func ExampleJanitor_RunOnce() {
	store, err := xhybrid.New(xhybrid.Config{Capacity: 128})
	if err != nil {
		fmt.Println("new store:", err)
		return
	}
	defer store.Close()

	jan, err := xjanitor.New(store)
	if err != nil {
		fmt.Println("new janitor:", err)
		return
	}
	defer jan.Stop()

	res := jan.RunOnce(context.Background())
	fmt.Println("memory expired:", res.MemoryExpired)
	fmt.Println("backing expired:", res.BackingExpired)
	fmt.Println("err:", res.Err)
	// Output:
	// memory expired: 0
	// backing expired: 0
	// err: <nil>
}

// ExampleNew 演示按 cron 表达式调度周期清扫。
func ExampleNew() {
	store, err := xhybrid.New(xhybrid.Config{Capacity: 128})
	if err != nil {
		fmt.Println("new store:", err)
		return
	}
	defer store.Close()

	jan, err := xjanitor.New(store,
		xjanitor.WithSchedule("0 */10 * * * *"), // 每 10 分钟整点
		xjanitor.WithInterval(time.Minute),      // 表达式优先，此项被忽略
	)
	if err != nil {
		fmt.Println("new janitor:", err)
		return
	}

	if err := jan.Start(); err != nil {
		fmt.Println("start:", err)
		return
	}
	defer jan.Stop()

	fmt.Println("scheduled:", !jan.NextRun().IsZero())
	// Output:
	// scheduled: true
}
