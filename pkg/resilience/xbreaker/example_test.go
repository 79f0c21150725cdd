package xbreaker_test

import (
	"fmt"
	"time"

	"github.com/omeyang/cachekit/pkg/resilience/xbreaker"
)

func ExampleNewPrefixBreaker() {
	pb := xbreaker.NewPrefixBreaker()

	// 后端某键空间故障，手动拉闸 5 分钟
	_ = pb.Open("session:", 5*time.Minute)

	fmt.Println(pb.Allow("session:alice"))
	fmt.Println(pb.Allow("user:1"))
	// Output:
	// false
	// true
}

func ExamplePrefixFor() {
	fmt.Println(xbreaker.PrefixFor("session:user:1"))
	fmt.Println(xbreaker.PrefixFor("healthcheck"))
	// Output:
	// session:
	// healthcheck
}

func ExampleNewTripper() {
	pb := xbreaker.NewPrefixBreaker()
	tr, _ := xbreaker.NewTripper(pb,
		xbreaker.WithTripPolicy(xbreaker.NewConsecutiveFailures(3)),
		xbreaker.WithCooldown(time.Minute),
	)

	// 每次后端操作后上报结果，连续失败达到阈值自动拉闸
	tr.Observe("session:", fmt.Errorf("connect timeout"))
	tr.Observe("session:", nil)

	state, _ := tr.State("session:")
	fmt.Println(state)
	// Output:
	// closed
}
