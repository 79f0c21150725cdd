// Package xbreaker 提供按键前缀粒度的熔断能力。
//
// 包内有两层，可单独使用也可组合：
//
// PrefixBreaker 是核心拒绝表：前缀 → 开启截止时间。Allow 对每个
// 候选操作做一次只读判定，命中任一未过期前缀即拒绝。表本身没有
// 半开状态，窗口过期后放行，是否重新开启由上层策略决定。
//
// Tripper 是可选的策略电池：为每个前缀惰性创建一个 gobreaker 熔断器，
// Observe 喂入操作结果；策略判定熔断时（如连续失败 N 次），Tripper
// 调用 PrefixBreaker.Open 打开对应前缀的拒绝窗口。不接 Tripper 时，
// 调用方可以完全自主决定何时 Open（例如按业务信号手动熔断）。
//
// # 典型用法
//
//	pb := xbreaker.NewPrefixBreaker()
//	tripper, _ := xbreaker.NewTripper(pb,
//		xbreaker.WithTripPolicy(xbreaker.NewConsecutiveFailures(5)),
//		xbreaker.WithCooldown(30*time.Second),
//	)
//
//	if pb.Allow("session:alice") {
//		err := callBackingStore()
//		tripper.Observe(xbreaker.PrefixFor("session:alice"), err)
//	}
//
// 设计决策: 拒绝表与触发策略分离。表只回答"现在允许吗"，不持有失败
// 统计；统计与状态机留给 gobreaker。这样手动运维开关（Open/Reset）与
// 自动策略互不干扰。
package xbreaker
