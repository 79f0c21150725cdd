// Package xjanitor 提供缓存维护的周期清扫器。
//
// # 概述
//
// xjanitor 基于 [robfig/cron/v3] 构建，按固定间隔或 cron 表达式周期性
// 触发过期清扫：内存层物理移除硬过期条目，后备存储回收过期记录。
// 每趟清扫的清除计数与耗时都会记入日志与统计。
//
// # 快速开始
//
//	jan, err := xjanitor.New(store, xjanitor.WithInterval(5*time.Minute))
//	if err != nil {
//	    return err
//	}
//	if err := jan.Start(); err != nil {
//	    return err
//	}
//	defer jan.Stop()
//
//	// 手动触发一趟
//	res := jan.RunOnce(ctx)
//
// # 调度方式
//
//   - WithInterval: 固定间隔触发，默认 5 分钟
//   - WithSchedule: cron 表达式触发（支持秒字段与 @every 等描述符），
//     设置后优先于固定间隔
//
// 设计决策:
//   - 清扫目标是 Sweeper 接口而非具体适配器，xhybrid.Store 天然满足；
//     测试与嵌入方可注入任意实现。
//   - 两趟清扫永不重叠：上一趟未结束时本次触发被跳过并计入 Skips。
//     跳过说明清扫耗时超过了调度周期，按 Warn 级别记录。
//   - 清扫在调度 goroutine 上同步执行；后备存储的单次调用超时由
//     适配器自身控制，清扫器不额外限时。
//   - 清扫 panic 被就地隔离并按失败趟记账，不会击穿调度循环。
//
// 已知限制:
//   - Stop 只等待调度触发的清扫结束；RunOnce 由调用方驱动，
//     其生命周期也由调用方负责。
//   - 固定间隔底层是 cron 的恒定延迟调度，不足 1 秒会被提升为 1 秒。
//
// [robfig/cron/v3]: https://github.com/robfig/cron
package xjanitor
