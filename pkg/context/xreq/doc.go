// Package xreq 提供单次调用的请求作用域（request scope）。
//
// 作用域由一个请求标识（requestId）和一张本次调用内已解析 key→value
// 的暂存表组成。xhybrid 适配器在读路径上优先查询作用域，命中则完全
// 跳过 LRU 与后备存储；解析成功后回填作用域，使同一次调用内对同一
// key 的重复查询只产生一次真实开销。
//
// # 生命周期
//
// 作用域与一次逻辑调用同生命周期：
//
//	ctx, scope := xreq.WithScope(ctx)   // 调用入口
//	...                                  // 请求处理，适配器自动读写作用域
//	                                     // 调用结束后丢弃，不复用
//
// 在短暂执行（FaaS）环境中，宿主进程可能跨逻辑调用复用。上一次调用
// 的作用域若被带入下一次调用，会造成数据串写。因此 WithScope 总是
// 建立全新作用域；长期持有 Scope 的调用方必须在每次新调用开始时
// 调用 Reset。
//
// # 并发
//
// Scope 的方法是并发安全的；Lookup/Remember 均做防御性拷贝，
// 调用方无法通过返回值别名到作用域内部状态。
package xreq
