// Package storeopt 提供后备存储包装层的通用配置与工具。
//
// cachekit 的各个后备存储连接器（xredis、xmongo、xsqlite）共享同一套
// 包装层能力：统一观测（Observer）、健康检查超时、慢操作检测与
// 同步/异步回调钩子、原子统计计数器。storeopt 将这些横切能力收敛到
// 一处，连接器只需组合使用。
//
// # 慢操作钩子
//
// SyncHook 在请求路径上同步执行，任何耗时操作都会直接增加请求延迟；
// AsyncHook 通过内部 worker pool（xpool）异步执行，不阻塞请求路径。
// 两者同时设置时都会被调用。
//
// # 计数器
//
// HealthCounter、OpCounter、SlowOpCounter 是无锁原子计数器，
// 由连接器在各自的 Stats() 中聚合导出。
package storeopt
