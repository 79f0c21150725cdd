// Package xhybrid 把进程内 LRU 热层与可选的后备存储组合成一个缓存适配器。
//
// 适配器对上暴露一个永不返回错误的读写接口：后备存储的任何故障都在
// 包内降级处理（记日志、计数、回退到内存副本或未命中），调用方只需
// 关心"有没有值"。对下通过 xbacking.Store 契约对接任意引擎连接器
// （xredis / xmongo / xsqlite），不配置后备时退化为纯内存缓存。
//
// # 键分类与路由
//
// 每个键经 Classifier 判定为持久键或短暂键：持久键需要跨实例、
// 跨冷启动存活，短暂键只在进程内有意义。读写路径按
// 执行模式 × 键类别 共四种组合路由：
//
//	                 持久键                        短暂键
//	长驻进程    内存优先，未命中回源后备        仅内存
//	短暂进程    后备优先，故障回退内存          仅内存
//
// 短暂进程（FaaS 等）中后备存储是事实来源，进程内副本只保证
// 同一次调用内的读写一致；长驻进程则相反，内存是权威层，
// 后备只做镜像与冷启动恢复。
//
// # 降级路径
//
// 后备读取按序经过：负缓存（可选）→ 熔断器（可选）→ 实际调用。
// 任何一环失败都回退到内存副本；连内存都没有时，允许陈旧的读
// （WithStale）还可以拿到软过期副本——副本年龄不超过 maxAge，
// 且仍在 StaleGrace 保留窗口内。
//
// # 请求范围缓存
//
// ctx 携带 xreq.Scope 时，Get 优先查请求范围内已解析过的值并把
// 本次解析结果记入其中；Set 同步更新，Delete 同步失效。同一逻辑
// 请求内的重复读不会穿透到任何存储层。
//
// # 设计决策
//
// 后备存储由调用方注入并管理生命周期，Close 不会关闭它；
// 同一个后备可以被多个适配器（配合不同命名空间）共享。
//
// 长驻进程的后备回源经 singleflight 收拢：同一物理键的并发未命中
// 只产生一次后备读取，加载在脱离调用方取消链的独立超时内执行，
// 首个调用方取消不影响其他等待者。
//
// 写入短暂进程模式下先等待后备落盘再写内存，这是唯一的持久性保证；
// 后备失败时内存照常写入，保住同一次调用内的读一致性。
//
// # 已知限制
//
// WithForcePersist 写入的键若其名字不被分类器识别，Delete 只清内存副本，
// 后备中的记录要等 TTL 到期自然消亡。
//
// 未配置命名空间时 Clear 只清内存层：后备键空间无法圈定本适配器的
// 域，贸然按空前缀删除会清掉别人的数据。
package xhybrid
