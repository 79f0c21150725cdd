// Package xlru 提供带权重与双截止时间 TTL 的 LRU 缓存核心。
//
// xlru 是 cachekit 的内存热层：侵入式双向链表维护访问顺序，map 提供
// O(1) 定位。所有结构性变更由单个互斥锁串行化，淘汰监听器在锁外分发。
//
// # 核心特性
//
//   - 泛型值类型：Cache[V any]，键固定为 string
//   - 权重预算：每个条目携带权重（默认 1），总权重受 MaxWeight 约束
//   - 双截止时间：freshUntil 之后条目"软过期"（Get 视为 miss 但保留，
//     GetStale 仍可读到），staleUntil 之后"硬过期"（物理删除）
//   - 惰性过期：过期条目在访问时清理，RemoveExpired 提供全量清扫
//   - 淘汰事件：每次物理删除恰好产生一条记录，原因为
//     capacity/weight/manual/expired 之一
//   - 热点键统计：命中计数放在有界 LRU 表中，高基数键空间下内存有界
//
// # 淘汰监听器
//
// OnEvict 注册的监听器在触发删除的调用内同步执行，但在缓存锁释放之后，
// 慢监听器不会阻塞其他读写。监听器 panic 会被 recover 并记录日志，
// 不会传播，也不影响后续监听器。
//
// # 过期语义
//
// 未配置 StaleGrace 时两个截止时间相同，行为退化为经典单截止 TTL：
// TTL 到期后条目对 Get/GetStale 均不可见并在访问时删除。
// 配置 StaleGrace 后，软过期条目仍占用容量与权重，直到硬过期或被淘汰。
//
// # 设计决策
//
// 使用单个 sync.Mutex 而非 RWMutex：Get 需要移动链表节点（写操作），
// 读写锁无法让命中路径免于写锁。持锁区间只有指针操作和计数器，
// 不做 I/O，也不执行监听器。
//
// 容量与权重在 Set 内按固定顺序执行：先按条目数腾位（reason capacity），
// 再按权重腾位（reason weight），每个上限至多一轮尾部淘汰。
// 单个条目的权重超过 MaxWeight 时拒绝写入并记录 WARN，缓存保持原状。
//
// # 已知限制
//
//   - Size 指条目数量；内存占用估算依赖调用方提供的 SizeOf 函数
//   - Keys/Values/Entries/Report 为 O(n) 操作，持锁期间完成快照
//   - 软过期条目计入 Len 与 TotalWeight，直到被物理删除
package xlru
