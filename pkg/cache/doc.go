// Package cache 提供进程内缓存相关的子包。
//
// 子包列表：
//   - xlru: 带权重与 TTL 的 LRU 缓存，泛型支持、热点键统计
//   - xhybrid: 内存层与后备存储的混合读写适配器
//   - xmemo: 基于混合存储的函数记忆化封装
//
// 设计原则：
//   - 读写路径 O(1)，单锁串行化结构变更
//   - 后备层故障只降级不上抛，缓存丢失永不中断调用
//   - 键分类决定持久化路由，规则运行期可增删
package cache
