// Package xbacking 定义二级持久存储的统一契约。
//
// 混合缓存把热数据放在进程内 LRU，把需要跨实例、跨冷启动存活的数据
// 写入一个实现了 Store 接口的后备存储。本包只定义契约与两个通用实现，
// 具体引擎连接器在兄弟包中（xredis / xmongo / xsqlite）。
//
// # 契约语义
//
//   - Get: 不存在或已过期的记录返回 ErrNotFound。过期记录视同不存在，
//     由实现自行决定是否顺手回收。
//   - Upsert: 键已存在时保留 CreatedAt，只推进 UpdatedAt；
//     已过期的旧记录视同不存在，CreatedAt 重新计。
//   - Delete: 删除不存在的键不是错误，返回 nil。
//   - DeleteByPrefix: 按前缀批量删除，空前缀直接拒绝（会清空整个键空间）。
//   - CleanupExpired: 物理回收 ExpiresAt 早于 olderThan 的记录，返回条数。
//   - 引擎故障统一包装为 ErrUnavailable，调用方用 errors.Is 判断即可，
//     无需引入驱动包。
//
// # 组件
//
// Memory 是纯内存实现，完整满足契约，供测试与单机部署使用。
//
// Retrying 是装饰器，为任意 Store 的点读点写加上有限重试，
// 只对 ErrUnavailable 重试。批量清理与健康检查不重试。
package xbacking
