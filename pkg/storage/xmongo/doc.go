// Package xmongo 提供基于 MongoDB 的后备存储连接器。
//
// 实现 xbacking.Store 契约。单集合存储，文档结构：
//
//	_id:        记录键（字符串）
//	value:      记录值（BSON binary）
//	expires_at: 过期时间（BSON datetime，可为 null 表示永不过期）
//	created_at: 创建时间（BSON datetime）
//	updated_at: 更新时间（BSON datetime）
//
// # 过期语义
//
// MongoDB 不提供毫秒级的按文档过期，读取用 $or 谓词过滤过期文档，
// CleanupExpired 通过 DeleteMany 物理回收。EnsureIndexes 在 expires_at
// 上建普通索引加速回收扫描。
//
// 已知限制: 不使用 TTL 索引（expireAfterSeconds）。TTL monitor 以服务端
// 时钟为准且约 60 秒扫一轮，与读取谓词的时钟注入语义冲突，回收计数也
// 无法回报给调用方。
//
// # 前缀删除
//
// DeleteByPrefix 用锚定正则 ^prefix 走 DeleteMany，prefix 经
// regexp.QuoteMeta 转义，键里的正则元字符按字面值匹配。
//
// 客户端由调用方注入，Close 会断开该客户端。时间戳统一毫秒 UTC
// （BSON datetime 本身就是毫秒精度）。
package xmongo
