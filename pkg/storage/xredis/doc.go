// Package xredis 提供基于 Redis 的后备存储连接器。
//
// 实现 xbacking.Store 契约，每条记录对应一个 Redis 哈希：
//
//	<keyspace><key>  →  { v: 值, c: 创建时间(毫秒), u: 更新时间(毫秒) }
//
// 过期时间通过原生 PEXPIREAT 落在键上，由 Redis 强制执行，
// 因此过期记录天然读不到，CleanupExpired 恒返回 0。
// 读取时用 PTTL 反推 ExpiresAt，误差为一次网络往返，可忽略。
//
// 键空间前缀（默认 "cachekit:"）把缓存数据与同一实例上的其他业务隔离，
// DeleteByPrefix 的 SCAN 也被限制在该前缀之内。
//
// # 使用方式
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	store, err := xredis.New(client)
//	if err != nil { ... }
//	defer store.Close()
//
// 基础 Redis 操作请直接使用 Client() 返回的原生客户端。
package xredis
