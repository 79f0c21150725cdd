// Package xsqlite 提供基于 SQLite 的后备存储连接器。
//
// 实现 xbacking.Store 契约，单表 cache_records，键为主键，
// 时间戳统一存毫秒 UTC。过期没有引擎原生支持，读取带过期谓词
// （过期记录视同不存在），物理回收交给 CleanupExpired 周期执行。
//
// 底层是 database/sql 加 modernc.org/sqlite（纯 Go，无 CGO）。
// DSN 默认启用 WAL、外键约束、5 秒 busy_timeout 与 NORMAL 同步级别，
// 通过 _pragma 参数逐连接生效。
//
// 适合单机部署：零运维依赖，数据落在本地文件，进程重启后仍在。
// 跨实例共享请使用 xredis 或 xmongo。
package xsqlite
