// Package storage 提供持久层存储相关的子包。
//
// 子包列表：
//   - xbacking: 后备存储统一契约，内置内存实现与重试装饰器
//   - xredis: Redis 后备存储封装
//   - xmongo: MongoDB 后备存储封装
//   - xsqlite: SQLite 后备存储封装（纯 Go 驱动，无 CGO）
//
// 设计原则：
//   - 提供统一的接口抽象，支持多种存储后端
//   - 内置可观测性（指标、追踪）与慢操作检测
//   - 驱动错误统一包装为 ErrUnavailable，便于上层降级
package storage
