// Package xpool 提供通用的 worker pool 实现。
//
// Pool 是一个轻量级的泛型 worker pool，用于异步执行任务。
// 在 cachekit 中主要服务于存储包装层的异步钩子分发
// （如慢操作通知），避免回调阻塞请求路径。
//
// 支持以下特性：
//   - 泛型任务类型
//   - 优雅关闭（处理完队列中的任务后退出）
//   - panic 恢复（单个任务失败不影响 pool）
//   - 队列满时返回 ErrQueueFull
//   - 可注入自定义日志记录器（WithLogger）
//   - 多实例场景下可设置名称以区分日志来源（WithName）
//
// # 注意事项
//
//   - Submit 是非阻塞的，队列满时返回 ErrQueueFull
//   - Close 会等待所有队列中的任务处理完成
//   - Close 不可在 handler 内调用，否则会死锁
//   - panic 的任务不会被重试，仅记录日志后丢弃
//   - New 创建后自动启动 worker，无需手动 Start
//   - handler 参数不能为 nil，否则返回 ErrNilHandler
//   - workers 和 queueSize 必须 >= 1，否则返回错误（而非 panic）
//
// # 设计选择说明
//
// Submit 队列满时返回 ErrQueueFull：
//   - 这是有意设计，确保 Submit 永不阻塞
//   - 适用于慢操作通知、metrics 等可丢弃场景
//   - 如需阻塞语义，请使用 channel 或其他库
package xpool
