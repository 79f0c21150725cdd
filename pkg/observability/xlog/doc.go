// Package xlog 提供面向应用入口的 slog 构建器。
//
// 库代码（xlru、xhybrid、存储连接器等）通过各自的 WithLogger 选项接收
// *slog.Logger，默认回落到 slog.Default()；xlog 只服务应用侧的组装：
// 级别、格式、输出目标、文件轮转与 context 属性注入一次配置完成。
//
// # 基本用法
//
//	logger, cleanup, err := xlog.New().
//		SetLevelString("debug").
//		SetFormat("json").
//		Build()
//	if err != nil {
//		// 配置错误在 Build 时集中返回
//	}
//	defer cleanup()
//	slog.SetDefault(logger)
//
// # 文件轮转
//
// SetRotation 基于 lumberjack 实现按大小轮转：
//
//	logger, cleanup, err := xlog.New().
//		SetRotation("/var/log/cachekit/cachectl.log",
//			xlog.WithMaxSize(100),
//			xlog.WithMaxBackups(7),
//		).
//		Build()
//
// cleanup 负责关闭轮转文件句柄，进程退出前必须调用。
//
// # 属性注入
//
// 默认启用 enrich：当 context 携带 xreq 请求作用域时，每条日志自动
// 附加 request_id 属性，便于把一次调用链路上的降级、慢操作、淘汰
// 事件串起来。SetEnrich(false) 可关闭。
package xlog
