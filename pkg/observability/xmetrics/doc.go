// Package xmetrics 提供统一的可观测性接口（metrics + tracing）。
//
// # 设计理念
//
// xmetrics 仅定义最小化接口：Observer/Span/Attr，
// 缓存各层（xhybrid 适配器、后备存储连接器）只依赖接口；
// 具体实现可替换。默认实现基于 OpenTelemetry，兼容主流可观测栈。
//
// # 使用示例
//
//	obs, _ := xmetrics.NewOTelObserver()
//	ctx, span := xmetrics.Start(ctx, obs, xmetrics.SpanOptions{
//		Component: "xredis",
//		Operation: "upsert",
//		Kind:      xmetrics.KindClient,
//	})
//	defer span.End(xmetrics.Result{Err: err})
//
// # 指标命名
//
// 统一指标：
//   - cachekit.operation.total
//   - cachekit.operation.duration
//
// 统一属性：component / operation / status。
// 当 context 携带 xreq 请求作用域时，trace 跨度附加 request.id。
package xmetrics
