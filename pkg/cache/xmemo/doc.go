// Package xmemo 把任意函数包装成带缓存记忆的版本。
//
// Memoize 以键前缀加参数哈希为键，把函数结果编码后写入注入的缓存
// （通常是 xhybrid.Store），下次同参调用直接命中，无需重算。缓存层的
// 任何闪失（条目被逐出、编解码失败、存储降级）都只退化为重新调用
// 原函数，永远不会让包装后的调用因缓存而失败；原函数自己的错误则
// 原样透出，且永不缓存。
//
// # 键的构成
//
// 键 = keyPrefix + 参数规范化 JSON 的 xxhash64 定宽十六进制。参数
// 哈希始终走 encoding/json（map 键按字典序输出，序列化确定），与
// 结果编码用的 Codec 无关；同一参数在所有进程中产生相同的键。
// Key 导出此计算，调用方可据此做定向失效。
//
// # 并发去重
//
// 同一键的并发未命中默认收拢为一次函数调用（WithSingleflight(false)
// 关闭）。收拢后的调用在脱离调用方取消链的独立超时内执行
// （WithCallTimeout，默认 30s），首个调用方取消不影响其他等待者；
// 各调用方仍按自己的 ctx 独立放弃等待。
//
// # 设计决策
//
// 函数失败时可退而取一份限龄的陈旧结果（WithStaleFallback），但
// 调用方自身的取消不走陈旧回退：调用方说停就是停。
//
// 键前缀建议带上分类器可识别的片段（如 "session:"），记忆条目便能
// 搭上持久键的路由待遇；WithForcePersist 则无视分类强制落后备。
// ctx 携带 xreq.Scope 时，同一请求内的重复调用由底层缓存的请求
// 范围层短路，连哈希命中都省掉一半。
//
// # 已知限制
//
// 去重仅基于键，不含 ttl 等写配置；同一键应使用同一 Memoize 实例，
// 多实例各持一个 singleflight 分组，跨实例的并发调用不会收拢。
package xmemo
