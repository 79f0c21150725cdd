// Package context 提供上下文与运行环境相关的子包。
//
// 子包列表：
//   - xmode: 执行模式（长驻/短时）解析与探测
//   - xreq: 请求级记忆作用域，随 context.Context 传递
//
// 设计原则：
//   - 所有请求级状态通过 context.Context 传递，不使用全局变量
//   - 模式探测只在启动时执行一次，结果显式注入使用方
package context
