// Package xmode 提供执行模式（长驻/短暂）的类型与探测。
//
// 短暂执行（ephemeral execution）指进程可能在两次逻辑请求之间被整体
// 回收的运行环境，典型如 FaaS。此时进程内缓存不保证跨请求存活，
// 持久数据必须以外部后备存储为事实来源。长驻执行（long-running）则
// 相反，进程内状态在其生命周期内可靠。
//
// # 使用方式
//
//	mode := xmode.Detect()          // 进程启动时探测一次
//	store, _ := xhybrid.New(xhybrid.Config{Mode: mode, ...})
//
// Detect 依次检查 EXECUTION_MODE 显式覆盖与公认的 FaaS 平台标记。
// 需要自定义判定时实现 Detector 并在启动处替换调用即可；
// 包内没有全局可变状态。
package xmode
