// cachectl 是混合缓存的命令行运维工具。
//
// 用法:
//
//	cachectl [全局选项] <命令> [命令参数]
//
// 全局选项:
//
//	-c, --config      配置文件路径（省略时使用内置默认配置）
//	    --log-level   覆盖日志级别 (debug/info/warn/error)
//	    --log-format  覆盖日志格式 (text/json)
//
// 命令:
//
//	classify <key>...  判定键的持久化分类及命中规则
//	sweep              对两层存储执行一次过期清扫
//	bench              运行合成读写负载并输出统计
//	modecheck          显示运行模式判定结果及依据
//	help               显示帮助信息
//
// classify 命令说明:
//
//	只读取配置、不连接后备存储，可在交付前离线验证分类规则。
//	输出形如 "session:u1: 持久 (pattern "session")"，括号内为命中的规则。
//
// sweep 与 bench 命令说明:
//
//	两者都按配置组装出与常驻进程同构的存储栈（后备驱动、重试、熔断），
//	因此也会校验配置与后端连通性。后端不可达时退出码为 1。
//
// 退出码:
//
//	0: 命令执行成功
//	1: 命令执行失败（后端不可达、清扫出错等）
//	2: 参数错误（未知命令、配置非法、缺少必需参数等）
//
// 示例:
//
//	cachectl classify session:u1 page:home       # 离线验证分类规则
//	cachectl -c cache.yaml sweep                  # 按配置清扫一次过期数据
//	cachectl -c cache.yaml bench --n 50000 -p 8   # 压测配置指向的存储栈
//	cachectl modecheck                            # 查看模式探测结果
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

// 版本信息（可通过 -ldflags 注入，例如:
//
//	go build -ldflags "-X main.Version=1.0.0 -X main.GitCommit=$(git rev-parse --short HEAD) -X main.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// ）。
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run())
}

// createApp 创建 CLI 应用。
func createApp() *cli.Command {
	return &cli.Command{
		Name:    "cachectl",
		Usage:   "混合缓存命令行运维工具",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "配置文件路径（省略时使用内置默认配置）",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "覆盖日志级别 (debug/info/warn/error)",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "覆盖日志格式 (text/json)",
			},
		},
		Commands:       createCommands(),
		DefaultCommand: "help",
		Authors: []any{
			"CacheKit Team",
		},
		// 设计决策: 禁止 urfave/cli 直接调用 os.Exit，
		// 由 run() 统一处理退出码映射，确保与文档退出码契约一致。
		ExitErrHandler: func(_ context.Context, _ *cli.Command, err error) {
			// ExitCoder 错误（如未知命令）的消息需在此输出，
			// 替代 HandleExitCoder 的默认 os.Exit 行为。
			if _, ok := err.(cli.ExitCoder); ok {
				fmt.Fprintln(os.Stderr, err)
			}
		},
		Description: `cachectl 读取与业务进程相同的配置文件，组装出同构的混合缓存栈，
用于在交付前验证配置、分类规则与后端连通性。

主要命令:
  classify <key>...   判定键走持久层还是仅内存，并给出命中规则
  sweep               执行一次过期清扫并输出各层回收数量
  bench               运行合成读写负载，输出命中率与吞吐
    --n               操作总数 (默认: 10000)
    --parallel, -p    并发 worker 数 (默认: 4)
    --value-size      写入值的字节数 (默认: 256)
  modecheck           显示运行模式（longrunning/ephemeral）判定结果及依据`,
	}
}

func run() int {
	app := createApp()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 设置信号处理
	setupSignalHandler(cancel)

	if err := app.Run(ctx, os.Args); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			return exitErr.code
		}
		var usageErr *usageError
		if errors.As(err, &usageErr) {
			fmt.Fprintf(os.Stderr, "参数错误: %v\n", usageErr)
			return 2
		}
		// CLI 框架产生的参数错误（如未知 flag、未知命令）也返回退出码 2，
		// 与文档契约"参数错误 → 退出码 2"保持一致。
		if isCLIUsageError(err) {
			// ExitErrHandler 或 flag 解析器已向 stderr 输出错误详情，此处仅设置退出码
			return 2
		}
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		return 1
	}

	return 0
}
