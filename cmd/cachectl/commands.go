package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/cachekit/pkg/cache/xhybrid"
	"github.com/omeyang/cachekit/pkg/config/xconf"
	"github.com/omeyang/cachekit/pkg/context/xmode"
	"github.com/omeyang/cachekit/pkg/lifecycle/xjanitor"
)

// exitError 表示需要非零退出码但已完成输出的场景。
// 命令内部已完成所有输出，main 只需设置退出码。
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// usageError 表示参数或配置错误，统一映射为退出码 2。
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

// isCLIUsageError 识别 CLI 框架自身的参数解析错误（未知 flag、
// 未知命令、非法取值），这类错误框架已输出提示，只需映射退出码。
func isCLIUsageError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "flag provided but not defined") ||
		strings.Contains(msg, "No help topic for") ||
		strings.Contains(msg, "invalid value")
}

// globalOptions 全局选项的快照，随命令动作透传。
type globalOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

// globalFlags 从命令读取全局选项。
func globalFlags(cmd *cli.Command) globalOptions {
	return globalOptions{
		configPath: cmd.String("config"),
		logLevel:   cmd.String("log-level"),
		logFormat:  cmd.String("log-format"),
	}
}

// 创建所有子命令。
func createCommands() []*cli.Command {
	return []*cli.Command{
		createClassifyCommand(),
		createSweepCommand(),
		createBenchCommand(),
		createModecheckCommand(),
	}
}

// createClassifyCommand 创建 classify 子命令。
func createClassifyCommand() *cli.Command {
	return &cli.Command{
		Name:      "classify",
		Aliases:   []string{"cls"},
		Usage:     "判定键的持久化分类及命中规则",
		ArgsUsage: "<key>...",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cmdClassify(ctx, globalFlags(cmd), cmd.Args().Slice())
		},
	}
}

// createSweepCommand 创建 sweep 子命令。
func createSweepCommand() *cli.Command {
	return &cli.Command{
		Name:    "sweep",
		Aliases: []string{"s"},
		Usage:   "对两层存储执行一次过期清扫",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cmdSweep(ctx, globalFlags(cmd))
		},
	}
}

// createBenchCommand 创建 bench 子命令。
func createBenchCommand() *cli.Command {
	return &cli.Command{
		Name:    "bench",
		Aliases: []string{"b"},
		Usage:   "运行合成读写负载并输出统计",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "n",
				Usage: "操作总数",
				Value: 10000,
			},
			&cli.IntFlag{
				Name:    "parallel",
				Aliases: []string{"p"},
				Usage:   "并发 worker 数",
				Value:   4,
			},
			&cli.IntFlag{
				Name:  "value-size",
				Usage: "写入值的字节数",
				Value: 256,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cmdBench(ctx, globalFlags(cmd), benchParams{
				ops:       cmd.Int("n"),
				parallel:  cmd.Int("parallel"),
				valueSize: cmd.Int("value-size"),
			})
		},
	}
}

// createModecheckCommand 创建 modecheck 子命令。
func createModecheckCommand() *cli.Command {
	return &cli.Command{
		Name:    "modecheck",
		Aliases: []string{"m"},
		Usage:   "显示运行模式判定结果及依据",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cmdModecheck(ctx, globalFlags(cmd))
		},
	}
}

// cmdClassify 按配置的分类规则逐键判定并输出命中依据。
// 只读取配置，不连接后备存储。
func cmdClassify(_ context.Context, g globalOptions, keys []string) error {
	if len(keys) == 0 {
		return &usageError{msg: "classify 命令需要至少一个键"}
	}

	s, err := loadSettings(g.configPath, g.logLevel, g.logFormat)
	if err != nil {
		return err
	}

	classifier := s.NewClassifier()
	for _, key := range keys {
		fmt.Println(classifyLine(classifier, key))
	}
	return nil
}

// classifyLine 渲染单个键的判定结果。
func classifyLine(c *xhybrid.Classifier, key string) string {
	if ok, rule := c.Explain(key); ok {
		return fmt.Sprintf("%s: 持久 (%s)", key, rule)
	}
	return fmt.Sprintf("%s: 仅内存", key)
}

// cmdSweep 组装完整存储栈后执行一次清扫并输出各层回收数量。
// 设计决策: 复用 xjanitor.RunOnce 而非直接调 Sweep，
// 与常驻进程的定时清扫走同一条代码路径。
func cmdSweep(ctx context.Context, g globalOptions) error {
	s, err := loadSettings(g.configPath, g.logLevel, g.logFormat)
	if err != nil {
		return err
	}

	logger, closeLogger, err := buildLogger(s)
	if err != nil {
		return err
	}
	defer func() { _ = closeLogger() }()

	store, cleanup, err := buildStore(ctx, s, logger)
	if err != nil {
		return fmt.Errorf("组装存储失败: %w", err)
	}
	defer cleanup()

	jan, err := xjanitor.New(store, append(s.JanitorOptions(), xjanitor.WithLogger(logger))...)
	if err != nil {
		if errors.Is(err, xjanitor.ErrInvalidSchedule) {
			return &usageError{msg: fmt.Sprintf("配置无效: %v", err)}
		}
		return err
	}
	defer func() { _ = jan.Stop() }()

	res := jan.RunOnce(ctx)
	fmt.Printf("内存层清除: %d\n", res.MemoryExpired)
	fmt.Printf("后备层回收: %d\n", res.BackingExpired)
	fmt.Printf("耗时: %s\n", res.Duration)
	if res.Err != nil {
		fmt.Printf("错误: %v\n", res.Err)
		return &exitError{code: 1}
	}
	return nil
}

// cmdModecheck 输出生效的执行模式与判定依据。
func cmdModecheck(_ context.Context, g globalOptions) error {
	s, err := loadSettings(g.configPath, g.logLevel, g.logFormat)
	if err != nil {
		return err
	}

	mode, source := resolveModeDetail(s)
	fmt.Printf("模式: %s\n", mode)
	fmt.Printf("依据: %s\n", source)
	return nil
}

// resolveModeDetail 与 Settings.ResolveMode 同判定，另返回依据描述。
// 配置显式指定模式时依据为 config，否则交给环境探测。
func resolveModeDetail(s *xconf.Settings) (xmode.Mode, string) {
	raw := strings.TrimSpace(s.Mode)
	if raw != "" {
		if mode, err := xmode.Parse(raw); err == nil {
			return mode, "config mode=" + raw
		}
	}
	return xmode.DetectDetail()
}

// setupSignalHandler 设置信号处理。
// 设计决策: 第一次信号优雅取消，第二次信号强制退出（退出码 130 = 128 + SIGINT）。
// 当 bench 或清扫阻塞时，用户可通过再次 Ctrl+C 强制退出。
func setupSignalHandler(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel() // 第一次信号: 优雅取消

		<-sigCh
		signal.Stop(sigCh) // 回收订阅
		os.Exit(130)       // 第二次信号: 强制退出
	}()
}
