package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/omeyang/cachekit/pkg/cache/xhybrid"
)

// benchReadRatio 每 10 次操作中读取的份额。
const benchReadRatio = 8

// benchParams 合成负载参数。
type benchParams struct {
	ops       int
	parallel  int
	valueSize int
}

// cmdBench 组装完整存储栈后运行合成读写负载，输出命中率与吞吐。
// 负载按 8:2 读写比访问一个缩小的键空间，制造稳定的命中分布；
// 两成键带 session 片段，用于驱动持久路径。
func cmdBench(ctx context.Context, g globalOptions, p benchParams) error {
	if p.ops <= 0 {
		return &usageError{msg: fmt.Sprintf("操作总数必须为正数，收到 %d", p.ops)}
	}
	if p.parallel <= 0 {
		return &usageError{msg: fmt.Sprintf("并发数必须为正数，收到 %d", p.parallel)}
	}
	if p.valueSize <= 0 {
		return &usageError{msg: fmt.Sprintf("值字节数必须为正数，收到 %d", p.valueSize)}
	}

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

	keys := benchKeys(p.ops)
	value := benchValue(p.valueSize)

	// 预热：每个键先写入一次，让读取命中分布稳定。预热不计入耗时。
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		store.Set(ctx, key, value)
	}

	start := time.Now()
	if err := runBenchWorkers(ctx, store, keys, value, p); err != nil {
		return err
	}
	elapsed := time.Since(start)

	printBenchReport(store.Stats(), p, elapsed)
	return nil
}

// benchKeys 生成负载键空间，约为操作数的十分之一，
// 其中每第五个键带 session 片段以命中持久分类。
func benchKeys(ops int) []string {
	n := ops / 10
	if n < 16 {
		n = 16
	}
	keys := make([]string, n)
	for i := range keys {
		if i%5 == 0 {
			keys[i] = fmt.Sprintf("bench:session:%06d", i)
		} else {
			keys[i] = fmt.Sprintf("bench:item:%06d", i)
		}
	}
	return keys
}

// benchValue 生成指定字节数的填充值。
func benchValue(size int) []byte {
	value := make([]byte, size)
	for i := range value {
		value[i] = byte('a' + i%26)
	}
	return value
}

// runBenchWorkers 以 parallel 个 worker 均分操作数执行随机读写。
// 每个 worker 使用独立的确定性随机源，context 取消时立即停止。
func runBenchWorkers(ctx context.Context, store xhybrid.Store, keys []string, value []byte, p benchParams) error {
	eg, ctx := errgroup.WithContext(ctx)

	perWorker := p.ops / p.parallel
	remainder := p.ops % p.parallel

	for w := 0; w < p.parallel; w++ {
		ops := perWorker
		if w < remainder {
			ops++
		}
		seed := uint64(w + 1)
		eg.Go(func() error {
			rng := rand.New(rand.NewPCG(seed, seed<<17))
			for i := 0; i < ops; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				key := keys[rng.IntN(len(keys))]
				if rng.IntN(10) < benchReadRatio {
					store.Get(ctx, key)
				} else {
					store.Set(ctx, key, value)
				}
			}
			return nil
		})
	}

	return eg.Wait()
}

// printBenchReport 输出吞吐与两层统计。
func printBenchReport(stats xhybrid.Stats, p benchParams, elapsed time.Duration) {
	opsPerSec := float64(p.ops) / elapsed.Seconds()

	fmt.Printf("操作总数: %d (并发 %d)\n", p.ops, p.parallel)
	fmt.Printf("耗时: %s (%.0f ops/s)\n", elapsed, opsPerSec)
	fmt.Printf("内存层: 条目 %d, 命中率 %.1f%%, 淘汰 %d\n",
		stats.Memory.Size, stats.Memory.HitRate()*100, stats.Memory.TotalEvictions())
	fmt.Printf("后备层: 读 %d, 写 %d, 错误 %d, 熔断拒绝 %d\n",
		stats.BackingReads, stats.BackingWrites, stats.BackingErrors, stats.BreakerDenied)
	if stats.StaleServed > 0 || stats.NegativeHits > 0 {
		fmt.Printf("其他: 陈旧命中 %d, 负缓存命中 %d\n", stats.StaleServed, stats.NegativeHits)
	}
}
