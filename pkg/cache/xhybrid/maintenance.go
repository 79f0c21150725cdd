package xhybrid

import (
	"context"
	"time"

	"github.com/omeyang/cachekit/pkg/observability/xmetrics"
)

// Sweep 清扫两层的过期数据：内存层物理移除硬过期条目，
// 后备存储回收 ExpiresAt 早于当前时刻的记录。
// 后备清理失败不影响内存侧结果，原因放在 SweepResult.Err 中。
func (h *hybridStore) Sweep(ctx context.Context) SweepResult {
	if h.closed.Load() {
		return SweepResult{Err: ErrClosed}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := xmetrics.Start(ctx, h.observer, xmetrics.SpanOptions{
		Component: hybridComponent,
		Operation: "sweep",
		Kind:      xmetrics.KindInternal,
	})

	started := time.Now()
	var res SweepResult
	res.MemoryExpired = h.lru.RemoveExpired()
	if h.backing != nil {
		res.BackingExpired, res.Err = h.sweepBacking(ctx)
	}
	res.Duration = time.Since(started)

	span.End(xmetrics.Result{Err: res.Err, Attrs: []xmetrics.Attr{
		xmetrics.Int("sweep.memory_expired", res.MemoryExpired),
		xmetrics.Int64("sweep.backing_expired", res.BackingExpired),
	}})
	return res
}

func (h *hybridStore) sweepBacking(ctx context.Context) (int64, error) {
	if !h.allow(h.namespace) {
		h.breakerDenied.Add(1)
		return 0, ErrBackingDenied
	}

	opCtx, cancel := context.WithTimeout(ctx, h.opTimeout)
	defer cancel()

	h.backingWrites.Add(1)
	count, err := h.backing.CleanupExpired(opCtx, h.now())
	h.observeOutcome(h.namespace, err)
	if err != nil {
		h.backingErrors.Add(1)
		h.logger.Warn("xhybrid: backing sweep failed", "error", err)
		return 0, err
	}
	return count, nil
}

// ClearPrefix 清除两层中携带给定逻辑前缀的条目。
// 空前缀直接返回 0，整域清理请用 Clear。
func (h *hybridStore) ClearPrefix(ctx context.Context, prefix string) int {
	if h.closed.Load() || prefix == "" {
		return 0
	}
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := xmetrics.Start(ctx, h.observer, xmetrics.SpanOptions{
		Component: hybridComponent,
		Operation: "clear_prefix",
		Kind:      xmetrics.KindInternal,
	})

	physical := h.physicalKey(prefix)
	removed := h.lru.ClearPrefix(physical)
	if h.backing != nil {
		removed += int(h.purgeBacking(ctx, physical))
	}

	span.End(xmetrics.Result{Attrs: []xmetrics.Attr{
		xmetrics.Int("cache.removed", removed),
	}})
	return removed
}

// Report 汇总两层的运维视图。
// 健康探测绕过熔断器：探测是发现后备恢复的唯一途径。
func (h *hybridStore) Report(ctx context.Context) Report {
	if h.closed.Load() {
		return Report{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := xmetrics.Start(ctx, h.observer, xmetrics.SpanOptions{
		Component: hybridComponent,
		Operation: "report",
		Kind:      xmetrics.KindInternal,
	})
	defer span.End(xmetrics.Result{})

	rep := Report{Memory: h.lru.Report()}
	if h.backing == nil {
		return rep
	}

	opCtx, cancel := context.WithTimeout(ctx, h.opTimeout)
	defer cancel()

	br := &BackingReport{Len: -1}
	if err := h.backing.Health(opCtx); err != nil {
		br.Err = err
	} else {
		br.Healthy = true
	}
	if counter, ok := h.backing.(interface{ Len() int }); ok {
		br.Len = counter.Len()
	}
	rep.Backing = br
	return rep
}

// Close 释放适配器持有的资源，重复关闭返回 ErrClosed。
// 注入的后备存储由调用方关闭，这里不会动它。
func (h *hybridStore) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	if h.negative != nil {
		h.negative.Close()
	}
	return nil
}
