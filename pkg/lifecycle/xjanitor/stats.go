package xjanitor

import (
	"time"

	"github.com/omeyang/cachekit/pkg/cache/xhybrid"
)

// Stats 清扫器的累计运行统计快照。
type Stats struct {
	// Runs 完成的清扫趟数，含后备清理失败的趟。
	Runs int64

	// Skips 因上一趟尚未结束而被跳过的触发次数。
	Skips int64

	// Failures 清扫出错（含清扫 panic）的趟数。
	Failures int64

	// MemoryExpired 内存层累计清除的硬过期条目数。
	MemoryExpired int64

	// BackingExpired 后备存储累计回收的过期记录数。
	BackingExpired int64

	// LastRun 最近一趟清扫的完成时间，零值表示尚未执行。
	LastRun time.Time

	// LastDuration 最近一趟清扫的耗时。
	LastDuration time.Duration

	// LastErr 最近一趟清扫的失败原因，nil 表示成功。
	LastErr error
}

// Stats 返回累计运行统计的快照。
func (j *Janitor) Stats() Stats {
	j.statsMu.RLock()
	lastRun := j.lastRun
	lastDuration := j.lastDuration
	lastErr := j.lastErr
	j.statsMu.RUnlock()

	return Stats{
		Runs:           j.runs.Load(),
		Skips:          j.skips.Load(),
		Failures:       j.failures.Load(),
		MemoryExpired:  j.memoryExpired.Load(),
		BackingExpired: j.backingExpired.Load(),
		LastRun:        lastRun,
		LastDuration:   lastDuration,
		LastErr:        lastErr,
	}
}

// record 记录一趟清扫的结果。
func (j *Janitor) record(res xhybrid.SweepResult) {
	j.runs.Add(1)
	j.memoryExpired.Add(int64(res.MemoryExpired))
	j.backingExpired.Add(res.BackingExpired)
	if res.Err != nil {
		j.failures.Add(1)
	}

	j.statsMu.Lock()
	j.lastRun = time.Now()
	j.lastDuration = res.Duration
	j.lastErr = res.Err
	j.statsMu.Unlock()
}
