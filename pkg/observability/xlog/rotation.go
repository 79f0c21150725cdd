package xlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

// 轮转默认配置值
const (
	// DefaultMaxSizeMB 默认单个日志文件最大大小（MB）
	DefaultMaxSizeMB = 100

	// DefaultMaxBackups 默认保留的备份文件数量
	DefaultMaxBackups = 7

	// DefaultMaxAgeDays 默认保留备份的天数
	DefaultMaxAgeDays = 30

	// maxSizeMB 单个日志文件大小上限（10 GB）
	maxSizeMB = 10240

	// maxBackups 备份文件数量上限
	maxBackups = 1024

	// maxAgeDays 备份保留天数上限（约 10 年）
	maxAgeDays = 3650
)

// rotationConfig 文件轮转配置
type rotationConfig struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	LocalTime  bool
}

// RotationOption 轮转配置选项函数
type RotationOption func(*rotationConfig)

// WithMaxSize 设置单个日志文件最大大小（MB）
func WithMaxSize(mb int) RotationOption {
	return func(c *rotationConfig) {
		c.MaxSizeMB = mb
	}
}

// WithMaxBackups 设置保留的备份文件数量
//
// 0 表示不按数量清理，但 MaxBackups 与 MaxAge 不允许同时为 0。
func WithMaxBackups(n int) RotationOption {
	return func(c *rotationConfig) {
		c.MaxBackups = n
	}
}

// WithMaxAge 设置保留备份的天数
func WithMaxAge(days int) RotationOption {
	return func(c *rotationConfig) {
		c.MaxAgeDays = days
	}
}

// WithCompress 设置是否 gzip 压缩备份文件
func WithCompress(enable bool) RotationOption {
	return func(c *rotationConfig) {
		c.Compress = enable
	}
}

// WithLocalTime 设置备份文件名是否使用本地时间，false 时使用 UTC
func WithLocalTime(local bool) RotationOption {
	return func(c *rotationConfig) {
		c.LocalTime = local
	}
}

// rotator 基于 lumberjack 的轮转写入器
//
// 关闭语义：Close 后 Write/Rotate/再次 Close 均返回 [ErrRotatorClosed]，
// 保证不会有新的写入到达已关闭的底层文件。
type rotator struct {
	logger *lumberjack.Logger
	closed atomic.Bool
}

// newRotator 创建轮转写入器，校验配置并确保父目录存在
func newRotator(filename string, opts ...RotationOption) (*rotator, error) {
	if filename == "" {
		return nil, ErrEmptyFilename
	}

	cfg := rotationConfig{
		MaxSizeMB:  DefaultMaxSizeMB,
		MaxBackups: DefaultMaxBackups,
		MaxAgeDays: DefaultMaxAgeDays,
		Compress:   true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	if err := validateRotation(&cfg); err != nil {
		return nil, err
	}

	path := filepath.Clean(filename)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("xlog: create log directory: %w", err)
		}
	}

	return &rotator{
		logger: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
			LocalTime:  cfg.LocalTime,
		},
	}, nil
}

// validateRotation 验证轮转配置
func validateRotation(cfg *rotationConfig) error {
	if cfg.MaxSizeMB <= 0 || cfg.MaxSizeMB > maxSizeMB {
		return fmt.Errorf("%w: got %d, want 1~%d", ErrInvalidMaxSize, cfg.MaxSizeMB, maxSizeMB)
	}
	if cfg.MaxBackups < 0 || cfg.MaxBackups > maxBackups {
		return fmt.Errorf("%w: got %d, want 0~%d", ErrInvalidMaxBackups, cfg.MaxBackups, maxBackups)
	}
	if cfg.MaxAgeDays < 0 || cfg.MaxAgeDays > maxAgeDays {
		return fmt.Errorf("%w: got %d, want 0~%d", ErrInvalidMaxAge, cfg.MaxAgeDays, maxAgeDays)
	}
	if cfg.MaxBackups == 0 && cfg.MaxAgeDays == 0 {
		return fmt.Errorf("%w: MaxBackups and MaxAge cannot both be 0", ErrNoCleanupPolicy)
	}
	return nil
}

// Write 实现 io.Writer
func (r *rotator) Write(p []byte) (int, error) {
	if r.closed.Load() {
		return 0, ErrRotatorClosed
	}

	n, err := r.logger.Write(p)
	if err != nil {
		// Write 通过 closed 前置检查后，Close 可能在 logger.Write 执行期间
		// 完成。后置检查确保调用者在该竞争下仍得到 ErrRotatorClosed。
		if r.closed.Load() {
			return n, ErrRotatorClosed
		}
		return n, err
	}
	return n, nil
}

// Rotate 手动触发轮转，供外部信号（如 SIGHUP）接入
func (r *rotator) Rotate() error {
	if r.closed.Load() {
		return ErrRotatorClosed
	}
	if err := r.logger.Rotate(); err != nil {
		if r.closed.Load() {
			return ErrRotatorClosed
		}
		return err
	}
	return nil
}

// Close 实现 io.Closer
//
// 设计决策: 使用 Swap 标记关闭，首次 Close 失败后不重置标记。重复 Close
// 得到 ErrRotatorClosed 而非重新尝试关闭，避免并发场景下的状态不一致。
func (r *rotator) Close() error {
	if r.closed.Swap(true) {
		return ErrRotatorClosed
	}
	return r.logger.Close()
}
