package xlog

import "errors"

var (
	// ErrNilHandler 当 NewEnrichHandler 的 base handler 为 nil 时返回
	ErrNilHandler = errors.New("xlog: base handler is nil")

	// ErrEmptyFilename 轮转文件名为空
	ErrEmptyFilename = errors.New("xlog: rotation filename is empty")

	// ErrInvalidMaxSize 轮转文件大小超出允许范围
	ErrInvalidMaxSize = errors.New("xlog: invalid rotation max size")

	// ErrInvalidMaxBackups 备份数量超出允许范围
	ErrInvalidMaxBackups = errors.New("xlog: invalid rotation max backups")

	// ErrInvalidMaxAge 备份保留天数超出允许范围
	ErrInvalidMaxAge = errors.New("xlog: invalid rotation max age")

	// ErrNoCleanupPolicy 备份数量与保留天数同时为 0，日志会无限累积
	ErrNoCleanupPolicy = errors.New("xlog: rotation needs a cleanup policy")

	// ErrRotatorClosed 轮转器已关闭后继续写入或再次关闭
	ErrRotatorClosed = errors.New("xlog: rotator is closed")
)
