package xsqlite

import "errors"

var (
	// ErrNilDB 数据库句柄为 nil。
	ErrNilDB = errors.New("xsqlite: nil db")

	// ErrEmptyPath 数据库文件路径为空。
	ErrEmptyPath = errors.New("xsqlite: empty path")
)
