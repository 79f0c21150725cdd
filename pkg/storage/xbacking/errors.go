package xbacking

import "errors"

var (
	// ErrNotFound 记录不存在或已过期。
	ErrNotFound = errors.New("xbacking: record not found")

	// ErrUnavailable 后备存储暂时不可用。连接器把驱动层的连接、超时等
	// 故障包装成该错误，重试装饰器与熔断层据此分类。
	ErrUnavailable = errors.New("xbacking: store unavailable")

	// ErrClosed 存储已关闭。
	ErrClosed = errors.New("xbacking: store closed")

	// ErrEmptyKey 键或前缀为空。
	ErrEmptyKey = errors.New("xbacking: empty key")

	// ErrNilContext context 为 nil。
	ErrNilContext = errors.New("xbacking: nil context")

	// ErrNilStore 被装饰的存储为 nil。
	ErrNilStore = errors.New("xbacking: nil store")
)
