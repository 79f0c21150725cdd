package xmongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/omeyang/cachekit/internal/storeopt"
	"github.com/omeyang/cachekit/pkg/storage/xbacking"
)

// =============================================================================
// 接口定义
// =============================================================================

// Store MongoDB 后备存储接口。
// 在 xbacking.Store 契约之上提供原生客户端逃生通道、索引管理与统计信息。
type Store interface {
	xbacking.Store

	// Client 返回底层的 mongo.Client，用于执行原生 MongoDB 操作。
	Client() *mongo.Client

	// EnsureIndexes 确保 expires_at 索引存在。幂等，可在启动时调用。
	EnsureIndexes(ctx context.Context) error

	// Stats 返回统计信息。
	Stats() Stats
}

// Stats MongoDB 连接器统计信息。
type Stats struct {
	// OpCount 记录操作总数。
	OpCount int64

	// OpErrors 记录操作错误数。
	OpErrors int64

	// PingCount 健康检查次数。
	PingCount int64

	// PingErrors 健康检查失败次数。
	PingErrors int64

	// SlowOps 慢操作次数。
	SlowOps int64
}

// =============================================================================
// 工厂函数
// =============================================================================

// New 从已有的 mongo.Client 创建后备存储。
// 客户端生命周期转交给返回的 Store，Close 时会断开连接。
// 纯构造，不发起网络请求；索引初始化见 EnsureIndexes。
func New(client *mongo.Client, opts ...Option) (Store, error) {
	if client == nil {
		return nil, ErrNilClient
	}

	options := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}

	detector, err := storeopt.NewSlowOpDetector(storeopt.SlowOpOptions[SlowOpInfo]{
		Threshold:      options.SlowOpThreshold,
		SyncHook:       options.SlowOpHook,
		AsyncHook:      options.AsyncSlowOpHook,
		AsyncWorkers:   options.AsyncSlowOpWorkers,
		AsyncQueueSize: options.AsyncSlowOpQueueSize,
	})
	if err != nil {
		return nil, fmt.Errorf("xmongo: create slow op detector: %w", err)
	}

	coll := client.Database(options.Database).Collection(options.Collection)
	return &mongoStore{
		client:    client,
		clientOps: client,
		coll:      adaptCollection(coll),
		options:   options,
		slowOps:   detector,
	}, nil
}
