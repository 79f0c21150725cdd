package xmongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// =============================================================================
// Mock 实现 - 用于单元测试
// =============================================================================

// mockClientOps 实现 clientOperations 接口
type mockClientOps struct {
	pingErr       error
	pingCount     int
	disconnectErr error
	disconnected  bool
}

func (m *mockClientOps) Ping(_ context.Context, _ *readpref.ReadPref) error {
	m.pingCount++
	return m.pingErr
}

func (m *mockClientOps) Disconnect(_ context.Context) error {
	m.disconnected = true
	return m.disconnectErr
}

// mockCollectionOps 实现 collectionOperations 接口。
// 捕获传入的过滤器与更新文档，便于断言构造出的查询。
type mockCollectionOps struct {
	findDoc any   // 非 nil 时 FindOne 返回可解码此文档的结果
	findErr error // 非 nil 时 FindOne 返回该错误（nil 且 findDoc nil 则为未命中）

	updateResult *mongo.UpdateResult
	updateErr    error

	deleteOneErr     error
	deleteManyResult *mongo.DeleteResult
	deleteManyErr    error

	indexName      string
	createIndexErr error

	collName string

	lastFilter     any
	lastUpdate     any
	lastIndexModel mongo.IndexModel

	findCalls        int
	updateCalls      int
	deleteOneCalls   int
	deleteManyCalls  int
	createIndexCalls int
}

func (m *mockCollectionOps) FindOne(_ context.Context, filter any, _ ...options.Lister[options.FindOneOptions]) *mongo.SingleResult {
	m.findCalls++
	m.lastFilter = filter
	if m.findErr != nil {
		return mongo.NewSingleResultFromDocument(bson.D{}, m.findErr, nil)
	}
	if m.findDoc == nil {
		return mongo.NewSingleResultFromDocument(bson.D{}, mongo.ErrNoDocuments, nil)
	}
	return mongo.NewSingleResultFromDocument(m.findDoc, nil, nil)
}

func (m *mockCollectionOps) UpdateOne(_ context.Context, filter any, update any, _ ...options.Lister[options.UpdateOneOptions]) (*mongo.UpdateResult, error) {
	m.updateCalls++
	m.lastFilter = filter
	m.lastUpdate = update
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	if m.updateResult != nil {
		return m.updateResult, nil
	}
	return &mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
}

func (m *mockCollectionOps) DeleteOne(_ context.Context, filter any, _ ...options.Lister[options.DeleteOneOptions]) (*mongo.DeleteResult, error) {
	m.deleteOneCalls++
	m.lastFilter = filter
	if m.deleteOneErr != nil {
		return nil, m.deleteOneErr
	}
	return &mongo.DeleteResult{DeletedCount: 1}, nil
}

func (m *mockCollectionOps) DeleteMany(_ context.Context, filter any, _ ...options.Lister[options.DeleteManyOptions]) (*mongo.DeleteResult, error) {
	m.deleteManyCalls++
	m.lastFilter = filter
	if m.deleteManyErr != nil {
		return nil, m.deleteManyErr
	}
	if m.deleteManyResult != nil {
		return m.deleteManyResult, nil
	}
	return &mongo.DeleteResult{}, nil
}

func (m *mockCollectionOps) CreateIndex(_ context.Context, model mongo.IndexModel) (string, error) {
	m.createIndexCalls++
	m.lastIndexModel = model
	if m.createIndexErr != nil {
		return "", m.createIndexErr
	}
	if m.indexName != "" {
		return m.indexName, nil
	}
	return "expires_at_1", nil
}

func (m *mockCollectionOps) Name() string {
	if m.collName != "" {
		return m.collName
	}
	return "cache_records"
}

// =============================================================================
// 辅助构造函数
// =============================================================================

func newMockClientOps() *mockClientOps {
	return &mockClientOps{}
}

func newMockCollectionOps() *mockCollectionOps {
	return &mockCollectionOps{}
}

// =============================================================================
// 错误定义
// =============================================================================

var (
	errMockPing       = errors.New("mock ping error")
	errMockDisconnect = errors.New("mock disconnect error")
	errMockFind       = errors.New("mock find error")
	errMockUpdate     = errors.New("mock update error")
	errMockDelete     = errors.New("mock delete error")
)
