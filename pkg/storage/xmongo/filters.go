package xmongo

import (
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/omeyang/cachekit/pkg/storage/xbacking"
)

// 文档字段名。
const (
	fieldKey       = "_id"
	fieldValue     = "value"
	fieldExpiresAt = "expires_at"
	fieldCreatedAt = "created_at"
	fieldUpdatedAt = "updated_at"
)

// mongoRecord 集合文档模型。
type mongoRecord struct {
	Key       string     `bson:"_id"`
	Value     []byte     `bson:"value"`
	ExpiresAt *time.Time `bson:"expires_at"`
	CreatedAt time.Time  `bson:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at"`
}

func (d *mongoRecord) toRecord() *xbacking.Record {
	rec := &xbacking.Record{
		Key:       d.Key,
		Value:     d.Value,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
	if d.ExpiresAt != nil {
		exp := d.ExpiresAt.UTC()
		rec.ExpiresAt = &exp
	}
	return rec
}

// =============================================================================
// 过滤器构造
// =============================================================================

// keyFilter 点查/覆盖写过滤器。
func keyFilter(key string) bson.D {
	return bson.D{{Key: fieldKey, Value: key}}
}

// liveKeyFilter 点查过滤器，过期文档视同不存在。
// expires_at 为 null 表示永不过期。
func liveKeyFilter(key string, now time.Time) bson.D {
	return bson.D{
		{Key: fieldKey, Value: key},
		{Key: "$or", Value: bson.A{
			bson.D{{Key: fieldExpiresAt, Value: nil}},
			bson.D{{Key: fieldExpiresAt, Value: bson.D{{Key: "$gt", Value: now}}}},
		}},
	}
}

// prefixFilter 前缀删除过滤器。
// 锚定正则加 QuoteMeta 转义，prefix 里的正则元字符按字面值匹配。
func prefixFilter(prefix string) bson.D {
	return bson.D{{Key: fieldKey, Value: bson.Regex{Pattern: "^" + regexp.QuoteMeta(prefix)}}}
}

// expiredFilter 过期回收过滤器，严格早于 olderThan。
// $ne null 同时排除字段缺失与显式 null 的永久记录。
func expiredFilter(olderThan time.Time) bson.D {
	return bson.D{{Key: fieldExpiresAt, Value: bson.D{
		{Key: "$ne", Value: nil},
		{Key: "$lt", Value: olderThan},
	}}}
}

// upsertPipeline 覆盖写的 pipeline 更新。
//
// 设计决策: 用 pipeline 形式而非 $set + $setOnInsert。$setOnInsert 只在
// 插入分支生效，看不到旧文档，无法对"过期旧行被覆盖"重置 created_at；
// pipeline 的 $cond 能引用旧 expires_at，一条原子 UpdateOne 完成全部语义：
//
//   - 文档不存在：created_at = now（$ifNull 兜底）
//   - 旧文档未过期：created_at 保留
//   - 旧文档已过期：created_at = now
func upsertPipeline(value []byte, expiresAt *time.Time, now time.Time) mongo.Pipeline {
	var exp any
	if expiresAt != nil {
		exp = expiresAt.UTC()
	}
	if value == nil {
		value = []byte{}
	}
	return mongo.Pipeline{
		bson.D{{Key: "$set", Value: bson.D{
			{Key: fieldValue, Value: value},
			{Key: fieldExpiresAt, Value: exp},
			{Key: fieldUpdatedAt, Value: now},
			{Key: fieldCreatedAt, Value: bson.D{{Key: "$cond", Value: bson.A{
				bson.D{{Key: "$and", Value: bson.A{
					bson.D{{Key: "$ne", Value: bson.A{"$" + fieldExpiresAt, nil}}},
					bson.D{{Key: "$lte", Value: bson.A{"$" + fieldExpiresAt, now}}},
				}}},
				now,
				bson.D{{Key: "$ifNull", Value: bson.A{"$" + fieldCreatedAt, now}}},
			}}}},
		}}},
	}
}

// expiresAtIndex 过期时间索引模型，加速 CleanupExpired 的范围扫描。
func expiresAtIndex() mongo.IndexModel {
	return mongo.IndexModel{
		Keys: bson.D{{Key: fieldExpiresAt, Value: 1}},
	}
}
