package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/omeyang/cachekit/pkg/cache/xhybrid"
	"github.com/omeyang/cachekit/pkg/config/xconf"
	"github.com/omeyang/cachekit/pkg/observability/xlog"
	"github.com/omeyang/cachekit/pkg/resilience/xbreaker"
	"github.com/omeyang/cachekit/pkg/storage/xbacking"
	"github.com/omeyang/cachekit/pkg/storage/xmongo"
	"github.com/omeyang/cachekit/pkg/storage/xredis"
	"github.com/omeyang/cachekit/pkg/storage/xsqlite"
)

// loadSettings 加载配置并应用命令行覆盖。
// path 为空时使用内置默认配置；加载失败与校验失败都视为参数错误。
func loadSettings(path, levelOverride, formatOverride string) (*xconf.Settings, error) {
	var s *xconf.Settings
	if path == "" {
		s = xconf.Default()
	} else {
		loaded, err := xconf.Load(path)
		if err != nil {
			return nil, &usageError{msg: fmt.Sprintf("加载配置失败: %v", err)}
		}
		s = loaded
	}

	if levelOverride != "" {
		s.Log.Level = levelOverride
	}
	if formatOverride != "" {
		s.Log.Format = formatOverride
	}
	if err := s.Validate(); err != nil {
		return nil, &usageError{msg: fmt.Sprintf("配置无效: %v", err)}
	}
	return s, nil
}

// buildLogger 按配置构建日志器。
// 输出固定到 stderr，避免污染命令自身的 stdout 输出。
func buildLogger(s *xconf.Settings) (*slog.Logger, func() error, error) {
	return xlog.New().
		SetOutput(os.Stderr).
		SetLevelString(s.Log.Level).
		SetFormat(s.Log.Format).
		Build()
}

// openBacking 按配置的驱动构造后备存储，并在启用时套上重试装饰。
// DriverNone 返回 (nil, nil) 表示纯内存运行。
// 返回的存储由调用方负责 Close，各驱动的底层连接随之释放。
func openBacking(ctx context.Context, s *xconf.Settings, logger *slog.Logger) (xbacking.Store, error) {
	var store xbacking.Store

	switch s.Backing.Driver {
	case xconf.DriverNone:
		return nil, nil

	case xconf.DriverMemory:
		store = xbacking.NewMemory()

	case xconf.DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     s.Backing.Redis.Addr,
			Password: s.Backing.Redis.Password,
			DB:       s.Backing.Redis.DB,
		})
		redisStore, err := xredis.New(client)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		store = redisStore

	case xconf.DriverSQLite:
		sqliteStore, err := xsqlite.Open(ctx, s.Backing.SQLite.Path)
		if err != nil {
			return nil, err
		}
		store = sqliteStore

	case xconf.DriverMongo:
		client, err := mongo.Connect(options.Client().ApplyURI(s.Backing.Mongo.URI))
		if err != nil {
			return nil, fmt.Errorf("连接 MongoDB 失败: %w", err)
		}
		mongoStore, err := xmongo.New(client,
			xmongo.WithDatabase(s.Backing.Mongo.Database),
			xmongo.WithCollection(s.Backing.Mongo.Collection),
		)
		if err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		if err := mongoStore.EnsureIndexes(ctx); err != nil {
			_ = mongoStore.Close()
			return nil, fmt.Errorf("初始化 MongoDB 索引失败: %w", err)
		}
		store = mongoStore

	default:
		// Validate 已拦住未知驱动，此处仅兜底。
		return nil, fmt.Errorf("未知后备驱动: %s", s.Backing.Driver)
	}

	if s.Backing.Retry.Enabled {
		retrying, err := xbacking.NewRetrying(store,
			append(s.RetryOptions(), xbacking.WithRetryLogger(logger))...)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		store = retrying
	}
	return store, nil
}

// buildStore 组装与业务进程同构的混合缓存栈：
// 后备驱动、重试装饰、熔断闸门与键分类器。
// 返回的清理函数按依赖逆序关闭适配器与后备存储。
func buildStore(ctx context.Context, s *xconf.Settings, logger *slog.Logger) (xhybrid.Store, func(), error) {
	backing, err := openBacking(ctx, s, logger)
	if err != nil {
		return nil, nil, err
	}
	closeBacking := func() {
		if backing != nil {
			_ = backing.Close()
		}
	}

	opts := []xhybrid.Option{
		xhybrid.WithLogger(logger),
		xhybrid.WithClassifier(s.NewClassifier()),
		xhybrid.WithNamespace(s.Namespace),
		xhybrid.WithOpTimeout(s.Cache.OpTimeout),
		xhybrid.WithNegativeCache(s.Cache.NegativeTTL),
	}
	if s.Breaker.Enabled && backing != nil {
		breaker := xbreaker.NewPrefixBreaker()
		tripper, err := xbreaker.NewTripper(breaker, s.TripperOptions()...)
		if err != nil {
			closeBacking()
			return nil, nil, err
		}
		opts = append(opts, xhybrid.WithBreaker(breaker), xhybrid.WithTripper(tripper))
	}

	store, err := xhybrid.New(s.HybridConfig(s.ResolveMode(), backing), opts...)
	if err != nil {
		closeBacking()
		return nil, nil, err
	}

	cleanup := func() {
		_ = store.Close()
		closeBacking()
	}
	return store, cleanup, nil
}
