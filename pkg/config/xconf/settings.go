package xconf

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/omeyang/cachekit/pkg/cache/xhybrid"
	"github.com/omeyang/cachekit/pkg/context/xmode"
	"github.com/omeyang/cachekit/pkg/resilience/xbreaker"
	"github.com/omeyang/cachekit/pkg/storage/xbacking"
)

// DefaultCleanupInterval 过期清扫的默认周期。
const DefaultCleanupInterval = 5 * time.Minute

// Driver 标识后备存储驱动。
type Driver string

// 支持的后备存储驱动。
const (
	// DriverNone 不挂后备存储，纯内存缓存。
	DriverNone Driver = "none"

	// DriverMemory 进程内后备存储，开发与测试用。
	DriverMemory Driver = "memory"

	// DriverRedis Redis 后备存储。
	DriverRedis Driver = "redis"

	// DriverSQLite 单文件 SQLite 后备存储。
	DriverSQLite Driver = "sqlite"

	// DriverMongo MongoDB 后备存储。
	DriverMongo Driver = "mongo"
)

// ParseDriver 解析驱动名，大小写不敏感。
func ParseDriver(s string) (Driver, error) {
	switch Driver(strings.ToLower(strings.TrimSpace(s))) {
	case DriverNone:
		return DriverNone, nil
	case DriverMemory:
		return DriverMemory, nil
	case DriverRedis:
		return DriverRedis, nil
	case DriverSQLite:
		return DriverSQLite, nil
	case DriverMongo:
		return DriverMongo, nil
	default:
		return "", fmt.Errorf("%w: unknown backing driver %q", ErrInvalidSettings, s)
	}
}

// =============================================================================
// Settings 模式
// =============================================================================

// Settings 是缓存子系统的完整配置模式。
// 零值经 withDefaults 填充后即可用；Load/LoadBytes 返回的实例
// 已补默认并通过校验。
type Settings struct {
	// Mode 执行模式覆写（"longrunning"/"ephemeral" 等别名），
	// 空字符串表示按环境自动探测。
	Mode string `koanf:"mode"`

	// Namespace 适配器键前缀，空表示不隔离。
	Namespace string `koanf:"namespace"`

	Cache      CacheSettings      `koanf:"cache"`
	Classifier ClassifierSettings `koanf:"classifier"`
	Breaker    BreakerSettings    `koanf:"breaker"`
	Backing    BackingSettings    `koanf:"backing"`
	Janitor    JanitorSettings    `koanf:"janitor"`
	Log        LogSettings        `koanf:"log"`
}

// CacheSettings 配置内存层与混合适配器。
type CacheSettings struct {
	// Capacity 内存层最大条目数。
	Capacity int `koanf:"capacity"`

	// MaxWeight 内存层总权重预算，0 表示不限制。
	MaxWeight int64 `koanf:"max_weight"`

	// PersistentTTL 持久键的默认存活时长。
	PersistentTTL time.Duration `koanf:"persistent_ttl"`

	// EphemeralTTL 短暂键的默认存活时长。
	EphemeralTTL time.Duration `koanf:"ephemeral_ttl"`

	// StaleGrace 软过期后的保留窗口。
	StaleGrace time.Duration `koanf:"stale_grace"`

	// NegativeTTL 未命中墓碑的存活时长，0 表示关闭负缓存。
	NegativeTTL time.Duration `koanf:"negative_ttl"`

	// OpTimeout 单次后备操作的超时。
	OpTimeout time.Duration `koanf:"op_timeout"`
}

// ClassifierSettings 配置持久键判定规则。
type ClassifierSettings struct {
	// Patterns 持久键的子串模式，空列表落回默认集。
	Patterns []string `koanf:"patterns"`

	// TokenLengths 不透明令牌的长度集合，空列表落回默认集。
	TokenLengths []int `koanf:"token_lengths"`
}

// BreakerSettings 配置后备访问的熔断。
type BreakerSettings struct {
	// Enabled 是否启用熔断，缺省开启。
	Enabled bool `koanf:"enabled"`

	// TripThreshold 连续失败熔断阈值。
	TripThreshold uint32 `koanf:"trip_threshold"`

	// Cooldown 熔断后的拒绝窗口时长。
	Cooldown time.Duration `koanf:"cooldown"`
}

// BackingSettings 配置后备存储驱动及其连接参数。
type BackingSettings struct {
	// Driver 驱动选择：none、memory、redis、sqlite 或 mongo。
	Driver Driver `koanf:"driver"`

	Redis  RedisSettings  `koanf:"redis"`
	SQLite SQLiteSettings `koanf:"sqlite"`
	Mongo  MongoSettings  `koanf:"mongo"`
	Retry  RetrySettings  `koanf:"retry"`
}

// RedisSettings Redis 连接参数。
type RedisSettings struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// SQLiteSettings SQLite 数据库参数。
type SQLiteSettings struct {
	// Path 数据库文件路径，选用 sqlite 驱动时必填。
	Path string `koanf:"path"`
}

// MongoSettings MongoDB 连接参数。
type MongoSettings struct {
	URI        string `koanf:"uri"`
	Database   string `koanf:"database"`
	Collection string `koanf:"collection"`
}

// RetrySettings 配置后备存储的重试装饰。
type RetrySettings struct {
	// Enabled 是否启用重试装饰，缺省开启。
	Enabled bool `koanf:"enabled"`

	// Attempts 总尝试次数，含首次。
	Attempts uint `koanf:"attempts"`

	// Delay 重试基础延迟。
	Delay time.Duration `koanf:"delay"`
}

// JanitorSettings 配置过期清扫调度。
type JanitorSettings struct {
	// Schedule cron 表达式（秒级精度），非空时优先于 Interval。
	Schedule string `koanf:"schedule"`

	// Interval 固定周期清扫间隔。
	Interval time.Duration `koanf:"interval"`
}

// LogSettings 配置日志输出。
type LogSettings struct {
	// Level 日志级别：debug、info、warn 或 error。
	Level string `koanf:"level"`

	// Format 输出格式：text 或 json。
	Format string `koanf:"format"`
}

// =============================================================================
// 默认值
// =============================================================================

// Default 返回填满默认值的配置。
func Default() *Settings {
	s := &Settings{}
	s.Breaker.Enabled = true
	s.Backing.Retry.Enabled = true
	s.withDefaults()
	return s
}

// withDefaults 把零值字段补成默认值。
// 不动布尔字段，也不动 0 自有含义的 MaxWeight 与 NegativeTTL。
func (s *Settings) withDefaults() {
	if s.Cache.Capacity == 0 {
		s.Cache.Capacity = xhybrid.DefaultCapacity
	}
	if s.Cache.PersistentTTL == 0 {
		s.Cache.PersistentTTL = xhybrid.DefaultPersistentTTL
	}
	if s.Cache.EphemeralTTL == 0 {
		s.Cache.EphemeralTTL = xhybrid.DefaultEphemeralTTL
	}
	if s.Cache.StaleGrace == 0 {
		s.Cache.StaleGrace = xhybrid.DefaultStaleGrace
	}
	if s.Cache.OpTimeout == 0 {
		s.Cache.OpTimeout = xhybrid.DefaultOpTimeout
	}

	if len(s.Classifier.Patterns) == 0 {
		s.Classifier.Patterns = slices.Clone(xhybrid.DefaultPatterns)
	}
	if len(s.Classifier.TokenLengths) == 0 {
		s.Classifier.TokenLengths = slices.Clone(xhybrid.DefaultTokenLengths)
	}

	if s.Breaker.TripThreshold == 0 {
		s.Breaker.TripThreshold = xbreaker.DefaultTripThreshold
	}
	if s.Breaker.Cooldown == 0 {
		s.Breaker.Cooldown = xbreaker.DefaultCooldown
	}

	if s.Backing.Driver == "" {
		s.Backing.Driver = DriverMemory
	}
	if s.Backing.Redis.Addr == "" {
		s.Backing.Redis.Addr = "127.0.0.1:6379"
	}
	if s.Backing.Mongo.URI == "" {
		s.Backing.Mongo.URI = "mongodb://127.0.0.1:27017"
	}
	if s.Backing.Mongo.Database == "" {
		s.Backing.Mongo.Database = "cachekit"
	}
	if s.Backing.Mongo.Collection == "" {
		s.Backing.Mongo.Collection = "cache_records"
	}
	if s.Backing.Retry.Attempts == 0 {
		s.Backing.Retry.Attempts = xbacking.DefaultRetryAttempts
	}
	if s.Backing.Retry.Delay == 0 {
		s.Backing.Retry.Delay = xbacking.DefaultRetryDelay
	}

	if s.Janitor.Interval == 0 {
		s.Janitor.Interval = DefaultCleanupInterval
	}

	if s.Log.Level == "" {
		s.Log.Level = "info"
	}
	if s.Log.Format == "" {
		s.Log.Format = "text"
	}
}

// =============================================================================
// 校验
// =============================================================================

// Validate 对配置做 fail-fast 校验，错误均可用 errors.Is 匹配
// ErrInvalidSettings。应在 withDefaults 之后调用；Load/LoadBytes
// 返回的实例已通过校验。
func (s *Settings) Validate() error {
	if strings.TrimSpace(s.Mode) != "" {
		if _, err := xmode.Parse(s.Mode); err != nil {
			return fmt.Errorf("%w: mode: %v", ErrInvalidSettings, err)
		}
	}

	if s.Cache.Capacity <= 0 {
		return fmt.Errorf("%w: cache.capacity must be positive, got %d", ErrInvalidSettings, s.Cache.Capacity)
	}
	if s.Cache.MaxWeight < 0 {
		return fmt.Errorf("%w: cache.max_weight must not be negative, got %d", ErrInvalidSettings, s.Cache.MaxWeight)
	}
	for name, d := range map[string]time.Duration{
		"cache.persistent_ttl": s.Cache.PersistentTTL,
		"cache.ephemeral_ttl":  s.Cache.EphemeralTTL,
		"cache.stale_grace":    s.Cache.StaleGrace,
		"cache.negative_ttl":   s.Cache.NegativeTTL,
		"cache.op_timeout":     s.Cache.OpTimeout,
		"breaker.cooldown":     s.Breaker.Cooldown,
		"backing.retry.delay":  s.Backing.Retry.Delay,
	} {
		if d < 0 {
			return fmt.Errorf("%w: %s must not be negative, got %s", ErrInvalidSettings, name, d)
		}
	}

	for _, n := range s.Classifier.TokenLengths {
		if n <= 0 {
			return fmt.Errorf("%w: classifier.token_lengths entries must be positive, got %d", ErrInvalidSettings, n)
		}
	}

	driver, err := ParseDriver(string(s.Backing.Driver))
	if err != nil {
		return err
	}
	if driver == DriverSQLite && strings.TrimSpace(s.Backing.SQLite.Path) == "" {
		return fmt.Errorf("%w: backing.sqlite.path is required for the sqlite driver", ErrInvalidSettings)
	}
	if driver == DriverRedis && strings.TrimSpace(s.Backing.Redis.Addr) == "" {
		return fmt.Errorf("%w: backing.redis.addr is required for the redis driver", ErrInvalidSettings)
	}
	if driver == DriverMongo {
		if strings.TrimSpace(s.Backing.Mongo.URI) == "" {
			return fmt.Errorf("%w: backing.mongo.uri is required for the mongo driver", ErrInvalidSettings)
		}
		if strings.TrimSpace(s.Backing.Mongo.Database) == "" || strings.TrimSpace(s.Backing.Mongo.Collection) == "" {
			return fmt.Errorf("%w: backing.mongo.database and backing.mongo.collection are required for the mongo driver", ErrInvalidSettings)
		}
	}

	if s.Janitor.Interval <= 0 {
		return fmt.Errorf("%w: janitor.interval must be positive, got %s", ErrInvalidSettings, s.Janitor.Interval)
	}

	switch strings.ToLower(s.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log.level must be one of debug/info/warn/error, got %q", ErrInvalidSettings, s.Log.Level)
	}
	switch strings.ToLower(s.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log.format must be text or json, got %q", ErrInvalidSettings, s.Log.Format)
	}

	return nil
}
