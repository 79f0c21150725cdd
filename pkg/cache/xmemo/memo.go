package xmemo

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/omeyang/cachekit/pkg/cache/xhybrid"
)

// DefaultCallTimeout 收拢后实际调用的默认超时。
// 航班脱离了所有调用方的取消链，没有超时就可能泄漏 goroutine。
const DefaultCallTimeout = 30 * time.Second

// =============================================================================
// 依赖接口
// =============================================================================

// Target 定义记忆层需要的最小缓存表面，xhybrid.Store 直接满足。
type Target interface {
	Get(ctx context.Context, key string, opts ...xhybrid.ReadOption) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, opts ...xhybrid.WriteOption)
}

// Codec 负责结果值的编解码。默认实现为 encoding/json；
// 替换 Codec 只影响结果的存储格式，记忆键的参数哈希始终走 JSON。
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// =============================================================================
// 配置选项
// =============================================================================

// Options 汇总 Memoize 的可配置项。
type Options struct {
	// KeyPrefix 记忆键前缀，必填。
	KeyPrefix string

	// TTL 记忆条目的存活时长，零值时由缓存按键分类取默认。
	TTL time.Duration

	// Weight 记忆条目的显式权重，零值时缓存按编码后的字节数计。
	Weight int64

	// ForcePersist 无视键分类，强制写入后备存储。
	ForcePersist bool

	// StaleFallback 函数失败时允许回退的陈旧结果最大年龄，零值关闭。
	StaleFallback time.Duration

	// Singleflight 是否收拢同一键的并发调用，默认开启。
	Singleflight bool

	// CallTimeout 收拢后实际调用的超时，默认 DefaultCallTimeout，
	// 0 表示不限时。未收拢的直接调用跟随调用方 ctx，不受此限。
	CallTimeout time.Duration

	// Codec 结果编解码器，默认 JSON。
	Codec Codec

	// Logger 记录降级告警，默认 slog.Default()。
	Logger *slog.Logger
}

// Option 定义配置 Memoize 的函数类型。
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		Singleflight: true,
		CallTimeout:  DefaultCallTimeout,
		Codec:        jsonCodec{},
		Logger:       slog.Default(),
	}
}

// WithKeyPrefix 设置记忆键前缀，前后空白会被剔除。
func WithKeyPrefix(prefix string) Option {
	return func(o *Options) {
		o.KeyPrefix = strings.TrimSpace(prefix)
	}
}

// WithTTL 设置记忆条目的存活时长，非正值被忽略。
func WithTTL(ttl time.Duration) Option {
	return func(o *Options) {
		if ttl > 0 {
			o.TTL = ttl
		}
	}
}

// WithWeight 设置记忆条目的显式权重，非正值被忽略。
func WithWeight(weight int64) Option {
	return func(o *Options) {
		if weight > 0 {
			o.Weight = weight
		}
	}
}

// WithForcePersist 强制记忆条目写入后备存储。
func WithForcePersist() Option {
	return func(o *Options) {
		o.ForcePersist = true
	}
}

// WithStaleFallback 允许在函数失败时回退到不超过 maxAge 的陈旧结果，
// 实际可回退的年龄还受缓存自身 StaleGrace 约束。非正值被忽略。
func WithStaleFallback(maxAge time.Duration) Option {
	return func(o *Options) {
		if maxAge > 0 {
			o.StaleFallback = maxAge
		}
	}
}

// WithSingleflight 设置是否收拢同一键的并发调用。
func WithSingleflight(enable bool) Option {
	return func(o *Options) {
		o.Singleflight = enable
	}
}

// WithCallTimeout 设置收拢后实际调用的超时，0 禁用超时，负值被忽略。
func WithCallTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d >= 0 {
			o.CallTimeout = d
		}
	}
}

// WithCodec 设置结果编解码器，nil 被忽略。
func WithCodec(codec Codec) Option {
	return func(o *Options) {
		if codec != nil {
			o.Codec = codec
		}
	}
}

// WithLogger 设置自定义 Logger，nil 被忽略。
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// =============================================================================
// Memoize
// =============================================================================

// Memoize 把 fn 包装成带缓存记忆的版本。
//
// 包装后的函数按 Key(prefix, arg) 查缓存，未命中时调用 fn，把成功
// 结果编码后写回缓存并返回。fn 的错误原样透出、永不缓存；缓存层的
// 任何故障只退化为多调一次 fn。
//
// store 与 fn 不能为 nil，键前缀必填，否则返回对应的哨兵错误。
//
// 示例：
//
//	lookup, err := xmemo.Memoize(store, fetchProfile,
//	    xmemo.WithKeyPrefix("profile:"),
//	    xmemo.WithTTL(10*time.Minute),
//	)
//	profile, err := lookup(ctx, userID)
func Memoize[A, R any](store Target, fn func(context.Context, A) (R, error), opts ...Option) (func(context.Context, A) (R, error), error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if fn == nil {
		return nil, ErrNilFunc
	}

	options := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}
	if options.KeyPrefix == "" {
		return nil, ErrEmptyKeyPrefix
	}

	m := &memoizer[A, R]{
		store:     store,
		fn:        fn,
		opts:      options,
		writeOpts: buildWriteOpts(options),
	}
	return m.call, nil
}

func buildWriteOpts(o *Options) []xhybrid.WriteOption {
	opts := make([]xhybrid.WriteOption, 0, 3)
	if o.TTL > 0 {
		opts = append(opts, xhybrid.WithTTL(o.TTL))
	}
	if o.Weight > 0 {
		opts = append(opts, xhybrid.WithWeight(o.Weight))
	}
	if o.ForcePersist {
		opts = append(opts, xhybrid.WithForcePersist())
	}
	return opts
}

// =============================================================================
// 调用路径
// =============================================================================

type memoizer[A, R any] struct {
	store     Target
	fn        func(context.Context, A) (R, error)
	opts      *Options
	writeOpts []xhybrid.WriteOption
	group     singleflight.Group
}

func (m *memoizer[A, R]) call(ctx context.Context, arg A) (R, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	key, err := Key(m.opts.KeyPrefix, arg)
	if err != nil {
		// 参数不可序列化，无从记忆，整个调用退化为透传。
		m.opts.Logger.Warn("xmemo: argument not serializable, bypassing cache",
			"prefix", m.opts.KeyPrefix, "error", err)
		return m.fn(ctx, arg)
	}

	if out, ok := m.lookup(ctx, key); ok {
		return out, nil
	}

	out, err := m.compute(ctx, key, arg)
	if err != nil {
		// 调用方自身的取消不走陈旧回退。
		if ctx.Err() == nil {
			if stale, ok := m.staleLookup(ctx, key, err); ok {
				return stale, nil
			}
		}
		var zero R
		return zero, err
	}

	m.remember(ctx, key, out)
	return out, nil
}

// lookup 查缓存并解码，解码失败按未命中处理。
func (m *memoizer[A, R]) lookup(ctx context.Context, key string, opts ...xhybrid.ReadOption) (R, bool) {
	var out R
	data, ok := m.store.Get(ctx, key, opts...)
	if !ok {
		return out, false
	}
	if err := m.opts.Codec.Unmarshal(data, &out); err != nil {
		m.opts.Logger.Warn("xmemo: cached result undecodable, recomputing",
			"key", key, "error", err)
		var zero R
		return zero, false
	}
	return out, true
}

func (m *memoizer[A, R]) staleLookup(ctx context.Context, key string, cause error) (R, bool) {
	if m.opts.StaleFallback <= 0 {
		var zero R
		return zero, false
	}
	out, ok := m.lookup(ctx, key, xhybrid.WithStale(m.opts.StaleFallback))
	if ok {
		m.opts.Logger.Warn("xmemo: serving stale result after failure",
			"key", key, "error", cause)
	}
	return out, ok
}

// compute 执行一次实际调用，开启 singleflight 时收拢同键并发。
// 航班在脱离调用方取消链的独立超时内执行，结果对所有等待者共享；
// 等待者各按自己的 ctx 放弃，放弃不影响航班。
func (m *memoizer[A, R]) compute(ctx context.Context, key string, arg A) (R, error) {
	if !m.opts.Singleflight {
		return m.fn(ctx, arg)
	}

	ch := m.group.DoChan(key, func() (any, error) {
		callCtx := detach(ctx)
		if m.opts.CallTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(callCtx, m.opts.CallTimeout)
			defer cancel()
		}
		return m.fn(callCtx, arg)
	})

	var zero R
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		out, _ := res.Val.(R)
		return out, nil
	}
}

// remember 编码并写回结果，编码失败只告警不影响返回。
func (m *memoizer[A, R]) remember(ctx context.Context, key string, out R) {
	payload, err := m.opts.Codec.Marshal(out)
	if err != nil {
		m.opts.Logger.Warn("xmemo: result not serializable, skipping cache",
			"key", key, "error", err)
		return
	}
	m.store.Set(ctx, key, payload, m.writeOpts...)
}

// detachedCtx 保留原 context 的 Value，但不继承其取消信号与截止时间。
type detachedCtx struct {
	context.Context
}

func (detachedCtx) Deadline() (time.Time, bool) { return time.Time{}, false }
func (detachedCtx) Done() <-chan struct{}       { return nil }
func (detachedCtx) Err() error                  { return nil }

func detach(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return detachedCtx{Context: ctx}
}
