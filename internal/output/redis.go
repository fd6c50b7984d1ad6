package output

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"
	maintnotifications "github.com/redis/go-redis/v9/maintnotifications"

	"github.com/mohammed-shakir/vector-scene-tiler/internal/core/observability"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/scene"
)

type Option func(*redis.Options)

func WithPoolSize(n int) Option {
	return func(o *redis.Options) { o.PoolSize = n }
}

func WithDialTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.DialTimeout = d }
}

func WithReadTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.ReadTimeout = d }
}

func WithWriteTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.WriteTimeout = d }
}

// RedisArchive stores encoded objects in Redis under namespaced keys.
type RedisArchive struct {
	rdb *redis.Client
	ns  string
	ttl time.Duration
}

// NewRedisArchive connects and pings addr. A zero ttl keeps objects forever.
func NewRedisArchive(ctx context.Context, addr, namespace string, ttl time.Duration, opts ...Option) (*RedisArchive, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}
	ro := &redis.Options{
		Addr:         addr,
		PoolSize:     16,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
		MaintNotificationsConfig: &maintnotifications.Config{
			Mode: maintnotifications.ModeDisabled,
		},
	}
	for _, f := range opts {
		f(ro)
	}
	rdb := redis.NewClient(ro)

	start := time.Now()
	err := rdb.Ping(ctx).Err()
	observability.ObserveArchiveOp("ping", err, time.Since(start).Seconds())
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if namespace == "" {
		namespace = "scene"
	}
	return &RedisArchive{rdb: rdb, ns: sanitize(namespace), ttl: ttl}, nil
}

func (a *RedisArchive) Ready(ctx context.Context) error {
	start := time.Now()
	err := a.rdb.Ping(ctx).Err()
	observability.ObserveArchiveOp("ping", err, time.Since(start).Seconds())
	return err
}

// Key is the Redis key holding path.
func (a *RedisArchive) Key(path string) string {
	return fmt.Sprintf("%s:%s:h=%016x", a.ns, sanitize(path), xxhash.Sum64String(path))
}

func (a *RedisArchive) Write(ctx context.Context, path string, obj scene.Object) (err error) {
	defer func() { observability.IncContentWrite(obj.Kind(), err) }()
	b, err := scene.Marshal(obj)
	if err != nil {
		return fmt.Errorf("output: encode %s: %w", path, err)
	}
	start := time.Now()
	err = a.rdb.Set(ctx, a.Key(path), b, a.ttl).Err()
	observability.ObserveArchiveOp("set", err, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("redis SET %q: %w", path, err)
	}
	return nil
}

func (a *RedisArchive) Exists(ctx context.Context, path string) (bool, error) {
	start := time.Now()
	n, err := a.rdb.Exists(ctx, a.Key(path)).Result()
	observability.ObserveArchiveOp("exists", err, time.Since(start).Seconds())
	if err != nil {
		return false, fmt.Errorf("redis EXISTS %q: %w", path, err)
	}
	return n == 1, nil
}

func (a *RedisArchive) Read(ctx context.Context, path string) ([]byte, error) {
	start := time.Now()
	b, err := a.rdb.Get(ctx, a.Key(path)).Bytes()
	if errors.Is(err, redis.Nil) {
		observability.ObserveArchiveOp("get", nil, time.Since(start).Seconds())
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	observability.ObserveArchiveOp("get", err, time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("redis GET %q: %w", path, err)
	}
	return b, nil
}

// Delete removes paths; missing ones are ignored.
func (a *RedisArchive) Delete(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	keys := make([]string, len(paths))
	for i, p := range paths {
		keys[i] = a.Key(p)
	}
	start := time.Now()
	err := a.rdb.Del(ctx, keys...).Err()
	observability.ObserveArchiveOp("del", err, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("redis DEL %d keys: %w", len(keys), err)
	}
	return nil
}

func (a *RedisArchive) Close() error {
	if err := a.rdb.Close(); err != nil {
		return fmt.Errorf("redis close: %w", err)
	}
	return nil
}
