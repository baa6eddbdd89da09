package limiter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces every key written by RedisStore.
const DefaultKeyPrefix = "admission:"

// RedisStore implements SharedStore on go-redis. It works with a single node, sentinel
// or cluster client. Scripts are cached so repeated calls use EVALSHA.
type RedisStore struct {
	client    redis.UniversalClient // owned by the redis manager, never closed here
	keyPrefix string
	opTimeout time.Duration
	scripts   sync.Map // source -> *redis.Script
}

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithKeyPrefix replaces DefaultKeyPrefix.
func WithKeyPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) {
		s.keyPrefix = prefix
	}
}

// WithOpTimeout bounds every store call. Zero keeps only the client's own timeouts.
func WithOpTimeout(d time.Duration) RedisStoreOption {
	return func(s *RedisStore) {
		s.opTimeout = d
	}
}

// NewRedisStore creates a store over client.
func NewRedisStore(client redis.UniversalClient, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{client: client, keyPrefix: DefaultKeyPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) buildKey(key string) string {
	return s.keyPrefix + key
}

func (s *RedisStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

func (s *RedisStore) Set(ctx context.Context, key string, value int64, ttl time.Duration) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.client.Set(ctx, s.buildKey(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (int64, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	val, err := s.client.Get(ctx, s.buildKey(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, true, nil
}

func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	ttl, err := s.client.TTL(ctx, s.buildKey(key)).Result()
	if err != nil {
		return 0, false, fmt.Errorf("redis ttl %s: %w", key, err)
	}
	// -2: no key, -1: no expiry
	if ttl < 0 {
		return 0, false, nil
	}
	return ttl, true, nil
}

func (s *RedisStore) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	fullKeys := make([]string, len(keys))
	for i, key := range keys {
		fullKeys[i] = s.buildKey(key)
	}

	res, err := s.script(script).Run(ctx, s.client, fullKeys, args...).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis eval: %w", err)
	}
	return res, nil
}

func (s *RedisStore) script(src string) *redis.Script {
	if sc, ok := s.scripts.Load(src); ok {
		return sc.(*redis.Script)
	}
	sc, _ := s.scripts.LoadOrStore(src, redis.NewScript(src))
	return sc.(*redis.Script)
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.client.Ping(ctx).Err()
}
