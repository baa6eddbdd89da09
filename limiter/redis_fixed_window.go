package limiter

import (
	"context"
	"math"

	"github.com/KOMKZ/go-yogan-admission/logger"
	"go.uber.org/zap"
)

// RedisFixedWindowLimiter keeps one counter per key in the shared store. The counter
// expires one window after its first increment.
type RedisFixedWindowLimiter struct {
	store     SharedStore
	policy    Policy
	namespace string
	logger    logger.CtxLogger
}

// NewRedisFixedWindowLimiter creates a distributed fixed-window limiter over store.
func NewRedisFixedWindowLimiter(store SharedStore, policy Policy, opts ...Option) *RedisFixedWindowLimiter {
	o := newOptions(opts)
	return &RedisFixedWindowLimiter{
		store:     store,
		policy:    policy,
		namespace: o.namespace,
		logger:    o.log(),
	}
}

// Allow denies when the store cannot be reached.
func (l *RedisFixedWindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	res, err := l.store.Eval(ctx, fixedWindowScript, []string{l.storeKey(key)}, l.policy.WindowSeconds())
	if err != nil {
		return l.failClosed(ctx, key, err), nil
	}
	count, err := scriptInt(res)
	if err != nil {
		return l.failClosed(ctx, key, err), nil
	}
	return count <= int64(l.policy.LimitFor(key)), nil
}

// CurrentCount is the number of hits in the current window, including denied ones.
func (l *RedisFixedWindowLimiter) CurrentCount(ctx context.Context, key string) (int, error) {
	count, _, err := l.store.Get(ctx, l.storeKey(key))
	if err != nil {
		return 0, storeError(err)
	}
	return int(count), nil
}

// RetryAfterSeconds is the counter's remaining TTL once the limit is reached.
func (l *RedisFixedWindowLimiter) RetryAfterSeconds(ctx context.Context, key string) (int, error) {
	storeKey := l.storeKey(key)

	count, found, err := l.store.Get(ctx, storeKey)
	if err != nil {
		return 0, storeError(err)
	}
	if !found || count < int64(l.policy.LimitFor(key)) {
		return 0, nil
	}

	ttl, found, err := l.store.TTL(ctx, storeKey)
	if err != nil {
		return 0, storeError(err)
	}
	if !found {
		return 0, nil
	}
	secs := int(math.Ceil(ttl.Seconds()))
	return min(max(secs, 0), l.policy.WindowSeconds()), nil
}

func (l *RedisFixedWindowLimiter) storeKey(key string) string {
	return namespacedKey(l.namespace, key)
}

func (l *RedisFixedWindowLimiter) failClosed(ctx context.Context, key string, err error) bool {
	l.logger.WarnCtx(ctx, "shared store call failed, denying request",
		zap.String("strategy", string(StrategyFixedWindow)),
		zap.String("key", key),
		zap.Error(err),
	)
	return false
}
