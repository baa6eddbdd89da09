package limiter

import (
	"context"
	"time"

	"github.com/KOMKZ/go-yogan-admission/logger"
	"go.uber.org/zap"
)

// RedisTokenBucketLimiter stores each bucket as two keys, "<key>:token_count" and
// "<key>:last_refill_ts", refreshed with a one-window TTL on every consume.
// Timestamps are unix seconds taken from the caller's clock.
type RedisTokenBucketLimiter struct {
	store     SharedStore
	policy    Policy
	namespace string
	now       func() time.Time
	logger    logger.CtxLogger
}

// NewRedisTokenBucketLimiter creates a distributed token-bucket limiter over store.
func NewRedisTokenBucketLimiter(store SharedStore, policy Policy, opts ...Option) *RedisTokenBucketLimiter {
	o := newOptions(opts)
	return &RedisTokenBucketLimiter{
		store:     store,
		policy:    policy,
		namespace: o.namespace,
		now:       o.now,
		logger:    o.log(),
	}
}

// Allow denies when the store cannot be reached.
func (l *RedisTokenBucketLimiter) Allow(ctx context.Context, key string) (bool, error) {
	res, err := l.eval(ctx, tokenBucketConsumeScript, key, l.policy.WindowSeconds())
	if err != nil {
		return l.failClosed(ctx, key, err), nil
	}
	allowed, err := scriptInt(res)
	if err != nil {
		return l.failClosed(ctx, key, err), nil
	}
	return allowed == 1, nil
}

// CurrentCount is the refilled token count. A bucket not yet in the store reports capacity.
func (l *RedisTokenBucketLimiter) CurrentCount(ctx context.Context, key string) (int, error) {
	res, err := l.eval(ctx, tokenBucketPeekScript, key)
	if err != nil {
		return 0, storeError(err)
	}
	tokens, err := scriptInt(res)
	if err != nil {
		return 0, err
	}
	return int(tokens), nil
}

// RetryAfterSeconds is an estimate: 0 when a token is available, else ceil(1/rate).
func (l *RedisTokenBucketLimiter) RetryAfterSeconds(ctx context.Context, key string) (int, error) {
	res, err := l.eval(ctx, tokenBucketRetryScript, key)
	if err != nil {
		return 0, storeError(err)
	}
	secs, err := scriptInt(res)
	if err != nil {
		return 0, err
	}
	return int(secs), nil
}

// eval runs script with ARGV capacity, rate, now followed by extra.
func (l *RedisTokenBucketLimiter) eval(ctx context.Context, script, key string, extra ...interface{}) (interface{}, error) {
	capacity := l.policy.LimitFor(key)
	base := namespacedKey(l.namespace, key)
	keys := []string{base + ":token_count", base + ":last_refill_ts"}

	args := append([]interface{}{capacity, l.policy.RefillRate(capacity), l.now().Unix()}, extra...)
	return l.store.Eval(ctx, script, keys, args...)
}

func (l *RedisTokenBucketLimiter) failClosed(ctx context.Context, key string, err error) bool {
	l.logger.WarnCtx(ctx, "shared store call failed, denying request",
		zap.String("strategy", string(StrategyTokenBucket)),
		zap.String("key", key),
		zap.Error(err),
	)
	return false
}

// storeError marks err as a transient store failure unless it already is one.
func storeError(err error) error {
	if IsTransientStoreError(err) {
		return err
	}
	return ErrStoreUnavailable.Wrap(err)
}

func namespacedKey(namespace, key string) string {
	if namespace == "" {
		return key
	}
	return namespace + ":" + key
}
