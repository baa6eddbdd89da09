package limiter

import (
	"context"
	"time"
)

// TokenBucketLimiter keeps one bucket per key in process memory. Capacity is the key's
// limit and the refill rate is limit/window tokens per second.
type TokenBucketLimiter struct {
	policy  Policy
	now     func() time.Time
	buckets keyedMap[*tokenBucket]
}

// NewTokenBucketLimiter creates a local token-bucket limiter.
func NewTokenBucketLimiter(policy Policy, opts ...Option) *TokenBucketLimiter {
	o := newOptions(opts)
	return &TokenBucketLimiter{policy: policy, now: o.now}
}

func (l *TokenBucketLimiter) Allow(_ context.Context, key string) (bool, error) {
	bucket := l.buckets.LoadOrCreate(key, func() *tokenBucket {
		capacity := l.policy.LimitFor(key)
		return newTokenBucket(capacity, l.policy.RefillRate(capacity), l.now)
	})
	return bucket.tryConsume(), nil
}

// CurrentCount is the number of available tokens, 0 for a key never seen.
func (l *TokenBucketLimiter) CurrentCount(_ context.Context, key string) (int, error) {
	bucket, ok := l.buckets.Load(key)
	if !ok {
		return 0, nil
	}
	return bucket.currentCount(), nil
}

func (l *TokenBucketLimiter) RetryAfterSeconds(_ context.Context, key string) (int, error) {
	bucket, ok := l.buckets.Load(key)
	if !ok {
		return 0, nil
	}
	return bucket.retryAfterSeconds(), nil
}

// Keys returns the number of keys with state.
func (l *TokenBucketLimiter) Keys() int {
	return l.buckets.Len()
}
