package limiter

import (
	"context"
	"time"
)

// FixedWindowLimiter counts admissions per key in process memory. The window of a key
// starts at its first request and restarts on the first access after it elapses.
type FixedWindowLimiter struct {
	policy   Policy
	now      func() time.Time
	counters keyedMap[*windowCounter]
}

// NewFixedWindowLimiter creates a local fixed-window limiter. The policy is not validated
// here; use Factory.GetOrCreate for validated construction.
func NewFixedWindowLimiter(policy Policy, opts ...Option) *FixedWindowLimiter {
	o := newOptions(opts)
	return &FixedWindowLimiter{policy: policy, now: o.now}
}

// Allow never returns an error.
func (l *FixedWindowLimiter) Allow(_ context.Context, key string) (bool, error) {
	counter := l.counters.LoadOrCreate(key, func() *windowCounter {
		return newWindowCounter(l.policy.WindowSize, l.now)
	})
	return counter.tryIncrement(l.policy.LimitFor(key)), nil
}

// CurrentCount is 0 for a key never admitted.
func (l *FixedWindowLimiter) CurrentCount(_ context.Context, key string) (int, error) {
	counter, ok := l.counters.Load(key)
	if !ok {
		return 0, nil
	}
	return counter.currentCount(), nil
}

// RetryAfterSeconds is 0 for an unknown key or while the window has room.
func (l *FixedWindowLimiter) RetryAfterSeconds(_ context.Context, key string) (int, error) {
	counter, ok := l.counters.Load(key)
	if !ok {
		return 0, nil
	}
	return counter.retryAfterIfFull(l.policy.LimitFor(key)), nil
}

// Keys returns the number of keys with state.
func (l *FixedWindowLimiter) Keys() int {
	return l.counters.Len()
}
