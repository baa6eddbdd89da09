package limiter

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucketLimiter_Scenario(t *testing.T) {
	ctx := context.Background()
	l := NewTokenBucketLimiter(tokenBucketPolicy(2, time.Second), WithClock(newFakeClock().Now))

	first, _ := l.Allow(ctx, "u1")
	second, _ := l.Allow(ctx, "u1")
	third, _ := l.Allow(ctx, "u1")

	assert.True(t, first)
	assert.True(t, second)
	assert.False(t, third)
}

func TestTokenBucketLimiter_CapacityBoundAndRefill(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	// capacity 10, rate 5/s, starts with 5 tokens
	l := NewTokenBucketLimiter(tokenBucketPolicy(10, 2*time.Second), WithClock(clock.Now))

	l.Allow(ctx, "k")
	clock.Advance(5 * time.Second)

	admitted := 0
	for i := 0; i < 30; i++ {
		if ok, _ := l.Allow(ctx, "k"); ok {
			admitted++
		}
	}
	assert.Equal(t, 10, admitted, "never more than capacity without elapsed time")

	retry, err := l.RetryAfterSeconds(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 1, retry)

	clock.Advance(time.Duration(retry) * time.Second)
	ok, _ := l.Allow(ctx, "k")
	assert.True(t, ok)
}

func TestTokenBucketLimiter_CurrentCount(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	l := NewTokenBucketLimiter(tokenBucketPolicy(4, time.Second), WithClock(clock.Now))

	count, _ := l.CurrentCount(ctx, "k")
	assert.Equal(t, 0, count, "unknown key")
	assert.Equal(t, 0, l.Keys())

	l.Allow(ctx, "k")
	count, _ = l.CurrentCount(ctx, "k")
	assert.Equal(t, 3, count)

	retry, _ := l.RetryAfterSeconds(ctx, "k")
	assert.Equal(t, 0, retry)
}

func TestTokenBucketLimiter_UnknownKeyRetryAfter(t *testing.T) {
	l := NewTokenBucketLimiter(tokenBucketPolicy(4, time.Second))
	retry, err := l.RetryAfterSeconds(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Equal(t, 0, retry)
}

func TestTokenBucketLimiter_PerKeyCapacity(t *testing.T) {
	ctx := context.Background()
	p := tokenBucketPolicy(1, time.Second)
	p.Limits = map[string]int{"vip": 3}
	l := NewTokenBucketLimiter(p, WithClock(newFakeClock().Now))

	admitted := 0
	for i := 0; i < 5; i++ {
		if ok, _ := l.Allow(ctx, "vip"); ok {
			admitted++
		}
	}
	assert.Equal(t, 3, admitted)
}

func TestTokenBucketLimiter_ConcurrentSameKey(t *testing.T) {
	ctx := context.Background()
	l := NewTokenBucketLimiter(tokenBucketPolicy(20, time.Second), WithClock(newFakeClock().Now))

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := l.Allow(ctx, "shared"); ok {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(20), admitted.Load())
}
