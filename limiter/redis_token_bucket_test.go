package limiter

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/KOMKZ/go-yogan-admission/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisTokenBucketLimiter_Scenario(t *testing.T) {
	_, store := setupMiniRedis(t)
	ctx := context.Background()
	clock := newFakeClock()
	l := NewRedisTokenBucketLimiter(store, tokenBucketPolicy(2, time.Second), testOpts(clock, logger.NewTestCtxLogger())...)

	first, err := l.Allow(ctx, "u1")
	require.NoError(t, err)
	second, _ := l.Allow(ctx, "u1")
	third, _ := l.Allow(ctx, "u1")

	assert.True(t, first)
	assert.True(t, second)
	assert.False(t, third)

	retry, err := l.RetryAfterSeconds(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, retry)

	clock.Advance(time.Second)

	count, err := l.CurrentCount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	allowed, _ := l.Allow(ctx, "u1")
	assert.True(t, allowed, "refilled")
}

func TestRedisTokenBucketLimiter_AbsentBucket(t *testing.T) {
	mr, store := setupMiniRedis(t)
	ctx := context.Background()
	l := NewRedisTokenBucketLimiter(store, tokenBucketPolicy(5, time.Second), testOpts(newFakeClock(), logger.NewTestCtxLogger())...)

	count, err := l.CurrentCount(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, 5, count, "an unseen bucket is full")

	retry, err := l.RetryAfterSeconds(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, 0, retry)

	assert.Empty(t, mr.Keys(), "reads do not write")
}

func TestRedisTokenBucketLimiter_PeekDoesNotConsume(t *testing.T) {
	_, store := setupMiniRedis(t)
	ctx := context.Background()
	l := NewRedisTokenBucketLimiter(store, tokenBucketPolicy(3, 3*time.Second), testOpts(newFakeClock(), logger.NewTestCtxLogger())...)

	l.Allow(ctx, "k")
	for i := 0; i < 3; i++ {
		count, err := l.CurrentCount(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	}
}

func TestRedisTokenBucketLimiter_KeysAndExpiry(t *testing.T) {
	mr, store := setupMiniRedis(t)
	clock := newFakeClock()
	l := NewRedisTokenBucketLimiter(store, tokenBucketPolicy(4, 4*time.Second),
		append(testOpts(clock, logger.NewTestCtxLogger()), WithNamespace("api"))...)

	_, err := l.Allow(context.Background(), "u1")
	require.NoError(t, err)

	tokens, err := mr.Get("admission:api:u1:token_count")
	require.NoError(t, err)
	assert.Equal(t, "3", tokens)

	last, err := mr.Get("admission:api:u1:last_refill_ts")
	require.NoError(t, err)
	assert.Equal(t, "1700000000", last)

	assert.Equal(t, 4*time.Second, mr.TTL("admission:api:u1:token_count"))
	assert.Equal(t, 4*time.Second, mr.TTL("admission:api:u1:last_refill_ts"))
}

func TestRedisTokenBucketLimiter_CapacityBound(t *testing.T) {
	_, store := setupMiniRedis(t)
	ctx := context.Background()
	l := NewRedisTokenBucketLimiter(store, tokenBucketPolicy(10, time.Second), testOpts(newFakeClock(), logger.NewTestCtxLogger())...)

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := l.Allow(ctx, "shared"); ok {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(10), admitted.Load())
}

func TestRedisTokenBucketLimiter_ScriptArgs(t *testing.T) {
	store := &stubStore{evalReply: int64(1)}
	clock := newFakeClock()
	l := NewRedisTokenBucketLimiter(store, tokenBucketPolicy(10, 2*time.Second), testOpts(clock, logger.NewTestCtxLogger())...)

	allowed, err := l.Allow(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, allowed)

	assert.Equal(t, []string{"k:token_count", "k:last_refill_ts"}, store.lastKeys)
	assert.Equal(t, []interface{}{10, 5, clock.Now().Unix(), 2}, store.lastArgs)
}

func TestRedisTokenBucketLimiter_DecodesLooseReplies(t *testing.T) {
	store := &stubStore{evalReply: "4"}
	l := NewRedisTokenBucketLimiter(store, tokenBucketPolicy(10, time.Second), testOpts(newFakeClock(), logger.NewTestCtxLogger())...)

	count, err := l.CurrentCount(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	store.evalReply = 2.7
	retry, err := l.RetryAfterSeconds(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, 2, retry)

	store.evalReply = true
	_, err = l.CurrentCount(context.Background(), "k")
	assert.ErrorIs(t, err, ErrUnexpectedScriptResult)
}

func TestRedisTokenBucketLimiter_FailsClosed(t *testing.T) {
	log := logger.NewTestCtxLogger()
	l := NewRedisTokenBucketLimiter(failingStore(), tokenBucketPolicy(10, time.Second), testOpts(newFakeClock(), log)...)
	ctx := context.Background()

	allowed, err := l.Allow(ctx, "k")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.True(t, log.HasLogWithField("WARN", "shared store call failed, denying request", "strategy", "token_bucket"))

	_, err = l.CurrentCount(ctx, "k")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	_, err = l.RetryAfterSeconds(ctx, "k")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}
