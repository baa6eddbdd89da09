package limiter

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/KOMKZ/go-yogan-admission/errcode"
	"github.com/KOMKZ/go-yogan-admission/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactory_Dispatch(t *testing.T) {
	_, store := setupMiniRedis(t)
	f := NewFactory(WithStore(store), WithLogger(logger.NewTestCtxLogger()))

	tests := []struct {
		id     string
		policy Policy
		check  func(t *testing.T, l RateLimiter)
	}{
		{"fw-local", fixedWindowPolicy(1, time.Second), func(t *testing.T, l RateLimiter) {
			assert.IsType(t, &FixedWindowLimiter{}, l)
		}},
		{"tb-local", tokenBucketPolicy(1, time.Second), func(t *testing.T, l RateLimiter) {
			assert.IsType(t, &TokenBucketLimiter{}, l)
		}},
		{"fw-redis", Policy{Strategy: StrategyFixedWindow, Backend: BackendRedis, DefaultLimit: 1, WindowSize: time.Second},
			func(t *testing.T, l RateLimiter) {
				assert.IsType(t, &RedisFixedWindowLimiter{}, l)
			}},
		{"tb-redis", Policy{Strategy: StrategyTokenBucket, Backend: BackendRedis, DefaultLimit: 1, WindowSize: time.Second},
			func(t *testing.T, l RateLimiter) {
				assert.IsType(t, &RedisTokenBucketLimiter{}, l)
			}},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			l, err := f.GetOrCreate(tt.id, tt.policy)
			require.NoError(t, err)
			tt.check(t, l)
		})
	}
	assert.Equal(t, 4, f.Len())
}

func TestFactory_SameInstancePerID(t *testing.T) {
	f := NewFactory(WithLogger(logger.NewTestCtxLogger()))

	first, err := f.GetOrCreate("api", fixedWindowPolicy(1, time.Second))
	require.NoError(t, err)

	// later policies for the same id are ignored
	second, err := f.GetOrCreate("api", tokenBucketPolicy(100, time.Minute))
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.IsType(t, &FixedWindowLimiter{}, second)
}

func TestFactory_ConcurrentFirstUse(t *testing.T) {
	f := NewFactory(WithLogger(logger.NewTestCtxLogger()))

	const n = 64
	results := make([]RateLimiter, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l, err := f.GetOrCreate("hot", fixedWindowPolicy(5, time.Second))
			assert.NoError(t, err)
			results[i] = l
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		assert.Same(t, results[0], results[i])
	}
	assert.Equal(t, 1, f.Len())
}

func TestFactory_SharedStateAcrossCallers(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(WithLogger(logger.NewTestCtxLogger()))

	a, _ := f.GetOrCreate("login", fixedWindowPolicy(1, time.Minute))
	b, _ := f.GetOrCreate("login", fixedWindowPolicy(1, time.Minute))

	ok, _ := a.Allow(ctx, "u1")
	assert.True(t, ok)
	ok, _ = b.Allow(ctx, "u1")
	assert.False(t, ok)
}

func TestFactory_InvalidPolicyNotCached(t *testing.T) {
	log := logger.NewTestCtxLogger()
	f := NewFactory(WithLogger(log))

	_, err := f.GetOrCreate("bad", fixedWindowPolicy(0, time.Second))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidPolicy)
	assert.True(t, IsConfigurationError(err))
	assert.Equal(t, 0, f.Len())
	assert.True(t, log.HasLogWithField("WARN", "rejected invalid policy", "policy", "bad"))

	var le *errcode.LayeredError
	require.ErrorAs(t, err, &le)
	assert.Contains(t, le.Data()["fields"], "default_limit")

	l, err := f.GetOrCreate("bad", fixedWindowPolicy(2, time.Second))
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestFactory_RedisWithoutStore(t *testing.T) {
	f := NewFactory(WithLogger(logger.NewTestCtxLogger()))

	_, err := f.GetOrCreate("shared", Policy{Strategy: StrategyTokenBucket, Backend: BackendRedis, DefaultLimit: 5, WindowSize: time.Second})
	assert.ErrorIs(t, err, ErrStoreNotConfigured)
	assert.True(t, IsConfigurationError(err))
	assert.Equal(t, 0, f.Len())
}

func TestFactory_DefaultsApplied(t *testing.T) {
	f := NewFactory(WithLogger(logger.NewTestCtxLogger()))

	l, err := f.GetOrCreate("defaults", Policy{DefaultLimit: 2, WindowSize: time.Second})
	require.NoError(t, err)
	assert.IsType(t, &FixedWindowLimiter{}, l)
}

func TestFactory_UnknownCombinationFallsBack(t *testing.T) {
	log := logger.NewTestCtxLogger()
	f := NewFactory(WithLogger(log))

	l, err := f.GetOrCreate("odd", Policy{Strategy: StrategyTokenBucket, Backend: "memcached", DefaultLimit: 2, WindowSize: time.Second})
	require.NoError(t, err)
	assert.IsType(t, &FixedWindowLimiter{}, l)
	assert.True(t, log.HasLog("WARN", "unknown strategy/backend, using local fixed window"))
}

func TestFactory_Close(t *testing.T) {
	bus, err := NewEventBus(2, logger.NewTestCtxLogger())
	require.NoError(t, err)
	f := NewFactory(WithLogger(logger.NewTestCtxLogger()), WithEventBus(bus))

	cached, err := f.GetOrCreate("kept", fixedWindowPolicy(1, time.Second))
	require.NoError(t, err)

	require.NoError(t, f.Close())
	require.NoError(t, f.Shutdown())

	again, err := f.GetOrCreate("kept", fixedWindowPolicy(1, time.Second))
	require.NoError(t, err)
	assert.Same(t, cached, again)

	_, err = f.GetOrCreate("new", fixedWindowPolicy(1, time.Second))
	assert.ErrorIs(t, err, ErrFactoryClosed)
}

func TestFactory_Range(t *testing.T) {
	f := NewFactory(WithLogger(logger.NewTestCtxLogger()))
	for _, id := range []string{"a", "b", "c"} {
		_, err := f.GetOrCreate(id, fixedWindowPolicy(1, time.Second))
		require.NoError(t, err)
	}

	seen := map[string]bool{}
	f.Range(func(id string, _ RateLimiter) bool {
		seen[id] = true
		return true
	})
	assert.Len(t, seen, 3)
}

func TestFactory_ObservedLimiter(t *testing.T) {
	m, reader := setupMetrics(t)
	bus, err := NewEventBus(2, logger.NewTestCtxLogger())
	require.NoError(t, err)
	t.Cleanup(bus.Close)

	listener := &recordingListener{}
	bus.Subscribe(listener)

	clock := newFakeClock()
	f := NewFactory(WithLogger(logger.NewTestCtxLogger()), WithMetrics(m), WithEventBus(bus), WithClock(clock.Now))

	l, err := f.GetOrCreate("api", fixedWindowPolicy(1, time.Minute))
	require.NoError(t, err)
	assert.IsType(t, &FixedWindowLimiter{}, Unwrap(l))

	ctx := logger.ContextWithTraceID(context.Background(), "trace-obs")
	ok, _ := l.Allow(ctx, "u1")
	assert.True(t, ok)
	ok, _ = l.Allow(ctx, "u1")
	assert.False(t, ok)

	assert.Eventually(t, func() bool { return len(listener.snapshot()) == 2 }, time.Second, 10*time.Millisecond)
	for _, e := range listener.snapshot() {
		assert.NotEmpty(t, e.ID)
		assert.Equal(t, "api", e.PolicyID)
		assert.Equal(t, "u1", e.Key)
		assert.Equal(t, "trace-obs", e.TraceID)
		assert.Equal(t, clock.Now(), e.At)
	}

	data := collect(t, reader)
	assert.Equal(t, int64(2), sumValue(t, data["admission_requests_total"]))
	assert.Equal(t, int64(1), sumValue(t, data["admission_rejected_total"]))
}

func TestFactory_ObservedLimiterCountsErrors(t *testing.T) {
	m, reader := setupMetrics(t)
	f := NewFactory(WithLogger(logger.NewTestCtxLogger()), WithMetrics(m), WithStore(failingStore()))

	l, err := f.GetOrCreate("shared", Policy{Strategy: StrategyFixedWindow, Backend: BackendRedis, DefaultLimit: 1, WindowSize: time.Second})
	require.NoError(t, err)

	ok, err := l.Allow(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok, "fail closed is a rejection, not an error")

	_, err = l.CurrentCount(context.Background(), "k")
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	data := collect(t, reader)
	assert.Equal(t, int64(1), sumValue(t, data["admission_rejected_total"]))
	assert.Equal(t, int64(1), sumValue(t, data["admission_errors_total"]))
}

func TestUnwrap_PlainLimiter(t *testing.T) {
	l := NewFixedWindowLimiter(fixedWindowPolicy(1, time.Second))
	assert.Same(t, l, Unwrap(l))
}
