package limiter

import (
	"testing"
	"time"

	"github.com/samber/do/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvideFactory_Bare(t *testing.T) {
	injector := do.New()
	do.Provide(injector, ProvideFactory)

	f, err := do.Invoke[*Factory](injector)
	require.NoError(t, err)

	_, err = f.GetOrCreate("local", fixedWindowPolicy(1, time.Second))
	assert.NoError(t, err)

	_, err = f.GetOrCreate("remote", Policy{Backend: BackendRedis, DefaultLimit: 1, WindowSize: time.Second})
	assert.ErrorIs(t, err, ErrStoreNotConfigured)
}

func TestProvideFactory_PicksUpStoreAndMetrics(t *testing.T) {
	_, store := setupMiniRedis(t)
	metrics, _ := setupMetrics(t)

	injector := do.New()
	do.ProvideValue[SharedStore](injector, store)
	do.ProvideValue(injector, metrics)
	do.Provide(injector, ProvideFactory)

	f, err := do.Invoke[*Factory](injector)
	require.NoError(t, err)

	l, err := f.GetOrCreate("remote", Policy{Backend: BackendRedis, DefaultLimit: 1, WindowSize: time.Second})
	require.NoError(t, err)
	assert.IsType(t, &RedisFixedWindowLimiter{}, Unwrap(l))
	assert.IsType(t, &observedLimiter{}, l)

	injector.Shutdown()
	_, err = f.GetOrCreate("after", fixedWindowPolicy(1, time.Second))
	assert.ErrorIs(t, err, ErrFactoryClosed)
}

func TestProvideFactory_StoreProviderFails(t *testing.T) {
	injector := do.New()
	do.Provide(injector, func(do.Injector) (SharedStore, error) {
		return nil, ErrStoreUnavailable
	})
	do.Provide(injector, ProvideFactory)

	_, err := do.Invoke[*Factory](injector)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestProvideFactory_NilOptionalServices(t *testing.T) {
	injector := do.New()
	do.Provide(injector, func(do.Injector) (SharedStore, error) { return nil, nil })
	do.Provide(injector, func(do.Injector) (EventBus, error) { return nil, nil })
	do.Provide(injector, ProvideFactory)

	f, err := do.Invoke[*Factory](injector)
	require.NoError(t, err)
	_, err = f.GetOrCreate("remote", Policy{Backend: BackendRedis, DefaultLimit: 1, WindowSize: time.Second})
	assert.ErrorIs(t, err, ErrStoreNotConfigured)
}
