package limiter

import (
	"errors"
	"testing"
	"time"

	"github.com/KOMKZ/go-yogan-admission/errcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func policyFields(t *testing.T, err error) map[string]string {
	t.Helper()
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalidPolicy))

	var layered *errcode.LayeredError
	require.True(t, errors.As(err, &layered))
	fields, ok := layered.Data()["fields"].(map[string]string)
	require.True(t, ok)
	return fields
}

func TestPolicy_ValidateOK(t *testing.T) {
	p := Policy{
		Strategy:     StrategyTokenBucket,
		Backend:      BackendRedis,
		KeyType:      KeyTypeUser,
		Limits:       map[string]int{"vip": 100},
		DefaultLimit: 10,
		WindowSize:   time.Second,
	}
	assert.NoError(t, p.Validate())
}

func TestPolicy_ValidateDefaultLimitAndWindow(t *testing.T) {
	fields := policyFields(t, Policy{DefaultLimit: 0, WindowSize: -time.Second}.Validate())

	assert.Equal(t, "must be positive", fields["default_limit"])
	assert.Equal(t, "must be positive", fields["window_size"])

	fields = policyFields(t, Policy{DefaultLimit: -3, WindowSize: time.Second}.Validate())
	assert.Contains(t, fields, "default_limit")
}

func TestPolicy_ValidatePerKeyLimits(t *testing.T) {
	p := fixedWindowPolicy(5, time.Second)
	p.Limits = map[string]int{"ok": 3, "bad": 0}

	fields := policyFields(t, p.Validate())
	assert.Contains(t, fields, "limits.bad")
	assert.NotContains(t, fields, "limits.ok")

	tb := tokenBucketPolicy(10, time.Second)
	tb.Limits = map[string]int{"frozen": 0}
	assert.Equal(t, "must be positive", policyFields(t, tb.Validate())["limits.frozen"])
}

func TestPolicy_ValidateCustomHeader(t *testing.T) {
	p := fixedWindowPolicy(5, time.Second)
	p.KeyType = KeyTypeCustomHeader
	p.CustomHeaderName = "   "

	fields := policyFields(t, p.Validate())
	assert.Contains(t, fields, "custom_header_name")

	p.CustomHeaderName = "X-Tenant"
	assert.NoError(t, p.Validate())
}

func TestPolicy_ValidateKeyType(t *testing.T) {
	p := fixedWindowPolicy(5, time.Second)
	p.KeyType = "cookie"
	assert.Contains(t, policyFields(t, p.Validate()), "key_type")
}

func TestPolicy_ValidateTokenBucketRefillRate(t *testing.T) {
	// 5 tokens over 10s is 0.5 tokens/s, which truncates to 0
	p := tokenBucketPolicy(5, 10*time.Second)
	assert.Contains(t, policyFields(t, p.Validate()), "default_limit")

	p = tokenBucketPolicy(20, 10*time.Second)
	p.Limits = map[string]int{"slow": 3}
	assert.Contains(t, policyFields(t, p.Validate()), "limits.slow")

	// the same numbers are fine for a fixed window
	assert.NoError(t, fixedWindowPolicy(5, 10*time.Second).Validate())
}

func TestPolicy_LimitFor(t *testing.T) {
	p := fixedWindowPolicy(10, time.Second)
	p.Limits = map[string]int{"vip": 50}

	assert.Equal(t, 50, p.LimitFor("vip"))
	assert.Equal(t, 10, p.LimitFor("anyone"))
	assert.Equal(t, 10, Policy{DefaultLimit: 10}.LimitFor("x"), "nil map falls back to default")
}

func TestPolicy_LimitForFoldsCase(t *testing.T) {
	p := fixedWindowPolicy(10, time.Second)
	p.Limits = map[string]int{"/v1/Export": 2, "Alice": 4}
	p.ApplyDefaults()

	assert.Equal(t, map[string]int{"/v1/export": 2, "alice": 4}, p.Limits)
	assert.Equal(t, 2, p.LimitFor("/v1/Export"))
	assert.Equal(t, 2, p.LimitFor("/v1/export"))
	assert.Equal(t, 4, p.LimitFor("Alice"))
	assert.Equal(t, 10, p.LimitFor("bob"))
}

func TestPolicy_Remaining(t *testing.T) {
	fw := fixedWindowPolicy(3, time.Second)
	fw.Limits = map[string]int{"vip": 5}
	assert.Equal(t, 2, fw.Remaining("a", 1))
	assert.Equal(t, 0, fw.Remaining("a", 4), "floored at zero")
	assert.Equal(t, 4, fw.Remaining("vip", 1))

	tb := tokenBucketPolicy(10, time.Second)
	assert.Equal(t, 7, tb.Remaining("a", 7), "token bucket reports available tokens")
}

func TestPolicy_RefillRateAndWindowSeconds(t *testing.T) {
	p := tokenBucketPolicy(10, 2*time.Second)
	assert.Equal(t, 5, p.RefillRate(10))
	assert.Equal(t, 2, p.WindowSeconds())

	p.WindowSize = 1500 * time.Millisecond
	assert.Equal(t, 2, p.WindowSeconds())

	p.WindowSize = 100 * time.Millisecond
	assert.Equal(t, 1, p.WindowSeconds())
	assert.Equal(t, 100, p.RefillRate(10))

	assert.Equal(t, 0, Policy{}.RefillRate(10))
}

func TestPolicy_ApplyDefaults(t *testing.T) {
	p := Policy{DefaultLimit: 1, WindowSize: time.Second}
	p.ApplyDefaults()

	assert.Equal(t, StrategyFixedWindow, p.Strategy)
	assert.Equal(t, BackendLocal, p.Backend)
	assert.Equal(t, KeyTypeIP, p.KeyType)
}

func TestPolicy_HeaderName(t *testing.T) {
	assert.Equal(t, DefaultCustomHeaderName, Policy{}.HeaderName())
	assert.Equal(t, "X-Tenant", Policy{CustomHeaderName: "X-Tenant"}.HeaderName())
}

func TestIsConfigurationError(t *testing.T) {
	assert.True(t, IsConfigurationError(Policy{}.Validate()))
	assert.True(t, IsConfigurationError(ErrStoreNotConfigured.WithData("policy", "x")))
	assert.False(t, IsConfigurationError(ErrStoreUnavailable))
	assert.True(t, IsTransientStoreError(storeError(errConnRefused)))
}
