package limiter

import (
	"errors"
	"net/http"

	"github.com/KOMKZ/go-yogan-admission/errcode"
)

// ModuleCode is the errcode module code of the limiter package.
const ModuleCode = 30

var (
	// ErrInvalidPolicy is returned when a policy fails validation. Field messages are
	// attached under Data()["fields"].
	ErrInvalidPolicy = errcode.Register(errcode.New(
		ModuleCode, 1, "limiter", "error.limiter.invalid_policy",
		"invalid rate limit policy", http.StatusInternalServerError,
	))

	// ErrStoreNotConfigured is returned by the factory for a redis policy without a shared store.
	ErrStoreNotConfigured = errcode.Register(errcode.New(
		ModuleCode, 2, "limiter", "error.limiter.store_not_configured",
		"redis backend selected but no shared store configured", http.StatusInternalServerError,
	))

	// ErrStoreUnavailable wraps a failure to reach the shared store.
	ErrStoreUnavailable = errcode.Register(errcode.New(
		ModuleCode, 3, "limiter", "error.limiter.store_unavailable",
		"shared store unavailable", http.StatusServiceUnavailable,
	))

	// ErrUnexpectedScriptResult is returned when a script reply cannot be decoded.
	ErrUnexpectedScriptResult = errcode.Register(errcode.New(
		ModuleCode, 4, "limiter", "error.limiter.unexpected_script_result",
		"unexpected script result", http.StatusServiceUnavailable,
	))

	// ErrFactoryClosed is returned by GetOrCreate after Close.
	ErrFactoryClosed = errcode.Register(errcode.New(
		ModuleCode, 5, "limiter", "error.limiter.factory_closed",
		"limiter factory closed", http.StatusServiceUnavailable,
	))
)

// IsConfigurationError reports whether err is a policy or wiring problem.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidPolicy) || errors.Is(err, ErrStoreNotConfigured)
}

// IsTransientStoreError reports whether err came from the shared store.
func IsTransientStoreError(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrUnexpectedScriptResult)
}
