package middleware

import (
	"net/http"

	"github.com/KOMKZ/go-yogan-admission/errcode"
)

// ModuleCode is the errcode module code of the HTTP layer.
const ModuleCode = 31

var (
	// ErrMissingKey is returned when a request carries no value for the policy's key type.
	ErrMissingKey = errcode.Register(errcode.New(
		ModuleCode, 1, "middleware", "error.middleware.missing_rate_limit_key",
		"Required rate limit key is missing in the request.", http.StatusBadRequest,
	))

	// ErrLimiterRequired is returned by RateLimiter when no factory is configured.
	ErrLimiterRequired = errcode.Register(errcode.New(
		ModuleCode, 2, "middleware", "error.middleware.limiter_required",
		"rate limiter middleware needs a limiter factory", http.StatusInternalServerError,
	))
)
