package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/KOMKZ/go-yogan-admission/errcode"
	"github.com/KOMKZ/go-yogan-admission/limiter"
	"github.com/KOMKZ/go-yogan-admission/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// DefaultPolicyID is used when RateLimiterConfig.PolicyID is empty.
	DefaultPolicyID = "global"

	// RateLimitedMessage is the body of a 429 response.
	RateLimitedMessage = "Too many requests. Please try again later."

	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderRetryAfter = "X-RateLimit-Retry-After"
)

// RateLimiterConfig configures RateLimiter.
type RateLimiterConfig struct {
	// Factory builds or returns the limiter of PolicyID.
	Factory *limiter.Factory

	PolicyID string
	Policy   limiter.Policy

	// UserContextKey is the gin context key holding the user id for KeyTypeUser.
	UserContextKey string

	// SkipPaths bypass the limiter entirely.
	SkipPaths []string

	Logger logger.CtxLogger
}

// RateLimiter admits each request through the policy's limiter.
//
// The request key comes from Policy.KeyType: client IP, the user id stored under
// UserContextKey, the request path, or a header. A request without a key gets 400, a
// rejected one 429 with the X-RateLimit-* and Retry-After headers, and a limiter error
// the error's HTTP status (500 unless it is a coded error).
//
//	mw, err := middleware.RateLimiter(middleware.RateLimiterConfig{
//	    Factory:  factory,
//	    PolicyID: "api",
//	    Policy:   cfg.Policies["api"],
//	})
//	engine.Use(mw)
func RateLimiter(cfg RateLimiterConfig) (gin.HandlerFunc, error) {
	if cfg.Factory == nil {
		return nil, ErrLimiterRequired
	}
	if cfg.PolicyID == "" {
		cfg.PolicyID = DefaultPolicyID
	}
	if cfg.UserContextKey == "" {
		cfg.UserContextKey = limiter.DefaultUserContextKey
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger("middleware")
	}

	policy := cfg.Policy
	policy.ApplyDefaults()

	rl, err := cfg.Factory.GetOrCreate(cfg.PolicyID, policy)
	if err != nil {
		return nil, fmt.Errorf("rate limiter for policy %s: %w", cfg.PolicyID, err)
	}

	skip := make(map[string]bool, len(cfg.SkipPaths))
	for _, path := range cfg.SkipPaths {
		skip[path] = true
	}

	h := &rateLimitHandler{cfg: cfg, policy: policy, limiter: rl}
	return func(c *gin.Context) {
		if skip[c.Request.URL.Path] {
			c.Next()
			return
		}
		h.handle(c)
	}, nil
}

type rateLimitHandler struct {
	cfg     RateLimiterConfig
	policy  limiter.Policy
	limiter limiter.RateLimiter
}

func (h *rateLimitHandler) handle(c *gin.Context) {
	ctx := c.Request.Context()

	key, ok := h.requestKey(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": ErrMissingKey.Message()})
		return
	}

	allowed, err := h.limiter.Allow(ctx, key)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	if allowed {
		c.Next()
		return
	}

	if err := h.writeRejection(ctx, c, key); err != nil {
		h.abortWithError(c, err)
	}
}

func (h *rateLimitHandler) requestKey(c *gin.Context) (string, bool) {
	var key string
	switch h.policy.KeyType {
	case limiter.KeyTypeIP:
		key = c.ClientIP()
	case limiter.KeyTypeUser:
		if v, ok := c.Get(h.cfg.UserContextKey); ok && v != nil {
			key = fmt.Sprint(v)
		}
	case limiter.KeyTypeAPI:
		key = c.Request.URL.Path
	case limiter.KeyTypeCustomHeader:
		key = c.GetHeader(h.policy.HeaderName())
	}
	return key, key != ""
}

func (h *rateLimitHandler) writeRejection(ctx context.Context, c *gin.Context, key string) error {
	limit := h.policy.LimitFor(key)

	count, err := h.limiter.CurrentCount(ctx, key)
	if err != nil {
		return err
	}
	retryAfter, err := h.limiter.RetryAfterSeconds(ctx, key)
	if err != nil {
		return err
	}

	remaining := h.policy.Remaining(key, count)

	header := c.Writer.Header()
	header.Set(HeaderLimit, strconv.Itoa(limit))
	header.Set(HeaderRemaining, strconv.Itoa(remaining))
	header.Set(HeaderRetryAfter, strconv.Itoa(retryAfter))
	header.Set("Retry-After", strconv.Itoa(retryAfter))

	c.String(http.StatusTooManyRequests, RateLimitedMessage)
	c.Abort()
	return nil
}

func (h *rateLimitHandler) abortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var coded *errcode.LayeredError
	if errors.As(err, &coded) {
		status = coded.HTTPStatus()
	}

	h.cfg.Logger.ErrorCtx(c.Request.Context(), "rate limiter failed",
		zap.String("policy", h.cfg.PolicyID),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	c.AbortWithStatusJSON(status, gin.H{"error": "An unexpected error occurred: " + err.Error()})
}
