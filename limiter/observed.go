package limiter

import (
	"context"
	"time"

	"github.com/KOMKZ/go-yogan-admission/logger"
	"github.com/google/uuid"
)

// observedLimiter reports the decisions of the wrapped limiter to metrics and the event
// bus. It never changes a result.
type observedLimiter struct {
	inner    RateLimiter
	policyID string
	policy   Policy
	metrics  *OTelMetrics
	bus      EventBus
	now      func() time.Time
}

func (l *observedLimiter) Allow(ctx context.Context, key string) (bool, error) {
	allowed, err := l.inner.Allow(ctx, key)
	if err != nil {
		l.recordError(ctx, "allow")
		return allowed, err
	}

	if l.metrics != nil {
		l.metrics.RecordDecision(ctx, l.policyID, l.policy, allowed)
	}
	if l.bus != nil {
		l.bus.Publish(DecisionEvent{
			ID:       uuid.NewString(),
			PolicyID: l.policyID,
			Strategy: l.policy.Strategy,
			Backend:  l.policy.Backend,
			Key:      key,
			Allowed:  allowed,
			TraceID:  logger.TraceIDFromContext(ctx),
			At:       l.now(),
		})
	}
	return allowed, nil
}

func (l *observedLimiter) CurrentCount(ctx context.Context, key string) (int, error) {
	n, err := l.inner.CurrentCount(ctx, key)
	if err != nil {
		l.recordError(ctx, "current_count")
	}
	return n, err
}

func (l *observedLimiter) RetryAfterSeconds(ctx context.Context, key string) (int, error) {
	n, err := l.inner.RetryAfterSeconds(ctx, key)
	if err != nil {
		l.recordError(ctx, "retry_after")
	}
	return n, err
}

// Unwrap returns the engine behind the decorator.
func (l *observedLimiter) Unwrap() RateLimiter {
	return l.inner
}

func (l *observedLimiter) recordError(ctx context.Context, op string) {
	if l.metrics != nil {
		l.metrics.RecordError(ctx, l.policyID, l.policy, op)
	}
}

// Unwrap returns the engine behind a factory-built limiter, or l itself.
func Unwrap(l RateLimiter) RateLimiter {
	if o, ok := l.(interface{ Unwrap() RateLimiter }); ok {
		return o.Unwrap()
	}
	return l
}
