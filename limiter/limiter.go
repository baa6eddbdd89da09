// Package limiter provides request admission control.
//
// A RateLimiter decides, per key, whether one more unit of work is admitted under a Policy
// and how long a rejected caller should wait. Four implementations exist: fixed window and
// token bucket, each with a local in-memory engine and a Redis engine sharing state across
// processes through a SharedStore. A Factory builds and memoizes one limiter per policy id.
//
// Local state is refilled and reset lazily on access; no background goroutines run.
package limiter

import (
	"context"
	"time"

	"github.com/KOMKZ/go-yogan-admission/logger"
)

// RateLimiter is the admission contract shared by every engine. All methods are safe to
// call concurrently, in any order, any number of times.
type RateLimiter interface {
	// Allow consumes one unit for key and reports whether it was admitted.
	// Redis engines fail closed: a store failure yields (false, nil).
	Allow(ctx context.Context, key string) (bool, error)

	// CurrentCount is the used count (fixed window) or available tokens (token bucket).
	CurrentCount(ctx context.Context, key string) (int, error)

	// RetryAfterSeconds is how long a denied caller should wait, 0 when Allow would succeed.
	RetryAfterSeconds(ctx context.Context, key string) (int, error)
}

// Option configures limiters and the Factory.
type Option func(*options)

type options struct {
	now       func() time.Time
	logger    logger.CtxLogger
	store     SharedStore
	namespace string
	metrics   *OTelMetrics
	bus       EventBus
}

func newOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// log returns the configured logger, else the "limiter" module logger.
func (o *options) log() logger.CtxLogger {
	if o.logger == nil {
		o.logger = logger.GetLogger("limiter")
	}
	return o.logger
}

// WithClock replaces time.Now. Tests use it to move time without sleeping.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets the logger used for store failures and factory events.
func WithLogger(l logger.CtxLogger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithStore sets the shared store used by the redis backend.
func WithStore(store SharedStore) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithNamespace prefixes every shared store key of a redis limiter with "<ns>:", so two
// policies keyed by the same value do not share a counter. The Factory uses the policy id.
func WithNamespace(ns string) Option {
	return func(o *options) {
		o.namespace = ns
	}
}

// WithMetrics records every decision made by factory-built limiters.
func WithMetrics(m *OTelMetrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithEventBus publishes a DecisionEvent for every decision made by factory-built limiters.
func WithEventBus(bus EventBus) Option {
	return func(o *options) {
		o.bus = bus
	}
}
