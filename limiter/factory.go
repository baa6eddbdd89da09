package limiter

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Factory builds and memoizes one RateLimiter per policy id for its lifetime.
//
// The first GetOrCreate for an id validates the policy and constructs the limiter;
// concurrent first calls share that construction, so every caller gets the same instance.
// Later calls return the cached limiter and ignore the policy argument.
type Factory struct {
	opts     options
	limiters keyedMap[RateLimiter]
	group    singleflight.Group
	closed   atomic.Bool
}

// NewFactory creates an empty factory. WithStore is required for redis policies;
// WithMetrics and WithEventBus wrap every built limiter with observation.
func NewFactory(opts ...Option) *Factory {
	f := &Factory{opts: newOptions(opts)}
	f.opts.log()
	if f.opts.metrics != nil {
		f.opts.metrics.SetLimiterCount(func() int64 { return int64(f.Len()) })
	}
	return f
}

// GetOrCreate returns the limiter of id, building it from policy on first use.
// An invalid policy returns ErrInvalidPolicy and caches nothing.
func (f *Factory) GetOrCreate(id string, policy Policy) (RateLimiter, error) {
	if l, ok := f.limiters.Load(id); ok {
		return l, nil
	}
	if f.closed.Load() {
		return nil, ErrFactoryClosed
	}

	v, err, _ := f.group.Do(id, func() (interface{}, error) {
		if l, ok := f.limiters.Load(id); ok {
			return l, nil
		}
		l, err := f.build(id, policy)
		if err != nil {
			return nil, err
		}
		return f.limiters.LoadOrCreate(id, func() RateLimiter { return l }), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(RateLimiter), nil
}

func (f *Factory) build(id string, policy Policy) (RateLimiter, error) {
	ctx := context.Background()
	policy.ApplyDefaults()

	if err := policy.Validate(); err != nil {
		f.opts.logger.WarnCtx(ctx, "rejected invalid policy", zap.String("policy", id), zap.Error(err))
		return nil, err
	}

	engineOpts := []Option{WithClock(f.opts.now), WithLogger(f.opts.logger), WithNamespace(id)}

	var l RateLimiter
	switch {
	case policy.Strategy == StrategyFixedWindow && policy.Backend == BackendLocal:
		l = NewFixedWindowLimiter(policy, engineOpts...)
	case policy.Strategy == StrategyTokenBucket && policy.Backend == BackendLocal:
		l = NewTokenBucketLimiter(policy, engineOpts...)
	case policy.Strategy == StrategyFixedWindow && policy.Backend == BackendRedis:
		if f.opts.store == nil {
			return nil, ErrStoreNotConfigured.WithData("policy", id)
		}
		l = NewRedisFixedWindowLimiter(f.opts.store, policy, engineOpts...)
	case policy.Strategy == StrategyTokenBucket && policy.Backend == BackendRedis:
		if f.opts.store == nil {
			return nil, ErrStoreNotConfigured.WithData("policy", id)
		}
		l = NewRedisTokenBucketLimiter(f.opts.store, policy, engineOpts...)
	default:
		f.opts.logger.WarnCtx(ctx, "unknown strategy/backend, using local fixed window",
			zap.String("policy", id),
			zap.String("strategy", string(policy.Strategy)),
			zap.String("backend", string(policy.Backend)),
		)
		policy.Strategy, policy.Backend = StrategyFixedWindow, BackendLocal
		l = NewFixedWindowLimiter(policy, engineOpts...)
	}

	f.opts.logger.DebugCtx(ctx, "limiter created",
		zap.String("policy", id),
		zap.String("strategy", string(policy.Strategy)),
		zap.String("backend", string(policy.Backend)),
	)

	if f.opts.metrics == nil && f.opts.bus == nil {
		return l, nil
	}
	return &observedLimiter{
		inner:    l,
		policyID: id,
		policy:   policy,
		metrics:  f.opts.metrics,
		bus:      f.opts.bus,
		now:      f.opts.now,
	}, nil
}

// Len returns the number of cached limiters.
func (f *Factory) Len() int {
	return f.limiters.Len()
}

// Range calls fn for each cached limiter until fn returns false.
func (f *Factory) Range(fn func(id string, l RateLimiter) bool) {
	f.limiters.Range(fn)
}

// Close stops handing out new limiters and closes the event bus. Cached limiters keep
// working for callers that already hold them.
func (f *Factory) Close() error {
	if !f.closed.CompareAndSwap(false, true) {
		return nil
	}
	if f.opts.bus != nil {
		f.opts.bus.Close()
	}
	return nil
}

// Shutdown implements do.Shutdowner.
func (f *Factory) Shutdown() error {
	return f.Close()
}
