package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/KOMKZ/go-yogan-admission/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// MetricsProvider is a component that owns a group of instruments.
type MetricsProvider interface {
	// MetricsName is the short lowercase group name, e.g. "redis".
	MetricsName() string
	RegisterMetrics(meter metric.Meter) error
}

// A provider may opt out by implementing IsMetricsEnabled.
type metricsSwitch interface {
	IsMetricsEnabled() bool
}

// MetricsRegistry hands every provider its own Meter and registers it once.
type MetricsRegistry struct {
	meterProvider metric.MeterProvider
	meters        map[string]metric.Meter
	providers     []MetricsProvider
	namespace     string
	logger        logger.CtxLogger
	mu            sync.RWMutex
}

type MetricsRegistryOption func(*MetricsRegistry)

// WithNamespace prefixes meter names: <namespace>_<name>.
func WithNamespace(namespace string) MetricsRegistryOption {
	return func(r *MetricsRegistry) {
		r.namespace = namespace
	}
}

func WithLogger(l logger.CtxLogger) MetricsRegistryOption {
	return func(r *MetricsRegistry) {
		r.logger = l
	}
}

// NewMetricsRegistry uses the global MeterProvider when mp is nil.
func NewMetricsRegistry(mp metric.MeterProvider, opts ...MetricsRegistryOption) *MetricsRegistry {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}

	r := &MetricsRegistry{
		meterProvider: mp,
		meters:        make(map[string]metric.Meter),
		logger:        logger.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register gives provider its Meter and calls RegisterMetrics. A disabled provider is
// skipped; a second provider with the same name is an error.
func (r *MetricsRegistry) Register(provider MetricsProvider) error {
	if provider == nil {
		return errors.New("metrics provider is nil")
	}
	name := provider.MetricsName()
	if name == "" {
		return errors.New("metrics provider name is empty")
	}
	if s, ok := provider.(metricsSwitch); ok && !s.IsMetricsEnabled() {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.providers {
		if p.MetricsName() == name {
			return fmt.Errorf("metrics provider %q already registered", name)
		}
	}

	if err := provider.RegisterMetrics(r.meterLocked(name)); err != nil {
		return fmt.Errorf("register metrics for %q failed: %w", name, err)
	}
	r.providers = append(r.providers, provider)
	r.logger.DebugCtx(context.Background(), "metrics provider registered", zap.String("provider", name))
	return nil
}

// Meter returns the Meter of a provider name.
func (r *MetricsRegistry) Meter(name string) metric.Meter {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.meterLocked(name)
}

func (r *MetricsRegistry) meterLocked(name string) metric.Meter {
	if meter, ok := r.meters[name]; ok {
		return meter
	}
	meterName := name
	if r.namespace != "" {
		meterName = r.namespace + "_" + name
	}
	meter := r.meterProvider.Meter(meterName)
	r.meters[name] = meter
	return meter
}

// Providers returns the registered providers in registration order.
func (r *MetricsRegistry) Providers() []MetricsProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]MetricsProvider(nil), r.providers...)
}
