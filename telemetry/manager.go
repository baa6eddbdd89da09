package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/KOMKZ/go-yogan-admission/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Manager owns the tracer and meter providers of the process.
type Manager struct {
	config         Config
	logger         logger.CtxLogger
	writer         io.Writer
	reader         sdkmetric.Reader
	tracerProvider *trace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	started        bool
	mu             sync.RWMutex
}

type ManagerOption func(*Manager)

// WithWriter redirects the stdout exporters.
func WithWriter(w io.Writer) ManagerOption {
	return func(m *Manager) {
		m.writer = w
	}
}

// WithMetricReader replaces the periodic exporter, e.g. with a ManualReader in tests.
func WithMetricReader(r sdkmetric.Reader) ManagerOption {
	return func(m *Manager) {
		m.reader = r
	}
}

func NewManager(cfg Config, log logger.CtxLogger, opts ...ManagerOption) *Manager {
	if log == nil {
		log = logger.GetLogger("telemetry")
	}
	cfg.ApplyDefaults()

	m := &Manager{config: cfg, logger: log, writer: os.Stdout}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start builds the providers and installs them as the OTel globals. A disabled manager
// does nothing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.config.Enabled {
		m.logger.DebugCtx(ctx, "telemetry disabled")
		return nil
	}
	if m.started {
		return nil
	}
	if err := m.config.Validate(); err != nil {
		return fmt.Errorf("invalid telemetry config: %w", err)
	}

	res, err := m.createResource(ctx)
	if err != nil {
		return fmt.Errorf("create resource failed: %w", err)
	}

	tp, err := m.createTracerProvider(res)
	if err != nil {
		return err
	}
	m.tracerProvider = tp
	otel.SetTracerProvider(tp)

	if m.config.Metrics.Enabled {
		mp, err := m.createMeterProvider(res)
		if err != nil {
			_ = tp.Shutdown(ctx)
			return err
		}
		m.meterProvider = mp
		otel.SetMeterProvider(mp)
	}

	m.started = true
	m.logger.InfoCtx(ctx, "telemetry started",
		zap.String("service_name", m.config.ServiceName),
		zap.String("exporter", m.config.Exporter),
		zap.Bool("metrics", m.config.Metrics.Enabled),
	)
	return nil
}

// Shutdown flushes and stops both providers.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	if m.meterProvider != nil {
		if err := m.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown meter provider: %w", err))
		}
		m.meterProvider = nil
	}
	if m.tracerProvider != nil {
		if err := m.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer provider: %w", err))
		}
		m.tracerProvider = nil
	}
	m.started = false
	return errors.Join(errs...)
}

// Tracer falls back to the global provider when tracing is off.
func (m *Manager) Tracer(name string) oteltrace.Tracer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.tracerProvider == nil {
		return otel.GetTracerProvider().Tracer(name)
	}
	return m.tracerProvider.Tracer(name)
}

// MeterProvider falls back to the global provider when metrics are off.
func (m *Manager) MeterProvider() metric.MeterProvider {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.meterProvider == nil {
		return otel.GetMeterProvider()
	}
	return m.meterProvider
}

func (m *Manager) IsEnabled() bool {
	return m.config.Enabled
}

// IsMetricsEnabled reports whether Start installed a meter provider.
func (m *Manager) IsMetricsEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.meterProvider != nil
}

func (m *Manager) Config() Config {
	return m.config
}
