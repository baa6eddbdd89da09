package limiter

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics records admission decisions with OpenTelemetry instruments.
// It is inert until RegisterMetrics is called.
type OTelMetrics struct {
	mu         sync.RWMutex
	registered bool

	requestsTotal metric.Int64Counter
	allowedTotal  metric.Int64Counter
	rejectedTotal metric.Int64Counter
	errorsTotal   metric.Int64Counter
	limiters      metric.Int64ObservableGauge

	limiterCount func() int64
}

// NewOTelMetrics creates an unregistered metrics recorder.
func NewOTelMetrics() *OTelMetrics {
	return &OTelMetrics{}
}

// MetricsName is the instrumentation scope name.
func (m *OTelMetrics) MetricsName() string {
	return "admission"
}

// RegisterMetrics creates the instruments on meter. Calling it twice is a no-op.
func (m *OTelMetrics) RegisterMetrics(meter metric.Meter) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	var err error
	if m.requestsTotal, err = meter.Int64Counter(
		"admission_requests_total",
		metric.WithDescription("Total number of admission decisions"),
		metric.WithUnit("{request}"),
	); err != nil {
		return err
	}
	if m.allowedTotal, err = meter.Int64Counter(
		"admission_allowed_total",
		metric.WithDescription("Total number of admitted requests"),
		metric.WithUnit("{request}"),
	); err != nil {
		return err
	}
	if m.rejectedTotal, err = meter.Int64Counter(
		"admission_rejected_total",
		metric.WithDescription("Total number of rejected requests"),
		metric.WithUnit("{request}"),
	); err != nil {
		return err
	}
	if m.errorsTotal, err = meter.Int64Counter(
		"admission_errors_total",
		metric.WithDescription("Limiter calls that returned an error"),
		metric.WithUnit("{call}"),
	); err != nil {
		return err
	}
	if m.limiters, err = meter.Int64ObservableGauge(
		"admission_limiters",
		metric.WithDescription("Limiters currently held by the factory"),
		metric.WithUnit("{limiter}"),
		metric.WithInt64Callback(m.observeLimiters),
	); err != nil {
		return err
	}

	m.registered = true
	return nil
}

// IsRegistered reports whether RegisterMetrics succeeded.
func (m *OTelMetrics) IsRegistered() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.registered
}

// SetLimiterCount installs the callback behind the admission_limiters gauge.
func (m *OTelMetrics) SetLimiterCount(fn func() int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limiterCount = fn
}

func (m *OTelMetrics) observeLimiters(_ context.Context, observer metric.Int64Observer) error {
	m.mu.RLock()
	fn := m.limiterCount
	m.mu.RUnlock()

	if fn != nil {
		observer.Observe(fn())
	}
	return nil
}

// RecordDecision counts one Allow outcome.
func (m *OTelMetrics) RecordDecision(ctx context.Context, policyID string, p Policy, allowed bool) {
	if !m.IsRegistered() {
		return
	}

	attrs := metric.WithAttributes(decisionAttributes(policyID, p)...)
	m.requestsTotal.Add(ctx, 1, attrs)
	if allowed {
		m.allowedTotal.Add(ctx, 1, attrs)
	} else {
		m.rejectedTotal.Add(ctx, 1, attrs)
	}
}

// RecordError counts a failed limiter call. op is allow, current_count or retry_after.
func (m *OTelMetrics) RecordError(ctx context.Context, policyID string, p Policy, op string) {
	if !m.IsRegistered() {
		return
	}

	attrs := append(decisionAttributes(policyID, p), attribute.String("op", op))
	m.errorsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func decisionAttributes(policyID string, p Policy) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("policy", policyID),
		attribute.String("strategy", string(p.Strategy)),
		attribute.String("backend", string(p.Backend)),
	}
}
