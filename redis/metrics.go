package redis

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RedisMetricsConfig selects the optional instruments.
type RedisMetricsConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	RecordPoolStats bool `mapstructure:"record_pool_stats"`
}

// RedisMetrics records command counts, latency and pool usage of the shared store.
type RedisMetrics struct {
	config     RedisMetricsConfig
	registered bool
	mu         sync.RWMutex

	commandsTotal     metric.Int64Counter
	commandDuration   metric.Float64Histogram
	errorsTotal       metric.Int64Counter
	connectionsActive metric.Int64ObservableGauge
	connectionsIdle   metric.Int64ObservableGauge

	poolCallbacks map[string]func() PoolStats
	poolMu        sync.RWMutex
}

// PoolStats is a snapshot of one connection pool.
type PoolStats struct {
	ActiveCount int64
	IdleCount   int64
}

func NewRedisMetrics(cfg RedisMetricsConfig) *RedisMetrics {
	return &RedisMetrics{
		config:        cfg,
		poolCallbacks: make(map[string]func() PoolStats),
	}
}

func (m *RedisMetrics) MetricsName() string {
	return "redis"
}

func (m *RedisMetrics) IsMetricsEnabled() bool {
	return m.config.Enabled
}

// RegisterMetrics creates the instruments on meter. Calling it twice is a no-op.
func (m *RedisMetrics) RegisterMetrics(meter metric.Meter) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	var err error
	if m.commandsTotal, err = meter.Int64Counter(
		"redis_commands_total",
		metric.WithDescription("Redis commands executed"),
		metric.WithUnit("{command}"),
	); err != nil {
		return err
	}
	if m.commandDuration, err = meter.Float64Histogram(
		"redis_command_duration_seconds",
		metric.WithDescription("Redis command latency"),
		metric.WithUnit("s"),
	); err != nil {
		return err
	}
	if m.errorsTotal, err = meter.Int64Counter(
		"redis_errors_total",
		metric.WithDescription("Redis commands that failed, excluding nil replies"),
		metric.WithUnit("{error}"),
	); err != nil {
		return err
	}

	if m.config.RecordPoolStats {
		if m.connectionsActive, err = meter.Int64ObservableGauge(
			"redis_connections_active",
			metric.WithDescription("Connections in use"),
			metric.WithUnit("{connection}"),
			metric.WithInt64Callback(m.observePool(func(s PoolStats) int64 { return s.ActiveCount })),
		); err != nil {
			return err
		}
		if m.connectionsIdle, err = meter.Int64ObservableGauge(
			"redis_connections_idle",
			metric.WithDescription("Idle connections"),
			metric.WithUnit("{connection}"),
			metric.WithInt64Callback(m.observePool(func(s PoolStats) int64 { return s.IdleCount })),
		); err != nil {
			return err
		}
	}

	m.registered = true
	return nil
}

func (m *RedisMetrics) observePool(pick func(PoolStats) int64) metric.Int64Callback {
	return func(_ context.Context, observer metric.Int64Observer) error {
		m.poolMu.RLock()
		defer m.poolMu.RUnlock()

		for instance, callback := range m.poolCallbacks {
			observer.Observe(pick(callback()), metric.WithAttributes(attribute.String("instance", instance)))
		}
		return nil
	}
}

func (m *RedisMetrics) RegisterPoolCallback(instance string, callback func() PoolStats) {
	m.poolMu.Lock()
	defer m.poolMu.Unlock()
	m.poolCallbacks[instance] = callback
}

func (m *RedisMetrics) UnregisterPoolCallback(instance string) {
	m.poolMu.Lock()
	defer m.poolMu.Unlock()
	delete(m.poolCallbacks, instance)
}

// RecordCommand records one command. redis.Nil is a normal reply, not an error.
func (m *RedisMetrics) RecordCommand(ctx context.Context, instance, command string, duration time.Duration, err error) {
	if !m.IsRegistered() {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("instance", instance),
		attribute.String("command", command),
	)
	m.commandsTotal.Add(ctx, 1, attrs)
	m.commandDuration.Record(ctx, duration.Seconds(), attrs)

	if err != nil && !errors.Is(err, redis.Nil) {
		m.errorsTotal.Add(ctx, 1, attrs)
	}
}

func (m *RedisMetrics) IsRegistered() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.registered
}
