package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/KOMKZ/go-yogan-admission/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Manager owns the named redis connections of the process.
type Manager struct {
	clients map[string]redis.UniversalClient
	configs map[string]Config
	logger  logger.CtxLogger
	mu      sync.RWMutex
	metrics *RedisMetrics
	closed  bool
}

// NewManager connects every configured instance. Any invalid or unreachable instance fails
// the whole manager and closes what was already opened.
func NewManager(configs map[string]Config, log logger.CtxLogger) (*Manager, error) {
	if log == nil {
		return nil, errors.New("logger cannot be nil")
	}

	ctx := context.Background()
	m := &Manager{
		clients: make(map[string]redis.UniversalClient),
		configs: make(map[string]Config),
		logger:  log,
	}

	for name, cfg := range configs {
		cfg.ApplyDefaults()
		if err := cfg.Validate(); err != nil {
			m.Close()
			return nil, fmt.Errorf("invalid config for %s: %w", name, err)
		}

		client := newClient(cfg)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			m.Close()
			return nil, fmt.Errorf("ping redis %s: %w", name, err)
		}

		m.clients[name] = client
		m.configs[name] = cfg
		m.logger.DebugCtx(ctx, "redis connected",
			zap.String("name", name),
			zap.String("mode", cfg.Mode),
			zap.Strings("addrs", cfg.Addrs))
	}

	return m, nil
}

func newClient(cfg Config) redis.UniversalClient {
	if cfg.Mode == ModeCluster {
		return redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        cfg.Addrs,
			Password:     cfg.Password,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
			MaxRetries:   cfg.MaxRetries,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		})
	}
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addrs[0],
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
}

// Client returns the named connection, or nil.
func (m *Manager) Client(name string) redis.UniversalClient {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.clients[name]
}

// Config returns the effective configuration of name.
func (m *Manager) Config(name string) (Config, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.configs[name]
	return cfg, ok
}

// Names lists the instance names in sorted order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.clients))
	for name := range m.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Ping checks every connection and returns the first failure. A nil manager, registered
// when no instance is configured, has nothing to check.
func (m *Manager) Ping(ctx context.Context) error {
	if m == nil {
		return nil
	}
	for _, name := range m.Names() {
		client := m.Client(name)
		if client == nil {
			continue
		}
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping %s: %w", name, err)
		}
	}
	return nil
}

// HealthCheck implements do.Healthchecker.
func (m *Manager) HealthCheck() error {
	return m.Ping(context.Background())
}

// Close closes every connection. Calling it again, or on a nil manager, is a no-op.
func (m *Manager) Close() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	ctx := context.Background()
	var errs []error
	for name, client := range m.clients {
		if err := client.Close(); err != nil {
			m.logger.ErrorCtx(ctx, "failed to close redis connection", zap.String("name", name), zap.Error(err))
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
			continue
		}
		if m.metrics != nil {
			m.metrics.UnregisterPoolCallback(name)
		}
		m.logger.DebugCtx(ctx, "redis connection closed", zap.String("name", name))
	}
	return errors.Join(errs...)
}

// Shutdown implements do.ShutdownerWithError.
func (m *Manager) Shutdown() error {
	return m.Close()
}

// SetMetrics hooks every client into metrics. Only the first call has an effect.
func (m *Manager) SetMetrics(metrics *RedisMetrics) {
	if metrics == nil || !metrics.IsMetricsEnabled() {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.metrics != nil {
		return
	}
	m.metrics = metrics

	for name, client := range m.clients {
		client.AddHook(NewMetricsHook(metrics, name))

		if metrics.config.RecordPoolStats {
			client := client
			metrics.RegisterPoolCallback(name, func() PoolStats {
				stats := client.PoolStats()
				return PoolStats{
					ActiveCount: int64(stats.TotalConns - stats.IdleConns),
					IdleCount:   int64(stats.IdleConns),
				}
			})
		}

		m.logger.DebugCtx(context.Background(), "redis metrics hook added", zap.String("instance", name))
	}
}
