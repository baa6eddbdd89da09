package di

import (
	"context"
	"errors"
	"fmt"

	"github.com/KOMKZ/go-yogan-admission/config"
	"github.com/KOMKZ/go-yogan-admission/limiter"
	"github.com/KOMKZ/go-yogan-admission/logger"
	"github.com/KOMKZ/go-yogan-admission/redis"
	"github.com/KOMKZ/go-yogan-admission/telemetry"
	"github.com/samber/do/v2"
	"go.opentelemetry.io/otel/metric"
)

// Configuration keys read by the providers.
const (
	KeyLogger         = "logger"
	KeyRedisInstances = "redis.instances"
	KeyAdmission      = "admission"
	KeyTelemetry      = "telemetry"
)

// ConfigOptions configures ProvideConfigLoader.
type ConfigOptions struct {
	ConfigPath string      // directory of config.yaml and <env>.yaml
	EnvPrefix  string      // e.g. "ADMISSION"
	Flags      interface{} // struct with `config` tags
}

// ProvideConfigLoader has no dependencies.
func ProvideConfigLoader(opts ConfigOptions) func(do.Injector) (*config.Loader, error) {
	return config.ProvideLoader(config.ProvideLoaderOptions{
		ConfigPath: opts.ConfigPath,
		EnvPrefix:  opts.EnvPrefix,
		Flags:      opts.Flags,
	})
}

// ProvideLoggerManager reads the logger section, falling back to the defaults when there
// is no loader or the section does not decode.
func ProvideLoggerManager(i do.Injector) (*logger.Manager, error) {
	loader, err := do.Invoke[*config.Loader](i)
	if err != nil {
		return logger.NewManager(logger.DefaultManagerConfig()), nil
	}

	var cfg logger.ManagerConfig
	if !loader.IsSet(KeyLogger) {
		return logger.NewManager(logger.DefaultManagerConfig()), nil
	}
	if err := loader.UnmarshalKey(KeyLogger, &cfg); err != nil {
		return logger.NewManager(logger.DefaultManagerConfig()), nil
	}
	cfg.ApplyDefaults()
	return logger.NewManager(cfg), nil
}

// ProvideCtxLogger returns a provider of the named module logger.
func ProvideCtxLogger(moduleName string) func(do.Injector) (*logger.CtxZapLogger, error) {
	return func(i do.Injector) (*logger.CtxZapLogger, error) {
		mgr, err := do.Invoke[*logger.Manager](i)
		if err != nil {
			return logger.GetLogger(moduleName), nil
		}
		return mgr.GetLogger(moduleName), nil
	}
}

// ProvideAdmissionConfig decodes, defaults and validates the admission section.
func ProvideAdmissionConfig(i do.Injector) (*limiter.Config, error) {
	loader, err := do.Invoke[*config.Loader](i)
	if err != nil {
		return nil, err
	}

	var cfg limiter.Config
	if err := loader.UnmarshalKey(KeyAdmission, &cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", KeyAdmission, err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ProvideRedisManager connects the configured instances. No instances means no manager.
func ProvideRedisManager(i do.Injector) (*redis.Manager, error) {
	loader, err := do.Invoke[*config.Loader](i)
	if err != nil {
		return nil, err
	}

	var configs map[string]redis.Config
	if err := loader.UnmarshalKey(KeyRedisInstances, &configs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", KeyRedisInstances, err)
	}
	if len(configs) == 0 {
		return nil, nil
	}

	mgr, err := redis.NewManager(configs, moduleLogger(i, "redis"))
	if err != nil {
		return nil, err
	}
	if metrics, err := do.Invoke[*redis.RedisMetrics](i); err == nil && metrics != nil {
		mgr.SetMetrics(metrics)
	}
	return mgr, nil
}

// ProvideSharedStore builds the redis store used by redis-backed policies. It provides
// nil when no policy needs one.
func ProvideSharedStore(i do.Injector) (limiter.SharedStore, error) {
	cfg, err := do.Invoke[*limiter.Config](i)
	if err != nil {
		return nil, err
	}
	if !cfg.UsesRedis() {
		return nil, nil
	}

	mgr, err := do.Invoke[*redis.Manager](i)
	if err != nil {
		return nil, err
	}
	if mgr == nil {
		return nil, limiter.ErrStoreNotConfigured.WithData("instance", cfg.Store.Instance)
	}
	client := mgr.Client(cfg.Store.Instance)
	if client == nil {
		return nil, limiter.ErrStoreNotConfigured.WithData("instance", cfg.Store.Instance)
	}

	return limiter.NewRedisStore(client,
		limiter.WithKeyPrefix(cfg.Store.KeyPrefix),
		limiter.WithOpTimeout(cfg.Store.OpTimeout),
	), nil
}

// ProvideTelemetryManager starts tracing and metric export from the telemetry section.
func ProvideTelemetryManager(i do.Injector) (*telemetry.Manager, error) {
	loader, err := do.Invoke[*config.Loader](i)
	if err != nil {
		return nil, err
	}

	cfg := telemetry.DefaultConfig()
	if loader.IsSet(KeyTelemetry) {
		if err := loader.UnmarshalKey(KeyTelemetry, &cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", KeyTelemetry, err)
		}
	}

	mgr := telemetry.NewManager(cfg, moduleLogger(i, "telemetry"))
	if err := mgr.Start(context.Background()); err != nil {
		return nil, err
	}
	return mgr, nil
}

// ProvideMetricsRegistry prefers an injected metric.MeterProvider, then the telemetry
// manager's, then the global one.
func ProvideMetricsRegistry(i do.Injector) (*telemetry.MetricsRegistry, error) {
	opts := []telemetry.MetricsRegistryOption{telemetry.WithLogger(moduleLogger(i, "telemetry"))}

	mgr, err := do.Invoke[*telemetry.Manager](i)
	if err != nil && !errors.Is(err, do.ErrServiceNotFound) {
		return nil, err
	}
	var mp metric.MeterProvider
	if mgr != nil {
		mp = mgr.MeterProvider()
		if ns := mgr.Config().Metrics.Namespace; ns != "" {
			opts = append(opts, telemetry.WithNamespace(ns))
		}
	}
	if injected, err := do.Invoke[metric.MeterProvider](i); err == nil && injected != nil {
		mp = injected
	}

	return telemetry.NewMetricsRegistry(mp, opts...), nil
}

// ProvideOTelMetrics provides nil when admission metrics are off.
func ProvideOTelMetrics(i do.Injector) (*limiter.OTelMetrics, error) {
	cfg, err := do.Invoke[*limiter.Config](i)
	if err != nil {
		return nil, err
	}
	if !cfg.Metrics {
		return nil, nil
	}

	registry, err := do.Invoke[*telemetry.MetricsRegistry](i)
	if err != nil {
		return nil, err
	}
	m := limiter.NewOTelMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// ProvideRedisMetrics follows the admission metrics switch.
func ProvideRedisMetrics(i do.Injector) (*redis.RedisMetrics, error) {
	cfg, err := do.Invoke[*limiter.Config](i)
	if err != nil {
		return nil, err
	}
	if !cfg.Metrics {
		return nil, nil
	}

	registry, err := do.Invoke[*telemetry.MetricsRegistry](i)
	if err != nil {
		return nil, err
	}
	m := redis.NewRedisMetrics(redis.RedisMetricsConfig{Enabled: true, RecordPoolStats: true})
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// ProvideEventBus provides nil when decision events are disabled.
func ProvideEventBus(i do.Injector) (limiter.EventBus, error) {
	cfg, err := do.Invoke[*limiter.Config](i)
	if err != nil {
		return nil, err
	}
	if !cfg.Events.Enabled {
		return nil, nil
	}
	log := moduleLogger(i, "limiter")
	bus, err := limiter.NewEventBus(cfg.Events.PoolSize, log)
	if err != nil {
		return nil, err
	}
	bus.Subscribe(limiter.NewLogListener(log))
	return bus, nil
}

func moduleLogger(i do.Injector, module string) *logger.CtxZapLogger {
	if mgr, err := do.Invoke[*logger.Manager](i); err == nil && mgr != nil {
		return mgr.GetLogger(module)
	}
	return logger.GetLogger(module)
}
