package di

import (
	"github.com/KOMKZ/go-yogan-admission/limiter"
	"github.com/samber/do/v2"
)

// RegisterCoreProviders registers every provider lazily, by dependency layer.
// A metric.MeterProvider registered beforehand receives the instruments.
func RegisterCoreProviders(injector do.Injector, opts ConfigOptions) {
	// config
	do.Provide(injector, ProvideConfigLoader(opts))

	// logging
	do.Provide(injector, ProvideLoggerManager)
	do.Provide(injector, ProvideCtxLogger("admission"))

	// observability
	do.Provide(injector, ProvideTelemetryManager)
	do.Provide(injector, ProvideMetricsRegistry)

	// infrastructure
	do.Provide(injector, ProvideAdmissionConfig)
	do.Provide(injector, ProvideRedisMetrics)
	do.Provide(injector, ProvideRedisManager)
	do.Provide(injector, ProvideSharedStore)

	// admission
	do.Provide(injector, ProvideOTelMetrics)
	do.Provide(injector, ProvideEventBus)
	do.Provide(injector, limiter.ProvideFactory)
}
