package telemetry

import (
	"fmt"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

func (m *Manager) createMeterProvider(res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	reader, err := m.createMetricReader()
	if err != nil {
		return nil, fmt.Errorf("create metric reader failed: %w", err)
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	), nil
}
