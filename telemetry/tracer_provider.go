package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
)

func (m *Manager) createTracerProvider(res *resource.Resource) (*trace.TracerProvider, error) {
	exporter, err := m.createSpanExporter()
	if err != nil {
		return nil, fmt.Errorf("create exporter failed: %w", err)
	}

	return trace.NewTracerProvider(
		trace.WithResource(res),
		trace.WithSampler(m.createSampler()),
		trace.WithBatcher(exporter),
	), nil
}

func (m *Manager) createSampler() trace.Sampler {
	switch m.config.Sampler.Type {
	case SamplerAlwaysOn:
		return trace.AlwaysSample()
	case SamplerAlwaysOff:
		return trace.NeverSample()
	case SamplerRatio:
		return trace.TraceIDRatioBased(m.config.Sampler.Ratio)
	default:
		return trace.ParentBased(trace.AlwaysSample())
	}
}
