package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace"
)

func (m *Manager) createSpanExporter() (trace.SpanExporter, error) {
	switch m.config.Exporter {
	case ExporterStdout:
		return stdouttrace.New(stdouttrace.WithWriter(m.writer), stdouttrace.WithPrettyPrint())
	case ExporterNoop:
		return noopExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported exporter type: %s", m.config.Exporter)
	}
}

// createMetricReader returns the injected reader, or a periodic reader over the exporter.
func (m *Manager) createMetricReader() (sdkmetric.Reader, error) {
	if m.reader != nil {
		return m.reader, nil
	}
	if m.config.Exporter != ExporterStdout {
		return sdkmetric.NewManualReader(), nil
	}

	exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(m.writer))
	if err != nil {
		return nil, fmt.Errorf("create stdout metrics exporter: %w", err)
	}
	return sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(m.config.Metrics.ExportInterval)), nil
}

type noopExporter struct{}

func (noopExporter) ExportSpans(context.Context, []trace.ReadOnlySpan) error { return nil }

func (noopExporter) Shutdown(context.Context) error { return nil }
