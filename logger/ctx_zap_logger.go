package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// CtxLogger is the logging surface components depend on. Both CtxZapLogger and
// TestCtxLogger implement it.
type CtxLogger interface {
	DebugCtx(ctx context.Context, msg string, fields ...zap.Field)
	InfoCtx(ctx context.Context, msg string, fields ...zap.Field)
	WarnCtx(ctx context.Context, msg string, fields ...zap.Field)
	ErrorCtx(ctx context.Context, msg string, fields ...zap.Field)
}

// CtxZapLogger is a module-bound zap logger that pulls the trace id out of ctx.
// Obtain one from Manager.GetLogger or the package-level GetLogger.
type CtxZapLogger struct {
	base   *zap.Logger
	module string
	config *ManagerConfig
}

type traceIDKey struct{}

// ContextWithTraceID stores a request trace id for loggers to pick up when no span is active.
func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// TraceIDFromContext returns the span trace id, else the id stored by ContextWithTraceID.
func TraceIDFromContext(ctx context.Context) string {
	return extractTraceIDFromContext(ctx, nil)
}

// NewNop returns a logger that discards everything.
func NewNop() *CtxZapLogger {
	return &CtxZapLogger{base: zap.NewNop(), module: "nop"}
}

func (l *CtxZapLogger) InfoCtx(ctx context.Context, msg string, fields ...zap.Field) {
	l.base.Info(msg, l.enrichFields(ctx, fields)...)
}

// ErrorCtx also attaches a depth-limited stack when stacktraces are enabled for error.
func (l *CtxZapLogger) ErrorCtx(ctx context.Context, msg string, fields ...zap.Field) {
	enriched := l.enrichFields(ctx, fields)

	if l.config != nil && shouldCaptureStacktrace("error", *l.config) {
		// skip: runtime.Callers, CaptureStacktrace, ErrorCtx
		if stack := CaptureStacktrace(3, l.config.StacktraceDepth); stack != "" {
			enriched = append(enriched, zap.String("stack", stack))
		}
	}

	l.base.Error(msg, enriched...)
}

func (l *CtxZapLogger) DebugCtx(ctx context.Context, msg string, fields ...zap.Field) {
	l.base.Debug(msg, l.enrichFields(ctx, fields)...)
}

func (l *CtxZapLogger) WarnCtx(ctx context.Context, msg string, fields ...zap.Field) {
	l.base.Warn(msg, l.enrichFields(ctx, fields)...)
}

// With returns a child logger carrying fields on every entry.
func (l *CtxZapLogger) With(fields ...zap.Field) *CtxZapLogger {
	return &CtxZapLogger{
		base:   l.base.With(fields...),
		module: l.module,
		config: l.config,
	}
}

// Module returns the bound module name.
func (l *CtxZapLogger) Module() string {
	return l.module
}

// GetZapLogger exposes the underlying logger for third-party integrations.
func (l *CtxZapLogger) GetZapLogger() *zap.Logger {
	return l.base
}

func (l *CtxZapLogger) enrichFields(ctx context.Context, fields []zap.Field) []zap.Field {
	if l.config == nil {
		return fields
	}

	enriched := make([]zap.Field, 0, len(fields)+2)
	enriched = append(enriched, zap.String("app_name", l.config.AppName))

	if l.config.EnableTraceID {
		if traceID := extractTraceIDFromContext(ctx, l.config); traceID != "" {
			enriched = append(enriched, zap.String(l.config.TraceIDFieldName, traceID))
		}
	}

	return append(enriched, fields...)
}

// extractTraceIDFromContext order: OTel span, typed key, configured string key.
func extractTraceIDFromContext(ctx context.Context, cfg *ManagerConfig) string {
	if ctx == nil {
		return ""
	}
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		return span.SpanContext().TraceID().String()
	}
	if id, ok := ctx.Value(traceIDKey{}).(string); ok {
		return id
	}
	if cfg != nil && cfg.TraceIDKey != "" {
		if id, ok := ctx.Value(cfg.TraceIDKey).(string); ok {
			return id
		}
	}
	return ""
}
