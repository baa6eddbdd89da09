package middleware

import (
	"github.com/KOMKZ/go-yogan-admission/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

const (
	// TraceIDKeyDefault is the gin context key of the trace id.
	TraceIDKeyDefault = "trace_id"

	// TraceIDHeaderDefault is read from requests and written to responses.
	TraceIDHeaderDefault = "X-Trace-ID"
)

// TraceConfig configures TraceID.
type TraceConfig struct {
	TraceIDKey           string
	TraceIDHeader        string
	EnableResponseHeader bool
	Generator            func() string
}

func DefaultTraceConfig() TraceConfig {
	return TraceConfig{
		TraceIDKey:           TraceIDKeyDefault,
		TraceIDHeader:        TraceIDHeaderDefault,
		EnableResponseHeader: true,
		Generator:            uuid.NewString,
	}
}

// TraceID gives every request a trace id: the active OTel span's when there is one,
// else the incoming header, else a generated uuid. The id is stored in the request
// context for CtxLogger and in the gin context under TraceIDKey.
//
//	engine.Use(otelgin.Middleware("admission-gateway"), middleware.TraceID(middleware.DefaultTraceConfig()))
func TraceID(cfg TraceConfig) gin.HandlerFunc {
	if cfg.TraceIDKey == "" {
		cfg.TraceIDKey = TraceIDKeyDefault
	}
	if cfg.TraceIDHeader == "" {
		cfg.TraceIDHeader = TraceIDHeaderDefault
	}
	if cfg.Generator == nil {
		cfg.Generator = uuid.NewString
	}

	return func(c *gin.Context) {
		var traceID string
		if sc := trace.SpanFromContext(c.Request.Context()).SpanContext(); sc.IsValid() {
			traceID = sc.TraceID().String()
		} else {
			traceID = c.GetHeader(cfg.TraceIDHeader)
			if traceID == "" {
				traceID = cfg.Generator()
			}
			c.Request = c.Request.WithContext(logger.ContextWithTraceID(c.Request.Context(), traceID))
		}

		c.Set(cfg.TraceIDKey, traceID)
		if cfg.EnableResponseHeader {
			c.Writer.Header().Set(cfg.TraceIDHeader, traceID)
		}

		c.Next()
	}
}

// GetTraceID returns the trace id stored under TraceIDKeyDefault.
func GetTraceID(c *gin.Context) string {
	return GetTraceIDWithKey(c, TraceIDKeyDefault)
}

func GetTraceIDWithKey(c *gin.Context, key string) string {
	return c.GetString(key)
}
