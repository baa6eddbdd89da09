package middleware

import (
	"net/http"
	"time"

	"github.com/KOMKZ/go-yogan-admission/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLogConfig configures RequestLog.
type RequestLogConfig struct {
	Logger    logger.CtxLogger
	SkipPaths []string
}

// RequestLog logs one line per request: 5xx at error, 4xx at warn (429 included), else info.
func RequestLog(cfg RequestLogConfig) gin.HandlerFunc {
	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger("http")
	}

	skip := make(map[string]bool, len(cfg.SkipPaths))
	for _, path := range cfg.SkipPaths {
		skip[path] = true
	}

	return func(c *gin.Context) {
		if skip[c.Request.URL.Path] {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("body_size", c.Writer.Size()),
		}
		if errs := c.Errors.ByType(gin.ErrorTypePrivate).String(); errs != "" {
			fields = append(fields, zap.String("error", errs))
		}

		ctx := c.Request.Context()
		switch {
		case status >= http.StatusInternalServerError:
			cfg.Logger.ErrorCtx(ctx, "http request", fields...)
		case status >= http.StatusBadRequest:
			cfg.Logger.WarnCtx(ctx, "http request", fields...)
		default:
			cfg.Logger.InfoCtx(ctx, "http request", fields...)
		}
	}
}
