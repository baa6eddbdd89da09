package httpx

import (
	"errors"
	"net/http"

	"github.com/KOMKZ/go-yogan-admission/errcode"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ModuleCode is the errcode module of the HTTP envelope.
const ModuleCode = 32

var (
	ErrBadRequest = errcode.Register(errcode.New(
		ModuleCode, 1, "httpx", "error.httpx.bad_request", "malformed request body", http.StatusBadRequest,
	))
	ErrNotFound = errcode.Register(errcode.New(
		ModuleCode, 2, "httpx", "error.httpx.not_found", "resource not found", http.StatusNotFound,
	))
)

// Response is the envelope of every JSON route outside the admission middleware.
type Response struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg,omitempty"`
	Data interface{} `json:"data,omitempty"`
}

func OkJson(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code: 0,
		Msg:  "success",
		Data: data,
	})
}

func InternalErrorJson(c *gin.Context, msg string) {
	c.JSON(http.StatusInternalServerError, Response{
		Code: http.StatusInternalServerError,
		Msg:  msg,
	})
}

// NoRouteHandler renders 404 in the envelope.
func NoRouteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusNotFound, Response{
			Code: http.StatusNotFound,
			Msg:  "route not found: " + c.Request.Method + " " + c.Request.URL.Path,
		})
	}
}

// NoMethodHandler renders 405 in the envelope.
func NoMethodHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, Response{
			Code: http.StatusMethodNotAllowed,
			Msg:  "method not allowed: " + c.Request.Method + " " + c.Request.URL.Path,
		})
	}
}

// HandleError renders a LayeredError with its own status, code, message and data. Any other
// error is a 500. Logging follows the ErrorLoggingMiddleware config, off by default.
func HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	ctx := c.Request.Context()
	cfg := getErrorLoggingConfig(c)
	log := cfg.Logger

	var layeredErr *errcode.LayeredError
	if errors.As(err, &layeredErr) {
		if shouldLogError(cfg, layeredErr.HTTPStatus()) {
			fields := []zap.Field{
				zap.Int("error_code", layeredErr.Code()),
				zap.String("error_msg", layeredErr.Message()),
			}
			if cfg.FullErrorChain {
				fields = append(fields,
					zap.String("error_chain", layeredErr.String()),
					zap.Error(err),
				)
			}

			switch cfg.LogLevel {
			case "warn":
				log.WarnCtx(ctx, "request failed", fields...)
			case "info":
				log.InfoCtx(ctx, "request failed", fields...)
			default:
				log.ErrorCtx(ctx, "request failed", fields...)
			}
		}

		c.JSON(layeredErr.HTTPStatus(), Response{
			Code: layeredErr.Code(),
			Msg:  layeredErr.Message(),
			Data: layeredErr.Data(),
		})
		return
	}

	if shouldLogError(cfg, http.StatusInternalServerError) {
		log.ErrorCtx(ctx, "request failed", zap.Error(err))
	}
	InternalErrorJson(c, err.Error())
}

func shouldLogError(cfg errorLoggingConfigInternal, status int) bool {
	return cfg.Enable && !cfg.IgnoreStatusMap[status]
}
