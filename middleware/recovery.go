package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/KOMKZ/go-yogan-admission/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Recovery replaces gin.Recovery: the panic and its stack go to log, the client gets a
// generic 500.
func Recovery(log logger.CtxLogger) gin.HandlerFunc {
	if log == nil {
		log = logger.GetLogger("middleware")
	}

	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.ErrorCtx(c.Request.Context(), "panic recovered",
					zap.Any("error", err),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.String("client_ip", c.ClientIP()),
					zap.String("stack", string(debug.Stack())),
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "Internal Server Error",
				})
			}
		}()

		c.Next()
	}
}
