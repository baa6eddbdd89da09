package httpx

import (
	"github.com/KOMKZ/go-yogan-admission/logger"
	"github.com/gin-gonic/gin"
)

const errorLoggingConfigKey = "httpx:error_logging_config"

type errorLoggingConfigInternal struct {
	Enable          bool
	IgnoreStatusMap map[int]bool
	FullErrorChain  bool
	LogLevel        string
	Logger          logger.CtxLogger
}

// ErrorLoggingMiddleware stores cfg on the gin context for HandleError. A nil log uses the
// "httpx" module logger.
func ErrorLoggingMiddleware(cfg ErrorLoggingConfig, log logger.CtxLogger) gin.HandlerFunc {
	if log == nil {
		log = logger.GetLogger("httpx")
	}

	ignoreStatusMap := make(map[int]bool, len(cfg.IgnoreHTTPStatus))
	for _, status := range cfg.IgnoreHTTPStatus {
		ignoreStatusMap[status] = true
	}

	internalCfg := errorLoggingConfigInternal{
		Enable:          cfg.Enable,
		IgnoreStatusMap: ignoreStatusMap,
		FullErrorChain:  cfg.FullErrorChain,
		LogLevel:        cfg.LogLevel,
		Logger:          log,
	}

	return func(c *gin.Context) {
		c.Set(errorLoggingConfigKey, internalCfg)
		c.Next()
	}
}

func getErrorLoggingConfig(c *gin.Context) errorLoggingConfigInternal {
	if val, exists := c.Get(errorLoggingConfigKey); exists {
		if cfg, ok := val.(errorLoggingConfigInternal); ok {
			return cfg
		}
	}
	return errorLoggingConfigInternal{
		IgnoreStatusMap: map[int]bool{},
		FullErrorChain:  true,
		LogLevel:        "error",
	}
}
