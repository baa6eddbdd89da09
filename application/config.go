package application

import (
	"time"

	"github.com/KOMKZ/go-yogan-admission/httpx"
	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// AppConfig is the HTTP part of the gateway configuration.
//
//	api_server:
//	  port: 8080
//	  mode: release
//	middleware:
//	  rate_limit:
//	    enable: true
//	    policy: api
//	inspect:
//	  enable: true
//	  prefix: /admission
type AppConfig struct {
	ApiServer  ApiServerConfig   `mapstructure:"api_server"`
	Middleware *MiddlewareConfig `mapstructure:"middleware,omitempty"`
	Inspect    *InspectConfig    `mapstructure:"inspect,omitempty"`
}

// InspectConfig mounts the read-only policy and key state routes under Prefix.
type InspectConfig struct {
	Enable bool   `mapstructure:"enable"`
	Prefix string `mapstructure:"prefix"`
}

// ApiServerConfig configures the HTTP listener.
type ApiServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"` // 0 picks a free port
	Mode         string        `mapstructure:"mode"` // debug, release, test
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type MiddlewareConfig struct {
	TraceID    *TraceIDConfig    `mapstructure:"trace_id,omitempty"`
	RequestLog *RequestLogConfig `mapstructure:"request_log,omitempty"`
	RateLimit  *RateLimitConfig  `mapstructure:"rate_limit,omitempty"`

	ErrorLogging *httpx.ErrorLoggingConfig `mapstructure:"error_logging,omitempty"`
}

type TraceIDConfig struct {
	Enable               bool   `mapstructure:"enable"`
	TraceIDKey           string `mapstructure:"trace_id_key"`
	TraceIDHeader        string `mapstructure:"trace_id_header"`
	EnableResponseHeader bool   `mapstructure:"enable_response_header"`
}

type RequestLogConfig struct {
	Enable    bool     `mapstructure:"enable"`
	SkipPaths []string `mapstructure:"skip_paths"`
}

// RateLimitConfig selects the admission policy guarding every route.
type RateLimitConfig struct {
	Enable bool `mapstructure:"enable"`

	// Policy defaults to admission.default_policy.
	Policy    string   `mapstructure:"policy"`
	SkipPaths []string `mapstructure:"skip_paths"`
}

const defaultInspectPrefix = "/admission"

var healthPaths = []string{"/health", "/health/liveness", "/health/readiness"}

// DefaultAppConfig turns every middleware on and leaves the health endpoints unthrottled.
func DefaultAppConfig() AppConfig {
	return AppConfig{
		ApiServer: ApiServerConfig{
			Port:         8080,
			Mode:         gin.ReleaseMode,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Middleware: &MiddlewareConfig{
			TraceID:    &TraceIDConfig{Enable: true, EnableResponseHeader: true},
			RequestLog: &RequestLogConfig{Enable: true, SkipPaths: healthPaths},
			RateLimit:  &RateLimitConfig{Enable: true, SkipPaths: healthPaths},
		},
		Inspect: &InspectConfig{Enable: true, Prefix: defaultInspectPrefix},
	}
}

// ApplyDefaults fills the server fields and any middleware section left out.
func (c *AppConfig) ApplyDefaults() {
	d := DefaultAppConfig()
	if c.ApiServer.Mode == "" {
		c.ApiServer.Mode = d.ApiServer.Mode
	}
	if c.ApiServer.ReadTimeout <= 0 {
		c.ApiServer.ReadTimeout = d.ApiServer.ReadTimeout
	}
	if c.ApiServer.WriteTimeout <= 0 {
		c.ApiServer.WriteTimeout = d.ApiServer.WriteTimeout
	}
	if c.Inspect == nil {
		c.Inspect = d.Inspect
	} else if c.Inspect.Prefix == "" {
		c.Inspect.Prefix = defaultInspectPrefix
	}
	if c.Middleware == nil {
		c.Middleware = d.Middleware
		return
	}
	if c.Middleware.TraceID == nil {
		c.Middleware.TraceID = d.Middleware.TraceID
	}
	if c.Middleware.RequestLog == nil {
		c.Middleware.RequestLog = d.Middleware.RequestLog
	}
	if c.Middleware.RateLimit == nil {
		c.Middleware.RateLimit = d.Middleware.RateLimit
	}
}

func (c ApiServerConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Port, validation.Min(0), validation.Max(65535)),
		validation.Field(&c.Mode, validation.In(gin.DebugMode, gin.ReleaseMode, gin.TestMode)),
	)
}
