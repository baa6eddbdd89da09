package application

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/KOMKZ/go-yogan-admission/httpx"
	"github.com/KOMKZ/go-yogan-admission/limiter"
	"github.com/KOMKZ/go-yogan-admission/logger"
	"github.com/KOMKZ/go-yogan-admission/middleware"
	"github.com/KOMKZ/go-yogan-admission/telemetry"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// HTTPServerDeps are the components the server wires into its middleware chain.
// Telemetry and HealthCheckers are optional.
type HTTPServerDeps struct {
	Factory        *limiter.Factory
	Admission      *limiter.Config
	Telemetry      *telemetry.Manager
	HealthCheckers []middleware.HealthChecker
	Logger         logger.CtxLogger
}

// HTTPServer is a gin engine guarded by the admission middleware.
type HTTPServer struct {
	engine     *gin.Engine
	httpServer *http.Server
	listener   net.Listener
	cfg        ApiServerConfig
	logger     logger.CtxLogger
}

// NewHTTPServer builds the engine. Middleware order: otelgin, TraceID, Recovery,
// error logging, RequestLog, RateLimiter. Health routes, /ping and the inspect routes are
// registered afterwards.
func NewHTTPServer(cfg AppConfig, deps HTTPServerDeps) (*HTTPServer, error) {
	cfg.ApplyDefaults()
	if err := cfg.ApiServer.Validate(); err != nil {
		return nil, fmt.Errorf("invalid api_server config: %w", err)
	}
	if deps.Logger == nil {
		deps.Logger = logger.GetLogger("http")
	}
	ctx := context.Background()

	gin.SetMode(cfg.ApiServer.Mode)
	engine := gin.New()
	engine.HandleMethodNotAllowed = true

	if deps.Telemetry != nil && deps.Telemetry.IsEnabled() {
		serviceName := deps.Telemetry.Config().ServiceName
		engine.Use(otelgin.Middleware(serviceName))
		deps.Logger.DebugCtx(ctx, "otelgin middleware registered", zap.String("service_name", serviceName))
	}

	mw := cfg.Middleware
	if mw.TraceID.Enable {
		engine.Use(middleware.TraceID(middleware.TraceConfig{
			TraceIDKey:           mw.TraceID.TraceIDKey,
			TraceIDHeader:        mw.TraceID.TraceIDHeader,
			EnableResponseHeader: mw.TraceID.EnableResponseHeader,
		}))
	}

	engine.Use(middleware.Recovery(deps.Logger))

	if mw.ErrorLogging != nil {
		engine.Use(httpx.ErrorLoggingMiddleware(*mw.ErrorLogging, deps.Logger))
	}

	if mw.RequestLog.Enable {
		engine.Use(middleware.RequestLog(middleware.RequestLogConfig{
			Logger:    deps.Logger,
			SkipPaths: mw.RequestLog.SkipPaths,
		}))
	}

	if mw.RateLimit.Enable {
		rl, policyID, err := newRateLimiter(mw.RateLimit, deps)
		if err != nil {
			return nil, err
		}
		engine.Use(rl)
		deps.Logger.DebugCtx(ctx, "rate limiter enabled", zap.String("policy", policyID))
	}

	middleware.RegisterHealthRoutes(engine, deps.HealthCheckers...)
	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	if cfg.Inspect.Enable && deps.Factory != nil && deps.Admission != nil {
		registerAdmissionRoutes(engine, cfg.Inspect.Prefix, &admissionAPI{
			factory:   deps.Factory,
			admission: deps.Admission,
		})
	}

	engine.NoRoute(httpx.NoRouteHandler())
	engine.NoMethod(httpx.NoMethodHandler())

	return &HTTPServer{engine: engine, cfg: cfg.ApiServer, logger: deps.Logger}, nil
}

func newRateLimiter(cfg *RateLimitConfig, deps HTTPServerDeps) (gin.HandlerFunc, string, error) {
	if deps.Admission == nil {
		return nil, "", errors.New("rate limiting enabled without an admission config")
	}

	policyID := cfg.Policy
	if policyID == "" {
		policyID = deps.Admission.DefaultPolicy
	}
	if policyID == "" {
		policyID = middleware.DefaultPolicyID
	}
	policy, ok := deps.Admission.Policy(policyID)
	if !ok {
		return nil, "", fmt.Errorf("rate limit policy %q is not configured", policyID)
	}

	rl, err := middleware.RateLimiter(middleware.RateLimiterConfig{
		Factory:        deps.Factory,
		PolicyID:       policyID,
		Policy:         policy,
		UserContextKey: deps.Admission.UserContextKey,
		SkipPaths:      cfg.SkipPaths,
		Logger:         deps.Logger,
	})
	return rl, policyID, err
}

// Engine is the router for business routes.
func (s *HTTPServer) Engine() *gin.Engine {
	return s.engine
}

// Start binds the listener and serves in the background. A bind error is returned
// immediately.
func (s *HTTPServer) Start() error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:      s.engine,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.ErrorCtx(context.Background(), "http server stopped", zap.Error(err))
		}
	}()

	s.logger.InfoCtx(context.Background(), "http server started",
		zap.String("addr", ln.Addr().String()),
		zap.String("mode", s.cfg.Mode))
	return nil
}

// Addr is the bound address, empty before Start.
func (s *HTTPServer) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown drains in-flight requests until ctx expires.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	s.logger.InfoCtx(ctx, "http server stopped")
	return nil
}
