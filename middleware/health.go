package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthChecker is one dependency checked by the readiness endpoints.
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) error
}

const healthCheckTimeout = 2 * time.Second

// HealthCheckHandler serves /health, /health/liveness and /health/readiness.
type HealthCheckHandler struct {
	checkers []HealthChecker
}

func NewHealthCheckHandler(checkers ...HealthChecker) *HealthCheckHandler {
	return &HealthCheckHandler{checkers: checkers}
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (h *HealthCheckHandler) check(ctx context.Context) (healthResponse, bool) {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	resp := healthResponse{Status: "healthy", Checks: make(map[string]string, len(h.checkers))}
	healthy := true
	for _, checker := range h.checkers {
		if err := checker.Check(ctx); err != nil {
			resp.Checks[checker.Name()] = err.Error()
			healthy = false
			continue
		}
		resp.Checks[checker.Name()] = "ok"
	}
	if !healthy {
		resp.Status = "unhealthy"
	}
	return resp, healthy
}

// Handle reports every check with its result.
func (h *HealthCheckHandler) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, healthy := h.check(c.Request.Context())
		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, resp)
	}
}

// HandleLiveness never checks dependencies.
func (h *HealthCheckHandler) HandleLiveness() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "alive"})
	}
}

// HandleReadiness returns 503 until every dependency answers.
func (h *HealthCheckHandler) HandleReadiness() gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, healthy := h.check(c.Request.Context())
		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": resp.Status})
	}
}

// RegisterHealthRoutes mounts the three endpoints on router.
func RegisterHealthRoutes(router gin.IRouter, checkers ...HealthChecker) {
	handler := NewHealthCheckHandler(checkers...)
	router.GET("/health", handler.Handle())
	router.GET("/health/liveness", handler.HandleLiveness())
	router.GET("/health/readiness", handler.HandleReadiness())
}
