package redis

import (
	"context"
	"errors"
)

// HealthChecker reports the reachability of every managed instance.
type HealthChecker struct {
	manager *Manager
}

func NewHealthChecker(manager *Manager) *HealthChecker {
	return &HealthChecker{manager: manager}
}

func (h *HealthChecker) Name() string {
	return "redis"
}

// Check pings every instance.
func (h *HealthChecker) Check(ctx context.Context) error {
	if h.manager == nil {
		return errors.New("redis manager not initialized")
	}
	return h.manager.Ping(ctx)
}
