package limiter

import (
	"context"
	"time"

	"github.com/KOMKZ/go-yogan-admission/logger"
	"go.uber.org/zap"
)

// DecisionEvent describes one Allow decision made by a factory-built limiter.
type DecisionEvent struct {
	ID       string
	PolicyID string
	Strategy Strategy
	Backend  Backend
	Key      string
	Allowed  bool
	TraceID  string
	At       time.Time
}

// EventListener receives decision events. Listeners run on the bus worker pool and must
// not assume any ordering between events.
type EventListener interface {
	OnDecision(ctx context.Context, event DecisionEvent)
}

// EventListenerFunc adapts a function to EventListener.
type EventListenerFunc func(ctx context.Context, event DecisionEvent)

func (f EventListenerFunc) OnDecision(ctx context.Context, event DecisionEvent) {
	f(ctx, event)
}

// EventBus fans decision events out to listeners.
type EventBus interface {
	Subscribe(listener EventListener)

	// Publish never blocks the caller; events are dropped when the bus is saturated or closed.
	Publish(event DecisionEvent)

	// Close waits for in-flight deliveries and stops the bus.
	Close()
}

// LogListener writes decisions to a module logger: denials at INFO, admissions at DEBUG.
type LogListener struct {
	logger logger.CtxLogger
}

func NewLogListener(log logger.CtxLogger) *LogListener {
	if log == nil {
		log = logger.GetLogger("limiter")
	}
	return &LogListener{logger: log}
}

func (l *LogListener) OnDecision(ctx context.Context, event DecisionEvent) {
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("policy", event.PolicyID),
		zap.String("strategy", string(event.Strategy)),
		zap.String("backend", string(event.Backend)),
		zap.String("key", event.Key),
		zap.Time("at", event.At),
	}
	if event.Allowed {
		l.logger.DebugCtx(ctx, "admission allowed", fields...)
		return
	}
	l.logger.InfoCtx(ctx, "admission denied", fields...)
}
