package limiter

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/KOMKZ/go-yogan-admission/logger"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

const (
	defaultEventPoolSize = 16
	eventBusCloseTimeout = 5 * time.Second
)

// eventBus delivers each event to each listener as one task on an ants pool.
type eventBus struct {
	pool      *ants.Pool
	listeners []EventListener
	mu        sync.RWMutex
	closed    atomic.Bool
	dropped   atomic.Int64
	logger    logger.CtxLogger
}

// NewEventBus creates a bus with poolSize workers. poolSize <= 0 uses 16.
func NewEventBus(poolSize int, log logger.CtxLogger) (EventBus, error) {
	if poolSize <= 0 {
		poolSize = defaultEventPoolSize
	}
	if log == nil {
		log = logger.GetLogger("limiter")
	}

	b := &eventBus{logger: log}
	pool, err := ants.NewPool(poolSize,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(p interface{}) {
			b.logger.ErrorCtx(context.Background(), "decision listener panicked",
				zap.String("panic", fmt.Sprint(p)))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create event pool: %w", err)
	}
	b.pool = pool
	return b, nil
}

func (b *eventBus) Subscribe(listener EventListener) {
	if b.closed.Load() {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, listener)
}

func (b *eventBus) Publish(event DecisionEvent) {
	if b.closed.Load() {
		return
	}

	b.mu.RLock()
	listeners := make([]EventListener, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.RUnlock()

	ctx := context.Background()
	if event.TraceID != "" {
		ctx = logger.ContextWithTraceID(ctx, event.TraceID)
	}

	for _, listener := range listeners {
		listener := listener
		if err := b.pool.Submit(func() { listener.OnDecision(ctx, event) }); err != nil {
			b.dropped.Add(1)
		}
	}
}

// Dropped returns the number of deliveries rejected because the pool was full or closed.
func (b *eventBus) Dropped() int64 {
	return b.dropped.Load()
}

func (b *eventBus) Close() {
	if !b.closed.CompareAndSwap(false, true) {
		return
	}
	if err := b.pool.ReleaseTimeout(eventBusCloseTimeout); err != nil {
		b.logger.WarnCtx(context.Background(), "event pool did not drain in time", zap.Error(err))
	}
}
