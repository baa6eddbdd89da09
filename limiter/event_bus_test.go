package limiter

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/KOMKZ/go-yogan-admission/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingListener struct {
	mu     sync.Mutex
	events []DecisionEvent
	traces []string
}

func (r *recordingListener) OnDecision(ctx context.Context, event DecisionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	r.traces = append(r.traces, logger.TraceIDFromContext(ctx))
}

func (r *recordingListener) snapshot() []DecisionEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]DecisionEvent(nil), r.events...)
}

func TestEventBus_DeliversToEveryListener(t *testing.T) {
	bus, err := NewEventBus(4, logger.NewTestCtxLogger())
	require.NoError(t, err)

	first, second := &recordingListener{}, &recordingListener{}
	bus.Subscribe(first)
	bus.Subscribe(second)

	bus.Publish(DecisionEvent{PolicyID: "api", Key: "u1", Allowed: true, TraceID: "t-1"})

	assert.Eventually(t, func() bool {
		return len(first.snapshot()) == 1 && len(second.snapshot()) == 1
	}, time.Second, 10*time.Millisecond)

	got := first.snapshot()[0]
	assert.Equal(t, "api", got.PolicyID)
	assert.True(t, got.Allowed)

	first.mu.Lock()
	assert.Equal(t, "t-1", first.traces[0], "trace id travels in the listener context")
	first.mu.Unlock()

	bus.Close()
}

func TestEventBus_ListenerFunc(t *testing.T) {
	bus, err := NewEventBus(0, logger.NewTestCtxLogger())
	require.NoError(t, err)
	defer bus.Close()

	done := make(chan DecisionEvent, 1)
	bus.Subscribe(EventListenerFunc(func(_ context.Context, e DecisionEvent) { done <- e }))
	bus.Publish(DecisionEvent{Key: "k"})

	select {
	case e := <-done:
		assert.Equal(t, "k", e.Key)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestEventBus_PanickingListener(t *testing.T) {
	log := logger.NewTestCtxLogger()
	bus, err := NewEventBus(2, log)
	require.NoError(t, err)
	defer bus.Close()

	bus.Subscribe(EventListenerFunc(func(context.Context, DecisionEvent) { panic("boom") }))
	bus.Publish(DecisionEvent{Key: "k"})

	assert.Eventually(t, func() bool {
		return log.HasLogWithField("ERROR", "decision listener panicked", "panic", "boom")
	}, time.Second, 10*time.Millisecond)
}

func TestEventBus_DropsWhenSaturated(t *testing.T) {
	bus, err := NewEventBus(1, logger.NewTestCtxLogger())
	require.NoError(t, err)

	release := make(chan struct{})
	bus.Subscribe(EventListenerFunc(func(context.Context, DecisionEvent) { <-release }))

	for i := 0; i < 5; i++ {
		bus.Publish(DecisionEvent{})
	}

	dropped := bus.(interface{ Dropped() int64 }).Dropped()
	assert.GreaterOrEqual(t, dropped, int64(4))

	close(release)
	bus.Close()
}

func TestEventBus_ClosedIgnoresPublish(t *testing.T) {
	bus, err := NewEventBus(2, logger.NewTestCtxLogger())
	require.NoError(t, err)

	l := &recordingListener{}
	bus.Subscribe(l)
	bus.Close()
	bus.Close()

	bus.Publish(DecisionEvent{})
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, l.snapshot())
}

func TestLogListener(t *testing.T) {
	log := logger.NewTestCtxLogger()
	bus, err := NewEventBus(2, log)
	require.NoError(t, err)
	bus.Subscribe(NewLogListener(log))

	bus.Publish(DecisionEvent{ID: "e-1", PolicyID: "api", Key: "10.0.0.1", Allowed: false, TraceID: "t-9"})
	bus.Publish(DecisionEvent{ID: "e-2", PolicyID: "api", Key: "10.0.0.1", Allowed: true})
	bus.Close()

	assert.True(t, log.HasLogWithTraceID("INFO", "admission denied", "t-9"))
	assert.True(t, log.HasLogWithField("INFO", "admission denied", "key", "10.0.0.1"))
	assert.True(t, log.HasLogWithField("DEBUG", "admission allowed", "event_id", "e-2"))
}
