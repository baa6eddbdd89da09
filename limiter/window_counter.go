package limiter

import (
	"math"
	"sync"
	"time"
)

// windowCounter is the fixed-window state of one key.
type windowCounter struct {
	mu          sync.Mutex
	windowStart time.Time
	count       int
	windowSize  time.Duration
	now         func() time.Time
}

func newWindowCounter(windowSize time.Duration, now func() time.Time) *windowCounter {
	return &windowCounter{
		windowStart: now(),
		windowSize:  windowSize,
		now:         now,
	}
}

// resetIfElapsed must be called with mu held.
func (w *windowCounter) resetIfElapsed(now time.Time) {
	if now.Sub(w.windowStart) > w.windowSize {
		w.windowStart = now
		w.count = 0
	}
}

func (w *windowCounter) tryIncrement(limit int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.resetIfElapsed(w.now())
	if w.count < limit {
		w.count++
		return true
	}
	return false
}

func (w *windowCounter) currentCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.resetIfElapsed(w.now())
	return w.count
}

// retryAfterSeconds is the time left in the window, rounded up and clamped to the window.
// An elapsed window yields 0 without resetting.
func (w *windowCounter) retryAfterSeconds() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.retryAfterLocked(w.now())
}

func (w *windowCounter) retryAfterLocked(now time.Time) int {
	elapsed := now.Sub(w.windowStart)
	if elapsed > w.windowSize {
		return 0
	}
	secs := int(math.Ceil((w.windowSize - elapsed).Seconds()))
	maxSecs := int(math.Ceil(w.windowSize.Seconds()))
	return min(max(secs, 0), maxSecs)
}

// retryAfterIfFull returns 0 while count < limit, else retryAfterSeconds. One lock for both reads.
func (w *windowCounter) retryAfterIfFull(limit int) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	if now.Sub(w.windowStart) > w.windowSize || w.count < limit {
		return 0
	}
	return w.retryAfterLocked(now)
}
