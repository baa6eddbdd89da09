package limiter

import (
	"math"
	"sync"
	"time"
)

// tokenBucket is the token-bucket state of one key.
//
// A new bucket starts with refillRate tokens, not capacity, so a cold key cannot burst
// to full capacity in its first second.
type tokenBucket struct {
	mu         sync.Mutex
	capacity   int
	refillRate int
	tokens     int
	lastFilled time.Time
	now        func() time.Time
}

func newTokenBucket(capacity, refillRate int, now func() time.Time) *tokenBucket {
	return &tokenBucket{
		capacity:   capacity,
		refillRate: refillRate,
		tokens:     min(refillRate, capacity),
		lastFilled: now(),
		now:        now,
	}
}

// refill adds whole elapsed seconds times the rate. Must be called with mu held.
func (b *tokenBucket) refill() {
	now := b.now()
	elapsed := int(now.Sub(b.lastFilled) / time.Second)
	if elapsed > 0 {
		b.tokens = min(b.capacity, b.tokens+elapsed*b.refillRate)
	}
	b.lastFilled = now
}

func (b *tokenBucket) tryConsume() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	if b.tokens > 0 {
		b.tokens--
		return true
	}
	return false
}

func (b *tokenBucket) currentCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	return b.tokens
}

func (b *tokenBucket) retryAfterSeconds() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	if b.tokens > 0 {
		return 0
	}
	return secondsPerToken(b.refillRate)
}

// secondsPerToken is ceil(1/rate). A zero rate never refills; 1 keeps callers polling.
func secondsPerToken(rate int) int {
	if rate <= 0 {
		return 1
	}
	return int(math.Ceil(1 / float64(rate)))
}
