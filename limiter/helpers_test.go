package limiter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/KOMKZ/go-yogan-admission/logger"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// setupMiniRedis returns a store over a fresh miniredis server, closed with the test.
func setupMiniRedis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisStore(client)
}

// stubStore returns canned values and counts calls.
type stubStore struct {
	mu        sync.Mutex
	evalReply interface{}
	evalErr   error
	getValue  int64
	getFound  bool
	getErr    error
	ttl       time.Duration
	ttlFound  bool
	ttlErr    error
	evalCalls int
	lastArgs  []interface{}
	lastKeys  []string
}

func (s *stubStore) Set(context.Context, string, int64, time.Duration) error {
	return nil
}

func (s *stubStore) Get(context.Context, string) (int64, bool, error) {
	return s.getValue, s.getFound, s.getErr
}

func (s *stubStore) TTL(context.Context, string) (time.Duration, bool, error) {
	return s.ttl, s.ttlFound, s.ttlErr
}

func (s *stubStore) Eval(_ context.Context, _ string, keys []string, args ...interface{}) (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evalCalls++
	s.lastKeys = keys
	s.lastArgs = args
	return s.evalReply, s.evalErr
}

var errConnRefused = errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")

func failingStore() *stubStore {
	return &stubStore{evalErr: errConnRefused, getErr: errConnRefused, ttlErr: errConnRefused}
}

func fixedWindowPolicy(limit int, window time.Duration) Policy {
	return Policy{Strategy: StrategyFixedWindow, Backend: BackendLocal, DefaultLimit: limit, WindowSize: window}
}

func tokenBucketPolicy(limit int, window time.Duration) Policy {
	return Policy{Strategy: StrategyTokenBucket, Backend: BackendLocal, DefaultLimit: limit, WindowSize: window}
}

func testOpts(clock *fakeClock, log *logger.TestCtxLogger) []Option {
	return []Option{WithClock(clock.Now), WithLogger(log)}
}
