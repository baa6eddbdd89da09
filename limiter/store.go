package limiter

import (
	"context"
	"time"
)

// SharedStore is the key-value contract the redis engines need. Eval must run the script
// atomically with respect to every other operation on the keys it references.
type SharedStore interface {
	// Set writes an integer with a TTL. A zero ttl means no expiry.
	Set(ctx context.Context, key string, value int64, ttl time.Duration) error

	// Get reads an integer; found is false when the key is absent.
	Get(ctx context.Context, key string) (value int64, found bool, err error)

	// TTL returns the remaining time to live; found is false when the key is absent or
	// has no expiry.
	TTL(ctx context.Context, key string) (ttl time.Duration, found bool, err error)

	// Eval runs a Lua script with KEYS and ARGV. A nil script reply is returned as nil.
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error)
}
