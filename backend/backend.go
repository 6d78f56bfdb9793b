package backend

import (
	"context"
	"strings"
	"time"
)

// TTL query conventions, mirroring the Redis TTL command.
const (
	// TTLNone means the key exists but has no expiry.
	TTLNone = time.Duration(-1)
	// TTLMissing means the key does not exist.
	TTLMissing = time.Duration(-2)
)

// Item is a single entry for batch writes. TTL 0 means no expiration.
type Item struct {
	Key   string
	Value []byte
	TTL   time.Duration
}

// Backend is the uniform contract over cache stores.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Context: every method must honor cancellation/deadlines.
//   - Expiry: a Get after a key's expiry instant behaves as a miss; the
//     backend never returns an expired entry.
//   - Aliasing: values returned by Get/MGet are the caller's to mutate;
//     they never alias the stored entry.
//   - Errors: a miss is not an error; errors indicate store failure.
type Backend interface {
	// Get retrieves a value. Returns (nil, false, nil) on miss or expiry.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value. TTL 0 means no expiration: the entry persists
	// until an explicit delete or flush.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetNX stores a value only if the key is absent. Returns true when
	// the write happened. This is the primitive distributed locks build on.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Delete removes a key. Returns true iff the key existed.
	Delete(ctx context.Context, key string) (bool, error)

	// DeletePattern removes every key matching the glob and returns the
	// count removed. Best-effort across keys: concurrent readers may
	// observe a partially deleted set, never an error.
	DeletePattern(ctx context.Context, pattern string) (int, error)

	// Exists reports whether a key is present and unexpired.
	Exists(ctx context.Context, key string) (bool, error)

	// MGet retrieves many keys, order-preserving, one slot per input key.
	// Missing keys yield nil slots.
	MGet(ctx context.Context, keys []string) ([][]byte, error)

	// MSet stores many items, each with its own optional TTL.
	MSet(ctx context.Context, items []Item) error

	// Flush removes all keys in the backend's current namespace.
	Flush(ctx context.Context) error

	// Keys lists keys matching the glob. Implementations that cannot
	// enumerate keys may return an empty list; that is a documented
	// degraded mode, not an error.
	Keys(ctx context.Context, pattern string) ([]string, error)

	// Expire sets a TTL on an existing key. Returns false if the key is
	// absent.
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// TTL reports a key's remaining lifetime, TTLNone for keys without
	// expiry, TTLMissing for absent keys.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Increment adds by to the integer stored at key (0 if absent) and
	// returns the new value.
	Increment(ctx context.Context, key string, by int64) (int64, error)

	// Decrement subtracts by from the integer stored at key (0 if absent)
	// and returns the new value.
	Decrement(ctx context.Context, key string, by int64) (int64, error)

	// Transaction groups operations best-effort. Backends without native
	// transaction support simply execute fn; callers must not assume
	// atomicity unless the chosen backend documents it.
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close releases resources held by the backend.
	Close() error
}

// matchPattern reports whether key matches a glob where "*" matches any
// sequence of characters (including ":").
func matchPattern(pattern, key string) bool {
	if pattern == "*" {
		return true
	}
	if !strings.Contains(pattern, "*") {
		return pattern == key
	}

	parts := strings.Split(pattern, "*")

	// Anchored prefix
	if !strings.HasPrefix(key, parts[0]) {
		return false
	}
	key = key[len(parts[0]):]

	// Anchored suffix
	last := parts[len(parts)-1]
	if !strings.HasSuffix(key, last) {
		return false
	}
	key = key[:len(key)-len(last)]

	// Middle fragments must appear in order
	for _, part := range parts[1 : len(parts)-1] {
		if part == "" {
			continue
		}
		i := strings.Index(key, part)
		if i < 0 {
			return false
		}
		key = key[i+len(part):]
	}

	return true
}
