package engine

import "time"

// Defaults applied by New when the corresponding Config field is zero.
const (
	DefaultTTL      = 5 * time.Minute
	DefaultStaleTTL = 300 * time.Second
)

// BreakerConfig configures the engine's circuit breaker.
type BreakerConfig struct {
	// Enabled turns the breaker on. When false the engine never opens the
	// circuit and every backend error is simply counted.
	Enabled bool

	// Threshold is the number of consecutive backend failures before the
	// circuit opens. Default: 5.
	Threshold int

	// ResetTimeout is how long the circuit stays open before closing again.
	// Default: 30s.
	ResetTimeout time.Duration
}

// Config configures an Engine. The zero value is NOT usable; start from
// DefaultConfig and override.
type Config struct {
	// DefaultTTL is applied when an operation passes ttl <= 0 and no
	// descriptor TTL matches. Default: 5 minutes.
	DefaultTTL time.Duration

	// KeyPrefix is prepended (with ":") to every key before it reaches the
	// backend, isolating applications sharing one backend. Empty means no
	// prefix.
	KeyPrefix string

	// ReadThrough enables cache-then-fetch reads. When false, ReadThrough
	// calls the fetch function directly and does not touch the cache.
	ReadThrough bool

	// WriteThrough enables cache population after persist. When false,
	// WriteThrough persists and invalidates but never writes entity payloads
	// to the cache.
	WriteThrough bool

	// StampedeProtection coalesces concurrent fetches of the same missing
	// key: in-process via request coalescing, cross-process via a
	// distributed lock.
	StampedeProtection bool

	// FetchLockTTL is the TTL of the distributed fetch lock. Zero means the
	// lock package default (30s).
	FetchLockTTL time.Duration

	// FetchLockRetries is the acquisition retry budget for the fetch lock.
	// Zero means the lock package default (50).
	FetchLockRetries int

	// StaleWhileRevalidate keeps a shadow copy of each value alive for
	// StaleTTL past the primary TTL, served to lock losers instead of
	// blocking on the fetch.
	StaleWhileRevalidate bool

	// StaleTTL is how long past the primary TTL a stale shadow survives.
	// Default: 300 seconds.
	StaleTTL time.Duration

	// InvalidateRelations deletes cached relation entries of an entity when
	// the entity is written or removed.
	InvalidateRelations bool

	// InvalidateQueriesOnWrite deletes cached query, find, count, page and
	// aggregate results for a type when an entity of that type is written.
	InvalidateQueriesOnWrite bool

	// Breaker configures circuit breaking over backend failures.
	Breaker BreakerConfig

	// Debug enables per-operation debug logging.
	Debug bool
}

// DefaultConfig returns the recommended starting configuration: read-through
// and write-through on, stampede protection on, breaker on, stale serving
// off.
func DefaultConfig() Config {
	return Config{
		DefaultTTL:               DefaultTTL,
		ReadThrough:              true,
		WriteThrough:             true,
		StampedeProtection:       true,
		StaleTTL:                 DefaultStaleTTL,
		InvalidateQueriesOnWrite: true,
		Breaker: BreakerConfig{
			Enabled:      true,
			Threshold:    5,
			ResetTimeout: 30 * time.Second,
		},
	}
}

func (c *Config) normalize() {
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = DefaultTTL
	}
	if c.StaleTTL <= 0 {
		c.StaleTTL = DefaultStaleTTL
	}
}
