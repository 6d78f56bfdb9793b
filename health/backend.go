package health

import (
	"context"
	"fmt"
	"time"

	"github.com/jonwraymond/cacheops/backend"
	"github.com/jonwraymond/cacheops/breaker"
	"github.com/jonwraymond/cacheops/engine"
)

// DefaultLatencyThreshold marks a backend degraded when a ping exceeds it.
const DefaultLatencyThreshold = 100 * time.Millisecond

// BackendChecker pings a cache backend and reports it degraded when the
// round trip exceeds the latency threshold.
type BackendChecker struct {
	name      string
	be        backend.Backend
	threshold time.Duration
}

// NewBackendChecker creates a checker for a backend. threshold <= 0 means
// DefaultLatencyThreshold.
func NewBackendChecker(name string, be backend.Backend, threshold time.Duration) *BackendChecker {
	if threshold <= 0 {
		threshold = DefaultLatencyThreshold
	}
	return &BackendChecker{name: name, be: be, threshold: threshold}
}

func (c *BackendChecker) Name() string { return c.name }

// Ping checks reachability without the latency judgment.
func (c *BackendChecker) Ping(ctx context.Context) error {
	return c.be.Ping(ctx)
}

func (c *BackendChecker) Check(ctx context.Context) Result {
	start := time.Now()
	err := c.be.Ping(ctx)
	latency := time.Since(start)

	details := map[string]any{"latency": latency.String()}

	if err != nil {
		return Unhealthy("backend unreachable", err).WithDetails(details)
	}
	if latency > c.threshold {
		msg := fmt.Sprintf("backend slow: %v > %v", latency, c.threshold)
		return Degraded(msg).WithDetails(details)
	}
	return Healthy("backend reachable").WithDetails(details)
}

// EngineChecker inspects a coordination engine: an open circuit means the
// cache is being bypassed, reported as degraded (requests still succeed
// against the source of truth).
type EngineChecker struct {
	eng *engine.Engine
}

// NewEngineChecker creates a checker for an engine.
func NewEngineChecker(eng *engine.Engine) *EngineChecker {
	return &EngineChecker{eng: eng}
}

func (c *EngineChecker) Name() string { return "engine" }

func (c *EngineChecker) Check(ctx context.Context) Result {
	st := c.eng.Stats()
	state := c.eng.BreakerState()

	details := map[string]any{
		"circuit":  state.String(),
		"hit_rate": st.HitRate,
		"hits":     st.Hits,
		"misses":   st.Misses,
		"errors":   st.Errors,
	}

	if state == breaker.StateOpen {
		return Degraded("circuit open: cache bypassed").WithDetails(details)
	}
	return Healthy("engine operational").WithDetails(details)
}
