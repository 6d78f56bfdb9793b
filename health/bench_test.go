package health

import (
	"context"
	"fmt"
	"testing"

	"github.com/jonwraymond/cacheops/backend"
)

// BenchmarkBackendChecker measures one ping-based probe.
func BenchmarkBackendChecker(b *testing.B) {
	c := NewBackendChecker("memory", backend.NewMemory(), 0)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.Check(ctx)
	}
}

// BenchmarkAggregator_CheckAll measures fan-out over 10 checkers.
func BenchmarkAggregator_CheckAll(b *testing.B) {
	agg := NewAggregator()
	for i := 0; i < 10; i++ {
		agg.Register(fmt.Sprintf("c%d", i), staticChecker(StatusHealthy))
	}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = agg.CheckAll(ctx)
	}
}
