package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/cacheops/backend"
	"github.com/jonwraymond/cacheops/key"
	"github.com/jonwraymond/cacheops/lock"
)

func TestReadThrough_MissThenHit(t *testing.T) {
	e, _ := newTestEngine(t, DefaultConfig())
	ctx := context.Background()

	var fetches atomic.Int32
	fetch := func(ctx context.Context) ([]byte, error) {
		fetches.Add(1)
		time.Sleep(time.Millisecond)
		return []byte("v1"), nil
	}

	v, err := e.ReadThrough(ctx, "User:id:1", time.Minute, fetch)
	if err != nil {
		t.Fatalf("ReadThrough failed: %v", err)
	}
	if string(v) != "v1" {
		t.Fatalf("first ReadThrough = %q, want v1", v)
	}

	st := e.Stats()
	if st.Misses != 1 || st.Writes != 1 {
		t.Errorf("after miss: stats = %+v, want 1 miss, 1 write", st)
	}
	if st.AvgLoadTime <= 0 {
		t.Errorf("AvgLoadTime = %v, want > 0", st.AvgLoadTime)
	}

	v, err = e.ReadThrough(ctx, "User:id:1", time.Minute, fetch)
	if err != nil {
		t.Fatalf("second ReadThrough failed: %v", err)
	}
	if string(v) != "v1" {
		t.Errorf("second ReadThrough = %q, want v1", v)
	}
	if got := fetches.Load(); got != 1 {
		t.Errorf("fetch ran %d times, want 1", got)
	}

	st = e.Stats()
	if st.Hits != 1 || st.HitRate != 0.5 {
		t.Errorf("after hit: Hits = %d, HitRate = %v, want 1 and 0.5", st.Hits, st.HitRate)
	}
}

func TestReadThrough_FetchErrorPropagates(t *testing.T) {
	e, _ := newTestEngine(t, DefaultConfig())
	ctx := context.Background()

	errSource := errors.New("db offline")
	_, err := e.ReadThrough(ctx, "k", 0, func(ctx context.Context) ([]byte, error) {
		return nil, errSource
	})
	if !errors.Is(err, errSource) {
		t.Fatalf("ReadThrough error = %v, want %v", err, errSource)
	}
	if e.Exists(ctx, "k") {
		t.Error("failed fetch left a cached value")
	}
}

func TestReadThrough_NilResultNotCached(t *testing.T) {
	e, _ := newTestEngine(t, DefaultConfig())
	ctx := context.Background()

	var fetches atomic.Int32
	fetch := func(ctx context.Context) ([]byte, error) {
		fetches.Add(1)
		return nil, nil
	}

	for i := 0; i < 2; i++ {
		v, err := e.ReadThrough(ctx, "k", 0, fetch)
		if err != nil {
			t.Fatalf("ReadThrough failed: %v", err)
		}
		if v != nil {
			t.Fatalf("ReadThrough = %q, want nil", v)
		}
	}

	if got := fetches.Load(); got != 2 {
		t.Errorf("fetch ran %d times, want 2 (absent values are not cached)", got)
	}
}

func TestReadThrough_StampedeCoalesces(t *testing.T) {
	e, _ := newTestEngine(t, DefaultConfig())
	ctx := context.Background()

	var fetches atomic.Int32
	fetch := func(ctx context.Context) ([]byte, error) {
		fetches.Add(1)
		time.Sleep(50 * time.Millisecond)
		return []byte("shared"), nil
	}

	const callers = 16
	start := make(chan struct{})
	var wg sync.WaitGroup
	results := make([][]byte, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			results[i], errs[i] = e.ReadThrough(ctx, "hot", time.Minute, fetch)
		}()
	}
	close(start)
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d failed: %v", i, errs[i])
		}
		if string(results[i]) != "shared" {
			t.Errorf("caller %d got %q, want shared", i, results[i])
		}
	}
	if got := fetches.Load(); got != 1 {
		t.Errorf("fetch ran %d times under contention, want 1", got)
	}
}

func TestReadThrough_Disabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ReadThrough = false
	e, _ := newTestEngine(t, cfg)
	ctx := context.Background()

	var fetches atomic.Int32
	fetch := func(ctx context.Context) ([]byte, error) {
		fetches.Add(1)
		return []byte("v"), nil
	}

	for i := 0; i < 2; i++ {
		if _, err := e.ReadThrough(ctx, "k", 0, fetch); err != nil {
			t.Fatalf("ReadThrough failed: %v", err)
		}
	}

	if got := fetches.Load(); got != 2 {
		t.Errorf("fetch ran %d times, want 2 with read-through off", got)
	}
	if e.Exists(ctx, "k") {
		t.Error("value cached despite read-through being off")
	}
}

func TestReadThrough_NoStampedeProtection(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StampedeProtection = false
	e, _ := newTestEngine(t, cfg)
	ctx := context.Background()

	v, err := e.ReadThrough(ctx, "k", 0, func(ctx context.Context) ([]byte, error) {
		return []byte("v"), nil
	})
	if err != nil || string(v) != "v" {
		t.Fatalf("ReadThrough = (%q, %v), want (v, nil)", v, err)
	}
	if v, ok := e.Get(ctx, "k"); !ok || string(v) != "v" {
		t.Errorf("value not cached: (%q, %v)", v, ok)
	}
}

func TestReadThrough_ServesStaleOnLockFailure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StaleWhileRevalidate = true
	cfg.FetchLockRetries = 1

	be := backend.NewMemory()
	e, err := New(be, nil, cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx := context.Background()

	e.Set(ctx, "User:id:1", []byte("old"), time.Minute)

	// Another process holds the fetch lock.
	holder := lock.New(be)
	ok, err := holder.Acquire(ctx, "fetch:User:id:1", time.Minute, 1)
	if err != nil || !ok {
		t.Fatalf("holder.Acquire = (%v, %v), want (true, nil)", ok, err)
	}

	// Expire the primary copy, keeping the shadow.
	if _, err := be.Delete(ctx, "User:id:1"); err != nil {
		t.Fatalf("backend Delete failed: %v", err)
	}

	v, err := e.ReadThrough(ctx, "User:id:1", time.Minute, func(ctx context.Context) ([]byte, error) {
		t.Error("fetch ran; stale value should have been served")
		return nil, nil
	})
	if err != nil {
		t.Fatalf("ReadThrough failed: %v", err)
	}
	if string(v) != "old" {
		t.Errorf("ReadThrough = %q, want stale value old", v)
	}
}

func TestReadThrough_DirectFetchOnLockFailure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FetchLockRetries = 1

	be := backend.NewMemory()
	e, err := New(be, nil, cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx := context.Background()

	holder := lock.New(be)
	if ok, err := holder.Acquire(ctx, "fetch:k", time.Minute, 1); err != nil || !ok {
		t.Fatalf("holder.Acquire = (%v, %v), want (true, nil)", ok, err)
	}

	var fetches atomic.Int32
	v, err := e.ReadThrough(ctx, "k", time.Minute, func(ctx context.Context) ([]byte, error) {
		fetches.Add(1)
		return []byte("direct"), nil
	})
	if err != nil {
		t.Fatalf("ReadThrough failed: %v", err)
	}
	if string(v) != "direct" {
		t.Errorf("ReadThrough = %q, want direct", v)
	}
	if got := fetches.Load(); got != 1 {
		t.Errorf("fetch ran %d times, want 1", got)
	}
	// The lock loser never writes; the holder remains the only writer.
	if _, ok, _ := be.Get(ctx, "k"); ok {
		t.Error("lock loser cached its direct fetch result")
	}
}

func TestCacheQuery(t *testing.T) {
	e, _ := newTestEngine(t, DefaultConfig())
	ctx := context.Background()

	q := key.Query{
		Alias:     "User",
		Predicate: "active = :active",
		Params:    map[string]any{"active": true},
	}

	var fetches atomic.Int32
	fetch := func(ctx context.Context) ([]byte, error) {
		fetches.Add(1)
		return []byte(`[{"id":1}]`), nil
	}

	for i := 0; i < 2; i++ {
		v, err := e.CacheQuery(ctx, q, time.Minute, fetch)
		if err != nil {
			t.Fatalf("CacheQuery failed: %v", err)
		}
		if string(v) != `[{"id":1}]` {
			t.Errorf("CacheQuery = %q", v)
		}
	}
	if got := fetches.Load(); got != 1 {
		t.Errorf("fetch ran %d times, want 1", got)
	}
}
