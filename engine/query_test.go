package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonwraymond/cacheops/key"
)

func testQuery() key.Query {
	return key.Query{
		Alias:     "User",
		Predicate: "region = :region",
		Params:    map[string]any{"region": "eu"},
	}
}

func TestCachedQuery_ModesAreDistinct(t *testing.T) {
	e, _ := newTestEngine(t, DefaultConfig())
	ctx := context.Background()
	cq := e.Query(testQuery()).WithTTL(time.Minute)

	rows, err := cq.GetMany(ctx, func(ctx context.Context) ([]byte, error) {
		return []byte(`[{"id":1},{"id":2}]`), nil
	})
	if err != nil {
		t.Fatalf("GetMany failed: %v", err)
	}

	one, err := cq.GetOne(ctx, func(ctx context.Context) ([]byte, error) {
		return []byte(`{"id":1}`), nil
	})
	if err != nil {
		t.Fatalf("GetOne failed: %v", err)
	}
	if string(one) == string(rows) {
		t.Error("GetOne and GetMany shared a cache entry")
	}

	n, err := cq.GetCount(ctx, func(ctx context.Context) (int64, error) {
		return 2, nil
	})
	if err != nil || n != 2 {
		t.Fatalf("GetCount = (%d, %v), want (2, nil)", n, err)
	}

	// All three are now cached: the fetchers must not run again.
	if _, err := cq.GetMany(ctx, failFetch(t)); err != nil {
		t.Errorf("cached GetMany failed: %v", err)
	}
	if _, err := cq.GetOne(ctx, failFetch(t)); err != nil {
		t.Errorf("cached GetOne failed: %v", err)
	}
	n, err = cq.GetCount(ctx, func(ctx context.Context) (int64, error) {
		t.Error("count ran despite a cached value")
		return 0, nil
	})
	if err != nil || n != 2 {
		t.Errorf("cached GetCount = (%d, %v), want (2, nil)", n, err)
	}
}

func TestCachedQuery_GetManyAndCount(t *testing.T) {
	e, _ := newTestEngine(t, DefaultConfig())
	ctx := context.Background()

	rows, n, err := e.Query(testQuery()).GetManyAndCount(ctx,
		func(ctx context.Context) ([]byte, error) { return []byte(`[{"id":1}]`), nil },
		func(ctx context.Context) (int64, error) { return 41, nil },
	)
	if err != nil {
		t.Fatalf("GetManyAndCount failed: %v", err)
	}
	if string(rows) != `[{"id":1}]` || n != 41 {
		t.Errorf("GetManyAndCount = (%q, %d), want rows and 41", rows, n)
	}
}

func TestCachedQuery_CountErrorPropagates(t *testing.T) {
	e, _ := newTestEngine(t, DefaultConfig())
	ctx := context.Background()

	errCount := errors.New("aggregation failed")
	_, err := e.Query(testQuery()).GetCount(ctx, func(ctx context.Context) (int64, error) {
		return 0, errCount
	})
	if !errors.Is(err, errCount) {
		t.Fatalf("GetCount error = %v, want %v", err, errCount)
	}
}

func TestCachedQuery_CorruptCountRecomputed(t *testing.T) {
	e, _ := newTestEngine(t, DefaultConfig())
	ctx := context.Background()
	cq := e.Query(testQuery())

	// Poison the count slot with a non-numeric payload.
	base, err := key.NewGenerator().ForQuery(testQuery())
	if err != nil {
		t.Fatalf("ForQuery failed: %v", err)
	}
	e.Set(ctx, key.BuildKey(base, "count"), []byte("not-a-number"), 0)

	n, err := cq.GetCount(ctx, func(ctx context.Context) (int64, error) {
		return 13, nil
	})
	if err != nil || n != 13 {
		t.Errorf("GetCount = (%d, %v), want recomputed (13, nil)", n, err)
	}
}

// failFetch returns a fetcher that fails the test if invoked.
func failFetch(t *testing.T) FetchFunc {
	t.Helper()
	return func(ctx context.Context) ([]byte, error) {
		t.Error("fetch ran despite a cached value")
		return nil, nil
	}
}
