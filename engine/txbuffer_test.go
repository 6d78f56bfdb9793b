package engine

import (
	"context"
	"testing"
	"time"
)

func TestTxBuffer_CommitAppliesInOrder(t *testing.T) {
	e, _ := newTestEngine(t, DefaultConfig())
	ctx := context.Background()

	e.Set(ctx, "User:id:9", []byte("stale"), 0)
	e.Set(ctx, "User:query:abc", []byte("[]"), 0)

	buf := e.Buffer()
	buf.Set("User:id:1", []byte("a"), time.Minute)
	buf.Set("User:id:1", []byte("b"), time.Minute) // later write wins
	buf.Delete("User:id:9")
	buf.InvalidatePattern("User:query:*")

	if buf.Len() != 4 {
		t.Fatalf("Len = %d, want 4", buf.Len())
	}

	// Nothing applied before commit.
	if e.Exists(ctx, "User:id:1") {
		t.Fatal("buffered Set applied before Commit")
	}
	if !e.Exists(ctx, "User:id:9") {
		t.Fatal("buffered Delete applied before Commit")
	}

	buf.Commit(ctx)

	if v, ok := e.Get(ctx, "User:id:1"); !ok || string(v) != "b" {
		t.Errorf("Get(User:id:1) = (%q, %v), want (b, true)", v, ok)
	}
	if e.Exists(ctx, "User:id:9") {
		t.Error("buffered Delete not applied")
	}
	if e.Exists(ctx, "User:query:abc") {
		t.Error("buffered InvalidatePattern not applied")
	}
	if buf.Len() != 0 {
		t.Errorf("Len after Commit = %d, want 0", buf.Len())
	}
}

func TestTxBuffer_Rollback(t *testing.T) {
	e, _ := newTestEngine(t, DefaultConfig())
	ctx := context.Background()

	buf := e.Buffer()
	buf.Set("k", []byte("v"), 0)
	buf.Rollback()

	buf.Commit(ctx)
	if e.Exists(ctx, "k") {
		t.Error("rolled-back operation was applied")
	}

	// A closed buffer ignores new operations.
	buf.Set("k2", []byte("v"), 0)
	if buf.Len() != 0 {
		t.Errorf("Len after post-rollback Set = %d, want 0", buf.Len())
	}
}

func TestTxBuffer_CommitOnce(t *testing.T) {
	e, _ := newTestEngine(t, DefaultConfig())
	ctx := context.Background()

	buf := e.Buffer()
	buf.Set("k", []byte("v"), 0)
	buf.Commit(ctx)

	// Undo out of band, then recommit: nothing may reapply.
	e.Delete(ctx, "k")
	buf.Commit(ctx)

	if e.Exists(ctx, "k") {
		t.Error("second Commit reapplied operations")
	}
}
