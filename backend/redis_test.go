package backend

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// newTestRedis connects to the Redis instance named by REDIS_ADDR, skipping
// the test when none is configured. Tests run against DB 15 and flush it.
func newTestRedis(t *testing.T) *Redis {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping redis backend tests")
	}

	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	r, err := NewRedis(client)
	if err != nil {
		t.Fatalf("NewRedis failed: %v", err)
	}

	ctx := context.Background()
	if err := r.Ping(ctx); err != nil {
		t.Fatalf("redis not reachable at %s: %v", addr, err)
	}
	if err := r.Flush(ctx); err != nil {
		t.Fatalf("flush failed: %v", err)
	}

	t.Cleanup(func() {
		_ = r.Flush(context.Background())
		_ = r.Close()
	})
	return r
}

func TestNewRedis_NilClient(t *testing.T) {
	if _, err := NewRedis(nil); err != ErrNilClient {
		t.Errorf("NewRedis(nil) = %v, want ErrNilClient", err)
	}
}

func TestRedis_GetSetDelete(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()

	_, ok, err := r.Get(ctx, "missing")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok {
		t.Error("Get on missing key should miss")
	}

	if err := r.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, ok, err := r.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok || !bytes.Equal(got, []byte("v")) {
		t.Errorf("Get = (%q, %v), want (v, true)", got, ok)
	}

	existed, err := r.Delete(ctx, "k")
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !existed {
		t.Error("Delete of existing key should return true")
	}
}

func TestRedis_TTLConventions(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()

	d, err := r.TTL(ctx, "missing")
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if d != TTLMissing {
		t.Errorf("TTL(missing) = %v, want TTLMissing", d)
	}

	_ = r.Set(ctx, "forever", []byte("v"), 0)
	d, _ = r.TTL(ctx, "forever")
	if d != TTLNone {
		t.Errorf("TTL(no expiry) = %v, want TTLNone", d)
	}

	_ = r.Set(ctx, "bounded", []byte("v"), time.Minute)
	d, _ = r.TTL(ctx, "bounded")
	if d <= 0 || d > time.Minute {
		t.Errorf("TTL(bounded) = %v, want in (0, 1m]", d)
	}
}

func TestRedis_DeletePattern(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()

	_ = r.Set(ctx, "a:1", []byte("v"), 0)
	_ = r.Set(ctx, "a:2", []byte("v"), 0)
	_ = r.Set(ctx, "b:1", []byte("v"), 0)

	count, err := r.DeletePattern(ctx, "a:*")
	if err != nil {
		t.Fatalf("DeletePattern failed: %v", err)
	}
	if count != 2 {
		t.Errorf("DeletePattern returned %d, want 2", count)
	}

	if ok, _ := r.Exists(ctx, "b:1"); !ok {
		t.Error("b:1 should survive")
	}
}

func TestRedis_MGetMSet(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()

	err := r.MSet(ctx, []Item{
		{Key: "k1", Value: []byte("v1")},
		{Key: "k2", Value: []byte("v2"), TTL: time.Hour},
	})
	if err != nil {
		t.Fatalf("MSet failed: %v", err)
	}

	values, err := r.MGet(ctx, []string{"k1", "missing", "k2"})
	if err != nil {
		t.Fatalf("MGet failed: %v", err)
	}
	if !bytes.Equal(values[0], []byte("v1")) || values[1] != nil || !bytes.Equal(values[2], []byte("v2")) {
		t.Errorf("MGet = %q, want [v1 <nil> v2]", values)
	}

	// Per-item TTL applied
	d, _ := r.TTL(ctx, "k2")
	if d <= 0 || d > time.Hour {
		t.Errorf("TTL(k2) = %v, want in (0, 1h]", d)
	}
}

func TestRedis_SetNXAndCounters(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()

	ok, err := r.SetNX(ctx, "lock:x", []byte("tok"), time.Minute)
	if err != nil {
		t.Fatalf("SetNX failed: %v", err)
	}
	if !ok {
		t.Error("first SetNX should win")
	}
	ok, _ = r.SetNX(ctx, "lock:x", []byte("tok2"), time.Minute)
	if ok {
		t.Error("second SetNX should lose")
	}

	n, err := r.Increment(ctx, "counter", 3)
	if err != nil {
		t.Fatalf("Increment failed: %v", err)
	}
	if n != 3 {
		t.Errorf("Increment = %d, want 3", n)
	}
	n, _ = r.Decrement(ctx, "counter", 1)
	if n != 2 {
		t.Errorf("Decrement = %d, want 2", n)
	}
}
