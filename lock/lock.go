package lock

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/cacheops/backend"
)

// Namespace prefixes lock keys so they never collide with data keys.
const Namespace = "lock:"

// Defaults for acquisition. 100ms × 50 retries bounds the worst-case wait
// at roughly 5s before Acquire gives up.
const (
	DefaultTTL        = 30 * time.Second
	DefaultMaxRetries = 50
	DefaultRetryDelay = 100 * time.Millisecond
)

// Options configures WithLock.
type Options struct {
	// TTL is the lock key's lifetime. Default: 30s.
	TTL time.Duration

	// MaxRetries is the number of set-if-absent attempts. Default: 50.
	MaxRetries int

	// OnLockFailed, when non-nil, runs instead of returning ErrNotAcquired
	// after the retry budget is exhausted.
	OnLockFailed func(ctx context.Context) error
}

// Lock provides at-most-one-concurrent-execution semantics per key, across
// processes when the backend is shared.
//
// Release verifies the stored ownership token before deleting, so a slow
// holder whose lock expired cannot delete a newer holder's lock. The
// check-then-delete pair is not atomic through the backend contract; the
// residual race window is the token's round-trip time.
type Lock struct {
	be    backend.Backend
	delay time.Duration

	mu     sync.Mutex
	tokens map[string]string
}

// New creates a lock manager over the given backend.
func New(be backend.Backend) *Lock {
	return &Lock{
		be:     be,
		delay:  DefaultRetryDelay,
		tokens: make(map[string]string),
	}
}

// Acquire attempts set-if-absent in a loop with a fixed delay between
// attempts. Returns false (without error) once the retry budget is
// exhausted; the caller decides the fallback.
func (l *Lock) Acquire(ctx context.Context, key string, ttl time.Duration, maxRetries int) (bool, error) {
	token, ok, err := l.acquireToken(ctx, key, ttl, maxRetries)
	if err != nil || !ok {
		return false, err
	}

	l.mu.Lock()
	l.tokens[key] = token
	l.mu.Unlock()
	return true, nil
}

// Release deletes the lock key if this instance still owns it. Returns true
// when the lock was released, false when it was not held here or was
// already claimed by another owner.
func (l *Lock) Release(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	token, ok := l.tokens[key]
	delete(l.tokens, key)
	l.mu.Unlock()

	if !ok {
		return false, nil
	}
	return l.releaseToken(ctx, key, token)
}

// WithLock runs fn while holding the lock, releasing it even when fn
// fails. When acquisition fails and Options.OnLockFailed is set, its result
// is returned instead; otherwise ErrNotAcquired.
func (l *Lock) WithLock(ctx context.Context, key string, opts Options, fn func(ctx context.Context) error) error {
	token, ok, err := l.acquireToken(ctx, key, opts.TTL, opts.MaxRetries)
	if err != nil {
		return err
	}
	if !ok {
		if opts.OnLockFailed != nil {
			return opts.OnLockFailed(ctx)
		}
		return fmt.Errorf("%w: %s", ErrNotAcquired, key)
	}

	defer func() {
		// Best-effort: TTL reclaims the key if the release fails
		_, _ = l.releaseToken(context.WithoutCancel(ctx), key, token)
	}()

	return fn(ctx)
}

func (l *Lock) acquireToken(ctx context.Context, key string, ttl time.Duration, maxRetries int) (string, bool, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	lockKey := Namespace + key
	token := uuid.NewString()

	for attempt := 0; attempt < maxRetries; attempt++ {
		ok, err := l.be.SetNX(ctx, lockKey, []byte(token), ttl)
		if err != nil {
			return "", false, fmt.Errorf("lock: acquire %s: %w", key, err)
		}
		if ok {
			return token, true, nil
		}

		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-time.After(l.delay):
		}
	}

	return "", false, nil
}

// releaseToken performs the compare-and-delete: the lock key is deleted
// only while it still holds this owner's token.
func (l *Lock) releaseToken(ctx context.Context, key, token string) (bool, error) {
	lockKey := Namespace + key

	current, exists, err := l.be.Get(ctx, lockKey)
	if err != nil {
		return false, fmt.Errorf("lock: release %s: %w", key, err)
	}
	if !exists || !bytes.Equal(current, []byte(token)) {
		// Expired and reclaimed by someone else; leave it alone
		return false, nil
	}

	deleted, err := l.be.Delete(ctx, lockKey)
	if err != nil {
		return false, fmt.Errorf("lock: release %s: %w", key, err)
	}
	return deleted, nil
}

// IsLocked reports whether the lock key currently exists.
func (l *Lock) IsLocked(ctx context.Context, key string) (bool, error) {
	exists, err := l.be.Exists(ctx, Namespace+key)
	if err != nil {
		return false, fmt.Errorf("lock: is locked %s: %w", key, err)
	}
	return exists, nil
}

// WaitForUnlock polls until the lock key disappears or the timeout elapses,
// returning ErrWaitTimeout in the latter case.
func (l *Lock) WaitForUnlock(ctx context.Context, key string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for {
		locked, err := l.IsLocked(ctx, key)
		if err != nil {
			return err
		}
		if !locked {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s after %v", ErrWaitTimeout, key, timeout)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.delay):
		}
	}
}
