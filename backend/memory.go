package backend

import (
	"bytes"
	"context"
	"strconv"
	"sync"
	"time"
)

// Memory is an in-process map-backed store. Expiry is enforced both
// proactively (a per-key timer evicts the entry when its TTL elapses) and
// lazily (reads re-check the expiry instant, so a Get racing the timer
// still behaves as a miss).
type Memory struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
	timer     *time.Timer
}

// NewMemory creates an empty in-process store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]*memoryEntry)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.getLocked(key)
	if !ok {
		return nil, false, nil
	}
	// Copy so callers mutating the returned slice cannot corrupt the entry
	return bytes.Clone(entry.value), true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setLocked(key, value, ttl)
	return nil
}

func (m *Memory) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.getLocked(key); ok {
		return false, nil
	}
	m.setLocked(key, value, ttl)
	return true, nil
}

func (m *Memory) Delete(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// An expired entry counts as already gone
	if _, ok := m.getLocked(key); !ok {
		return false, nil
	}
	return m.deleteLocked(key), nil
}

func (m *Memory) DeletePattern(_ context.Context, pattern string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for key := range m.entries {
		if matchPattern(pattern, key) && m.deleteLocked(key) {
			count++
		}
	}
	return count, nil
}

func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.getLocked(key)
	return ok, nil
}

func (m *Memory) MGet(_ context.Context, keys []string) ([][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	values := make([][]byte, len(keys))
	for i, key := range keys {
		if entry, ok := m.getLocked(key); ok {
			values[i] = bytes.Clone(entry.value)
		}
	}
	return values, nil
}

func (m *Memory) MSet(_ context.Context, items []Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, item := range items {
		m.setLocked(item.Key, item.Value, item.TTL)
	}
	return nil
}

func (m *Memory) Flush(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, entry := range m.entries {
		if entry.timer != nil {
			entry.timer.Stop()
		}
	}
	m.entries = make(map[string]*memoryEntry)
	return nil
}

func (m *Memory) Keys(_ context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0)
	for key := range m.entries {
		if _, ok := m.getLocked(key); !ok {
			continue
		}
		if matchPattern(pattern, key) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (m *Memory) Expire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.getLocked(key)
	if !ok {
		return false, nil
	}
	m.setLocked(key, entry.value, ttl)
	return true, nil
}

func (m *Memory) TTL(_ context.Context, key string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.getLocked(key)
	if !ok {
		return TTLMissing, nil
	}
	if entry.expiresAt.IsZero() {
		return TTLNone, nil
	}
	return time.Until(entry.expiresAt), nil
}

func (m *Memory) Increment(_ context.Context, key string, by int64) (int64, error) {
	return m.add(key, by)
}

func (m *Memory) Decrement(_ context.Context, key string, by int64) (int64, error) {
	return m.add(key, -by)
}

// Transaction executes fn directly; the in-process store has no native
// transaction support, so grouping is best-effort with no atomicity.
func (m *Memory) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (m *Memory) Ping(_ context.Context) error {
	return nil
}

func (m *Memory) Close() error {
	return m.Flush(context.Background())
}

// add is the shared read-modify-write for Increment/Decrement; the single
// mutex makes it atomic within the process.
func (m *Memory) add(key string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var current int64
	entry, ok := m.getLocked(key)
	if ok {
		n, err := strconv.ParseInt(string(entry.value), 10, 64)
		if err != nil {
			return 0, ErrNotInteger
		}
		current = n
	}

	current += delta
	value := []byte(strconv.FormatInt(current, 10))

	if ok {
		// Preserve the existing expiry
		entry.value = value
	} else {
		m.setLocked(key, value, 0)
	}
	return current, nil
}

// getLocked returns a live entry, lazily evicting it if expired.
// Caller must hold m.mu.
func (m *Memory) getLocked(key string) (*memoryEntry, bool) {
	entry, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if !entry.expiresAt.IsZero() && !time.Now().Before(entry.expiresAt) {
		m.deleteLocked(key)
		return nil, false
	}
	return entry, true
}

// setLocked stores an entry and (re)arms its eviction timer.
// Caller must hold m.mu.
func (m *Memory) setLocked(key string, value []byte, ttl time.Duration) {
	if old, ok := m.entries[key]; ok && old.timer != nil {
		old.timer.Stop()
	}

	entry := &memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
		entry.timer = time.AfterFunc(ttl, func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			// Only evict if the entry was not replaced in the meantime
			if current, ok := m.entries[key]; ok && current == entry {
				delete(m.entries, key)
			}
		})
	}
	m.entries[key] = entry
}

// deleteLocked removes an entry and stops its timer. Caller must hold m.mu.
func (m *Memory) deleteLocked(key string) bool {
	entry, ok := m.entries[key]
	if !ok {
		return false
	}
	if entry.timer != nil {
		entry.timer.Stop()
	}
	delete(m.entries, key)
	return true
}

// Ensure Memory implements Backend
var _ Backend = (*Memory)(nil)
