package engine

import (
	"context"
	"sync"
	"time"
)

// txOp is one buffered cache mutation.
type txOp struct {
	kind    txKind
	key     string
	value   []byte
	ttl     time.Duration
	pattern string
}

type txKind int

const (
	txSet txKind = iota
	txDelete
	txInvalidate
)

// TxBuffer queues cache mutations during a data-store transaction and
// applies them only on Commit, so a rolled-back transaction never leaves
// phantom cache entries. Buffers are single-use: after Commit or Rollback
// every method is a no-op.
type TxBuffer struct {
	e *Engine

	mu     sync.Mutex
	ops    []txOp
	closed bool
}

// Buffer creates an empty transaction buffer bound to this engine.
func (e *Engine) Buffer() *TxBuffer {
	return &TxBuffer{e: e}
}

// Set queues a cache write.
func (t *TxBuffer) Set(key string, value []byte, ttl time.Duration) {
	t.enqueue(txOp{kind: txSet, key: key, value: value, ttl: ttl})
}

// Delete queues a key deletion.
func (t *TxBuffer) Delete(key string) {
	t.enqueue(txOp{kind: txDelete, key: key})
}

// InvalidatePattern queues a pattern invalidation.
func (t *TxBuffer) InvalidatePattern(pattern string) {
	t.enqueue(txOp{kind: txInvalidate, pattern: pattern})
}

// Len returns the number of queued operations.
func (t *TxBuffer) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.ops)
}

// Commit applies the queued operations in order through the engine and
// closes the buffer. Each operation carries the engine's usual swallowed
// error semantics; Commit itself never fails.
func (t *TxBuffer) Commit(ctx context.Context) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	ops := t.ops
	t.ops = nil
	t.closed = true
	t.mu.Unlock()

	for _, op := range ops {
		switch op.kind {
		case txSet:
			t.e.Set(ctx, op.key, op.value, op.ttl)
		case txDelete:
			t.e.Delete(ctx, op.key)
		case txInvalidate:
			t.e.InvalidatePattern(ctx, op.pattern)
		}
	}
}

// Rollback discards the queued operations and closes the buffer.
func (t *TxBuffer) Rollback() {
	t.mu.Lock()
	t.ops = nil
	t.closed = true
	t.mu.Unlock()
}

func (t *TxBuffer) enqueue(op txOp) {
	t.mu.Lock()
	if !t.closed {
		t.ops = append(t.ops, op)
	}
	t.mu.Unlock()
}
