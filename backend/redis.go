package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisScanCount is the COUNT hint passed to SCAN when enumerating keys.
const redisScanCount = 512

// Redis adapts the Backend contract onto a go-redis client. Pattern
// matching for Keys and DeletePattern uses server-side SCAN with the glob
// passed through (Redis MATCH globs are a superset of ours).
type Redis struct {
	client redis.UniversalClient
}

// NewRedis wraps an existing go-redis client.
func NewRedis(client redis.UniversalClient) (*Redis, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	return &Redis{client: client}, nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("backend: redis get: %w", err)
	}
	return value, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("backend: redis set: %w", err)
	}
	return nil
}

func (r *Redis) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if ttl < 0 {
		ttl = 0
	}
	ok, err := r.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("backend: redis setnx: %w", err)
	}
	return ok, nil
}

func (r *Redis) Delete(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Del(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("backend: redis del: %w", err)
	}
	return n > 0, nil
}

func (r *Redis) DeletePattern(ctx context.Context, pattern string) (int, error) {
	count := 0
	batch := make([]string, 0, redisScanCount)

	iter := r.client.Scan(ctx, 0, pattern, redisScanCount).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			n, err := r.deleteBatch(ctx, batch)
			count += n
			if err != nil {
				return count, err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return count, fmt.Errorf("backend: redis scan: %w", err)
	}

	n, err := r.deleteBatch(ctx, batch)
	count += n
	return count, err
}

func (r *Redis) deleteBatch(ctx context.Context, keys []string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := r.client.Del(ctx, keys...).Result()
	if err != nil {
		return int(n), fmt.Errorf("backend: redis del: %w", err)
	}
	return int(n), nil
}

func (r *Redis) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("backend: redis exists: %w", err)
	}
	return n > 0, nil
}

func (r *Redis) MGet(ctx context.Context, keys []string) ([][]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	raw, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("backend: redis mget: %w", err)
	}

	values := make([][]byte, len(keys))
	for i, v := range raw {
		if s, ok := v.(string); ok {
			values[i] = []byte(s)
		}
	}
	return values, nil
}

func (r *Redis) MSet(ctx context.Context, items []Item) error {
	if len(items) == 0 {
		return nil
	}

	// Per-item TTLs rule out a single MSET; pipeline individual SETs.
	pipe := r.client.Pipeline()
	for _, item := range items {
		ttl := item.TTL
		if ttl < 0 {
			ttl = 0
		}
		pipe.Set(ctx, item.Key, item.Value, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("backend: redis mset: %w", err)
	}
	return nil
}

func (r *Redis) Flush(ctx context.Context) error {
	if err := r.client.FlushDB(ctx).Err(); err != nil {
		return fmt.Errorf("backend: redis flushdb: %w", err)
	}
	return nil
}

func (r *Redis) Keys(ctx context.Context, pattern string) ([]string, error) {
	keys := make([]string, 0)

	iter := r.client.Scan(ctx, 0, pattern, redisScanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("backend: redis scan: %w", err)
	}
	return keys, nil
}

func (r *Redis) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := r.client.Expire(ctx, key, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("backend: redis expire: %w", err)
	}
	return ok, nil
}

func (r *Redis) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := r.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("backend: redis ttl: %w", err)
	}
	// go-redis reports the Redis -1/-2 sentinels as raw durations
	switch d {
	case -1:
		return TTLNone, nil
	case -2:
		return TTLMissing, nil
	}
	return d, nil
}

func (r *Redis) Increment(ctx context.Context, key string, by int64) (int64, error) {
	n, err := r.client.IncrBy(ctx, key, by).Result()
	if err != nil {
		return 0, fmt.Errorf("backend: redis incrby: %w", err)
	}
	return n, nil
}

func (r *Redis) Decrement(ctx context.Context, key string, by int64) (int64, error) {
	n, err := r.client.DecrBy(ctx, key, by).Result()
	if err != nil {
		return 0, fmt.Errorf("backend: redis decrby: %w", err)
	}
	return n, nil
}

// Transaction executes fn directly. Grouping is best-effort: operations
// inside fn are issued as ordinary commands, not a MULTI/EXEC block.
func (r *Redis) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("backend: redis ping: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

// Ensure Redis implements Backend
var _ Backend = (*Redis)(nil)
