package payments

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Dedupe remembers signals that were fully applied so redeliveries skip the
// ledger round trip. The ledger stays idempotent on its own; a lost or
// expired key only costs that round trip.
type Dedupe interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}

type RedisDedupe struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisDedupe(rdb *redis.Client, ttl time.Duration) *RedisDedupe {
	return &RedisDedupe{rdb: rdb, ttl: ttl}
}

func (d *RedisDedupe) Seen(ctx context.Context, key string) (bool, error) {
	n, err := d.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *RedisDedupe) Mark(ctx context.Context, key string) error {
	return d.rdb.SetNX(ctx, key, "1", d.ttl).Err()
}

// MemoryDedupe is a process-local Dedupe with no expiry.
type MemoryDedupe struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func NewMemoryDedupe() *MemoryDedupe {
	return &MemoryDedupe{keys: make(map[string]struct{})}
}

func (d *MemoryDedupe) Seen(ctx context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.keys[key]
	return ok, nil
}

func (d *MemoryDedupe) Mark(ctx context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.keys[key] = struct{}{}
	return nil
}
