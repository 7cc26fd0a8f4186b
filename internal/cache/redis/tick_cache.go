package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/synthbet/arbpipeline/internal/domain"
)

// TickCache implements domain.TickCache using Redis. Each processed tick is
// stored as a JSON blob at key "tick:{hash}" written with SET NX, so the
// first writer for a given content hash wins and every re-submission of an
// identical tick is reported as a duplicate.
type TickCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewTickCache creates a TickCache backed by the given Client. A zero ttl
// means entries never expire.
func NewTickCache(c *Client, ttl time.Duration) *TickCache {
	return &TickCache{rdb: c.Underlying(), ttl: ttl}
}

func tickKey(hash string) string {
	return "tick:" + hash
}

// PutProcessed stores the tick under its content hash. It returns created ==
// false without error when an identical tick is already cached.
func (tc *TickCache) PutProcessed(ctx context.Context, tick domain.ProcessedTick) (bool, error) {
	payload, err := json.Marshal(tick)
	if err != nil {
		return false, fmt.Errorf("redis: marshal tick %s: %w", tick.TickHash, err)
	}

	created, err := tc.rdb.SetNX(ctx, tickKey(tick.TickHash), payload, tc.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: put tick %s: %w", tick.TickHash, err)
	}
	return created, nil
}

// GetProcessed retrieves a processed tick by content hash. It returns
// domain.ErrNotFound when the key does not exist.
func (tc *TickCache) GetProcessed(ctx context.Context, hash string) (domain.ProcessedTick, error) {
	data, err := tc.rdb.Get(ctx, tickKey(hash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.ProcessedTick{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.ProcessedTick{}, fmt.Errorf("redis: get tick %s: %w", hash, err)
	}

	var tick domain.ProcessedTick
	if err := json.Unmarshal(data, &tick); err != nil {
		return domain.ProcessedTick{}, fmt.Errorf("redis: unmarshal tick %s: %w", hash, err)
	}
	return tick, nil
}

// Compile-time interface check.
var _ domain.TickCache = (*TickCache)(nil)
