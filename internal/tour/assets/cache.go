package assets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ============================================================
// Offline cache
// ============================================================

const cacheKeyPrefix = "tour:asset:"

// Cache keeps the last good copy of each asset so a flaky network degrades
// to stale content instead of a failed room.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewCache(rdb *redis.Client, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

func cacheKey(ref string) string {
	return cacheKeyPrefix + ref
}

// Get returns the cached bytes; ok is false on a miss.
func (c *Cache) Get(ctx context.Context, ref string) ([]byte, bool, error) {
	data, err := c.rdb.Get(ctx, cacheKey(ref)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get %s: %w", ref, err)
	}
	return data, true, nil
}

func (c *Cache) Set(ctx context.Context, ref string, data []byte) error {
	if err := c.rdb.Set(ctx, cacheKey(ref), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", ref, err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, ref string) error {
	return c.rdb.Del(ctx, cacheKey(ref)).Err()
}
