package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	appErrors "github.com/noah-isme/faculty-appointments-api/pkg/errors"
)

// cacheScanCount is both the SCAN page size and the UNLINK batch size.
const cacheScanCount = 100

// CacheRepository stores JSON payloads in Redis. Every key is written under prefix so several
// deployments can share one Redis database without seeing each other's entries.
type CacheRepository struct {
	client redis.UniversalClient
	prefix string
}

// NewCacheRepository constructs a cache repository over client.
func NewCacheRepository(client redis.UniversalClient, prefix string) *CacheRepository {
	return &CacheRepository{client: client, prefix: prefix}
}

// Get decodes the entry stored under key into dest. A payload that no longer decodes, for
// example after the cached model changed shape, is removed and reported as a miss.
func (r *CacheRepository) Get(ctx context.Context, key string, dest interface{}) error {
	full := r.prefix + key
	raw, err := r.client.Get(ctx, full).Bytes()
	if errors.Is(err, redis.Nil) {
		return appErrors.ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("redis get %s: %w", full, err)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		if delErr := r.client.Del(ctx, full).Err(); delErr != nil {
			return fmt.Errorf("drop undecodable entry %s: %w", full, delErr)
		}
		return appErrors.ErrCacheMiss
	}
	return nil
}

// Set encodes value and stores it under key for ttl.
func (r *CacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	full := r.prefix + key
	if err := r.client.Set(ctx, full, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", full, err)
	}
	return nil
}

// DeleteMatching unlinks every key matching the glob pattern and reports how many were removed.
func (r *CacheRepository) DeleteMatching(ctx context.Context, pattern string) (int, error) {
	match := r.prefix + pattern
	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := r.client.Scan(ctx, cursor, match, cacheScanCount).Result()
		if err != nil {
			return removed, fmt.Errorf("redis scan %s: %w", match, err)
		}
		if len(keys) > 0 {
			n, err := r.client.Unlink(ctx, keys...).Result()
			if err != nil {
				return removed, fmt.Errorf("redis unlink %s: %w", match, err)
			}
			removed += int(n)
		}
		if next == 0 {
			return removed, nil
		}
		cursor = next
	}
}
