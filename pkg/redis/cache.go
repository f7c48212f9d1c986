package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache provides typed JSON caching utilities
// ⭐ SSOT: 캐시 헬퍼는 여기서만
type Cache struct {
	client *Client
	prefix string
}

// NewCache creates a new cache helper
func NewCache(client *Client, prefix string) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
	}
}

func (c *Cache) key(key string) string {
	return fmt.Sprintf("%s:cache:%s", c.prefix, key)
}

// Get retrieves a cached value. A miss (or disabled Redis) returns false, nil.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.client.Enabled() {
		return false, nil
	}

	data, err := c.client.Redis().Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get failed: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache unmarshal failed: %w", err)
	}

	return true, nil
}

// Set stores a value in cache with TTL
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.client.Enabled() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}

	return c.client.Redis().Set(ctx, c.key(key), data, ttl).Err()
}

// Delete removes a cached value
func (c *Cache) Delete(ctx context.Context, key string) error {
	if !c.client.Enabled() {
		return nil
	}

	return c.client.Redis().Del(ctx, c.key(key)).Err()
}

// Predefined TTLs
const (
	TTLShort = 1 * time.Minute // runs index
	TTLLong  = 24 * time.Hour  // completed run results (immutable)
)

// RunResultKey is the cache key of one completed pipeline result
func RunResultKey(runID string) string {
	return fmt.Sprintf("run:%s", runID)
}

// RunsIndexKey is the cache key of the published runs index
func RunsIndexKey() string {
	return "runs:index"
}
