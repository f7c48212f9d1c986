package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wonny/tradecraft/pkg/config"
)

// Nil is returned by reads of missing keys
const Nil = redis.Nil

// Client wraps the Redis client with additional utilities
// ⭐ SSOT: Redis 연결은 여기서만 관리
type Client struct {
	rdb     *redis.Client
	enabled bool
	prefix  string
}

// New creates a new Redis client. A disabled config yields a no-op client.
func New(cfg *config.Config) (*Client, error) {
	if !cfg.Redis.Enabled {
		return &Client{enabled: false, prefix: cfg.Redis.Prefix}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &Client{
		rdb:     rdb,
		enabled: true,
		prefix:  cfg.Redis.Prefix,
	}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	if c.rdb != nil {
		return c.rdb.Close()
	}
	return nil
}

// Enabled returns whether Redis is enabled
func (c *Client) Enabled() bool {
	return c.enabled
}

// Prefix returns the key namespace for this deployment
func (c *Client) Prefix() string {
	return c.prefix
}

// Ping reports connectivity; a disabled client is always healthy
func (c *Client) Ping(ctx context.Context) error {
	if !c.enabled {
		return nil
	}
	return c.rdb.Ping(ctx).Err()
}

// Redis returns the underlying redis client for advanced usage
func (c *Client) Redis() *redis.Client {
	return c.rdb
}
