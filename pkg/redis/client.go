package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/wonny/earnsight/pkg/config"
)

// Client holds the Redis connection backing the signal cache.
// SSOT: the Redis connection is managed only here. When Redis is
// disabled in config the client is a no-op and every cache call
// degrades to a miss.
type Client struct {
	rdb     *redis.Client
	enabled bool
}

// New dials Redis per config, verifying the connection with a ping.
// A disabled config yields a usable no-op client rather than an error.
func New(cfg *config.Config) (*Client, error) {
	if !cfg.Redis.Enabled {
		return &Client{enabled: false}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &Client{rdb: rdb, enabled: true}, nil
}

// Close releases the connection; safe on a disabled client
func (c *Client) Close() error {
	if c.rdb != nil {
		return c.rdb.Close()
	}
	return nil
}

// Enabled reports whether a live connection backs this client
func (c *Client) Enabled() bool {
	return c.enabled
}
