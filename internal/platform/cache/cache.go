// Package cache wraps the Redis client shared by the pictogram cache.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces every key this service writes.
const keyPrefix = "qcm"

// Cache wraps a Redis client.
type Cache struct {
	Client *redis.Client
}

// ParseURL validates a Redis connection URL.
func ParseURL(url string) (*redis.Options, error) {
	if url == "" {
		return nil, fmt.Errorf("cache URL is empty")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid cache URL: %w", err)
	}
	return opts, nil
}

// New connects to Redis and pings it once.
func New(ctx context.Context, url string) (*Cache, error) {
	opts, err := ParseURL(url)
	if err != nil {
		return nil, err
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	c := FromClient(redis.NewClient(opts))
	if err := c.HealthCheck(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("pinging cache: %w", err)
	}
	return c, nil
}

// FromClient wraps an existing client, e.g. one pointed at a test server.
func FromClient(client *redis.Client) *Cache {
	return &Cache{Client: client}
}

// Key joins parts under the service prefix: Key("picto", "fr") is
// "qcm:picto:fr".
func Key(parts ...string) string {
	return keyPrefix + ":" + strings.Join(parts, ":")
}

// Close shuts down the cache client.
func (c *Cache) Close() error {
	return c.Client.Close()
}

// HealthCheck verifies the cache connection is alive.
func (c *Cache) HealthCheck(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}
