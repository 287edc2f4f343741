package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisCache stores cached archive bytes in a Redis keyspace under a fixed
// prefix, using Redis's own TTL support instead of a sidecar metadata
// record.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// RedisConfig configures the Redis-backed cache backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewRedis dials addr and returns a Cache backed by it. The connection is
// verified with a PING before returning.
func NewRedis(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "bsearch:"
	}

	return &RedisCache{client: client, prefix: prefix}, nil
}

func (c *RedisCache) key(key string) string {
	return c.prefix + key
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.WarnContext(ctx, "cache: redis get failed", "key", key, "error", err)
		}

		return nil, false
	}

	return data, true
}

func (c *RedisCache) Put(ctx context.Context, key string, data []byte, ttl time.Duration) {
	if err := c.client.Set(ctx, c.key(key), data, ttl).Err(); err != nil {
		slog.WarnContext(ctx, "cache: redis set failed", "key", key, "error", err)
	}
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
