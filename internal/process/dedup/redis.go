package dedup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/lueurxax/media-guard-bot/internal/platform/observability"
)

const redisKeyPrefix = "guard:scan:"

// Connect initializes a Redis client from URL or host:port input.
func Connect(redisURL string) (*redis.Client, error) {
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}

		return redis.NewClient(opt), nil
	}

	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

// RedisCache shares dedup state between bot instances. Expiry is delegated to
// Redis key TTLs. Redis failures are logged and treated as "not seen".
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zerolog.Logger
}

func NewRedisCache(client *redis.Client, ttl time.Duration, logger *zerolog.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

func (c *RedisCache) Seen(ctx context.Context, key string) bool {
	n, err := c.client.Exists(ctx, redisKeyPrefix+key).Result()
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("dedup lookup failed")
		return false
	}

	if n > 0 {
		observability.DedupHits.Inc()
	}

	return n > 0
}

func (c *RedisCache) Mark(ctx context.Context, key string) {
	if err := c.client.Set(ctx, redisKeyPrefix+key, "1", c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("dedup mark failed")
	}
}

// Ping is the readiness check of the shared cache.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the Redis connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
