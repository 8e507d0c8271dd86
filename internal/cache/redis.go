// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	redisDialTimeout = 5 * time.Second
	// redisOpTimeout bounds every cache operation. A losable value is
	// only worth a short wait; the provider refetch is the fallback.
	redisOpTimeout = 2 * time.Second
)

// RedisCache backs the Cache interface with Redis, for deployments
// where several restarts (or replicas) should share provider
// responses. Errors degrade to misses with a warning; expiry is
// Redis-native TTL.
type RedisCache struct {
	client *redis.Client
	logger zerolog.Logger

	hits   atomic.Int64
	misses atomic.Int64
	sets   atomic.Int64
}

// RedisConfig locates the shared cache server.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisCache connects and pings; an unreachable server fails fast so
// the caller can fall back to the in-memory cache.
func NewRedisCache(cfg RedisConfig, logger zerolog.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  redisDialTimeout,
		ReadTimeout:  redisOpTimeout,
		WriteTimeout: redisOpTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisDialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis unreachable: %w", err)
	}

	logger.Info().Str("addr", cfg.Addr).Int("db", cfg.DB).Msg("redis cache online")

	return &RedisCache{client: client, logger: logger}, nil
}

func opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), redisOpTimeout)
}

// degraded records a failed server operation. The caller carries on as
// if the key were absent.
func (c *RedisCache) degraded(op, key string, err error) {
	c.logger.Warn().Err(err).Str("op", op).Str("key", key).Msg("redis degraded")
}

func (c *RedisCache) Get(key string) ([]byte, bool) {
	ctx, cancel := opCtx()
	defer cancel()

	val, err := c.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		c.misses.Add(1)
		return nil, false
	case err != nil:
		c.degraded("get", key, err)
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	return val, true
}

func (c *RedisCache) Set(key string, value []byte, ttl time.Duration) {
	ctx, cancel := opCtx()
	defer cancel()

	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.degraded("set", key, err)
		return
	}
	c.sets.Add(1)
}

func (c *RedisCache) Delete(key string) {
	ctx, cancel := opCtx()
	defer cancel()

	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.degraded("del", key, err)
	}
}

// Clear flushes the selected Redis database, not just teamarr keys.
func (c *RedisCache) Clear() {
	ctx, cancel := context.WithTimeout(context.Background(), redisDialTimeout)
	defer cancel()

	if err := c.client.FlushDB(ctx).Err(); err != nil {
		c.degraded("flushdb", "", err)
	}
}

func (c *RedisCache) Stats() CacheStats {
	ctx, cancel := opCtx()
	defer cancel()

	size, err := c.client.DBSize(ctx).Result()
	if err != nil {
		c.degraded("dbsize", "", err)
		size = 0
	}

	return CacheStats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Sets:        c.sets.Load(),
		CurrentSize: int(size),
	}
}

// Close releases the connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// HealthCheck pings the server with the caller's deadline.
func (c *RedisCache) HealthCheck(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
