package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/taskhub/core/internal/infrastructure/config"
	"github.com/taskhub/core/internal/infrastructure/logger"
)

// scanBatchSize bounds a single SCAN round trip during prefix invalidation.
const scanBatchSize = 100

// NewClient initializes the shared Redis connection with retry logic.
func NewClient(cfg config.RedisConfig) (*redis.Client, error) {
	maxRetries := 5
	retryDelay := 2 * time.Second

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		client := redis.NewClient(&redis.Options{
			Addr:         cfg.GetAddr(),
			Password:     cfg.Password,
			DB:           cfg.DB,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolSize:     10,
			MinIdleConns: 3,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_, err := client.Ping(ctx).Result()
		cancel()
		if err == nil {
			return client, nil
		}

		lastErr = err
		client.Close()

		if attempt < maxRetries {
			time.Sleep(retryDelay)
			retryDelay *= 2
		}
	}

	return nil, fmt.Errorf("failed to connect to Redis after %d attempts: %w", maxRetries, lastErr)
}

// RedisCache implements ports.Cache on a shared Redis client. Values are
// stored as JSON. The cache is advisory: read failures report a miss and
// the caller falls through to the store.
type RedisCache struct {
	client     *redis.Client
	defaultTTL time.Duration
	logger     *logger.Logger
}

// NewRedisCache creates a cache backed by the given client
func NewRedisCache(client *redis.Client, defaultTTL time.Duration, log *logger.Logger) *RedisCache {
	return &RedisCache{
		client:     client,
		defaultTTL: defaultTTL,
		logger:     log,
	}
}

// Get reads and deserializes the value under key into dest. Any failure,
// including a decode failure on a corrupt entry, is reported as a miss.
func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) bool {
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		c.logger.LogCacheMiss(key, err)
		return false
	}

	if err := json.Unmarshal(payload, dest); err != nil {
		c.logger.LogCacheMiss(key, err)
		// drop the corrupt entry so the next store read repopulates it
		_ = c.client.Del(ctx, key).Err()
		return false
	}

	return true
}

// Set serializes value and stores it under key with the given TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to serialize cache value for %s: %w", key, err)
	}

	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	if err := c.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache key %s: %w", key, err)
	}

	return nil
}

// Remove deletes a key. Absent keys are not an error.
func (c *RedisCache) Remove(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to remove cache key %s: %w", key, err)
	}
	return nil
}

// RemoveByPrefix scans the keyspace and deletes every key under prefix.
// This walks the whole keyspace and is kept off request read paths.
func (c *RedisCache) RemoveByPrefix(ctx context.Context, prefix string) error {
	var cursor uint64
	pattern := prefix + "*"

	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, scanBatchSize).Result()
		if err != nil {
			return fmt.Errorf("failed to scan cache prefix %s: %w", prefix, err)
		}

		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to delete cache keys under %s: %w", prefix, err)
			}
		}

		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// HealthCheck pings Redis
func (c *RedisCache) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}
