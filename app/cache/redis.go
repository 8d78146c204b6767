package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	PrefixResults = "results"
	PrefixBills   = "bills"
	PrefixFeed    = "feed"
)

// Cache wraps a Redis client for result and list caching.
// A nil *Cache is valid and behaves as an always-empty cache.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache connects to Redis at addr. ttl is the default expiry of cached entries.
func NewCache(ctx context.Context, addr, password string, ttl time.Duration) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	slog.Info("Connected to Redis", "addr", addr)

	return &Cache{client: client, ttl: ttl}, nil
}

// Key builds a cache key from a prefix and hashed parts, e.g. "bills:1a2b...".
func Key(prefix string, parts ...string) string {
	if len(parts) == 0 {
		return prefix
	}
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return fmt.Sprintf("%s:%x", prefix, hash[:8])
}

// GetJSON decodes the value under key into dst and reports whether it was found.
// Undecodable entries are dropped and reported as a miss.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	if c == nil {
		return false, nil
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get key %s: %w", key, err)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		c.client.Del(ctx, key)
		return false, nil
	}
	return true, nil
}

func (c *Cache) SetJSON(ctx context.Context, key string, value any) error {
	if c == nil {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value for key %s: %w", key, err)
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if c == nil || len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete keys: %w", err)
	}
	return nil
}

// DeletePrefix removes every key under prefix.
func (c *Cache) DeletePrefix(ctx context.Context, prefix string) error {
	if c == nil {
		return nil
	}

	iter := c.client.Scan(ctx, 0, prefix+":*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan prefix %s: %w", prefix, err)
	}
	return c.Delete(ctx, keys...)
}

// InvalidateBill drops everything a vote on billID makes stale.
func (c *Cache) InvalidateBill(ctx context.Context, billID string) {
	if c == nil {
		return
	}
	if err := c.Delete(ctx, Key(PrefixResults, billID)); err != nil {
		slog.Warn("Cache invalidation failed", "bill_id", billID, "error", err)
	}
	c.InvalidateLists(ctx)
}

// InvalidateLists drops cached bill lists and feeds.
func (c *Cache) InvalidateLists(ctx context.Context) {
	if c == nil {
		return
	}
	for _, prefix := range []string{PrefixBills, PrefixFeed} {
		if err := c.DeletePrefix(ctx, prefix); err != nil {
			slog.Warn("Cache invalidation failed", "prefix", prefix, "error", err)
		}
	}
}

// Health returns cache health information.
func (c *Cache) Health(ctx context.Context) map[string]any {
	if c == nil {
		return map[string]any{"status": "disabled", "type": "redis"}
	}

	health := map[string]any{
		"status": "healthy",
		"type":   "redis",
	}

	if err := c.client.Ping(ctx).Err(); err != nil {
		health["status"] = "unhealthy"
		health["error"] = err.Error()
		return health
	}

	if n, err := c.client.DBSize(ctx).Result(); err == nil {
		health["key_count"] = n
	}
	return health
}

func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
