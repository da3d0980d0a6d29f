// Package cache remembers which chat webhook updates were already handled.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// UpdateTracker marks webhook update ids as seen.
type UpdateTracker interface {
	// MarkSeen records updateID and reports whether it was new.
	MarkSeen(ctx context.Context, updateID int) (bool, error)
}

// RedisCache is an UpdateTracker backed by go-redis.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache constructs a Redis-backed tracker. Entries expire after ttl.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// MarkSeen implements UpdateTracker with SETNX.
func (c *RedisCache) MarkSeen(ctx context.Context, updateID int) (bool, error) {
	return c.client.SetNX(ctx, updateKey(updateID), time.Now().UTC().Unix(), c.ttl).Result()
}

func updateKey(updateID int) string {
	return fmt.Sprintf("telegram:update:%d", updateID)
}

// NopTracker treats every update as new. Used when no Redis is configured.
type NopTracker struct{}

// MarkSeen always reports the update as new.
func (NopTracker) MarkSeen(ctx context.Context, updateID int) (bool, error) {
	return true, nil
}
