// Package cache keeps agent presence in Redis: each metrics post refreshes
// a TTL'd last-seen key, and the heartbeat reconciler treats an expired key
// as the agent having gone quiet. The cache is optional; when Redis is
// down the reconciler falls back to the registry's in-memory lastSeen.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const lastSeenPrefix = "hub:agent:last_seen:"

type Client interface {
	Touch(agentID string, seen time.Time, ttl time.Duration) error
	LastSeen(agentID string) (time.Time, error)
	Close() error
}

type RedisCache struct {
	rdb *redis.Client
}

func NewRedisClient(url string) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisCache{rdb: rdb}, nil
}

func (c *RedisCache) Touch(agentID string, seen time.Time, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	return c.rdb.Set(ctx, lastSeenPrefix+agentID, seen.UnixMilli(), ttl).Err()
}

// LastSeen returns the cached presence timestamp. A missing key surfaces
// as redis.Nil.
func (c *RedisCache) LastSeen(agentID string) (time.Time, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ms, err := c.rdb.Get(ctx, lastSeenPrefix+agentID).Int64()
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}

func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
