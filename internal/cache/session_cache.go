// Package cache mirrors each account's RPC SessionState into Redis as a
// read-through cache in front of the Postgres store, so the RPC client
// does not hit the database on every call. Postgres remains the system
// of record; a cache miss or Redis outage falls back to the store.
package cache

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionCache wraps a Redis client scoped to session-state keys.
type SessionCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// Config configures the session cache's Redis connection.
type Config struct {
	RedisURL string
	TTL      time.Duration
}

// NewSessionCache creates a new Redis-backed session cache client.
func NewSessionCache(ctx context.Context, cfg Config) (*SessionCache, error) {
	redisURL := cfg.RedisURL
	if redisURL == "" {
		redisURL = os.Getenv("GPHOTOCTL_REDIS_URL")
	}
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	return &SessionCache{client: client, prefix: "session:", ttl: ttl}, nil
}

// Close closes the Redis connection.
func (c *SessionCache) Close() error {
	return c.client.Close()
}

// Get returns the cached session blob for an account, or ("", false) on a
// miss (including when Redis itself is unreachable — the caller should
// fall back to the durable store rather than treat this as fatal).
func (c *SessionCache) Get(ctx context.Context, accountID string) (string, bool) {
	val, err := c.client.Get(ctx, c.key(accountID)).Result()
	if err != nil {
		return "", false
	}
	return val, true
}

// Set stores the latest session blob for an account with the configured TTL.
func (c *SessionCache) Set(ctx context.Context, accountID, sessionJSON string) error {
	if err := c.client.Set(ctx, c.key(accountID), sessionJSON, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache session: %w", err)
	}
	return nil
}

// Invalidate drops a cached session, forcing the next read through to the store.
func (c *SessionCache) Invalidate(ctx context.Context, accountID string) error {
	if err := c.client.Del(ctx, c.key(accountID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate session cache: %w", err)
	}
	return nil
}

func (c *SessionCache) key(accountID string) string {
	return fmt.Sprintf("%s%s", c.prefix, accountID)
}
