package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// releaseLockScript deletes the lock only if it is still held by the caller's token.
const releaseLockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

type Client struct {
	rdb           *redis.Client
	releaseScript *redis.Script
}

// NewClient creates a new Redis client and checks connectivity
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:           rdb,
		releaseScript: redis.NewScript(releaseLockScript),
	}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks Redis is reachable
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// IsEventProcessed checks whether a webhook event was already reconciled
func (c *Client) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	n, err := c.rdb.Exists(ctx, eventKey(eventID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkEventProcessed records a reconciled webhook event for ttl
func (c *Client) MarkEventProcessed(ctx context.Context, eventID string, ttl time.Duration) error {
	return c.rdb.Set(ctx, eventKey(eventID), time.Now().Unix(), ttl).Err()
}

// AcquireLock tries to take a distributed lock identified by token
func (c *Client) AcquireLock(ctx context.Context, lockKey, token string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, lockName(lockKey), token, ttl).Result()
}

// ReleaseLock releases the lock if token still owns it
func (c *Client) ReleaseLock(ctx context.Context, lockKey, token string) error {
	if err := c.releaseScript.Run(ctx, c.rdb, []string{lockName(lockKey)}, token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("release lock script failed: %w", err)
	}
	return nil
}

func eventKey(eventID string) string {
	return fmt.Sprintf("webhook:event:%s", eventID)
}

func lockName(key string) string {
	return fmt.Sprintf("lock:%s", key)
}
