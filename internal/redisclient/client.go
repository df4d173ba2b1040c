package redisclient

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
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

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func slotKey(ownerID int64) string {
	return fmt.Sprintf("owner-slots:%d", ownerID)
}

// SetOwnerSlotUsage caches an owner's private-customer count. The cache
// is a display fast path only; the claim transaction never consults it.
func (c *Client) SetOwnerSlotUsage(ctx context.Context, ownerID int64, count int, ttl time.Duration) error {
	return c.rdb.Set(ctx, slotKey(ownerID), count, ttl).Err()
}

// GetOwnerSlotUsage returns the cached count and whether it was present.
func (c *Client) GetOwnerSlotUsage(ctx context.Context, ownerID int64) (int, bool, error) {
	val, err := c.rdb.Get(ctx, slotKey(ownerID)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	count, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt slot usage value %q: %w", val, err)
	}
	return count, true, nil
}

// InvalidateOwnerSlotUsage drops the cached count after a claim, release
// or delete changed it.
func (c *Client) InvalidateOwnerSlotUsage(ctx context.Context, ownerID int64) error {
	return c.rdb.Del(ctx, slotKey(ownerID)).Err()
}

// SetIdempotencyKey stores an idempotency key with TTL
func (c *Client) SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.rdb.Set(ctx, fmt.Sprintf("idempotency:%s", key), value, ttl).Err()
}

// CheckIdempotencyKey checks if an idempotency key exists
func (c *Client) CheckIdempotencyKey(ctx context.Context, key string) (bool, error) {
	result, err := c.rdb.Exists(ctx, fmt.Sprintf("idempotency:%s", key)).Result()
	if err != nil {
		return false, err
	}
	return result > 0, nil
}

// AcquireLock acquires a distributed lock
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a distributed lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}
