package redisclient

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/reserve_seats.lua
var reserveSeatsScript string

//go:embed scripts/release_seats.lua
var releaseSeatsScript string

//go:embed scripts/commit_seats.lua
var commitSeatsScript string

type Client struct {
	rdb           *redis.Client
	reserveScript *redis.Script
	releaseScript *redis.Script
	commitScript  *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
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
		reserveScript: redis.NewScript(reserveSeatsScript),
		releaseScript: redis.NewScript(releaseSeatsScript),
		commitScript:  redis.NewScript(commitSeatsScript),
	}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// ReserveSeats atomically reserves session seats using a Lua script.
// Returns true on success, false when not enough seats remain.
func (c *Client) ReserveSeats(ctx context.Context, sessionID int64, count int) (bool, error) {
	key := fmt.Sprintf("seats:%d", sessionID)

	result, err := c.reserveScript.Run(ctx, c.rdb, []string{key}, count).Result()
	if err != nil {
		return false, fmt.Errorf("reserve seats script failed: %w", err)
	}

	success, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected script result type")
	}

	return success == 1, nil
}

// ReleaseSeats atomically returns reserved seats (compensation)
func (c *Client) ReleaseSeats(ctx context.Context, sessionID int64, count int) error {
	key := fmt.Sprintf("seats:%d", sessionID)

	_, err := c.releaseScript.Run(ctx, c.rdb, []string{key}, count).Result()
	if err != nil {
		return fmt.Errorf("release seats script failed: %w", err)
	}

	return nil
}

// CommitSeats atomically commits reserved seats (final deduction)
func (c *Client) CommitSeats(ctx context.Context, sessionID int64, count int) error {
	key := fmt.Sprintf("seats:%d", sessionID)

	_, err := c.commitScript.Run(ctx, c.rdb, []string{key}, count).Result()
	if err != nil {
		return fmt.Errorf("commit seats script failed: %w", err)
	}

	return nil
}

// ReturnSeats puts committed seats back in the pool (refund). No
// reservation exists at this point, so only available is touched.
func (c *Client) ReturnSeats(ctx context.Context, sessionID int64, count int) error {
	key := fmt.Sprintf("seats:%d", sessionID)
	return c.rdb.HIncrBy(ctx, key, "available", int64(count)).Err()
}

// InitSeats initializes a session's seat counts in Redis
func (c *Client) InitSeats(ctx context.Context, sessionID int64, available, reserved int) error {
	key := fmt.Sprintf("seats:%d", sessionID)

	pipe := c.rdb.Pipeline()
	pipe.HSet(ctx, key, "available", available)
	pipe.HSet(ctx, key, "reserved", reserved)

	_, err := pipe.Exec(ctx)
	return err
}

// AcquireLock acquires a short-lived lock; the webhook handler uses a
// per-order lock so concurrent provider deliveries apply serially
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}
