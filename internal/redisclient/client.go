package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"stock-service/internal/util"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

type Client struct {
	rdb    *redis.Client
	logger *zap.Logger
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

	return &Client{rdb: rdb, logger: util.GetLogger()}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// GetJSON loads one storage key into dst. A missing key leaves dst at its
// zero value. A key that fails to decode is deleted and counted, then dst is
// left alone, so one corrupt key never takes the rest of the session down.
func (c *Client) GetJSON(ctx context.Context, key string, dst interface{}) error {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		util.SessionKeyResets.WithLabelValues(key).Inc()
		c.logger.Warn("Corrupt session key, resetting to default",
			zap.String("key", key), zap.Error(err))
		return c.rdb.Del(ctx, key).Err()
	}
	return nil
}

// SetJSON stores one value under its own key
func (c *Client) SetJSON(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return c.rdb.Set(ctx, key, raw, 0).Err()
}

// DeleteKey removes one storage key
func (c *Client) DeleteKey(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}
