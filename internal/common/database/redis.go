// internal/common/database/redis.go
package database

import (
	"context"
	"fmt"
	"time"

	"notification-dispatch/internal/common/config"

	"github.com/redis/go-redis/v9"
)

// RedisClient owns the connection backing the delivery queue.
type RedisClient struct {
	Client *redis.Client
}

// NewRedis builds a client whose read timeout leaves room for blocking pops of pollTimeout.
func NewRedis(cfg config.RedisConfig, pollTimeout time.Duration) *RedisClient {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  pollTimeout + 3*time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})
	return &RedisClient{Client: rdb}
}

func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (c *RedisClient) Close() error {
	if c.Client != nil {
		return c.Client.Close()
	}
	return nil
}
