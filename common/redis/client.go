package redis

import (
	"context"
	"fmt"
	"time"

	"ipal-monitor/common/config"

	"github.com/go-redis/redis/v8"
)

// ConnectTimeout bounds the initial dial and ping.
const ConnectTimeout = 5 * time.Second

// Client is an alias so callers do not import go-redis directly.
type Client = redis.Client

// Connect builds a client from cfg and pings it. The client is closed when
// the ping fails.
func Connect(ctx context.Context, cfg *config.RedisConfig) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: ConnectTimeout,
	})

	ctx, cancel := context.WithTimeout(ctx, ConnectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// Close closes client if it is not nil.
func Close(client *Client) error {
	if client == nil {
		return nil
	}
	return client.Close()
}
