// Package redis shares auction locks and events between server instances.
package redis

import (
	"context"

	"github.com/Martin-Hayot/car-auction/configs"
	"github.com/Martin-Hayot/car-auction/pkg/errors"
	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

type Client struct {
	rdb *redis.Client
}

// New connects and pings; the connection is closed again if the ping fails.
func New(ctx context.Context, cfg configs.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "error connecting to redis")
	}
	log.Info("Connected to redis", "addr", cfg.Addr, "db", cfg.DB)
	return &Client{rdb: rdb}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
