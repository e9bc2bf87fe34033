package data

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/KotFed0t/papertrade/config"
	"github.com/redis/go-redis/v9"
)

// NewRedisClient returns a client shared by the quote cache and the session store.
func NewRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Redis.PingTimeout)
	defer cancel()

	pong, err := rdb.Ping(pingCtx).Result()
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	slog.Info("Redis connected", slog.String("addr", addr), slog.String("pong", pong))

	return rdb, nil
}
