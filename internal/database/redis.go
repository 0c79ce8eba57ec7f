package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/config"
	"github.com/redis/go-redis/v9"
)

const redisConnectAttempts = 5

// ConnectRedis dials Redis with exponential backoff (capped at 30s). It gives
// up after a few attempts so a missing Redis degrades the server to
// single-instance mode instead of blocking startup.
func ConnectRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	var lastErr error
	for attempt := 1; attempt <= redisConnectAttempts; attempt++ {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       0,
			PoolSize: 100,
		})
		if lastErr = rdb.Ping(ctx).Err(); lastErr == nil {
			slog.Info("connected to redis", "component", "database", "attempt", attempt, "addr", cfg.RedisAddress)
			return rdb, nil
		}
		_ = rdb.Close()
		if attempt == redisConnectAttempts {
			break
		}

		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		slog.Warn("failed to connect redis", "component", "database", "attempt", attempt, "addr", cfg.RedisAddress, "error", lastErr, "retry_in", sleep.String())

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
	return nil, fmt.Errorf("redis unreachable after %d attempts: %w", redisConnectAttempts, lastErr)
}
