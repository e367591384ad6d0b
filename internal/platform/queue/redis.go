package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/vcontests/vscubing-back/internal/platform/config"
)

// RDB stays nil when REDIS_ADDR is empty; callers fall back to in-process work.
var RDB *redis.Client

func ConnectRedis(ctx context.Context) error {
	if config.AppConfig.RedisAddr == "" {
		slog.Info("REDIS_ADDR not set, finish checks will run inline")
		return nil
	}
	RDB = redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisDB,
	})

	if _, err := RDB.Ping(ctx).Result(); err != nil {
		RDB.Close()
		RDB = nil
		return fmt.Errorf("could not connect to Redis: %w", err)
	}
	slog.Info("Connected to Redis", "addr", config.AppConfig.RedisAddr)
	return nil
}

func CloseRedis() {
	if RDB != nil {
		RDB.Close()
		slog.Info("Redis connection closed")
	}
}
