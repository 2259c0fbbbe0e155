package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/campaignly/auth-service/internal/config"
)

// ConnectRedis builds the shared client used by the request rate limiter and
// pings it so a bad address fails at startup, not on the first request.
func ConnectRedis(cfg config.RedisCfg, logger *zap.SugaredLogger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	logger.Infow("Redis connected", "addr", cfg.Addr, "db", cfg.DB)
	return client, nil
}
