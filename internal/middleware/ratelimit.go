package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimiter is a fixed-window request limiter backed by Redis, shared
// across instances of the service.
type RateLimiter struct {
	redis  *redis.Client
	prefix string
	limit  int
	window time.Duration
	logger *zap.SugaredLogger
}

func NewRateLimiter(r *redis.Client, prefix string, limit int, window time.Duration, logger *zap.SugaredLogger) *RateLimiter {
	return &RateLimiter{redis: r, prefix: prefix, limit: limit, window: window, logger: logger}
}

// ByIP limits by client IP. A Redis outage lets requests through; the
// per-session cooldowns still hold.
func (r *RateLimiter) ByIP() fiber.Handler {
	return r.ByKey(func(c *fiber.Ctx) string { return c.IP() })
}

func (r *RateLimiter) ByKey(keyFunc func(c *fiber.Ctx) string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := fmt.Sprintf("%s:%s", r.prefix, keyFunc(c))
		ctx := c.UserContext()

		count, err := r.redis.Incr(ctx, key).Result()
		if err != nil {
			r.logger.Warnw("rate limiter unavailable", "error", err)
			return c.Next()
		}
		if count == 1 {
			r.redis.Expire(ctx, key, r.window)
		}
		if count > int64(r.limit) {
			ttl, _ := r.redis.TTL(ctx, key).Result()
			cooldown := int(ttl.Seconds())
			if cooldown < 1 {
				cooldown = int(r.window.Seconds())
			}
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success":  false,
				"error":    "rate_limit",
				"message":  "Слишком много запросов, попробуйте позже",
				"cooldown": cooldown,
			})
		}
		return c.Next()
	}
}
