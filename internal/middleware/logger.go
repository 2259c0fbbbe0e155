package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// RequestLogger logs one structured line per request.
func RequestLogger(logger *zap.Logger) fiber.Handler {
	sugar := logger.Sugar()
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		sugar.Infow("request",
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"ip", c.IP(),
			"duration", time.Since(start).String(),
		)
		return err
	}
}
