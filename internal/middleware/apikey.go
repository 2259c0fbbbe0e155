package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
)

// RequireAPIKey guards service-to-service endpoints with a shared key
// expected in the x-api-key header.
func RequireAPIKey(key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		provided := c.Get("x-api-key")
		if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
			return unauthorized(c, "Не авторизован")
		}
		return c.Next()
	}
}
