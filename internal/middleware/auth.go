package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/campaignly/auth-service/internal/services"
)

// RequireAuth verifies the bearer access token and stores the user id and
// claims in the request context.
func RequireAuth(tm services.TokenManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		auth := c.Get(fiber.HeaderAuthorization)
		if auth == "" {
			return unauthorized(c, "Не авторизован")
		}
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return unauthorized(c, "Не авторизован")
		}
		claims, err := tm.ParseAccess(parts[1])
		if err != nil {
			return unauthorized(c, "Недействительный или истекший токен")
		}
		c.Locals(LocalUserID, claims.UserID)
		c.Locals(LocalClaims, claims)
		return c.Next()
	}
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"success": false,
		"error":   "unauthorized",
		"message": message,
	})
}
