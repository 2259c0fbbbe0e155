package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/campaignly/auth-service/internal/repository"
	"github.com/campaignly/auth-service/internal/services"
)

// RequireSession resolves the sessionId from the request body into a live
// session and stores it in the request context. Expired or unknown sessions
// are rejected here so handlers always see a valid one.
func RequireSession(svc services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body struct {
			SessionID string `json:"sessionId"`
		}
		if err := c.BodyParser(&body); err != nil || body.SessionID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   "missing_parameters",
				"message": "Не указаны необходимые параметры",
			})
		}

		session, err := svc.GetSession(c.UserContext(), body.SessionID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"success": false,
					"error":   "invalid_session",
					"message": "Недействительная или истекшая сессия",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"error":   "server_error",
				"message": "Внутренняя ошибка сервера",
			})
		}

		c.Locals(LocalSession, session)
		return c.Next()
	}
}
