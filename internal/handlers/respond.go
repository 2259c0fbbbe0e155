package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/campaignly/auth-service/internal/services"
)

// ok renders a success envelope. Payload keys are merged next to the
// success flag.
func ok(c *fiber.Ctx, status int, payload fiber.Map) error {
	body := fiber.Map{"success": true}
	for k, v := range payload {
		body[k] = v
	}
	return c.Status(status).JSON(body)
}

// fail maps a service failure to the error envelope. Domain-expected
// failures carry their own status and extras; anything else is an
// infrastructure failure rendered as a generic server_error with the
// detail kept in the log.
func (h *Handler) fail(c *fiber.Ctx, err error) error {
	var svcErr *services.Error
	if !errors.As(err, &svcErr) {
		h.logger.Errorw("unexpected error", "path", c.Path(), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "server_error",
			"message": "Внутренняя ошибка сервера",
		})
	}

	body := fiber.Map{
		"success": false,
		"error":   svcErr.Code,
		"message": svcErr.Message,
	}
	if svcErr.Cooldown > 0 {
		body["cooldown"] = svcErr.Cooldown
	}
	if svcErr.SessionID != "" {
		body["sessionId"] = svcErr.SessionID
	}
	if svcErr.HasAttemptsLeft {
		body["attemptsLeft"] = svcErr.AttemptsLeft
	}
	if svcErr.PasswordFeedback != nil {
		body["passwordFeedback"] = svcErr.PasswordFeedback
	}
	return c.Status(svcErr.Status).JSON(body)
}

func badRequest(c *fiber.Ctx, code, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"error":   code,
		"message": message,
	})
}
