package services

import (
	"github.com/gofiber/fiber/v2"

	"github.com/campaignly/auth-service/internal/password"
)

// Error is a domain-expected failure: a machine-readable code, the HTTP
// status it maps to, and flow extras the client needs (remaining cooldown,
// the resumable session id, attempts left, password feedback). Anything that
// is not a *Error is treated as an infrastructure failure and rendered as a
// generic server_error.
type Error struct {
	Code    string
	Message string
	Status  int

	Cooldown         int                      `json:"-"`
	SessionID        string                   `json:"-"`
	AttemptsLeft     int                      `json:"-"`
	HasAttemptsLeft  bool                     `json:"-"`
	PasswordFeedback *password.StrengthResult `json:"-"`
}

func (e *Error) Error() string { return e.Code + ": " + e.Message }

func newError(status int, code, message string) *Error {
	return &Error{Code: code, Message: message, Status: status}
}

func errMissingPhone() *Error {
	return newError(fiber.StatusBadRequest, "missing_phone", "Не указан номер телефона")
}

func errMissingPassword() *Error {
	return newError(fiber.StatusBadRequest, "missing_password", "Необходимо указать пароль")
}

func errMissingParameters() *Error {
	return newError(fiber.StatusBadRequest, "missing_parameters", "Не указаны необходимые параметры")
}

func errWeakPassword(check password.StrengthResult) *Error {
	e := newError(fiber.StatusBadRequest, "weak_password", "Пароль недостаточно надежный")
	e.PasswordFeedback = &check
	return e
}

func errRateLimit(message string, cooldown int, sessionID string) *Error {
	e := newError(fiber.StatusTooManyRequests, "rate_limit", message)
	e.Cooldown = cooldown
	e.SessionID = sessionID
	return e
}

func errUserExists() *Error {
	return newError(fiber.StatusBadRequest, "user_exists", "Пользователь с таким номером телефона уже зарегистрирован")
}

func errUserNotFound() *Error {
	return newError(fiber.StatusNotFound, "user_not_found", "Пользователь не найден")
}

func errInvalidSessionType() *Error {
	return newError(fiber.StatusBadRequest, "invalid_session_type", "Неверный тип сессии")
}

func errMaxAttempts() *Error {
	return newError(fiber.StatusBadRequest, "max_attempts_exceeded", "Превышено максимальное количество попыток")
}

func errInvalidCode(attemptsLeft int) *Error {
	e := newError(fiber.StatusBadRequest, "invalid_code", "Неверный код подтверждения")
	e.AttemptsLeft = attemptsLeft
	e.HasAttemptsLeft = true
	return e
}

func errMissingToken() *Error {
	return newError(fiber.StatusBadRequest, "missing_token", "Не указан токен")
}

func errInvalidToken() *Error {
	return newError(fiber.StatusUnauthorized, "invalid_token", "Недействительный или истекший токен")
}

func errInvalidTokenType() *Error {
	return newError(fiber.StatusUnauthorized, "invalid_token_type", "Неверный тип токена")
}

func errTokenRevoked() *Error {
	return newError(fiber.StatusUnauthorized, "token_revoked", "Токен был отозван или истек")
}

func errInvalidPassword() *Error {
	return newError(fiber.StatusBadRequest, "invalid_password", "Текущий пароль неверен")
}

func errInvalidSession() *Error {
	return newError(fiber.StatusUnauthorized, "invalid_session", "Недействительная или истекшая сессия")
}

func errSessionAlreadyUsed() *Error {
	return newError(fiber.StatusBadRequest, "session_already_used", "Сессия уже была использована")
}

func errUnauthorized() *Error {
	return newError(fiber.StatusUnauthorized, "unauthorized", "Не авторизован")
}
