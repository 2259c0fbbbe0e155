package handlers

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/campaignly/auth-service/internal/middleware"
	"github.com/campaignly/auth-service/internal/models"
	"github.com/campaignly/auth-service/internal/services"
)

type Handler struct {
	svc      services.AuthService
	logger   *zap.SugaredLogger
	validate *validator.Validate
}

func NewHandler(svc services.AuthService, logger *zap.Logger) *Handler {
	return &Handler{
		svc:      svc,
		logger:   logger.Sugar(),
		validate: validator.New(),
	}
}

func clientMeta(c *fiber.Ctx) services.ClientMeta {
	return services.ClientMeta{
		UserAgent: c.Get(fiber.HeaderUserAgent),
		IPAddress: c.IP(),
	}
}

func session(c *fiber.Ctx) *models.AuthSession {
	s, _ := c.Locals(middleware.LocalSession).(*models.AuthSession)
	return s
}

func (h *Handler) parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return badRequest(c, "missing_parameters", "Не указаны необходимые параметры")
	}
	if err := h.validate.Struct(out); err != nil {
		return badRequest(c, "missing_parameters", "Не указаны необходимые параметры")
	}
	return nil
}

type registerPhoneReq struct {
	Phone       string `json:"phone" validate:"required"`
	Password    string `json:"password" validate:"required"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email" validate:"omitempty,email"`
	CompanyName string `json:"companyName"`
}

func (h *Handler) RegisterPhone(c *fiber.Ctx) error {
	var req registerPhoneReq
	if err := h.parseBody(c, &req); err != nil {
		return err
	}
	res, err := h.svc.StartRegistration(c.UserContext(), services.RegistrationInput{
		Phone:       req.Phone,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		Password:    req.Password,
		CompanyName: req.CompanyName,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return ok(c, fiber.StatusOK, fiber.Map{
		"sessionId":         res.SessionID,
		"expiresIn":         res.ExpiresIn,
		"isExistingSession": res.IsExistingSession,
		"isNewUser":         res.IsNewUser,
	})
}

type verifyReq struct {
	SessionID string `json:"sessionId" validate:"required"`
	Code      string `json:"code" validate:"required,len=6,numeric"`
	Referral  string `json:"referral"`
}

func (h *Handler) RegisterVerify(c *fiber.Ctx) error {
	var req verifyReq
	if err := h.parseBody(c, &req); err != nil {
		return err
	}
	res, err := h.svc.CompleteRegistration(c.UserContext(), session(c), req.Code, req.Referral, clientMeta(c))
	if err != nil {
		return h.fail(c, err)
	}
	return authResult(c, fiber.StatusCreated, res)
}

type phoneReq struct {
	Phone string `json:"phone" validate:"required"`
}

func (h *Handler) LoginPhone(c *fiber.Ctx) error {
	var req phoneReq
	if err := h.parseBody(c, &req); err != nil {
		return err
	}
	res, err := h.svc.StartLogin(c.UserContext(), req.Phone)
	if err != nil {
		return h.fail(c, err)
	}
	return startResult(c, res)
}

func (h *Handler) LoginVerify(c *fiber.Ctx) error {
	var req verifyReq
	if err := h.parseBody(c, &req); err != nil {
		return err
	}
	res, err := h.svc.CompleteLogin(c.UserContext(), session(c), req.Code, clientMeta(c))
	if err != nil {
		return h.fail(c, err)
	}
	return authResult(c, fiber.StatusOK, res)
}

func (h *Handler) ResetPasswordRequest(c *fiber.Ctx) error {
	var req phoneReq
	if err := h.parseBody(c, &req); err != nil {
		return err
	}
	res, err := h.svc.StartPasswordReset(c.UserContext(), req.Phone)
	if err != nil {
		return h.fail(c, err)
	}
	return startResult(c, res)
}

type resetVerifyReq struct {
	SessionID   string `json:"sessionId" validate:"required"`
	Code        string `json:"code" validate:"required,len=6,numeric"`
	NewPassword string `json:"newPassword" validate:"required"`
}

func (h *Handler) ResetPasswordVerify(c *fiber.Ctx) error {
	var req resetVerifyReq
	if err := h.parseBody(c, &req); err != nil {
		return err
	}
	res, err := h.svc.CompletePasswordReset(c.UserContext(), session(c), req.Code, req.NewPassword, clientMeta(c))
	if err != nil {
		return h.fail(c, err)
	}
	return authResult(c, fiber.StatusOK, res)
}

type refreshReq struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

func (h *Handler) RefreshToken(c *fiber.Ctx) error {
	var req refreshReq
	if err := h.parseBody(c, &req); err != nil {
		return err
	}
	res, err := h.svc.Refresh(c.UserContext(), req.RefreshToken, clientMeta(c))
	if err != nil {
		return h.fail(c, err)
	}
	return authResult(c, fiber.StatusOK, res)
}

func (h *Handler) ResendCode(c *fiber.Ctx) error {
	res, err := h.svc.ResendCode(c.UserContext(), session(c))
	if err != nil {
		return h.fail(c, err)
	}
	return ok(c, fiber.StatusOK, fiber.Map{
		"expiresIn":    res.ExpiresIn,
		"attemptsLeft": res.AttemptsLeft,
		"cooldown":     res.Cooldown,
	})
}

// Logout never reports failure to the client.
func (h *Handler) Logout(c *fiber.Ctx) error {
	token := c.Get(fiber.HeaderAuthorization)
	if parts := strings.SplitN(token, " ", 2); len(parts) == 2 {
		token = parts[1]
	}
	h.svc.Logout(c.UserContext(), token)
	return ok(c, fiber.StatusOK, fiber.Map{"message": "Выход выполнен"})
}

type changePasswordReq struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
}

func (h *Handler) ChangePassword(c *fiber.Ctx) error {
	var req changePasswordReq
	if err := h.parseBody(c, &req); err != nil {
		return err
	}
	userID, _ := c.Locals(middleware.LocalUserID).(string)
	if err := h.svc.ChangePassword(c.UserContext(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		return h.fail(c, err)
	}
	return ok(c, fiber.StatusOK, fiber.Map{"message": "Пароль изменен"})
}

type autoRegisterReq struct {
	Phone       string `json:"phone" validate:"required"`
	CompanyName string `json:"companyName"`
}

func (h *Handler) AutoRegister(c *fiber.Ctx) error {
	var req autoRegisterReq
	if err := h.parseBody(c, &req); err != nil {
		return err
	}
	res, err := h.svc.AutoRegister(c.UserContext(), req.Phone, req.CompanyName, clientMeta(c))
	if err != nil {
		return h.fail(c, err)
	}
	body := fiber.Map{
		"isNewUser":    res.IsNewUser,
		"autoLoginUrl": res.AutoLoginURL,
	}
	if res.GeneratedPassword != "" {
		body["generatedPassword"] = res.GeneratedPassword
	}
	return ok(c, fiber.StatusOK, body)
}

type autoLoginReq struct {
	Token string `json:"token" validate:"required"`
}

func (h *Handler) AutoLogin(c *fiber.Ctx) error {
	var req autoLoginReq
	if err := h.parseBody(c, &req); err != nil {
		return err
	}
	res, err := h.svc.AutoLogin(c.UserContext(), req.Token, clientMeta(c))
	if err != nil {
		return h.fail(c, err)
	}
	body := fiber.Map{
		"token":        res.Token,
		"refreshToken": res.RefreshToken,
		"expiresIn":    res.ExpiresIn,
		"user":         res.User,
	}
	if res.PasswordReset.Available {
		body["passwordReset"] = fiber.Map{
			"sessionId": res.PasswordReset.SessionID,
			"expiresIn": res.PasswordReset.ExpiresIn,
		}
	}
	return ok(c, fiber.StatusOK, body)
}

type setPasswordReq struct {
	SessionID   string `json:"sessionId" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

func (h *Handler) SetPasswordAfterAutoLogin(c *fiber.Ctx) error {
	var req setPasswordReq
	if err := h.parseBody(c, &req); err != nil {
		return err
	}
	res, err := h.svc.SetPasswordAfterAutoLogin(c.UserContext(), req.SessionID, req.NewPassword, clientMeta(c))
	if err != nil {
		return h.fail(c, err)
	}
	return authResult(c, fiber.StatusOK, res)
}

func (h *Handler) Me(c *fiber.Ctx) error {
	userID, _ := c.Locals(middleware.LocalUserID).(string)
	summary, err := h.svc.Me(c.UserContext(), userID)
	if err != nil {
		return h.fail(c, err)
	}
	return ok(c, fiber.StatusOK, fiber.Map{"user": summary})
}

func startResult(c *fiber.Ctx, res *services.StartFlowResult) error {
	return ok(c, fiber.StatusOK, fiber.Map{
		"sessionId":         res.SessionID,
		"expiresIn":         res.ExpiresIn,
		"isExistingSession": res.IsExistingSession,
	})
}

func authResult(c *fiber.Ctx, status int, res *services.AuthResult) error {
	return ok(c, status, fiber.Map{
		"token":        res.Token,
		"refreshToken": res.RefreshToken,
		"expiresIn":    res.ExpiresIn,
		"user":         res.User,
	})
}
