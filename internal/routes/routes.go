package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/campaignly/auth-service/internal/handlers"
	"github.com/campaignly/auth-service/internal/middleware"
	"github.com/campaignly/auth-service/internal/services"
)

// Deps are the route-level guards and their collaborators.
type Deps struct {
	Handler     *handlers.Handler
	Service     services.AuthService
	Tokens      services.TokenManager
	RateLimiter *middleware.RateLimiter
	APIKey      string
}

func Setup(app *fiber.App, d Deps) {
	requireSession := middleware.RequireSession(d.Service)
	requireAuth := middleware.RequireAuth(d.Tokens)
	requireAPIKey := middleware.RequireAPIKey(d.APIKey)
	limited := d.RateLimiter.ByIP()

	api := app.Group("/api/v1")
	auth := api.Group("/auth")

	auth.Post("/register/phone", limited, d.Handler.RegisterPhone)
	auth.Post("/register/verify", requireSession, d.Handler.RegisterVerify)
	auth.Post("/login/phone", limited, d.Handler.LoginPhone)
	auth.Post("/login/verify", requireSession, d.Handler.LoginVerify)
	auth.Post("/reset-password/request", limited, d.Handler.ResetPasswordRequest)
	auth.Post("/reset-password/verify", requireSession, d.Handler.ResetPasswordVerify)
	auth.Post("/resend-code", limited, requireSession, d.Handler.ResendCode)
	auth.Post("/refresh-token", d.Handler.RefreshToken)
	auth.Post("/logout", d.Handler.Logout)
	auth.Post("/change-password", requireAuth, d.Handler.ChangePassword)

	auth.Post("/auto-register", requireAPIKey, d.Handler.AutoRegister)
	auth.Post("/auto-login", limited, d.Handler.AutoLogin)
	auth.Post("/set-password-after-autologin", limited, d.Handler.SetPasswordAfterAutoLogin)

	auth.Get("/me", requireAuth, d.Handler.Me)
}
