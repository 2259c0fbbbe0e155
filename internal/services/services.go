package services

import (
	"context"
	"time"

	"github.com/campaignly/auth-service/internal/models"
	"github.com/campaignly/auth-service/internal/tokens"
)

// TokenManager is the signing capability the orchestrator depends on. The
// concrete implementation lives in internal/tokens; tests may substitute it.
type TokenManager interface {
	GenerateAccessToken(userID string, admin bool, company tokens.CompanyClaim, ttl time.Duration) (string, time.Time, error)
	GenerateRefreshToken(userID string) (string, time.Time, error)
	ParseAccess(token string) (*tokens.AccessClaims, error)
	ParseRefresh(token string) (string, error)
	DecodeUserID(token string) (string, bool)
	AccessTTL() time.Duration
	AutoLoginAccessTTL() time.Duration
	RefreshTTL() time.Duration
}

// PasswordHasher hashes and verifies stored passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

// RegistrationInput is the payload of a registration start request.
type RegistrationInput struct {
	Phone       string
	FirstName   string
	LastName    string
	Email       string
	Password    string
	CompanyName string
}

// ClientMeta is the audit metadata attached to issued refresh tokens.
type ClientMeta struct {
	UserAgent string
	IPAddress string
}

// StartFlowResult is returned by the three code-dispatching start
// operations. The verification code itself never leaves the server.
type StartFlowResult struct {
	SessionID         string
	ExpiresIn         int
	IsExistingSession bool
	IsNewUser         bool
}

// AuthResult is an issued access/refresh pair with the user summary.
type AuthResult struct {
	Token        string
	RefreshToken string
	ExpiresIn    int
	User         models.UserSummary
}

// ResendResult reports the session state after a code resend.
type ResendResult struct {
	ExpiresIn    int
	AttemptsLeft int
	Cooldown     int
}

// AutoRegisterResult carries the auto-login URL and, for newly provisioned
// accounts only, the generated plaintext password (returned exactly once).
type AutoRegisterResult struct {
	IsNewUser         bool
	AutoLoginURL      string
	GeneratedPassword string
}

// PasswordResetInfo describes the pre-verified session created on auto-login
// so the user can set an own password without knowing the generated one.
type PasswordResetInfo struct {
	Available bool
	SessionID string
	ExpiresIn int
}

// AutoLoginResult is an AuthResult plus the password-reset session info.
type AutoLoginResult struct {
	AuthResult
	PasswordReset PasswordResetInfo
}

// AuthService is the session state machine behind the auth HTTP surface.
// Domain-expected failures come back as *Error; anything else is an
// infrastructure failure the handler maps to server_error.
type AuthService interface {
	StartRegistration(ctx context.Context, in RegistrationInput) (*StartFlowResult, error)
	CompleteRegistration(ctx context.Context, session *models.AuthSession, code, referral string, meta ClientMeta) (*AuthResult, error)
	StartLogin(ctx context.Context, phone string) (*StartFlowResult, error)
	CompleteLogin(ctx context.Context, session *models.AuthSession, code string, meta ClientMeta) (*AuthResult, error)
	StartPasswordReset(ctx context.Context, phone string) (*StartFlowResult, error)
	CompletePasswordReset(ctx context.Context, session *models.AuthSession, code, newPassword string, meta ClientMeta) (*AuthResult, error)
	ResendCode(ctx context.Context, session *models.AuthSession) (*ResendResult, error)

	Refresh(ctx context.Context, refreshToken string, meta ClientMeta) (*AuthResult, error)
	Logout(ctx context.Context, bearerToken string)
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error

	AutoRegister(ctx context.Context, phone, companyName string, meta ClientMeta) (*AutoRegisterResult, error)
	AutoLogin(ctx context.Context, token string, meta ClientMeta) (*AutoLoginResult, error)
	SetPasswordAfterAutoLogin(ctx context.Context, sessionID, newPassword string, meta ClientMeta) (*AuthResult, error)

	GetSession(ctx context.Context, sessionID string) (*models.AuthSession, error)
	Me(ctx context.Context, userID string) (*models.UserSummary, error)
}
