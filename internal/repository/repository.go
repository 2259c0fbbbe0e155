package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/campaignly/auth-service/internal/models"
)

// ErrNotFound is returned when a lookup or a conditional update matched
// nothing. For conditional updates that usually means the record was already
// consumed or revoked by a concurrent request.
var ErrNotFound = errors.New("not found")

// SessionRepository persists in-flight auth sessions. Expiry is re-checked on
// every read; the TTL index is advisory cleanup only.
type SessionRepository interface {
	Create(ctx context.Context, phone, sessionType string, data models.SessionData) (*models.AuthSession, error)
	CreatePasswordResetAfterAutoLogin(ctx context.Context, userID primitive.ObjectID, phone string) (*models.AuthSession, error)
	GetActive(ctx context.Context, sessionID string) (*models.AuthSession, error)
	FindMostRecentActive(ctx context.Context, phone, sessionType string) (*models.AuthSession, error)

	// RotateCode atomically replaces the code and lastCodeSentAt, optionally
	// refreshing userData, but only if no code was sent after notSentSince.
	// Returns ErrNotFound when the session is gone, expired, codeless or
	// still inside the cooldown window.
	RotateCode(ctx context.Context, sessionID string, data *models.SessionData, notSentSince time.Time) (*models.AuthSession, error)

	// IncrementAttempts persists the attempt before the caller compares the
	// code and returns the post-increment session state.
	IncrementAttempts(ctx context.Context, sessionID string) (*models.AuthSession, error)

	// ConsumeSingleUse burns the session's single attempt, succeeding for
	// exactly one caller. The record stays behind for audit.
	ConsumeSingleUse(ctx context.Context, sessionID string) error

	MarkVerified(ctx context.Context, sessionID string) error
	Delete(ctx context.Context, sessionID string) error
}

// RefreshTokenRepository persists issued refresh credentials.
type RefreshTokenRepository interface {
	Create(ctx context.Context, userID primitive.ObjectID, token string, expiresAt time.Time, userAgent, ipAddress string) (*models.RefreshToken, error)
	FindActive(ctx context.Context, userID primitive.ObjectID, token string) (*models.RefreshToken, error)

	// RevokeActive revokes one live token; ErrNotFound means it was expired,
	// unknown or already revoked. Lookup and revocation are a single
	// conditional write, so a token rotates exactly once.
	RevokeActive(ctx context.Context, userID primitive.ObjectID, token string) error

	RevokeAllForUser(ctx context.Context, userID primitive.ObjectID) error

	// RevokeAllExceptCurrent keeps one named token alive. If the current
	// token cannot be resolved every token is revoked (fail-safe).
	RevokeAllExceptCurrent(ctx context.Context, userID primitive.ObjectID, currentToken string) error
}

// AutoLoginTokenRepository persists one-time auto-login tokens.
type AutoLoginTokenRepository interface {
	Create(ctx context.Context, userID primitive.ObjectID) (string, error)

	// Consume marks a usable token used and returns it; exactly one caller
	// can win. ErrNotFound covers unknown, expired and already-used tokens.
	Consume(ctx context.Context, token string) (*models.AutoLoginToken, error)
}

// UserRepository is the credential store.
type UserRepository interface {
	Create(ctx context.Context, u *models.User) error
	FindByPhone(ctx context.Context, phone string) (*models.User, error)
	FindActiveByPhone(ctx context.Context, phone string) (*models.User, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	Update(ctx context.Context, u *models.User) error
	SetPasswordHash(ctx context.Context, id primitive.ObjectID, hash string) error
}

// CompanyRepository owns tenant records.
type CompanyRepository interface {
	Create(ctx context.Context, name string) (*models.Company, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Company, error)
}

// ReferralRepository resolves public referral slugs.
type ReferralRepository interface {
	FindByLink(ctx context.Context, link string) (*models.ReferralLink, error)
}
