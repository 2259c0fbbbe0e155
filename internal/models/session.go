package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Session types. The type is fixed at creation and decides the session TTL,
// the attempt ceiling and whether a verification code exists at all.
const (
	SessionRegistration                = "registration"
	SessionLogin                       = "login"
	SessionPasswordReset               = "password_reset"
	SessionPasswordResetAfterAutoLogin = "password_reset_after_autologin"
)

const (
	// CodeSessionTTL applies to registration, login and password_reset.
	CodeSessionTTL = 5 * time.Minute
	// AutoLoginResetSessionTTL applies to password_reset_after_autologin.
	AutoLoginResetSessionTTL = 24 * time.Hour

	DefaultMaxAttempts        = 3
	AutoLoginResetMaxAttempts = 1

	// ResendCooldown is the minimum interval between two code dispatches
	// for the same session or (phone, type) pair.
	ResendCooldown = 60 * time.Second
)

// SessionData carries the flow-specific context of an AuthSession. Which
// fields are set depends on the session type: registration sessions carry the
// pending profile and the already-hashed password, login and reset sessions
// carry only the target user id.
type SessionData struct {
	FirstName      string             `bson:"firstName,omitempty" json:"firstName,omitempty"`
	LastName       string             `bson:"lastName,omitempty" json:"lastName,omitempty"`
	Email          string             `bson:"email,omitempty" json:"email,omitempty"`
	HashedPassword string             `bson:"hashedPassword,omitempty" json:"-"`
	CompanyName    string             `bson:"companyName,omitempty" json:"companyName,omitempty"`
	UserID         primitive.ObjectID `bson:"userId,omitempty" json:"userId,omitempty"`
	ExistingUserID primitive.ObjectID `bson:"existingUserId,omitempty" json:"existingUserId,omitempty"`
}

// AuthSession is one in-flight phone verification flow. The plaintext code is
// stored server side only and must never appear in an API response or a log.
type AuthSession struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	SessionID      string             `bson:"sessionId" json:"sessionId"`
	Phone          string             `bson:"phone" json:"phone"`
	Type           string             `bson:"type" json:"type"`
	Code           string             `bson:"code,omitempty" json:"-"`
	ExpiresAt      time.Time          `bson:"expiresAt" json:"expiresAt"`
	Attempts       int                `bson:"attempts" json:"attempts"`
	MaxAttempts    int                `bson:"maxAttempts" json:"maxAttempts"`
	UserData       SessionData        `bson:"userData" json:"-"`
	LastCodeSentAt time.Time          `bson:"lastCodeSentAt" json:"lastCodeSentAt"`
	Verified       bool               `bson:"verified" json:"verified"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time          `bson:"updated_at" json:"updated_at"`
}

// ExpiresIn reports the remaining lifetime in whole seconds.
func (s *AuthSession) ExpiresIn(now time.Time) int {
	d := int(s.ExpiresAt.Sub(now).Seconds())
	if d < 0 {
		return 0
	}
	return d
}

// AttemptsLeft reports how many verification attempts remain.
func (s *AuthSession) AttemptsLeft() int {
	left := s.MaxAttempts - s.Attempts
	if left < 0 {
		return 0
	}
	return left
}
