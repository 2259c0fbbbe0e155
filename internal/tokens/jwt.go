package tokens

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken   = errors.New("invalid or expired token")
	ErrWrongTokenType = errors.New("wrong token type")
)

// CompanyClaim is the company snapshot embedded in access tokens.
type CompanyClaim struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

// AccessClaims is the payload of an access token.
type AccessClaims struct {
	UserID  string       `json:"id"`
	Admin   bool         `json:"admin"`
	Company CompanyClaim `json:"company"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload of a refresh token. TokenType separates it
// from access tokens signed with the same library.
type RefreshClaims struct {
	UserID    string `json:"id"`
	TokenType string `json:"tokenType"`
	jwt.RegisteredClaims
}

// Manager signs and verifies the two token families with independent HS256
// secrets. It is handed to the auth service as a capability so the signing
// scheme stays swappable.
type Manager struct {
	accessSecret       []byte
	refreshSecret      []byte
	accessTTL          time.Duration
	autoLoginAccessTTL time.Duration
	refreshTTL         time.Duration
}

func NewManager(accessSecret, refreshSecret string, accessTTL, autoLoginAccessTTL, refreshTTL time.Duration) *Manager {
	return &Manager{
		accessSecret:       []byte(accessSecret),
		refreshSecret:      []byte(refreshSecret),
		accessTTL:          accessTTL,
		autoLoginAccessTTL: autoLoginAccessTTL,
		refreshTTL:         refreshTTL,
	}
}

func (m *Manager) AccessTTL() time.Duration          { return m.accessTTL }
func (m *Manager) AutoLoginAccessTTL() time.Duration { return m.autoLoginAccessTTL }
func (m *Manager) RefreshTTL() time.Duration         { return m.refreshTTL }

// GenerateAccessToken signs an access token with the given lifetime
// (the standard TTL for normal logins, the longer one after auto-login).
func (m *Manager) GenerateAccessToken(userID string, admin bool, company CompanyClaim, ttl time.Duration) (string, time.Time, error) {
	exp := time.Now().Add(ttl)
	claims := &AccessClaims{
		UserID:  userID,
		Admin:   admin,
		Company: company,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.accessSecret)
	return signed, exp, err
}

// GenerateRefreshToken signs a refresh token carrying the tokenType marker.
func (m *Manager) GenerateRefreshToken(userID string) (string, time.Time, error) {
	exp := time.Now().Add(m.refreshTTL)
	claims := &RefreshClaims{
		UserID:    userID,
		TokenType: "refresh",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.refreshSecret)
	return signed, exp, err
}

// ParseAccess verifies an access token and returns its claims.
func (m *Manager) ParseAccess(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.accessSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ParseRefresh verifies a refresh token. A structurally valid token of the
// wrong sub-type is rejected; the caller must still check the token store,
// signature validity alone never suffices.
func (m *Manager) ParseRefresh(tokenStr string) (string, error) {
	claims := &RefreshClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return "", ErrInvalidToken
		}
		return m.refreshSecret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	if claims.TokenType != "refresh" {
		return "", ErrWrongTokenType
	}
	return claims.UserID, nil
}

// DecodeUserID extracts the user id without verifying the signature. Logout
// is best-effort and must not fail on an expired or foreign token.
func (m *Manager) DecodeUserID(tokenStr string) (string, bool) {
	claims := &AccessClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenStr, claims); err != nil {
		return "", false
	}
	if claims.UserID == "" {
		return "", false
	}
	return claims.UserID, true
}
