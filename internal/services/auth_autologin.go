package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/campaignly/auth-service/internal/metrics"
	"github.com/campaignly/auth-service/internal/models"
	"github.com/campaignly/auth-service/internal/password"
	"github.com/campaignly/auth-service/internal/repository"
	"github.com/campaignly/auth-service/internal/utils"
)

// AutoRegister provisions an account without phone verification. It is only
// reachable behind the service API key, so the caller is a trusted backend
// that already owns the phone number.
func (s *authService) AutoRegister(ctx context.Context, phone, companyName string, meta ClientMeta) (*AutoRegisterResult, error) {
	if phone == "" {
		return nil, errMissingPhone()
	}
	phone = utils.FormatPhone(phone)

	// Any user record for the phone counts, active or not: the phone column
	// is unique, so a second insert would fail anyway.
	user, err := s.users.FindByPhone(ctx, phone)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	result := &AutoRegisterResult{}
	var company *models.Company
	if user == nil {
		generated := password.Generate(generatedPasswordLength)
		hashed, err := s.hasher.Hash(generated)
		if err != nil {
			return nil, err
		}

		if companyName == "" {
			companyName = fmt.Sprintf("Компания %s", phone)
		}
		company, err = s.companies.Create(ctx, companyName)
		if err != nil {
			return nil, err
		}

		user = &models.User{
			Login:    phone,
			Phone:    phone,
			PassHash: hashed,
			IsActive: true,
			Company:  company.ID,
		}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, err
		}
		result.IsNewUser = true
		result.GeneratedPassword = generated
	} else if !user.Company.IsZero() {
		company, err = s.companies.FindByID(ctx, user.Company)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}

	// The pair is issued and persisted right away; the caller only receives
	// the auto-login URL and redeems the tokens through it.
	if _, err := s.issueTokens(ctx, user, company, s.tokens.AccessTTL(), "auto_register", meta); err != nil {
		return nil, err
	}

	token, err := s.autoLoginTokens.Create(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	result.AutoLoginURL = fmt.Sprintf("%s?token=%s", s.autoLoginURL, token)
	return result, nil
}

func (s *authService) AutoLogin(ctx context.Context, token string, meta ClientMeta) (*AutoLoginResult, error) {
	if token == "" {
		return nil, errMissingToken()
	}

	consumed, err := s.autoLoginTokens.Consume(ctx, token)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errInvalidToken()
	}
	if err != nil {
		return nil, err
	}

	user, company, err := s.userWithCompany(ctx, consumed.UserID)
	if err != nil {
		return nil, err
	}

	// The longer access TTL keeps the auto-logged-in user signed in while
	// they have not yet set an own password.
	auth, err := s.issueTokens(ctx, user, company, s.tokens.AutoLoginAccessTTL(), "auto_login", meta)
	if err != nil {
		return nil, err
	}

	result := &AutoLoginResult{AuthResult: *auth}

	session, err := s.sessions.CreatePasswordResetAfterAutoLogin(ctx, user.ID, user.Phone)
	if err != nil {
		// The login itself succeeded; the user just loses the shortcut to
		// set a password and can fall back to the regular reset flow.
		s.logger.Warnw("failed to create post-autologin password session", "userId", user.ID.Hex(), "error", err)
		return result, nil
	}
	metrics.SessionsStarted.WithLabelValues(models.SessionPasswordResetAfterAutoLogin).Inc()

	result.PasswordReset = PasswordResetInfo{
		Available: true,
		SessionID: session.SessionID,
		ExpiresIn: session.ExpiresIn(time.Now()),
	}
	return result, nil
}

func (s *authService) SetPasswordAfterAutoLogin(ctx context.Context, sessionID, newPassword string, meta ClientMeta) (*AuthResult, error) {
	if sessionID == "" || newPassword == "" {
		return nil, errMissingParameters()
	}

	session, err := s.sessions.GetActive(ctx, sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errInvalidSession()
	}
	if err != nil {
		return nil, err
	}
	if session.Type != models.SessionPasswordResetAfterAutoLogin || !session.Verified {
		return nil, errInvalidSessionType()
	}
	if session.Attempts >= session.MaxAttempts {
		return nil, errSessionAlreadyUsed()
	}

	user, company, err := s.userWithCompany(ctx, session.UserData.UserID)
	if err != nil {
		return nil, err
	}

	check := password.CheckStrength(newPassword, user.Login, user.FirstName, user.LastName, user.Email, user.Phone)
	if !check.IsStrong {
		return nil, errWeakPassword(check)
	}

	// Burn the session before touching the credential so a concurrent request
	// with the same session loses here and never writes a second hash.
	if err := s.sessions.ConsumeSingleUse(ctx, session.SessionID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errSessionAlreadyUsed()
		}
		return nil, err
	}

	hashed, err := s.hasher.Hash(newPassword)
	if err != nil {
		return nil, err
	}
	if err := s.users.SetPasswordHash(ctx, user.ID, hashed); err != nil {
		return nil, err
	}

	return s.issueTokens(ctx, user, company, s.tokens.AutoLoginAccessTTL(), "set_password_after_autologin", meta)
}
