package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/campaignly/auth-service/internal/metrics"
	"github.com/campaignly/auth-service/internal/models"
	"github.com/campaignly/auth-service/internal/password"
	"github.com/campaignly/auth-service/internal/repository"
	"github.com/campaignly/auth-service/internal/sms"
	"github.com/campaignly/auth-service/internal/tokens"
	"github.com/campaignly/auth-service/internal/utils"
)

const generatedPasswordLength = 12

// Deps are the collaborators the orchestrator is wired with. Everything is
// an interface so tests run against in-memory fakes.
type Deps struct {
	Sessions        repository.SessionRepository
	RefreshTokens   repository.RefreshTokenRepository
	AutoLoginTokens repository.AutoLoginTokenRepository
	Users           repository.UserRepository
	Companies       repository.CompanyRepository
	Referrals       repository.ReferralRepository
	SMS             sms.Gateway
	Tokens          TokenManager
	Hasher          PasswordHasher
	AutoLoginURL    string
	Logger          *zap.Logger
}

type authService struct {
	sessions        repository.SessionRepository
	refreshTokens   repository.RefreshTokenRepository
	autoLoginTokens repository.AutoLoginTokenRepository
	users           repository.UserRepository
	companies       repository.CompanyRepository
	referrals       repository.ReferralRepository
	sms             sms.Gateway
	tokens          TokenManager
	hasher          PasswordHasher
	autoLoginURL    string
	logger          *zap.SugaredLogger
}

func NewAuthService(d Deps) AuthService {
	return &authService{
		sessions:        d.Sessions,
		refreshTokens:   d.RefreshTokens,
		autoLoginTokens: d.AutoLoginTokens,
		users:           d.Users,
		companies:       d.Companies,
		referrals:       d.Referrals,
		sms:             d.SMS,
		tokens:          d.Tokens,
		hasher:          d.Hasher,
		autoLoginURL:    d.AutoLoginURL,
		logger:          d.Logger.Sugar(),
	}
}

func (s *authService) GetSession(ctx context.Context, sessionID string) (*models.AuthSession, error) {
	return s.sessions.GetActive(ctx, sessionID)
}

// reusableSession finds the most recent active session for (phone, type).
// Inside the cooldown window it returns a rate-limit error carrying the
// resumable session id; past the window it hands the session back for reuse.
func (s *authService) reusableSession(ctx context.Context, phone, sessionType, rateLimitMsg string) (*models.AuthSession, error) {
	existing, err := s.sessions.FindMostRecentActive(ctx, phone, sessionType)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(existing.LastCodeSentAt)
	if elapsed < models.ResendCooldown {
		remaining := int((models.ResendCooldown - elapsed).Seconds())
		if remaining < 1 {
			remaining = 1
		}
		return nil, errRateLimit(rateLimitMsg, remaining, existing.SessionID)
	}
	return existing, nil
}

// rotateAndSend refreshes the session's code atomically (gated on the
// cooldown) and dispatches it. A lost race against a concurrent dispatch
// surfaces as a rate-limit, not a duplicate code.
func (s *authService) rotateAndSend(ctx context.Context, session *models.AuthSession, data *models.SessionData, purpose, rateLimitMsg string) (*StartFlowResult, error) {
	rotated, err := s.sessions.RotateCode(ctx, session.SessionID, data, time.Now().Add(-models.ResendCooldown))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errRateLimit(rateLimitMsg, int(models.ResendCooldown.Seconds()), session.SessionID)
	}
	if err != nil {
		return nil, err
	}
	if err := s.sms.SendVerificationCode(ctx, rotated.Phone, rotated.Code, purpose); err != nil {
		return nil, err
	}
	return &StartFlowResult{
		SessionID:         rotated.SessionID,
		ExpiresIn:         rotated.ExpiresIn(time.Now()),
		IsExistingSession: true,
	}, nil
}

func (s *authService) StartRegistration(ctx context.Context, in RegistrationInput) (*StartFlowResult, error) {
	if in.Phone == "" {
		return nil, errMissingPhone()
	}
	phone := utils.FormatPhone(in.Phone)

	existing, err := s.reusableSession(ctx, phone, models.SessionRegistration, "Слишком частые запросы на регистрацию")
	if err != nil {
		return nil, err
	}

	if in.Password == "" {
		return nil, errMissingPassword()
	}
	check := password.CheckStrength(in.Password, in.FirstName, in.LastName, in.Email, phone)
	if !check.IsStrong {
		return nil, errWeakPassword(check)
	}

	hashed, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		// Resume the in-flight session, replacing its pending payload with
		// the latest request so an abandoned earlier attempt cannot leak
		// stale profile fields or an old password hash.
		data := existing.UserData
		data.FirstName = in.FirstName
		data.LastName = in.LastName
		data.Email = in.Email
		data.HashedPassword = hashed
		data.CompanyName = in.CompanyName
		return s.rotateAndSend(ctx, existing, &data, sms.PurposeRegistration, "Слишком частые запросы на регистрацию")
	}

	existingUser, err := s.users.FindByPhone(ctx, phone)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if existingUser != nil && existingUser.IsActive {
		return nil, errUserExists()
	}

	data := models.SessionData{
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		Email:          in.Email,
		HashedPassword: hashed,
		CompanyName:    in.CompanyName,
	}
	if existingUser != nil {
		data.ExistingUserID = existingUser.ID
	}

	session, err := s.sessions.Create(ctx, phone, models.SessionRegistration, data)
	if err != nil {
		return nil, err
	}
	metrics.SessionsStarted.WithLabelValues(models.SessionRegistration).Inc()

	if err := s.sms.SendVerificationCode(ctx, phone, session.Code, sms.PurposeRegistration); err != nil {
		return nil, err
	}

	return &StartFlowResult{
		SessionID: session.SessionID,
		ExpiresIn: session.ExpiresIn(time.Now()),
		IsNewUser: existingUser == nil,
	}, nil
}

// checkCode runs the shared attempt accounting: the attempt is persisted
// before the comparison, and the post-increment state decides whether the
// ceiling was crossed, so concurrent verifies cannot both slip under it.
func (s *authService) checkCode(ctx context.Context, session *models.AuthSession, code string) (*models.AuthSession, error) {
	if session.Attempts >= session.MaxAttempts {
		return nil, errMaxAttempts()
	}
	post, err := s.sessions.IncrementAttempts(ctx, session.SessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errInvalidSession()
	}
	if err != nil {
		return nil, err
	}
	if post.Attempts > post.MaxAttempts {
		return nil, errMaxAttempts()
	}
	if code != post.Code {
		return nil, errInvalidCode(post.AttemptsLeft())
	}
	return post, nil
}

func (s *authService) CompleteRegistration(ctx context.Context, session *models.AuthSession, code, referral string, meta ClientMeta) (*AuthResult, error) {
	if session.Type != models.SessionRegistration {
		return nil, errInvalidSessionType()
	}
	post, err := s.checkCode(ctx, session, code)
	if err != nil {
		return nil, err
	}

	data := post.UserData

	var origin primitive.ObjectID
	if referral != "" {
		link, err := s.referrals.FindByLink(ctx, referral)
		if err == nil {
			origin = link.User
		} else if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}

	var user *models.User
	if !data.ExistingUserID.IsZero() {
		user, err = s.users.FindByID(ctx, data.ExistingUserID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errUserNotFound()
		}
		if err != nil {
			return nil, err
		}
	}

	companyName := data.CompanyName
	if companyName == "" {
		owner := data.FirstName
		if owner == "" {
			owner = "Пользователя"
		}
		companyName = fmt.Sprintf("Компания %s", owner)
	}
	company, err := s.companies.Create(ctx, companyName)
	if err != nil {
		return nil, err
	}

	if user != nil {
		user.PassHash = data.HashedPassword
		user.IsActive = true
		user.Company = company.ID
		user.Phone = post.Phone
		user.FirstName = data.FirstName
		user.LastName = data.LastName
		user.Email = data.Email
		if err := s.users.Update(ctx, user); err != nil {
			return nil, err
		}
	} else {
		user = &models.User{
			Login:     post.Phone,
			PassHash:  data.HashedPassword,
			IsActive:  true,
			Admin:     false,
			Company:   company.ID,
			Phone:     post.Phone,
			FirstName: data.FirstName,
			LastName:  data.LastName,
			Email:     data.Email,
			Origin:    origin,
		}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, err
		}
	}

	result, err := s.issueTokens(ctx, user, company, s.tokens.AccessTTL(), "registration", meta)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Delete(ctx, post.SessionID); err != nil {
		s.logger.Warnw("failed to delete completed session", "sessionId", post.SessionID, "error", err)
	}
	return result, nil
}

func (s *authService) StartLogin(ctx context.Context, phone string) (*StartFlowResult, error) {
	return s.startUserFlow(ctx, phone, models.SessionLogin, sms.PurposeVerification, "Слишком частые запросы на авторизацию")
}

func (s *authService) StartPasswordReset(ctx context.Context, phone string) (*StartFlowResult, error) {
	return s.startUserFlow(ctx, phone, models.SessionPasswordReset, sms.PurposePasswordReset, "Слишком частые запросы на сброс пароля")
}

// startUserFlow is the shared start path for login and password reset: the
// target user must already exist and be active, and a reused session must
// reference that same user.
func (s *authService) startUserFlow(ctx context.Context, phone, sessionType, purpose, rateLimitMsg string) (*StartFlowResult, error) {
	if phone == "" {
		return nil, errMissingPhone()
	}
	phone = utils.FormatPhone(phone)

	existing, err := s.reusableSession(ctx, phone, sessionType, rateLimitMsg)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindActiveByPhone(ctx, phone)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errUserNotFound()
	}
	if err != nil {
		return nil, err
	}

	if existing != nil && existing.UserData.UserID == user.ID {
		return s.rotateAndSend(ctx, existing, nil, purpose, rateLimitMsg)
	}

	session, err := s.sessions.Create(ctx, phone, sessionType, models.SessionData{UserID: user.ID})
	if err != nil {
		return nil, err
	}
	metrics.SessionsStarted.WithLabelValues(sessionType).Inc()

	if err := s.sms.SendVerificationCode(ctx, phone, session.Code, purpose); err != nil {
		return nil, err
	}

	return &StartFlowResult{
		SessionID: session.SessionID,
		ExpiresIn: session.ExpiresIn(time.Now()),
	}, nil
}

func (s *authService) CompleteLogin(ctx context.Context, session *models.AuthSession, code string, meta ClientMeta) (*AuthResult, error) {
	if session.Type != models.SessionLogin {
		return nil, errInvalidSessionType()
	}
	post, err := s.checkCode(ctx, session, code)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.MarkVerified(ctx, post.SessionID); err != nil {
		return nil, err
	}

	user, company, err := s.userWithCompany(ctx, post.UserData.UserID)
	if err != nil {
		return nil, err
	}

	result, err := s.issueTokens(ctx, user, company, s.tokens.AccessTTL(), "login", meta)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Delete(ctx, post.SessionID); err != nil {
		s.logger.Warnw("failed to delete completed session", "sessionId", post.SessionID, "error", err)
	}
	return result, nil
}

func (s *authService) CompletePasswordReset(ctx context.Context, session *models.AuthSession, code, newPassword string, meta ClientMeta) (*AuthResult, error) {
	if session.Type != models.SessionPasswordReset {
		return nil, errInvalidSessionType()
	}
	post, err := s.checkCode(ctx, session, code)
	if err != nil {
		return nil, err
	}
	if newPassword == "" {
		return nil, errMissingPassword()
	}

	user, company, err := s.userWithCompany(ctx, post.UserData.UserID)
	if err != nil {
		return nil, err
	}

	check := password.CheckStrength(newPassword, user.Login, user.FirstName, user.LastName, user.Email, user.Phone)
	if !check.IsStrong {
		return nil, errWeakPassword(check)
	}

	hashed, err := s.hasher.Hash(newPassword)
	if err != nil {
		return nil, err
	}
	if err := s.users.SetPasswordHash(ctx, user.ID, hashed); err != nil {
		return nil, err
	}

	// Force re-login everywhere before handing out the fresh pair.
	if err := s.refreshTokens.RevokeAllForUser(ctx, user.ID); err != nil {
		return nil, err
	}
	if err := s.sessions.Delete(ctx, post.SessionID); err != nil {
		s.logger.Warnw("failed to delete completed session", "sessionId", post.SessionID, "error", err)
	}

	return s.issueTokens(ctx, user, company, s.tokens.AccessTTL(), "password_reset", meta)
}

func (s *authService) ResendCode(ctx context.Context, session *models.AuthSession) (*ResendResult, error) {
	now := time.Now()
	elapsed := now.Sub(session.LastCodeSentAt)
	if elapsed < models.ResendCooldown {
		remaining := int((models.ResendCooldown - elapsed).Seconds())
		if remaining < 1 {
			remaining = 1
		}
		return nil, errRateLimit("Слишком частые запросы на отправку кода", remaining, session.SessionID)
	}

	// Codeless sessions have nothing to resend.
	if session.Type == models.SessionPasswordResetAfterAutoLogin {
		return &ResendResult{
			ExpiresIn:    session.ExpiresIn(now),
			AttemptsLeft: session.AttemptsLeft(),
			Cooldown:     int(models.ResendCooldown.Seconds()),
		}, nil
	}

	rotated, err := s.sessions.RotateCode(ctx, session.SessionID, nil, now.Add(-models.ResendCooldown))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errRateLimit("Слишком частые запросы на отправку кода", int(models.ResendCooldown.Seconds()), session.SessionID)
	}
	if err != nil {
		return nil, err
	}

	purpose := sms.PurposeVerification
	switch rotated.Type {
	case models.SessionRegistration:
		purpose = sms.PurposeRegistration
	case models.SessionPasswordReset:
		purpose = sms.PurposePasswordReset
	}
	if err := s.sms.SendVerificationCode(ctx, rotated.Phone, rotated.Code, purpose); err != nil {
		return nil, err
	}

	return &ResendResult{
		ExpiresIn:    rotated.ExpiresIn(now),
		AttemptsLeft: rotated.AttemptsLeft(),
		Cooldown:     int(models.ResendCooldown.Seconds()),
	}, nil
}

func (s *authService) userWithCompany(ctx context.Context, userID primitive.ObjectID) (*models.User, *models.Company, error) {
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, errUserNotFound()
	}
	if err != nil {
		return nil, nil, err
	}
	var company *models.Company
	if !user.Company.IsZero() {
		company, err = s.companies.FindByID(ctx, user.Company)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, nil, err
		}
	}
	return user, company, nil
}

// issueTokens creates an access/refresh pair and persists the refresh token
// with its audit metadata.
func (s *authService) issueTokens(ctx context.Context, user *models.User, company *models.Company, accessTTL time.Duration, flow string, meta ClientMeta) (*AuthResult, error) {
	claim := tokens.CompanyClaim{}
	if company != nil {
		claim.ID = company.ID.Hex()
		claim.Name = company.Name
	}

	access, _, err := s.tokens.GenerateAccessToken(user.ID.Hex(), user.Admin, claim, accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := s.tokens.GenerateRefreshToken(user.ID.Hex())
	if err != nil {
		return nil, err
	}
	if _, err := s.refreshTokens.Create(ctx, user.ID, refresh, refreshExp, meta.UserAgent, meta.IPAddress); err != nil {
		return nil, err
	}
	metrics.TokenPairsIssued.WithLabelValues(flow).Inc()

	return &AuthResult{
		Token:        access,
		RefreshToken: refresh,
		ExpiresIn:    int(accessTTL.Seconds()),
		User:         user.Summary(company),
	}, nil
}
