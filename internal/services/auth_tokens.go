package services

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/campaignly/auth-service/internal/models"
	"github.com/campaignly/auth-service/internal/password"
	"github.com/campaignly/auth-service/internal/repository"
	"github.com/campaignly/auth-service/internal/tokens"
)

func (s *authService) Refresh(ctx context.Context, refreshToken string, meta ClientMeta) (*AuthResult, error) {
	if refreshToken == "" {
		return nil, errMissingToken()
	}

	userIDHex, err := s.tokens.ParseRefresh(refreshToken)
	if errors.Is(err, tokens.ErrWrongTokenType) {
		return nil, errInvalidTokenType()
	}
	if err != nil {
		return nil, errInvalidToken()
	}
	userID, err := primitive.ObjectIDFromHex(userIDHex)
	if err != nil {
		return nil, errInvalidToken()
	}

	user, company, err := s.userWithCompany(ctx, userID)
	if err != nil {
		return nil, err
	}

	// One-shot rotation: losing this conditional write means another request
	// already rotated (or a revocation landed), so the token is dead.
	if err := s.refreshTokens.RevokeActive(ctx, userID, refreshToken); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errTokenRevoked()
		}
		return nil, err
	}

	return s.issueTokens(ctx, user, company, s.tokens.AccessTTL(), "refresh", meta)
}

func (s *authService) Logout(ctx context.Context, bearerToken string) {
	// Logout never fails from the client's point of view. Best effort only.
	if bearerToken == "" {
		return
	}
	userIDHex, ok := s.tokens.DecodeUserID(bearerToken)
	if !ok {
		return
	}
	userID, err := primitive.ObjectIDFromHex(userIDHex)
	if err != nil {
		return
	}
	if err := s.refreshTokens.RevokeAllForUser(ctx, userID); err != nil {
		s.logger.Warnw("failed to revoke tokens on logout", "userId", userIDHex, "error", err)
	}
}

func (s *authService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if currentPassword == "" || newPassword == "" {
		return errMissingParameters()
	}
	id, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return errUnauthorized()
	}

	user, err := s.users.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return errUserNotFound()
	}
	if err != nil {
		return err
	}

	if !s.hasher.Verify(currentPassword, user.PassHash) {
		return errInvalidPassword()
	}

	check := password.CheckStrength(newPassword, user.Login, user.FirstName, user.LastName, user.Email, user.Phone)
	if !check.IsStrong {
		return errWeakPassword(check)
	}

	hashed, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.SetPasswordHash(ctx, id, hashed); err != nil {
		return err
	}

	// Every device re-authenticates with the new password.
	if err := s.refreshTokens.RevokeAllForUser(ctx, id); err != nil {
		s.logger.Warnw("failed to revoke tokens after password change", "userId", userID, "error", err)
	}
	return nil
}

func (s *authService) Me(ctx context.Context, userID string) (*models.UserSummary, error) {
	id, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, errUnauthorized()
	}
	user, company, err := s.userWithCompany(ctx, id)
	if err != nil {
		return nil, err
	}
	summary := user.Summary(company)
	return &summary, nil
}
