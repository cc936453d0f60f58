package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/title-reviews/internal/apperr"
	"github.com/iliyamo/title-reviews/internal/model"
	"github.com/iliyamo/title-reviews/internal/policy"
	"github.com/iliyamo/title-reviews/internal/repository"
	"github.com/iliyamo/title-reviews/internal/utils"
)

const confirmationSubject = "Your confirmation code"

// Signup registers username/email, or re-registers a pending pair, and
// delivers a fresh confirmation code.  The previous code stops matching as
// soon as the new hash is stored.  A delivery failure is returned after
// the code has been rotated.
func (s *Service) Signup(ctx context.Context, username, email string) (*model.User, error) {
	email = model.NormalizeEmail(email)
	fields := map[string]string{}
	if err := model.ValidateUsername(username); err != nil {
		fields["username"] = err.(*apperr.Error).Message
	}
	if err := model.ValidateEmail(email); err != nil {
		fields["email"] = err.(*apperr.Error).Message
	}
	if len(fields) > 0 {
		return nil, apperr.ValidationFields(fields)
	}

	code := utils.NewConfirmationCode()
	hash, err := utils.HashConfirmationCode(code, s.cfg.BcryptCost)
	if err != nil {
		return nil, apperr.Internal("failed to issue confirmation code", err)
	}

	u, err := s.users.GetByUsername(ctx, username)
	switch {
	case err == nil:
		if u.Email != email {
			return nil, apperr.Conflict("username is already registered with a different email")
		}
		if err := s.users.SetConfirmationHash(ctx, u.ID, hash); err != nil {
			return nil, storeErr(err, "user")
		}
	case errors.Is(err, repository.ErrNotFound):
		if _, err := s.users.GetByEmail(ctx, email); err == nil {
			return nil, apperr.Conflict("email is already registered with a different username")
		} else if !errors.Is(err, repository.ErrNotFound) {
			return nil, storeErr(err, "user")
		}
		u = &model.User{Username: username, Email: email, Role: model.RoleUser, ConfirmationHash: hash}
		if err := s.users.Create(ctx, u); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return nil, apperr.Conflict("username or email is already registered")
			}
			return nil, storeErr(err, "user")
		}
	default:
		return nil, storeErr(err, "user")
	}

	s.metrics.IncrementSignups()
	s.logger.InfoContext(ctx, "confirmation code issued", "username", u.Username, "user_id", u.ID)

	body := fmt.Sprintf("Hello %s,\n\nyour confirmation code is: %s\n", u.Username, code)
	if err := s.dispatcher.Send(ctx, u.Email, confirmationSubject, body); err != nil {
		s.metrics.IncrementNotificationsFailed()
		s.logger.ErrorContext(ctx, "confirmation code delivery failed",
			"username", u.Username,
			"error", err,
		)
		return nil, apperr.Internal("failed to deliver confirmation code", err)
	}
	return u, nil
}

// Token exchanges a confirmation code for an access token.  The code is
// consumed on success.
func (s *Service) Token(ctx context.Context, username, code string) (utils.AccessToken, error) {
	fields := map[string]string{}
	if username == "" {
		fields["username"] = "username is required"
	}
	if strings.TrimSpace(code) == "" {
		fields["confirmation_code"] = "confirmation_code is required"
	}
	if len(fields) > 0 {
		return utils.AccessToken{}, apperr.ValidationFields(fields)
	}

	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.IncrementTokenRejections("unknown_user")
		}
		return utils.AccessToken{}, storeErr(err, "user")
	}
	if !utils.VerifyConfirmationCode(u.ConfirmationHash, code) {
		return utils.AccessToken{}, s.rejectCode(ctx, u.Username)
	}
	ok, err := s.users.ConsumeConfirmationHash(ctx, u.ID, u.ConfirmationHash)
	if err != nil {
		return utils.AccessToken{}, storeErr(err, "user")
	}
	if !ok {
		return utils.AccessToken{}, s.rejectCode(ctx, u.Username)
	}

	tok, err := utils.NewAccessToken(s.cfg.JWTSecret, u.ID, u.Username, string(u.Role), s.cfg.TokenTTL, s.now())
	if err != nil {
		return utils.AccessToken{}, apperr.Internal("failed to sign token", err)
	}
	s.metrics.IncrementTokensIssued()
	s.logger.InfoContext(ctx, "access token issued", "username", u.Username, "user_id", u.ID)
	return tok, nil
}

func (s *Service) rejectCode(ctx context.Context, username string) error {
	s.metrics.IncrementTokenRejections("invalid_code")
	s.logger.WarnContext(ctx, "confirmation code rejected", "username", username)
	return apperr.Validation("confirmation_code", "invalid code")
}

// Authenticate resolves a bearer token to an actor.  The user is reloaded
// so role changes and superuser grants apply to tokens already issued.
func (s *Service) Authenticate(ctx context.Context, raw string) (policy.Actor, error) {
	uid, _, err := utils.ParseAccessToken(s.cfg.JWTSecret, raw)
	if err != nil {
		s.metrics.IncrementTokenRejections("invalid_token")
		return policy.Anonymous(), apperr.Unauthenticated("token is invalid or expired")
	}
	u, err := s.users.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.IncrementTokenRejections("unknown_user")
			return policy.Anonymous(), apperr.Unauthenticated("user not found")
		}
		return policy.Anonymous(), storeErr(err, "user")
	}
	return policy.FromUser(u), nil
}
