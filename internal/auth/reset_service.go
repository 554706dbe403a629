// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"
)

// PasswordResetService handles the forgotten-password workflow.
type PasswordResetService struct {
	users    UserRepository
	tokens   TokenRepository
	hasher   PasswordHasher
	notifier Notifier
	opts     options
	logger   *slog.Logger
}

// NewPasswordResetService creates a new PasswordResetService.
func NewPasswordResetService(
	users UserRepository,
	tokens TokenRepository,
	hasher PasswordHasher,
	notifier Notifier,
	opts ...Option,
) (*PasswordResetService, error) {
	if users == nil {
		return nil, oops.Code("AUTH_SERVICE_CONFIG").Errorf("users repository is required")
	}
	if tokens == nil {
		return nil, oops.Code("AUTH_SERVICE_CONFIG").Errorf("reset token repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_SERVICE_CONFIG").Errorf("password hasher is required")
	}
	if notifier == nil {
		return nil, oops.Code("AUTH_SERVICE_CONFIG").Errorf("notifier is required")
	}
	o := applyOptions(opts)
	return &PasswordResetService{
		users:    users,
		tokens:   tokens,
		hasher:   hasher,
		notifier: notifier,
		opts:     o,
		logger:   o.logger,
	}, nil
}

// RequestReset issues a reset token for a registered email and returns the
// stored record. Unknown emails fail with CodeUserNotFound before anything is
// written; requests inside the throttle window fail with CodeTooManyRequests.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) (*VerificationToken, error) {
	if _, err := s.users.GetByEmail(ctx, email); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code(CodeUserNotFound).
				With("email", email).
				Errorf("user not found")
		}
		return nil, oops.Code("RESET_REQUEST_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	return issueToken(ctx, s.tokens, s.opts, PurposePasswordReset, email)
}

// SendForgotPasswordEmail issues a reset token and dispatches the reset mail.
func (s *PasswordResetService) SendForgotPasswordEmail(ctx context.Context, email string) error {
	record, err := s.RequestReset(ctx, email)
	if err != nil {
		return err
	}
	s.notifier.NotifyPasswordReset(ctx, record.Email, record.Token)
	return nil
}

// GetByToken returns the reset record for a token value.
func (s *PasswordResetService) GetByToken(ctx context.Context, token string) (*VerificationToken, error) {
	return redeemToken(ctx, s.tokens, s.opts, token)
}

// ResetPassword replaces the password of the reset record's owner and deletes
// the record so the token cannot be used twice.
func (s *PasswordResetService) ResetPassword(ctx context.Context, token string, in PasswordChangeInput) error {
	if err := ValidatePasswordChange(in); err != nil {
		return err
	}

	record, err := s.GetByToken(ctx, token)
	if err != nil {
		return err
	}

	user, err := s.users.GetByEmail(ctx, record.Email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code(CodeUserNotFound).
				With("email", record.Email).
				Errorf("user not found")
		}
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user.SetPasswordHash(hash)
	if err := s.users.Update(ctx, user); err != nil {
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "update user").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	consumeToken(ctx, s.tokens, s.logger, record.Email)

	s.logger.InfoContext(ctx, "password reset", "user_id", user.ID.String())
	return nil
}
