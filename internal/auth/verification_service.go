// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// Notifier delivers token mails. Implementations return immediately and
// handle delivery failures themselves.
type Notifier interface {
	// NotifyEmailVerification sends the verification link for token to email.
	NotifyEmailVerification(ctx context.Context, email, token string)

	// NotifyPasswordReset sends the password reset link for token to email.
	NotifyPasswordReset(ctx context.Context, email, token string)
}

// EmailVerificationService runs the email verification workflow.
type EmailVerificationService struct {
	users    UserRepository
	tokens   TokenRepository
	notifier Notifier
	opts     options
	logger   *slog.Logger
}

// NewEmailVerificationService creates a new EmailVerificationService.
func NewEmailVerificationService(
	users UserRepository,
	tokens TokenRepository,
	notifier Notifier,
	opts ...Option,
) (*EmailVerificationService, error) {
	if users == nil {
		return nil, oops.Code("AUTH_SERVICE_CONFIG").Errorf("users repository is required")
	}
	if tokens == nil {
		return nil, oops.Code("AUTH_SERVICE_CONFIG").Errorf("verification token repository is required")
	}
	if notifier == nil {
		return nil, oops.Code("AUTH_SERVICE_CONFIG").Errorf("notifier is required")
	}
	o := applyOptions(opts)
	return &EmailVerificationService{
		users:    users,
		tokens:   tokens,
		notifier: notifier,
		opts:     o,
		logger:   o.logger,
	}, nil
}

// RequestToken issues a fresh verification token for email, replacing any
// previous one. It fails with CodeTooManyRequests when the current token was
// issued inside the throttle window. User existence is not checked.
func (s *EmailVerificationService) RequestToken(ctx context.Context, email string) (*VerificationToken, error) {
	return issueToken(ctx, s.tokens, s.opts, PurposeEmailVerification, email)
}

// SendVerificationEmail dispatches the stored token for email. Nothing is sent
// when no token exists.
func (s *EmailVerificationService) SendVerificationEmail(ctx context.Context, email string) error {
	record, err := s.tokens.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.DebugContext(ctx, "no verification token to send", "email", email)
			return nil
		}
		return oops.Code("VERIFY_SEND_FAILED").
			With("operation", "get token by email").
			Wrap(err)
	}
	if record.Token == "" {
		return nil
	}
	s.notifier.NotifyEmailVerification(ctx, record.Email, record.Token)
	return nil
}

// RequestAndSend issues a token and dispatches it.
func (s *EmailVerificationService) RequestAndSend(ctx context.Context, email string) error {
	if _, err := s.RequestToken(ctx, email); err != nil {
		return err
	}
	return s.SendVerificationEmail(ctx, email)
}

// VerifyEmail redeems a verification token and marks its owner verified.
// Redeeming the same token again succeeds with the same effect unless strict
// redemption is enabled.
func (s *EmailVerificationService) VerifyEmail(ctx context.Context, token string) (bool, error) {
	record, err := redeemToken(ctx, s.tokens, s.opts, token)
	if err != nil {
		return false, err
	}

	user, err := s.users.GetByEmail(ctx, record.Email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, oops.Code(CodeUserNotFound).
				With("email", record.Email).
				Errorf("user not found")
		}
		return false, oops.Code("VERIFY_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	user.MarkVerified()
	if err := s.users.Update(ctx, user); err != nil {
		return false, oops.Code("VERIFY_FAILED").
			With("operation", "update user").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	if s.opts.strictRedemption {
		consumeToken(ctx, s.tokens, s.logger, record.Email)
	}

	s.logger.InfoContext(ctx, "email verified", "user_id", user.ID.String())
	return true, nil
}

// issueToken applies the throttle and upserts a new token. The stored record is
// both the live token and the throttle timestamp for its email.
func issueToken(
	ctx context.Context,
	tokens TokenRepository,
	o options,
	purpose TokenPurpose,
	email string,
) (*VerificationToken, error) {
	now := o.clock()

	existing, err := tokens.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.IssuedWithin(o.throttle, now) {
			retryAfter := o.throttle - now.Sub(existing.IssuedAt)
			return nil, oops.Code(CodeTooManyRequests).
				With("purpose", string(purpose)).
				With("retry_after", retryAfter.Round(time.Second).String()).
				Errorf("email sent recently, wait %d minutes to request a new one", int(o.throttle.Minutes()))
		}
	case errors.Is(err, ErrNotFound):
	default:
		return nil, oops.Code("TOKEN_REQUEST_FAILED").
			With("purpose", string(purpose)).
			With("operation", "get token by email").
			Wrap(err)
	}

	value, err := o.generate()
	if err != nil {
		return nil, oops.Code("TOKEN_REQUEST_FAILED").
			With("purpose", string(purpose)).
			With("operation", "generate token").
			Wrap(err)
	}

	record := &VerificationToken{Email: email, Token: value, IssuedAt: now}
	if err := tokens.Upsert(ctx, record); err != nil {
		return nil, oops.Code("TOKEN_REQUEST_FAILED").
			With("purpose", string(purpose)).
			With("operation", "upsert token").
			Wrap(err)
	}
	return record, nil
}

// redeemToken looks a token up by value. In strict mode records older than the
// throttle window are rejected.
func redeemToken(ctx context.Context, tokens TokenRepository, o options, token string) (*VerificationToken, error) {
	if token == "" {
		return nil, oops.Code(CodeInvalidToken).Errorf("token cannot be empty")
	}

	record, err := tokens.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code(CodeInvalidToken).Errorf("token is invalid")
		}
		return nil, oops.Code("TOKEN_LOOKUP_FAILED").
			With("operation", "get token by value").
			Wrap(err)
	}

	if o.strictRedemption && !record.IssuedWithin(o.throttle, o.clock()) {
		return nil, oops.Code(CodeInvalidToken).Errorf("token has expired")
	}
	return record, nil
}

// consumeToken deletes a redeemed record. The redemption already succeeded, so
// failures are only logged.
func consumeToken(ctx context.Context, tokens TokenRepository, logger *slog.Logger, email string) {
	if err := tokens.DeleteByEmail(ctx, email); err != nil {
		logger.WarnContext(ctx, "deleting redeemed token failed", "email", email, "error", err)
	}
}
