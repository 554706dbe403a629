// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package auth

import (
	"context"
	"crypto/rand"
	"math/big"
	"strconv"
	"time"

	"github.com/samber/oops"
)

// Numeric token bounds. Tokens are 7-digit decimal strings.
const (
	TokenMin = 1000000
	TokenMax = 9999999
)

// DefaultThrottleWindow is the minimum time between two token requests for the
// same email and purpose.
const DefaultThrottleWindow = 15 * time.Minute

// TokenPurpose distinguishes the independent token stores.
type TokenPurpose string

// Known token purposes.
const (
	PurposeEmailVerification TokenPurpose = "email_verification"
	PurposePasswordReset     TokenPurpose = "password_reset"
)

// VerificationToken is the single live token for an email and purpose.
// The record doubles as the throttle timestamp: IssuedAt gates the next request.
type VerificationToken struct {
	Email    string
	Token    string
	IssuedAt time.Time
}

// IssuedWithin reports whether the token was issued less than window before now.
func (t *VerificationToken) IssuedWithin(window time.Duration, now time.Time) bool {
	return now.Sub(t.IssuedAt) < window
}

// TokenRepository manages the token store for one purpose.
type TokenRepository interface {
	// GetByEmail retrieves the token record for an email.
	// Returns ErrNotFound if none exists.
	GetByEmail(ctx context.Context, email string) (*VerificationToken, error)

	// GetByToken retrieves a token record by its token value.
	// Returns ErrNotFound if none matches.
	GetByToken(ctx context.Context, token string) (*VerificationToken, error)

	// Upsert creates or replaces the record keyed by email.
	Upsert(ctx context.Context, token *VerificationToken) error

	// DeleteByEmail removes the record for an email. Missing rows are not an error.
	DeleteByEmail(ctx context.Context, email string) error
}

// TokenGenerator produces token values.
type TokenGenerator func() (string, error)

var tokenSpan = big.NewInt(TokenMax - TokenMin + 1)

// GenerateNumericToken draws a uniform integer in [TokenMin, TokenMax] from
// crypto/rand and returns it as a decimal string.
func GenerateNumericToken() (string, error) {
	n, err := rand.Int(rand.Reader, tokenSpan)
	if err != nil {
		return "", oops.Code("TOKEN_GENERATE_FAILED").Wrap(err)
	}
	return strconv.FormatInt(n.Int64()+TokenMin, 10), nil
}

// Clock returns the current time. Services take one so tests can move time.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }
