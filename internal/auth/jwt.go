// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// MinSigningKeyLength is the minimum HS256 secret length in bytes.
const MinSigningKeyLength = 32

// Claims is the bearer token payload.
type Claims struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
	jwt.RegisteredClaims
}

// TokenPayload is returned to clients after login.
type TokenPayload struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
}

// TokenIssuer signs and verifies HS256 bearer tokens.
type TokenIssuer struct {
	secret []byte
	expiry time.Duration
	now    Clock
}

// TokenIssuerOption configures a TokenIssuer.
type TokenIssuerOption func(*TokenIssuer)

// WithIssuerClock overrides the clock used for iat, exp and validation.
func WithIssuerClock(clock Clock) TokenIssuerOption {
	return func(i *TokenIssuer) { i.now = clock }
}

// NewTokenIssuer validates the signing configuration. Failures carry
// CodeSignerConfig and are meant to stop the process at startup.
func NewTokenIssuer(secret []byte, expiry time.Duration, opts ...TokenIssuerOption) (*TokenIssuer, error) {
	if len(secret) < MinSigningKeyLength {
		return nil, oops.Code(CodeSignerConfig).
			With("min_length", MinSigningKeyLength).
			Errorf("signing secret must be at least %d bytes", MinSigningKeyLength)
	}
	// Token timestamps have second precision.
	expiry = expiry.Truncate(time.Second)
	if expiry <= 0 {
		return nil, oops.Code(CodeSignerConfig).
			With("expiry", expiry.String()).
			Errorf("token expiry must be at least one second")
	}

	i := &TokenIssuer{
		secret: append([]byte(nil), secret...),
		expiry: expiry,
		now:    systemClock,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Expiry returns the configured token lifetime.
func (i *TokenIssuer) Expiry() time.Duration {
	return i.expiry
}

// Issue signs a token for the user.
func (i *TokenIssuer) Issue(user *User) (*TokenPayload, error) {
	if user == nil {
		return nil, oops.Code("AUTH_TOKEN_ISSUE_FAILED").Errorf("user is required")
	}

	now := i.now().Truncate(time.Second)
	claims := Claims{
		Name:  user.Name,
		Email: user.Email,
		Role:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.expiry)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return nil, oops.Code("AUTH_TOKEN_ISSUE_FAILED").
			With("operation", "sign token").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	return &TokenPayload{
		AccessToken: signed,
		ExpiresIn:   int64(i.expiry / time.Second),
	}, nil
}

// Verify checks the signature, the signing method and the lifetime of a token.
// A token whose expiry is not strictly after its issue time is rejected even
// when the signature is valid.
func (i *TokenIssuer) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, oops.Code(CodeInvalidToken).Errorf("token cannot be empty")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, oops.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return i.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, oops.Code(CodeInvalidToken).
			With("reason", err.Error()).
			Errorf("invalid token")
	}
	if !token.Valid {
		return nil, oops.Code(CodeInvalidToken).Errorf("invalid token")
	}

	if claims.IssuedAt == nil || !claims.ExpiresAt.After(claims.IssuedAt.Time) {
		return nil, oops.Code(CodeInvalidToken).Errorf("token expiry must be after issue time")
	}
	if claims.Subject == "" {
		return nil, oops.Code(CodeInvalidToken).Errorf("token has no subject")
	}

	return claims, nil
}
