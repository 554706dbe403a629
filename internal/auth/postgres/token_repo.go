// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/wardenhq/warden/internal/auth"
)

// Token tables, one per purpose. Each keeps at most one row per email.
const (
	TableEmailVerifications = "email_verifications"
	TableForgottenPasswords = "forgotten_passwords"
)

// TokenRepository implements auth.TokenRepository over one token table.
type TokenRepository struct {
	pool  poolIface
	table string
}

// NewTokenRepository creates a TokenRepository for the table that backs purpose.
func NewTokenRepository(pool poolIface, purpose auth.TokenPurpose) (*TokenRepository, error) {
	var table string
	switch purpose {
	case auth.PurposeEmailVerification:
		table = TableEmailVerifications
	case auth.PurposePasswordReset:
		table = TableForgottenPasswords
	default:
		return nil, oops.Code("TOKEN_REPO_CONFIG").
			With("purpose", string(purpose)).
			Errorf("unknown token purpose")
	}
	return &TokenRepository{pool: pool, table: table}, nil
}

// GetByEmail retrieves the record for an email.
func (r *TokenRepository) GetByEmail(ctx context.Context, email string) (*auth.VerificationToken, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT email, token, issued_at FROM `+r.table+` WHERE email = $1`, email)

	record, err := scanToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("TOKEN_NOT_FOUND").
			With("table", r.table).
			With("email", email).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("TOKEN_GET_BY_EMAIL_FAILED").
			With("table", r.table).
			With("email", email).
			Wrap(err)
	}
	return record, nil
}

// GetByToken retrieves the most recently issued record with a token value.
func (r *TokenRepository) GetByToken(ctx context.Context, token string) (*auth.VerificationToken, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT email, token, issued_at FROM `+r.table+` WHERE token = $1 ORDER BY issued_at DESC LIMIT 1`, token)

	record, err := scanToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("TOKEN_NOT_FOUND").
			With("table", r.table).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("TOKEN_GET_BY_TOKEN_FAILED").
			With("table", r.table).
			Wrap(err)
	}
	return record, nil
}

// Upsert creates or replaces the record for the token's email.
func (r *TokenRepository) Upsert(ctx context.Context, token *auth.VerificationToken) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO `+r.table+` (email, token, issued_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE SET token = EXCLUDED.token, issued_at = EXCLUDED.issued_at
	`, token.Email, token.Token, token.IssuedAt)
	if err != nil {
		return oops.Code("TOKEN_UPSERT_FAILED").
			With("table", r.table).
			With("email", token.Email).
			Wrap(err)
	}
	return nil
}

// DeleteByEmail removes the record for an email. Missing records are not an error.
func (r *TokenRepository) DeleteByEmail(ctx context.Context, email string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM `+r.table+` WHERE email = $1`, email); err != nil {
		return oops.Code("TOKEN_DELETE_FAILED").
			With("table", r.table).
			With("email", email).
			Wrap(err)
	}
	return nil
}

func scanToken(row pgx.Row) (*auth.VerificationToken, error) {
	var (
		record   auth.VerificationToken
		issuedAt time.Time
	)
	if err := row.Scan(&record.Email, &record.Token, &issuedAt); err != nil {
		return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
	}
	record.IssuedAt = issuedAt.UTC()
	return &record, nil
}

// Compile-time interface check.
var _ auth.TokenRepository = (*TokenRepository)(nil)
