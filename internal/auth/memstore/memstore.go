// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

// Package memstore provides in-process implementations of the auth
// repositories for development servers and tests.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/wardenhq/warden/internal/auth"
)

// UserRepository stores users in memory. Returned users are copies.
type UserRepository struct {
	mu      sync.RWMutex
	byID    map[ulid.ULID]*auth.User
	byEmail map[string]ulid.ULID
}

// NewUserRepository creates an empty UserRepository.
func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:    make(map[ulid.ULID]*auth.User),
		byEmail: make(map[string]ulid.ULID),
	}
}

// Create stores a new user.
func (r *UserRepository) Create(_ context.Context, user *auth.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[user.Email]; exists {
		return oops.Code("USER_CREATE_FAILED").
			With("email", user.Email).
			Wrap(auth.ErrDuplicate)
	}
	u := *user
	r.byID[u.ID] = &u
	r.byEmail[u.Email] = u.ID
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	out := *u
	return &out, nil
}

// GetByEmail retrieves a user by exact email.
func (r *UserRepository) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("email", email).Wrap(auth.ErrNotFound)
	}
	out := *r.byID[id]
	return &out, nil
}

// Update replaces a stored user.
func (r *UserRepository) Update(_ context.Context, user *auth.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[user.ID]
	if !ok {
		return oops.Code("USER_NOT_FOUND").With("id", user.ID.String()).Wrap(auth.ErrNotFound)
	}
	if existing.Email != user.Email {
		if _, taken := r.byEmail[user.Email]; taken {
			return oops.Code("USER_UPDATE_FAILED").With("email", user.Email).Wrap(auth.ErrDuplicate)
		}
		delete(r.byEmail, existing.Email)
		r.byEmail[user.Email] = user.ID
	}
	u := *user
	r.byID[u.ID] = &u
	return nil
}

// List returns users ordered by ID, which sorts by creation time.
func (r *UserRepository) List(_ context.Context, take, skip int) ([]*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*auth.User, 0, len(r.byID))
	for _, u := range r.byID {
		out := *u
		all = append(all, &out)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID.Compare(all[j].ID) < 0 })

	if skip >= len(all) {
		return []*auth.User{}, nil
	}
	end := skip + take
	if end > len(all) {
		end = len(all)
	}
	return all[skip:end], nil
}

// TokenRepository stores one token record per email in memory.
type TokenRepository struct {
	mu      sync.RWMutex
	byEmail map[string]auth.VerificationToken
}

// NewTokenRepository creates an empty TokenRepository.
func NewTokenRepository() *TokenRepository {
	return &TokenRepository{byEmail: make(map[string]auth.VerificationToken)}
}

// GetByEmail retrieves the record for an email.
func (r *TokenRepository) GetByEmail(_ context.Context, email string) (*auth.VerificationToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.byEmail[email]
	if !ok {
		return nil, oops.Code("TOKEN_NOT_FOUND").With("email", email).Wrap(auth.ErrNotFound)
	}
	return &t, nil
}

// GetByToken retrieves a record by token value. Token values are not unique
// across emails; the most recently issued match wins. Equal issue times fall
// back to the smaller email so the result is deterministic.
func (r *TokenRepository) GetByToken(_ context.Context, token string) (*auth.VerificationToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var newest *auth.VerificationToken
	for _, t := range r.byEmail {
		if t.Token != token {
			continue
		}
		if newest == nil || t.IssuedAt.After(newest.IssuedAt) ||
			(t.IssuedAt.Equal(newest.IssuedAt) && t.Email < newest.Email) {
			match := t
			newest = &match
		}
	}
	if newest == nil {
		return nil, oops.Code("TOKEN_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return newest, nil
}

// Upsert creates or replaces the record for the token's email.
func (r *TokenRepository) Upsert(_ context.Context, token *auth.VerificationToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byEmail[token.Email] = *token
	return nil
}

// DeleteByEmail removes the record for an email.
func (r *TokenRepository) DeleteByEmail(_ context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.byEmail, email)
	return nil
}

// Compile-time interface checks.
var (
	_ auth.UserRepository  = (*UserRepository)(nil)
	_ auth.TokenRepository = (*TokenRepository)(nil)
)
