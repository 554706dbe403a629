// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package auth

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Role is the authorization role carried by a user and its bearer tokens.
type Role string

// Known roles.
const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// ParseRole converts a stored or claimed role string into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", oops.Code("AUTH_INVALID_ROLE").With("role", s).Errorf("unknown role %q", s)
	}
	return r, nil
}

// DisabledStatus records the administrative reasons an account may be disabled.
type DisabledStatus struct {
	Banned  bool `json:"banned"`
	Deleted bool `json:"deleted"`
	Frozen  bool `json:"frozen"`
}

// Any returns true if any disabling flag is set.
func (d DisabledStatus) Any() bool {
	return d.Banned || d.Deleted || d.Frozen
}

// User represents an account identity.
type User struct {
	ID           ulid.ULID
	Email        string
	PasswordHash string
	Salt         string
	Name         string
	Role         Role
	ImageURL     string
	Verified     bool
	Active       bool
	Disabled     DisabledStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUser creates a USER-role account with a validated name, email and
// password hash. The account starts active and unverified.
func NewUser(name, email, passwordHash string) (*User, error) {
	if strings.TrimSpace(name) == "" {
		return nil, oops.Code("AUTH_INVALID_USER").Errorf("name cannot be empty")
	}
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("AUTH_INVALID_USER").Errorf("password hash cannot be empty")
	}

	now := time.Now().UTC()
	return &User{
		ID:           ulid.Make(),
		Email:        email,
		PasswordHash: passwordHash,
		Salt:         SaltOf(passwordHash),
		Name:         name,
		Role:         RoleUser,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// CanAuthenticate reports whether the account may hold a session.
func (u *User) CanAuthenticate() bool {
	return u.Active && !u.Disabled.Any()
}

// MarkVerified flips the verified flag. Calling it on a verified user is a no-op
// apart from the timestamp.
func (u *User) MarkVerified() {
	u.Verified = true
	u.UpdatedAt = time.Now().UTC()
}

// SetPasswordHash replaces the stored hash and its salt.
func (u *User) SetPasswordHash(hash string) {
	u.PasswordHash = hash
	u.Salt = SaltOf(hash)
	u.UpdatedAt = time.Now().UTC()
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Create stores a new user.
	// Returns an error wrapping ErrDuplicate if the email is already registered.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByEmail retrieves a user by exact email.
	// Returns ErrNotFound if no user has the given email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// Update persists all mutable fields of an existing user.
	Update(ctx context.Context, user *User) error

	// List returns up to take users ordered by creation, skipping skip rows.
	List(ctx context.Context, take, skip int) ([]*User, error)
}
