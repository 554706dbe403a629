// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Paging limits for ListUsers.
const (
	DefaultPageSize = 10
	MaxPageSize     = 50
)

// Service provides login, registration and bearer-token operations.
type Service struct {
	users  UserRepository
	hasher PasswordHasher
	issuer *TokenIssuer
	logger *slog.Logger
}

// NewAuthService creates a new Service.
func NewAuthService(users UserRepository, hasher PasswordHasher, issuer *TokenIssuer, opts ...Option) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_SERVICE_CONFIG").Errorf("users repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_SERVICE_CONFIG").Errorf("password hasher is required")
	}
	if issuer == nil {
		return nil, oops.Code("AUTH_SERVICE_CONFIG").Errorf("token issuer is required")
	}
	o := applyOptions(opts)
	return &Service{
		users:  users,
		hasher: hasher,
		issuer: issuer,
		logger: o.logger,
	}, nil
}

// dummyPasswordHash is used when a user doesn't exist to prevent timing attacks.
// It will never match any password.
//
//nolint:gosec // G101: intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Login validates credentials and returns the matching user.
// Unknown emails and wrong passwords produce the same error, and the password
// is verified against a dummy hash when the user is missing.
func (s *Service) Login(ctx context.Context, email, password string) (*User, error) {
	user, lookupErr := s.users.GetByEmail(ctx, email)

	var targetHash string
	var userExists bool

	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			return nil, oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "get user by email").
				Wrap(lookupErr)
		}
		targetHash = dummyPasswordHash
	} else {
		targetHash = user.PasswordHash
		userExists = true
	}

	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		if !userExists {
			return nil, invalidCredentials()
		}
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			With("user_id", user.ID.String()).
			Wrap(verifyErr)
	}

	if !userExists || !valid {
		return nil, invalidCredentials()
	}

	if !user.CanAuthenticate() {
		return nil, oops.Code(CodeAccountDisabled).
			With("user_id", user.ID.String()).
			Errorf("account is disabled")
	}

	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		s.upgradeHash(ctx, user, password)
	}

	return user, nil
}

// upgradeHash rehashes a legacy password with argon2id. Failures are logged
// and never fail the login.
func (s *Service) upgradeHash(ctx context.Context, user *User, password string) {
	newHash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.WarnContext(ctx, "password hash upgrade failed", "user_id", user.ID.String(), "error", err)
		return
	}
	user.SetPasswordHash(newHash)
	if err := s.users.Update(ctx, user); err != nil {
		s.logger.WarnContext(ctx, "persisting upgraded password hash failed", "user_id", user.ID.String(), "error", err)
	}
}

func invalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Errorf("invalid email or password")
}

// CreateToken issues a bearer token for a validated user.
func (s *Service) CreateToken(user *User) (*TokenPayload, error) {
	return s.issuer.Issue(user)
}

// Register validates the input, hashes the password and stores a new user.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	if err := ValidateRegistration(in); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := NewUser(in.Name, in.Email, hash)
	if err != nil {
		return nil, err
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, oops.Code(CodeEmailTaken).
				With("email", in.Email).
				Errorf("email is already registered")
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create user").
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID.String())
	return user, nil
}

// Authenticate verifies a bearer token and loads its subject fresh from the store.
func (s *Service) Authenticate(ctx context.Context, token string) (*User, error) {
	claims, err := s.issuer.Verify(token)
	if err != nil {
		return nil, err
	}

	id, err := ulid.Parse(claims.Subject)
	if err != nil {
		return nil, oops.Code(CodeInvalidToken).
			With("subject", claims.Subject).
			Errorf("invalid token subject")
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code(CodeInvalidToken).
				With("user_id", id.String()).
				Errorf("token subject no longer exists")
		}
		return nil, oops.Code("AUTH_AUTHENTICATE_FAILED").
			With("operation", "get user by id").
			Wrap(err)
	}

	if !user.CanAuthenticate() {
		return nil, oops.Code(CodeInvalidToken).
			With("user_id", id.String()).
			Errorf("account is disabled")
	}

	return user, nil
}

// ListUsers returns a page of users. take is clamped to [1, MaxPageSize] and
// defaults to DefaultPageSize; negative skip is treated as zero.
func (s *Service) ListUsers(ctx context.Context, take, skip int) ([]*User, error) {
	if take <= 0 {
		take = DefaultPageSize
	}
	if take > MaxPageSize {
		take = MaxPageSize
	}
	if skip < 0 {
		skip = 0
	}

	users, err := s.users.List(ctx, take, skip)
	if err != nil {
		return nil, oops.Code("AUTH_LIST_USERS_FAILED").
			With("take", take).
			With("skip", skip).
			Wrap(err)
	}
	return users, nil
}

// SetImageURL records a new avatar location for a user.
func (s *Service) SetImageURL(ctx context.Context, user *User, url string) error {
	user.ImageURL = url
	if err := s.users.Update(ctx, user); err != nil {
		return oops.Code("AUTH_UPDATE_USER_FAILED").
			With("operation", "set image url").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	return nil
}

// Authorize returns CodeForbidden unless the user holds one of roles.
func Authorize(user *User, roles ...Role) error {
	if user == nil {
		return oops.Code(CodeForbidden).Errorf("no authenticated user")
	}
	for _, r := range roles {
		if user.Role == r {
			return nil
		}
	}
	return oops.Code(CodeForbidden).
		With("role", string(user.Role)).
		Errorf("insufficient role")
}
