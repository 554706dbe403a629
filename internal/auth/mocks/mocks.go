// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

// Package mocks provides testify mocks for the auth repository and
// collaborator interfaces.
package mocks

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/wardenhq/warden/internal/auth"
)

// TestingT is the subset of *testing.T the constructors need.
type TestingT interface {
	mock.TestingT
	Cleanup(func())
}

// MockUserRepository is a mock of auth.UserRepository.
type MockUserRepository struct {
	mock.Mock
}

// NewMockUserRepository creates a mock that asserts its expectations on cleanup.
func NewMockUserRepository(t TestingT) *MockUserRepository {
	m := &MockUserRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Create implements auth.UserRepository.
func (m *MockUserRepository) Create(ctx context.Context, user *auth.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// GetByID implements auth.UserRepository.
func (m *MockUserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

// GetByEmail implements auth.UserRepository.
func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	args := m.Called(ctx, email)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

// Update implements auth.UserRepository.
func (m *MockUserRepository) Update(ctx context.Context, user *auth.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// List implements auth.UserRepository.
func (m *MockUserRepository) List(ctx context.Context, take, skip int) ([]*auth.User, error) {
	args := m.Called(ctx, take, skip)
	users, _ := args.Get(0).([]*auth.User)
	return users, args.Error(1)
}

// MockTokenRepository is a mock of auth.TokenRepository.
type MockTokenRepository struct {
	mock.Mock
}

// NewMockTokenRepository creates a mock that asserts its expectations on cleanup.
func NewMockTokenRepository(t TestingT) *MockTokenRepository {
	m := &MockTokenRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// GetByEmail implements auth.TokenRepository.
func (m *MockTokenRepository) GetByEmail(ctx context.Context, email string) (*auth.VerificationToken, error) {
	args := m.Called(ctx, email)
	token, _ := args.Get(0).(*auth.VerificationToken)
	return token, args.Error(1)
}

// GetByToken implements auth.TokenRepository.
func (m *MockTokenRepository) GetByToken(ctx context.Context, token string) (*auth.VerificationToken, error) {
	args := m.Called(ctx, token)
	record, _ := args.Get(0).(*auth.VerificationToken)
	return record, args.Error(1)
}

// Upsert implements auth.TokenRepository.
func (m *MockTokenRepository) Upsert(ctx context.Context, token *auth.VerificationToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

// DeleteByEmail implements auth.TokenRepository.
func (m *MockTokenRepository) DeleteByEmail(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

// MockNotifier is a mock of auth.Notifier.
type MockNotifier struct {
	mock.Mock
}

// NewMockNotifier creates a mock that asserts its expectations on cleanup.
func NewMockNotifier(t TestingT) *MockNotifier {
	m := &MockNotifier{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// NotifyEmailVerification implements auth.Notifier.
func (m *MockNotifier) NotifyEmailVerification(ctx context.Context, email, token string) {
	m.Called(ctx, email, token)
}

// NotifyPasswordReset implements auth.Notifier.
func (m *MockNotifier) NotifyPasswordReset(ctx context.Context, email, token string) {
	m.Called(ctx, email, token)
}

// MockPasswordHasher is a mock of auth.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

// NewMockPasswordHasher creates a mock that asserts its expectations on cleanup.
func NewMockPasswordHasher(t TestingT) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Hash implements auth.PasswordHasher.
func (m *MockPasswordHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

// Verify implements auth.PasswordHasher.
func (m *MockPasswordHasher) Verify(password, hash string) (bool, error) {
	args := m.Called(password, hash)
	return args.Bool(0), args.Error(1)
}

// NeedsUpgrade implements auth.PasswordHasher.
func (m *MockPasswordHasher) NeedsUpgrade(hash string) bool {
	args := m.Called(hash)
	return args.Bool(0)
}

var (
	_ auth.UserRepository  = (*MockUserRepository)(nil)
	_ auth.TokenRepository = (*MockTokenRepository)(nil)
	_ auth.Notifier        = (*MockNotifier)(nil)
	_ auth.PasswordHasher  = (*MockPasswordHasher)(nil)
)
