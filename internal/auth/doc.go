// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

// Package auth provides the authentication and session lifecycle for Warden.
//
// # Domain Types
//
// User accounts should be created with NewUser, which validates the name and
// email and starts the account unverified. VerificationToken records are keyed
// by email: each purpose (email verification, password reset) has its own
// TokenRepository holding at most one record per email.
//
// # Services
//
// Service types coordinate domain operations:
//   - Service - login, registration, bearer-token issuance and authentication
//   - EmailVerificationService - verification token issuance and redemption
//   - PasswordResetService - forgotten-password token issuance and redemption
//
// Services are created with New*Service constructors that validate dependencies.
//
// # Tokens
//
// Bearer tokens are HS256 JWTs signed by TokenIssuer. Verification and reset
// tokens are 7-digit numbers. A new token for an email may only be requested
// once the throttle window (15 minutes by default) has elapsed since the last
// one was issued.
//
// # Request Scope
//
// WithUser and UserFromContext carry the authenticated user through a
// context.Context.
package auth
