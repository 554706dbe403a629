// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned by repositories when a unique key already exists.
var ErrDuplicate = errors.New("duplicate")

// Error codes surfaced to callers. Transport layers map these to responses.
const (
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeInvalidToken       = "AUTH_INVALID_TOKEN"
	CodeTooManyRequests    = "AUTH_TOO_MANY_REQUESTS"
	CodeUserNotFound       = "AUTH_USER_NOT_FOUND"
	CodeSignerConfig       = "AUTH_SIGNER_CONFIG"
	CodeEmailTaken         = "AUTH_EMAIL_TAKEN"
	CodeValidationFailed   = "AUTH_VALIDATION_FAILED"
	CodeForbidden          = "AUTH_FORBIDDEN"
	CodeMailDelivery       = "MAIL_DELIVERY_FAILED"
	CodeAccountDisabled    = "AUTH_ACCOUNT_DISABLED"
)
