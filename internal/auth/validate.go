// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package auth

import (
	"errors"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/samber/oops"
)

// Password and name constraints applied at the registration boundary.
const (
	MinPasswordLength = 6
	MaxPasswordLength = 128
	MaxNameLength     = 200
	MaxEmailLength    = 254
)

// FieldError describes a single rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// RegisterInput is the payload accepted by signup.
type RegisterInput struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

// LoginInput is the payload accepted by login.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// PasswordChangeInput is the payload accepted when redeeming a reset token.
type PasswordChangeInput struct {
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

// ValidateRegistration checks every field and reports all failures at once.
func ValidateRegistration(in RegisterInput) error {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, MaxNameLength)),
		validation.Field(&in.Email, validation.Required, validation.Length(3, MaxEmailLength), is.Email),
		validation.Field(&in.Password, validation.Required, validation.Length(MinPasswordLength, MaxPasswordLength)),
		validation.Field(&in.PasswordConfirm,
			validation.Required,
			validation.Length(MinPasswordLength, MaxPasswordLength),
			validation.By(matches(in.Password)),
		),
	)
	return wrapValidation(err)
}

// ValidateLogin checks that both credentials are present.
func ValidateLogin(in LoginInput) error {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required),
		validation.Field(&in.Password, validation.Required),
	)
	return wrapValidation(err)
}

// ValidatePasswordChange checks a new password and its confirmation.
func ValidatePasswordChange(in PasswordChangeInput) error {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Password, validation.Required, validation.Length(MinPasswordLength, MaxPasswordLength)),
		validation.Field(&in.PasswordConfirm, validation.Required, validation.By(matches(in.Password))),
	)
	return wrapValidation(err)
}

// ValidateEmail checks a single email address.
func ValidateEmail(email string) error {
	err := validation.Validate(email, validation.Required, validation.Length(3, MaxEmailLength), is.Email)
	if err != nil {
		return wrapValidation(validation.Errors{"email": err})
	}
	return nil
}

// FieldErrors extracts the per-field failures from a validation error,
// sorted by field name. Returns nil if err carries none.
func FieldErrors(err error) []FieldError {
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make([]FieldError, 0, len(verrs))
	for field, ferr := range verrs {
		if ferr == nil {
			continue
		}
		out = append(out, FieldError{Field: field, Message: ferr.Error()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}

func matches(other string) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if s != other {
			return errors.New("Passwords do not match")
		}
		return nil
	}
}

func wrapValidation(err error) error {
	if err == nil {
		return nil
	}
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		return oops.Code(CodeValidationFailed).Wrap(verrs)
	}
	// Internal rule errors (misconfigured rules) are not user input problems.
	return oops.Code("AUTH_VALIDATION_INTERNAL").Wrap(err)
}
