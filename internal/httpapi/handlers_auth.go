// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/samber/oops"

	"github.com/wardenhq/warden/internal/auth"
	"github.com/wardenhq/warden/pkg/errutil"
)

func (a *api) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in auth.LoginInput
	if err := decodeJSON(w, r, &in); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	if err := auth.ValidateLogin(in); err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	user, err := a.auth.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		a.metrics.RecordAuthEvent("login", "failure")
		a.writeServiceError(w, r, err)
		return
	}
	token, err := a.auth.CreateToken(user)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	a.metrics.RecordAuthEvent("login", "success")
	writeJSON(w, http.StatusOK, loginResponse{User: newUserDTO(user), Token: token})
}

func (a *api) handleSignup(w http.ResponseWriter, r *http.Request) {
	var in auth.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	if in.Password != in.PasswordConfirm {
		writeError(w, http.StatusBadRequest, "Passwords do not match")
		return
	}

	user, err := a.auth.Register(r.Context(), in)
	if err != nil {
		a.metrics.RecordAuthEvent("signup", "failure")
		a.writeServiceError(w, r, err)
		return
	}
	a.metrics.RecordAuthEvent("signup", "success")

	// The account exists either way; a throttled or failed mail can be resent.
	if err := a.verification.RequestAndSend(r.Context(), user.Email); err != nil &&
		errutil.Code(err) != auth.CodeTooManyRequests {
		errutil.LogErrorContext(r.Context(), a.logger, "verification mail not requested", err)
	}

	writeJSON(w, http.StatusOK, newUserDTO(user))
}

func (a *api) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, newUserDTO(user))
}

func (a *api) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	ok, err := a.verification.VerifyEmail(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		a.metrics.RecordAuthEvent("verify_email", "failure")
		a.writeServiceError(w, r, tokenNotFound(err))
		return
	}
	a.metrics.RecordAuthEvent("verify_email", "success")
	writeJSON(w, http.StatusOK, ok)
}

func (a *api) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	var in emailRequest
	if err := decodeJSON(w, r, &in); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	if err := auth.ValidateEmail(in.Email); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	if err := a.verification.RequestAndSend(r.Context(), in.Email); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "Email sent"})
}

func (a *api) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var in emailRequest
	if err := decodeJSON(w, r, &in); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	if err := auth.ValidateEmail(in.Email); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	if err := a.reset.SendForgotPasswordEmail(r.Context(), in.Email); err != nil {
		a.metrics.RecordAuthEvent("forgot_password", "failure")
		a.writeServiceError(w, r, err)
		return
	}
	a.metrics.RecordAuthEvent("forgot_password", "success")
	writeJSON(w, http.StatusOK, messageBody{Message: "Email sent"})
}

func (a *api) handleGetResetToken(w http.ResponseWriter, r *http.Request) {
	record, err := a.reset.GetByToken(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		a.writeServiceError(w, r, tokenNotFound(err))
		return
	}
	writeJSON(w, http.StatusOK, resetTokenResponse{Email: record.Email})
}

func (a *api) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var in auth.PasswordChangeInput
	if err := decodeJSON(w, r, &in); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	if err := a.reset.ResetPassword(r.Context(), chi.URLParam(r, "token"), in); err != nil {
		a.metrics.RecordAuthEvent("reset_password", "failure")
		a.writeServiceError(w, r, tokenNotFound(err))
		return
	}
	a.metrics.RecordAuthEvent("reset_password", "success")
	writeJSON(w, http.StatusOK, messageBody{Message: "Password updated"})
}

// tokenNotFound reports unknown tokens in URL paths as missing resources.
func tokenNotFound(err error) error {
	switch errutil.Code(err) {
	case auth.CodeInvalidToken, auth.CodeUserNotFound:
		return oops.Code(auth.CodeUserNotFound).Errorf("Token is invalid")
	default:
		return err
	}
}
