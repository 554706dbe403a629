// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

// Package httpapi exposes the authentication services over HTTP.
package httpapi

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/netip"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/samber/oops"

	"github.com/wardenhq/warden/internal/auth"
	"github.com/wardenhq/warden/internal/observability"
)

// Authenticator is the account side of the API.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*auth.User, error)
	CreateToken(user *auth.User) (*auth.TokenPayload, error)
	Register(ctx context.Context, in auth.RegisterInput) (*auth.User, error)
	Authenticate(ctx context.Context, token string) (*auth.User, error)
	ListUsers(ctx context.Context, take, skip int) ([]*auth.User, error)
	SetImageURL(ctx context.Context, user *auth.User, url string) error
}

// EmailVerifier issues and redeems email verification tokens.
type EmailVerifier interface {
	RequestAndSend(ctx context.Context, email string) error
	VerifyEmail(ctx context.Context, token string) (bool, error)
}

// PasswordResetter issues and redeems password reset tokens.
type PasswordResetter interface {
	SendForgotPasswordEmail(ctx context.Context, email string) error
	GetByToken(ctx context.Context, token string) (*auth.VerificationToken, error)
	ResetPassword(ctx context.Context, token string, in auth.PasswordChangeInput) error
}

// AvatarUploader stores profile images.
type AvatarUploader interface {
	Upload(ctx context.Context, userID, contentType string, body io.Reader, size int64) (string, error)
}

// Deps are the collaborators of the router. Avatars, RateLimit and Metrics
// are optional.
type Deps struct {
	Auth         Authenticator
	Verification EmailVerifier
	Reset        PasswordResetter
	Avatars      AvatarUploader
	// TrustedProxies are the peers whose X-Forwarded-For and X-Real-IP
	// headers replace the remote address. Empty trusts no one.
	TrustedProxies []netip.Prefix
	// RateLimit wraps every route when set. It keys on r.RemoteAddr.
	RateLimit func(http.Handler) http.Handler
	Metrics   *observability.Metrics
	Logger    *slog.Logger
}

type api struct {
	auth         Authenticator
	verification EmailVerifier
	reset        PasswordResetter
	avatars      AvatarUploader
	metrics      *observability.Metrics
	logger       *slog.Logger
}

// NewRouter builds the HTTP handler.
func NewRouter(deps Deps) (http.Handler, error) {
	if deps.Auth == nil || deps.Verification == nil || deps.Reset == nil {
		return nil, oops.Code("HTTPAPI_CONFIG").Errorf("auth, verification and reset services are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	a := &api{
		auth:         deps.Auth,
		verification: deps.Verification,
		reset:        deps.Reset,
		avatars:      deps.Avatars,
		metrics:      deps.Metrics,
		logger:       logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(trustedRealIP(deps.TrustedProxies))
	r.Use(a.requestLogger)
	r.Use(middleware.Recoverer)
	if deps.RateLimit != nil {
		r.Use(deps.RateLimit)
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", a.handleLogin)
		r.Post("/signup", a.handleSignup)
		r.With(a.requireUser).Get("/me", a.handleMe)
		r.Get("/email/verify/{token}", a.handleVerifyEmail)
		r.Post("/email/resend-verification", a.handleResendVerification)
		r.Post("/forgot-password", a.handleForgotPassword)
		r.Get("/email/reset-password/{token}", a.handleGetResetToken)
		r.Post("/email/reset-password/{token}", a.handleResetPassword)
	})

	r.Route("/users", func(r chi.Router) {
		r.Use(a.requireUser)
		r.With(requireRole(auth.RoleUser, auth.RoleAdmin)).Get("/admin", a.handleAdmin)
		r.With(requireRole(auth.RoleAdmin)).Get("/users", a.handleListUsers)
		if a.avatars != nil {
			r.Put("/me/avatar", a.handleUploadAvatar)
		}
	})

	return r, nil
}
