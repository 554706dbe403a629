// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package mail

import (
	"bytes"
	"context"
	"html/template"
	"net/url"
	"strings"

	"github.com/samber/oops"

	"github.com/wardenhq/warden/internal/auth"
)

// Delivery kinds used in logs and metrics.
const (
	KindEmailVerification = "email_verification"
	KindPasswordReset     = "password_reset"
)

var (
	verificationHTML = template.Must(template.New("verify").Parse(
		`<p>Hi there! Please <a href="{{.Link}}">click here</a> to verify your email.</p>`))
	resetHTML = template.Must(template.New("reset").Parse(
		`<p>Hi there! Please click the following link to reset your password: <a href="{{.Link}}">Reset Password Link</a></p>`))
)

// Notifier renders token mails and hands them to a Dispatcher.
type Notifier struct {
	dispatcher *Dispatcher
	publicURL  string
}

// NewNotifier creates a Notifier whose links point at publicURL.
func NewNotifier(dispatcher *Dispatcher, publicURL string) (*Notifier, error) {
	if dispatcher == nil {
		return nil, oops.Code("MAIL_CONFIG_INVALID").Errorf("dispatcher is required")
	}
	u, err := url.Parse(publicURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, oops.Code("MAIL_CONFIG_INVALID").
			With("public_url", publicURL).
			Errorf("public url must be absolute")
	}
	return &Notifier{dispatcher: dispatcher, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

// VerificationLink returns the link mailed for an email verification token.
func (n *Notifier) VerificationLink(token string) string {
	return n.publicURL + "/auth/email/verify/" + url.PathEscape(token)
}

// ResetLink returns the link mailed for a password reset token.
func (n *Notifier) ResetLink(token string) string {
	return n.publicURL + "/auth/email/reset-password/" + url.PathEscape(token)
}

// NotifyEmailVerification implements auth.Notifier.
func (n *Notifier) NotifyEmailVerification(ctx context.Context, email, token string) {
	link := n.VerificationLink(token)
	n.dispatcher.Dispatch(ctx, KindEmailVerification, Message{
		To:      email,
		Subject: "Verify Email",
		Text:    "Verify your email: " + link,
		HTML:    render(verificationHTML, link),
	})
}

// NotifyPasswordReset implements auth.Notifier.
func (n *Notifier) NotifyPasswordReset(ctx context.Context, email, token string) {
	link := n.ResetLink(token)
	n.dispatcher.Dispatch(ctx, KindPasswordReset, Message{
		To:      email,
		Subject: "Forgotten Password",
		Text:    "Reset your password: " + link,
		HTML:    render(resetHTML, link),
	})
}

// render falls back to an empty HTML part; the text part always carries the link.
func render(tmpl *template.Template, link string) string {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, struct{ Link string }{link}); err != nil {
		return ""
	}
	return buf.String()
}

var _ auth.Notifier = (*Notifier)(nil)
