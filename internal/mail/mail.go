// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

// Package mail delivers verification and password reset mails.
package mail

import (
	"context"
	"log/slog"
)

// Message is a single outgoing mail.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers one message synchronously.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender logs messages instead of delivering them. It is used when no SMTP
// host is configured.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender. A nil logger uses slog.Default().
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

// Send implements Sender.
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "mail not sent, no smtp host configured",
		"to", msg.To,
		"subject", msg.Subject,
		"text", msg.Text)
	return nil
}
