// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package auth

import (
	"log/slog"
	"time"
)

type options struct {
	logger           *slog.Logger
	clock            Clock
	generate         TokenGenerator
	throttle         time.Duration
	strictRedemption bool
}

func defaultOptions() options {
	return options{
		logger:   slog.Default(),
		clock:    systemClock,
		generate: GenerateNumericToken,
		throttle: DefaultThrottleWindow,
	}
}

// Option configures the auth services.
type Option func(*options)

// WithLogger sets the logger used by a service.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock overrides the time source.
func WithClock(clock Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithTokenGenerator overrides how verification and reset tokens are generated.
func WithTokenGenerator(gen TokenGenerator) Option {
	return func(o *options) {
		if gen != nil {
			o.generate = gen
		}
	}
}

// WithThrottleWindow sets the minimum interval between token requests per email.
func WithThrottleWindow(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.throttle = d
		}
	}
}

// WithStrictRedemption makes token redemption reject records older than the
// throttle window and delete records once redeemed.
func WithStrictRedemption(strict bool) Option {
	return func(o *options) { o.strictRedemption = strict }
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
