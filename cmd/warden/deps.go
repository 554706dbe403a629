// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package main

import (
	"context"
	"io"

	"github.com/wardenhq/warden/internal/auth"
	"github.com/wardenhq/warden/internal/config"
	"github.com/wardenhq/warden/internal/observability"
	"github.com/wardenhq/warden/internal/ratelimit"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// BackendFactory opens the user and token stores.
	// Default: openBackend
	BackendFactory func(ctx context.Context, cfg *config.Config, autoMigrate bool) (*Backend, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer

	// CounterFactory connects the rate limiter store.
	// Default: a Redis counter from ratelimit.NewRedisClient
	CounterFactory func(ctx context.Context, addr string) (ratelimit.Counter, io.Closer, error)

	// LogWriter receives log output. Default: os.Stderr
	LogWriter io.Writer
}

// Backend bundles the repositories of one storage driver.
type Backend struct {
	Users              auth.UserRepository
	VerificationTokens auth.TokenRepository
	ResetTokens        auth.TokenRepository
	// Ping reports whether the store is reachable.
	Ping func(ctx context.Context) error
	// Close releases the connections.
	Close func()
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}
