// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/wardenhq/warden/internal/auth"
	"github.com/wardenhq/warden/internal/avatar"
	"github.com/wardenhq/warden/internal/config"
	"github.com/wardenhq/warden/internal/httpapi"
	"github.com/wardenhq/warden/internal/logging"
	"github.com/wardenhq/warden/internal/mail"
	"github.com/wardenhq/warden/internal/observability"
	"github.com/wardenhq/warden/internal/ratelimit"
)

// Timeouts used by the serve command.
const (
	shutdownTimeout   = 15 * time.Second
	readinessTimeout  = 2 * time.Second
	readHeaderTimeout = 10 * time.Second
)

type serveOptions struct {
	autoMigrate bool
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API together with the metrics and health endpoints.
The server shuts down gracefully on SIGINT or SIGTERM and waits for queued
mail before exiting.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, opts, cmd, nil)
		},
	}

	cmd.Flags().BoolVar(&opts.autoMigrate, "auto-migrate", false, "apply pending PostgreSQL migrations before serving")

	return cmd
}

// runServeWithDeps starts the server with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg *config.Config, opts *serveOptions, cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.BackendFactory == nil {
		deps.BackendFactory = openBackend
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}
	if deps.CounterFactory == nil {
		deps.CounterFactory = func(ctx context.Context, addr string) (ratelimit.Counter, io.Closer, error) {
			client, err := ratelimit.NewRedisClient(ctx, addr)
			if err != nil {
				return nil, nil, err
			}
			return ratelimit.NewRedisCounter(client), client, nil
		}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.SetDefault(logging.Options{
		Service: "warden",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
		Writer:  deps.LogWriter,
	})
	if err != nil {
		return oops.Code("CONFIG_INVALID").With("operation", "set up logging").Wrap(err)
	}

	// A broken signer makes every login fail; refuse to start instead.
	issuer, err := auth.NewTokenIssuer([]byte(cfg.JWT.Secret), cfg.JWT.Expiry)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	backend, err := deps.BackendFactory(ctx, cfg, opts.autoMigrate)
	if err != nil {
		return oops.Code("STORE_OPEN_FAILED").With("driver", cfg.Database.Driver).Wrap(err)
	}
	defer backend.Close()
	logger.Info("store connected", "driver", cfg.Database.Driver)

	sender, err := newMailSender(cfg, logger)
	if err != nil {
		return err
	}
	dispatcher := mail.NewDispatcher(sender, mail.WithDispatchLogger(logger))
	defer func() {
		drainCtx, drainCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer drainCancel()
		if err := dispatcher.Close(drainCtx); err != nil {
			logger.Warn("mail still queued at shutdown", "error", err)
		}
	}()
	notifier, err := mail.NewNotifier(dispatcher, cfg.HTTP.PublicURL)
	if err != nil {
		return err
	}

	serviceOpts := []auth.Option{
		auth.WithLogger(logger),
		auth.WithThrottleWindow(cfg.Tokens.Throttle),
		auth.WithStrictRedemption(cfg.Tokens.StrictRedemption),
	}
	hasher := auth.NewArgon2idHasher()
	authSvc, err := auth.NewAuthService(backend.Users, hasher, issuer, serviceOpts...)
	if err != nil {
		return err
	}
	verifySvc, err := auth.NewEmailVerificationService(backend.Users, backend.VerificationTokens, notifier, serviceOpts...)
	if err != nil {
		return err
	}
	resetSvc, err := auth.NewPasswordResetService(backend.Users, backend.ResetTokens, hasher, notifier, serviceOpts...)
	if err != nil {
		return err
	}

	trustedProxies, err := cfg.HTTP.TrustedProxyPrefixes()
	if err != nil {
		return err
	}
	routerDeps := httpapi.Deps{
		Auth:           authSvc,
		Verification:   verifySvc,
		Reset:          resetSvc,
		TrustedProxies: trustedProxies,
		Logger:         logger,
	}

	var obsServer ObservabilityServer
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, func() bool {
			pingCtx, pingCancel := context.WithTimeout(context.Background(), readinessTimeout)
			defer pingCancel()
			return backend.Ping(pingCtx) == nil
		})
		obsErrChan, startErr := obsServer.Start()
		if startErr != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").Wrap(startErr)
		}
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer stopCancel()
			if err := obsServer.Stop(stopCtx); err != nil {
				logger.Warn("error stopping observability server", "error", err)
			}
		}()
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		routerDeps.Metrics = obsServer.Metrics()
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	if cfg.Redis.Addr != "" {
		counter, closer, counterErr := deps.CounterFactory(ctx, cfg.Redis.Addr)
		if counterErr != nil {
			return counterErr
		}
		if closer != nil {
			defer closer.Close() //nolint:errcheck // shutdown path
		}
		limiter := ratelimit.New(counter, cfg.RateLimit.Requests, cfg.RateLimit.Window, ratelimit.WithLogger(logger))
		routerDeps.RateLimit = limiter.Middleware
		logger.Info("rate limiting enabled", "requests", cfg.RateLimit.Requests, "window", cfg.RateLimit.Window.String())
	}

	if cfg.S3.Bucket != "" {
		avatars, avatarErr := avatar.NewS3Store(ctx, avatar.Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
		})
		if avatarErr != nil {
			return avatarErr
		}
		routerDeps.Avatars = avatars
	}

	router, err := httpapi.NewRouter(routerDeps)
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", cfg.HTTP.Addr)
	if err != nil {
		return oops.Code("HTTP_LISTEN_FAILED").With("addr", cfg.HTTP.Addr).Wrap(err)
	}
	httpServer := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	errChan := make(chan error, 1)
	go func() {
		if serveErr := httpServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errChan <- serveErr
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if cmd != nil {
		cmd.Println("Warden listening on " + listener.Addr().String())
	}
	logger.Info("http server started", "addr", listener.Addr().String())

	var runErr error
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig.String())
	case serveErr := <-errChan:
		runErr = oops.Code("HTTP_SERVE_FAILED").Wrap(serveErr)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	logger.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping http server", "error", err)
	}

	// The deferred dispatcher drain and observability stop run after this.
	logger.Info("http server stopped")
	return runErr
}

func newMailSender(cfg *config.Config, logger *slog.Logger) (mail.Sender, error) {
	if cfg.Mail.Host == "" {
		logger.Warn("mail.host not set, mail will be logged instead of sent")
		return mail.NewLogSender(logger), nil
	}
	return mail.NewSMTPSender(mail.SMTPConfig{
		Host:        cfg.Mail.Host,
		Port:        cfg.Mail.Port,
		Username:    cfg.Mail.Username,
		Password:    cfg.Mail.Password,
		From:        cfg.Mail.From,
		ImplicitTLS: cfg.Mail.Port == 465,
	})
}

// monitorServerErrors cancels the serve context when a background server fails.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errChan <-chan error, name string) {
	select {
	case err, ok := <-errChan:
		if ok && err != nil {
			slog.Error("server error, triggering shutdown", "server", name, "error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}
