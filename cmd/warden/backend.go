// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/samber/oops"

	"github.com/wardenhq/warden/internal/auth"
	"github.com/wardenhq/warden/internal/auth/mongostore"
	"github.com/wardenhq/warden/internal/auth/postgres"
	"github.com/wardenhq/warden/internal/config"
	"github.com/wardenhq/warden/internal/store"
)

// openBackend connects the configured storage driver.
func openBackend(ctx context.Context, cfg *config.Config, autoMigrate bool) (*Backend, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		return openPostgres(ctx, cfg.Database.URL, autoMigrate)
	case config.DriverMongo:
		return openMongo(ctx, cfg.Database.URL, cfg.Database.MongoDB)
	default:
		return nil, oops.Code("CONFIG_INVALID").
			With("driver", cfg.Database.Driver).
			Errorf("unsupported database driver")
	}
}

func openPostgres(ctx context.Context, url string, autoMigrate bool) (*Backend, error) {
	if err := checkMigrations(url, autoMigrate); err != nil {
		return nil, err
	}

	pool, err := store.Connect(ctx, url, store.DefaultConnectConfig())
	if err != nil {
		return nil, err
	}

	verifications, err := postgres.NewTokenRepository(pool, auth.PurposeEmailVerification)
	if err != nil {
		pool.Close()
		return nil, err
	}
	resets, err := postgres.NewTokenRepository(pool, auth.PurposePasswordReset)
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &Backend{
		Users:              postgres.NewUserRepository(pool),
		VerificationTokens: verifications,
		ResetTokens:        resets,
		Ping:               pool.Ping,
		Close:              pool.Close,
	}, nil
}

// checkMigrations refuses to serve an outdated schema unless autoMigrate
// applies the pending versions first.
func checkMigrations(url string, autoMigrate bool) error {
	migrator, err := store.NewMigrator(url)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			slog.Warn("failed to close migrator", "error", closeErr)
		}
	}()

	pending, err := migrator.PendingMigrations()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}
	if !autoMigrate {
		return oops.Code("MIGRATIONS_PENDING").
			With("pending", pending).
			Errorf("database schema is out of date, run 'warden migrate up' or pass --auto-migrate")
	}

	slog.Info("applying pending migrations", "count", len(pending))
	return migrator.Up()
}

func openMongo(ctx context.Context, uri, database string) (*Backend, error) {
	client, err := mongostore.Connect(ctx, uri)
	if err != nil {
		return nil, err
	}
	closeClient := func() {
		if err := client.Disconnect(context.Background()); err != nil {
			slog.Warn("failed to disconnect mongo client", "error", err)
		}
	}

	db := client.Database(database)
	if err := mongostore.EnsureIndexes(ctx, db); err != nil {
		closeClient()
		return nil, err
	}

	verifications, err := mongostore.NewTokenRepository(db, auth.PurposeEmailVerification)
	if err != nil {
		closeClient()
		return nil, err
	}
	resets, err := mongostore.NewTokenRepository(db, auth.PurposePasswordReset)
	if err != nil {
		closeClient()
		return nil, err
	}

	return &Backend{
		Users:              mongostore.NewUserRepository(db),
		VerificationTokens: verifications,
		ResetTokens:        resets,
		Ping: func(ctx context.Context) error {
			return client.Ping(ctx, nil)
		},
		Close: closeClient,
	}, nil
}
