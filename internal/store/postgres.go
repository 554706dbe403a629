// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

// Package store manages the PostgreSQL connection pool and account schema.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// ConnectConfig tunes how Connect waits for the database.
type ConnectConfig struct {
	MaxConns     int32
	MaxRetries   uint64
	RetryBackoff time.Duration
}

// DefaultConnectConfig returns the settings used when the config file is silent.
func DefaultConnectConfig() ConnectConfig {
	return ConnectConfig{
		MaxConns:     10,
		MaxRetries:   5,
		RetryBackoff: 500 * time.Millisecond,
	}
}

// pinger is the part of *pgxpool.Pool Connect probes.
type pinger interface {
	Ping(ctx context.Context) error
}

// Connect opens a pool for dsn and waits until the database answers a ping,
// backing off exponentially between attempts.
func Connect(ctx context.Context, dsn string, cfg ConnectConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse dsn").Wrap(err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}

	if err := waitForDatabase(ctx, pool, cfg); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func waitForDatabase(ctx context.Context, db pinger, cfg ConnectConfig) error {
	base := cfg.RetryBackoff
	if base <= 0 {
		base = DefaultConnectConfig().RetryBackoff
	}
	backoff := retry.WithMaxRetries(cfg.MaxRetries, retry.NewExponential(base))

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := db.Ping(ctx); err != nil {
			slog.DebugContext(ctx, "database not ready", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping database").
			With("attempts", attempt).
			Wrap(err)
	}
	return nil
}
