// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenhq/warden/pkg/errutil"
)

type flakyPinger struct {
	failures int
	calls    int
}

func (p *flakyPinger) Ping(context.Context) error {
	p.calls++
	if p.calls <= p.failures {
		return errors.New("connection refused")
	}
	return nil
}

func TestWaitForDatabase(t *testing.T) {
	cfg := ConnectConfig{MaxRetries: 3, RetryBackoff: time.Millisecond}

	t.Run("succeeds after transient failures", func(t *testing.T) {
		p := &flakyPinger{failures: 2}
		require.NoError(t, waitForDatabase(context.Background(), p, cfg))
		assert.Equal(t, 3, p.calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		p := &flakyPinger{failures: 100}
		err := waitForDatabase(context.Background(), p, cfg)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "DB_CONNECT_FAILED")
		assert.Equal(t, 4, p.calls)
	})

	t.Run("stops when context is cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		p := &flakyPinger{failures: 100}
		err := waitForDatabase(ctx, p, ConnectConfig{MaxRetries: 10, RetryBackoff: time.Second})
		require.Error(t, err)
	})
}

func TestConnect_InvalidDSN(t *testing.T) {
	_, err := Connect(context.Background(), "://not a dsn", DefaultConnectConfig())
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "DB_CONFIG_INVALID")
}

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u@h/db", migrateURL("postgres://u@h/db"))
	assert.Equal(t, "pgx5://u@h/db", migrateURL("postgresql://u@h/db"))
	assert.Equal(t, "pgx5://u@h/db", migrateURL("pgx5://u@h/db"))
}
