// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

//go:build integration

package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/wardenhq/warden/internal/auth"
	"github.com/wardenhq/warden/internal/auth/postgres"
	"github.com/wardenhq/warden/internal/store"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("warden_test"),
		tcpostgres.WithUsername("warden"),
		tcpostgres.WithPassword("warden"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		panic("failed to start postgres container: " + err.Error())
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		panic("failed to get connection string: " + err.Error())
	}

	migrator, err := store.NewMigrator(connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		panic("failed to create migrator: " + err.Error())
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		_ = container.Terminate(ctx)
		panic("failed to run migrations: " + err.Error())
	}
	_ = migrator.Close()

	pool, err := store.Connect(ctx, connStr, store.DefaultConnectConfig())
	if err != nil {
		_ = container.Terminate(ctx)
		panic("failed to create pool: " + err.Error())
	}
	testPool = pool

	code := m.Run()

	pool.Close()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func newStoredUser(ctx context.Context, t *testing.T, repo *postgres.UserRepository, email string) *auth.User {
	t.Helper()
	u, err := auth.NewUser("Test User", email, "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA")
	require.NoError(t, err)
	u.CreatedAt = u.CreatedAt.Truncate(time.Microsecond)
	u.UpdatedAt = u.UpdatedAt.Truncate(time.Microsecond)
	require.NoError(t, repo.Create(ctx, u))
	t.Cleanup(func() {
		_, _ = testPool.Exec(ctx, `DELETE FROM users WHERE id = $1`, u.ID.String())
	})
	return u
}

func TestUserRepository_Integration(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewUserRepository(testPool)

	u := newStoredUser(ctx, t, repo, "integration@x.com")

	t.Run("round trip", func(t *testing.T) {
		got, err := repo.GetByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, u, got)
	})

	t.Run("duplicate email", func(t *testing.T) {
		dup, err := auth.NewUser("Other", "integration@x.com", "hash")
		require.NoError(t, err)
		err = repo.Create(ctx, dup)
		assert.ErrorIs(t, err, auth.ErrDuplicate)
	})

	t.Run("update persists verification and disabled flags", func(t *testing.T) {
		u.MarkVerified()
		u.UpdatedAt = u.UpdatedAt.Truncate(time.Microsecond)
		u.Disabled.Banned = true
		require.NoError(t, repo.Update(ctx, u))

		got, err := repo.GetByEmail(ctx, "integration@x.com")
		require.NoError(t, err)
		assert.True(t, got.Verified)
		assert.True(t, got.Disabled.Banned)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := repo.GetByID(ctx, ulid.Make())
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("list", func(t *testing.T) {
		newStoredUser(ctx, t, repo, "integration2@x.com")
		page, err := repo.List(ctx, 1, 0)
		require.NoError(t, err)
		assert.Len(t, page, 1)
	})
}

func TestTokenRepository_Integration(t *testing.T) {
	ctx := context.Background()
	repo, err := postgres.NewTokenRepository(testPool, auth.PurposeEmailVerification)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = testPool.Exec(ctx, `DELETE FROM email_verifications WHERE email = $1`, "tok@x.com")
	})

	first := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, repo.Upsert(ctx, &auth.VerificationToken{Email: "tok@x.com", Token: "1111111", IssuedAt: first}))
	second := first.Add(16 * time.Minute)
	require.NoError(t, repo.Upsert(ctx, &auth.VerificationToken{Email: "tok@x.com", Token: "2222222", IssuedAt: second}))

	var rows int
	require.NoError(t, testPool.QueryRow(ctx,
		`SELECT COUNT(*) FROM email_verifications WHERE email = $1`, "tok@x.com").Scan(&rows))
	assert.Equal(t, 1, rows, "upsert keeps one row per email")

	got, err := repo.GetByEmail(ctx, "tok@x.com")
	require.NoError(t, err)
	assert.Equal(t, "2222222", got.Token)
	assert.True(t, second.Equal(got.IssuedAt))

	_, err = repo.GetByToken(ctx, "1111111")
	assert.ErrorIs(t, err, auth.ErrNotFound)

	require.NoError(t, repo.DeleteByEmail(ctx, "tok@x.com"))
	_, err = repo.GetByEmail(ctx, "tok@x.com")
	assert.ErrorIs(t, err, auth.ErrNotFound)
}
