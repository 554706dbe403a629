// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

//go:build integration

package auth_test

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/wardenhq/warden/internal/auth"
	pgrepo "github.com/wardenhq/warden/internal/auth/postgres"
	"github.com/wardenhq/warden/internal/httpapi"
	"github.com/wardenhq/warden/internal/store"
)

func TestAuthIntegration(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Auth HTTP Integration Suite")
}

// capturingNotifier records the last token mailed to each address.
type capturingNotifier struct {
	mu     sync.Mutex
	verify map[string]string
	reset  map[string]string
}

func (n *capturingNotifier) NotifyEmailVerification(_ context.Context, email, token string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.verify[email] = token
}

func (n *capturingNotifier) NotifyPasswordReset(_ context.Context, email, token string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reset[email] = token
}

func (n *capturingNotifier) verificationToken(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.verify[email]
}

func (n *capturingNotifier) resetToken(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.reset[email]
}

// testEnv holds all resources needed for the HTTP integration tests.
type testEnv struct {
	ctx       context.Context
	container testcontainers.Container
	pool      *pgxpool.Pool
	server    *httptest.Server
	notifier  *capturingNotifier
}

var env *testEnv

var _ = BeforeSuite(func() {
	var err error
	env, err = setupTestEnv()
	Expect(err).NotTo(HaveOccurred())
})

var _ = AfterSuite(func() {
	if env != nil {
		env.cleanup()
	}
})

func setupTestEnv() (*testEnv, error) {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:18-alpine",
		postgres.WithDatabase("warden_test"),
		postgres.WithUsername("warden"),
		postgres.WithPassword("warden"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, err
	}
	e := &testEnv{ctx: ctx, container: container}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		e.cleanup()
		return nil, err
	}

	migrator, err := store.NewMigrator(connStr)
	if err != nil {
		e.cleanup()
		return nil, err
	}
	upErr := migrator.Up()
	_ = migrator.Close()
	if upErr != nil {
		e.cleanup()
		return nil, upErr
	}

	e.pool, err = store.Connect(ctx, connStr, store.DefaultConnectConfig())
	if err != nil {
		e.cleanup()
		return nil, err
	}

	if err := e.buildServer(); err != nil {
		e.cleanup()
		return nil, err
	}
	return e, nil
}

func (e *testEnv) buildServer() error {
	users := pgrepo.NewUserRepository(e.pool)
	verifications, err := pgrepo.NewTokenRepository(e.pool, auth.PurposeEmailVerification)
	if err != nil {
		return err
	}
	resets, err := pgrepo.NewTokenRepository(e.pool, auth.PurposePasswordReset)
	if err != nil {
		return err
	}

	issuer, err := auth.NewTokenIssuer([]byte("integration-secret-0123456789abcdef"), time.Hour)
	if err != nil {
		return err
	}
	hasher := auth.NewArgon2idHasher()
	e.notifier = &capturingNotifier{verify: map[string]string{}, reset: map[string]string{}}

	authSvc, err := auth.NewAuthService(users, hasher, issuer)
	if err != nil {
		return err
	}
	verifySvc, err := auth.NewEmailVerificationService(users, verifications, e.notifier)
	if err != nil {
		return err
	}
	resetSvc, err := auth.NewPasswordResetService(users, resets, hasher, e.notifier)
	if err != nil {
		return err
	}

	handler, err := httpapi.NewRouter(httpapi.Deps{
		Auth:         authSvc,
		Verification: verifySvc,
		Reset:        resetSvc,
	})
	if err != nil {
		return err
	}
	e.server = httptest.NewServer(handler)
	return nil
}

func (e *testEnv) cleanup() {
	if e.server != nil {
		e.server.Close()
	}
	if e.pool != nil {
		e.pool.Close()
	}
	if e.container != nil {
		_ = e.container.Terminate(e.ctx)
	}
}
