// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package mongostore_test

import (
	"context"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/wardenhq/warden/internal/auth"
	"github.com/wardenhq/warden/internal/auth/mongostore"
)

func TestUserRepository_Mock(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	defer mt.Close()

	ctx := context.Background()
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mt.Run("create", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		u, err := auth.NewUser("Alice", "a@x.com", "hash")
		require.NoError(mt, err)
		require.NoError(mt, mongostore.NewUserRepository(mt.DB).Create(ctx, u))
	})

	mt.Run("create duplicate", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))
		u, err := auth.NewUser("Alice", "a@x.com", "hash")
		require.NoError(mt, err)
		err = mongostore.NewUserRepository(mt.DB).Create(ctx, u)
		assert.ErrorIs(mt, err, auth.ErrDuplicate)
	})

	mt.Run("get by email", func(mt *mtest.T) {
		id := ulid.Make()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.users", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: id.String()},
			{Key: "email", Value: "a@x.com"},
			{Key: "password_hash", Value: "hash"},
			{Key: "name", Value: "Alice"},
			{Key: "role", Value: "ADMIN"},
			{Key: "verified", Value: true},
			{Key: "active", Value: true},
			{Key: "disabled", Value: bson.D{{Key: "banned", Value: true}}},
			{Key: "created_at", Value: created},
			{Key: "updated_at", Value: created},
		}))

		got, err := mongostore.NewUserRepository(mt.DB).GetByEmail(ctx, "a@x.com")
		require.NoError(mt, err)
		assert.Equal(mt, id, got.ID)
		assert.Equal(mt, auth.RoleAdmin, got.Role)
		assert.True(mt, got.Verified)
		assert.True(mt, got.Disabled.Banned)
		assert.Equal(mt, created, got.CreatedAt)
	})

	mt.Run("get missing", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.users", mtest.FirstBatch))
		_, err := mongostore.NewUserRepository(mt.DB).GetByID(ctx, ulid.Make())
		assert.ErrorIs(mt, err, auth.ErrNotFound)
	})

	mt.Run("update unmatched", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))
		u := &auth.User{ID: ulid.Make(), Email: "a@x.com", Role: auth.RoleUser}
		err := mongostore.NewUserRepository(mt.DB).Update(ctx, u)
		assert.ErrorIs(mt, err, auth.ErrNotFound)
	})
}

func TestTokenRepository_Mock(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	defer mt.Close()

	ctx := context.Background()
	issued := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mt.Run("unknown purpose", func(mt *mtest.T) {
		_, err := mongostore.NewTokenRepository(mt.DB, auth.TokenPurpose("other"))
		assert.Error(mt, err)
	})

	mt.Run("upsert", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))
		repo, err := mongostore.NewTokenRepository(mt.DB, auth.PurposeEmailVerification)
		require.NoError(mt, err)
		err = repo.Upsert(ctx, &auth.VerificationToken{Email: "a@x.com", Token: "1234567", IssuedAt: issued})
		require.NoError(mt, err)
	})

	mt.Run("get by token", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.forgotten_passwords", mtest.FirstBatch, bson.D{
			{Key: "email", Value: "a@x.com"},
			{Key: "token", Value: "7654321"},
			{Key: "issued_at", Value: issued},
		}))
		repo, err := mongostore.NewTokenRepository(mt.DB, auth.PurposePasswordReset)
		require.NoError(mt, err)

		got, err := repo.GetByToken(ctx, "7654321")
		require.NoError(mt, err)
		assert.Equal(mt, &auth.VerificationToken{Email: "a@x.com", Token: "7654321", IssuedAt: issued}, got)
	})

	mt.Run("get missing", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.forgotten_passwords", mtest.FirstBatch))
		repo, err := mongostore.NewTokenRepository(mt.DB, auth.PurposePasswordReset)
		require.NoError(mt, err)

		_, err = repo.GetByEmail(ctx, "a@x.com")
		assert.ErrorIs(mt, err, auth.ErrNotFound)
	})
}
