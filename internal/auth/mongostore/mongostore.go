// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

// Package mongostore provides MongoDB implementations of the auth
// repositories.
package mongostore

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wardenhq/warden/internal/auth"
)

// Collection names.
const (
	CollectionUsers              = "users"
	CollectionEmailVerifications = "email_verifications"
	CollectionForgottenPasswords = "forgotten_passwords"
)

// Connect opens a client for uri and checks that the server answers.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, oops.Code("MONGO_CONNECT_FAILED").With("operation", "connect").Wrap(err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx) //nolint:errcheck // ping error takes precedence
		return nil, oops.Code("MONGO_CONNECT_FAILED").With("operation", "ping").Wrap(err)
	}
	return client, nil
}

// EnsureIndexes creates the unique email indexes the repositories rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	unique := mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	byToken := mongo.IndexModel{Keys: bson.D{{Key: "token", Value: 1}}}

	if _, err := db.Collection(CollectionUsers).Indexes().CreateOne(ctx, unique); err != nil {
		return oops.Code("MONGO_INDEX_FAILED").With("collection", CollectionUsers).Wrap(err)
	}
	for _, name := range []string{CollectionEmailVerifications, CollectionForgottenPasswords} {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, []mongo.IndexModel{unique, byToken}); err != nil {
			return oops.Code("MONGO_INDEX_FAILED").With("collection", name).Wrap(err)
		}
	}
	return nil
}

type userDocument struct {
	ID           string              `bson:"_id"`
	Email        string              `bson:"email"`
	PasswordHash string              `bson:"password_hash"`
	Salt         string              `bson:"salt"`
	Name         string              `bson:"name"`
	Role         string              `bson:"role"`
	ImageURL     string              `bson:"image_url"`
	Verified     bool                `bson:"verified"`
	Active       bool                `bson:"active"`
	Disabled     auth.DisabledStatus `bson:"disabled"`
	CreatedAt    time.Time           `bson:"created_at"`
	UpdatedAt    time.Time           `bson:"updated_at"`
}

func toUserDocument(u *auth.User) userDocument {
	return userDocument{
		ID:           u.ID.String(),
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Salt:         u.Salt,
		Name:         u.Name,
		Role:         string(u.Role),
		ImageURL:     u.ImageURL,
		Verified:     u.Verified,
		Active:       u.Active,
		Disabled:     u.Disabled,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (d userDocument) user() (*auth.User, error) {
	id, err := ulid.Parse(d.ID)
	if err != nil {
		return nil, oops.Code("USER_INVALID_ID").With("id", d.ID).Wrap(err)
	}
	role, err := auth.ParseRole(d.Role)
	if err != nil {
		return nil, oops.Code("USER_INVALID_ROLE").With("id", d.ID).Wrap(err)
	}
	return &auth.User{
		ID:           id,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Salt:         d.Salt,
		Name:         d.Name,
		Role:         role,
		ImageURL:     d.ImageURL,
		Verified:     d.Verified,
		Active:       d.Active,
		Disabled:     d.Disabled,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}, nil
}

// UserRepository implements auth.UserRepository on a MongoDB collection.
type UserRepository struct {
	coll *mongo.Collection
}

// NewUserRepository creates a UserRepository on db's users collection.
func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{coll: db.Collection(CollectionUsers)}
}

// Create stores a new user. A taken email yields auth.ErrDuplicate.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	if _, err := r.coll.InsertOne(ctx, toUserDocument(user)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return oops.Code("USER_CREATE_FAILED").With("email", user.Email).Wrap(auth.ErrDuplicate)
		}
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("email", user.Email).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	return r.findOne(ctx, bson.M{"_id": id.String()}, "id", id.String())
}

// GetByEmail retrieves a user by exact email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	return r.findOne(ctx, bson.M{"email": email}, "email", email)
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M, key, value string) (*auth.User, error) {
	var doc userDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, oops.Code("USER_NOT_FOUND").With(key, value).Wrap(auth.ErrNotFound)
		}
		return nil, oops.Code("USER_GET_FAILED").
			With("operation", "find user").
			With(key, value).
			Wrap(err)
	}
	return doc.user()
}

// Update replaces the stored user document.
func (r *UserRepository) Update(ctx context.Context, user *auth.User) error {
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": user.ID.String()}, toUserDocument(user))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return oops.Code("USER_UPDATE_FAILED").With("email", user.Email).Wrap(auth.ErrDuplicate)
		}
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", "replace user").
			With("id", user.ID.String()).
			Wrap(err)
	}
	if res.MatchedCount == 0 {
		return oops.Code("USER_NOT_FOUND").With("id", user.ID.String()).Wrap(auth.ErrNotFound)
	}
	return nil
}

// List returns a page of users ordered by ID.
func (r *UserRepository) List(ctx context.Context, take, skip int) ([]*auth.User, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetSkip(int64(skip)).
		SetLimit(int64(take))

	cur, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, oops.Code("USER_LIST_FAILED").With("operation", "find users").Wrap(err)
	}
	defer cur.Close(ctx) //nolint:errcheck // read-only cursor

	users := make([]*auth.User, 0, take)
	for cur.Next(ctx) {
		var doc userDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, oops.Code("USER_LIST_FAILED").With("operation", "decode user").Wrap(err)
		}
		u, err := doc.user()
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := cur.Err(); err != nil {
		return nil, oops.Code("USER_LIST_FAILED").With("operation", "iterate users").Wrap(err)
	}
	return users, nil
}

type tokenDocument struct {
	Email    string    `bson:"email"`
	Token    string    `bson:"token"`
	IssuedAt time.Time `bson:"issued_at"`
}

// TokenRepository implements auth.TokenRepository on one collection.
type TokenRepository struct {
	coll *mongo.Collection
}

// NewTokenRepository creates a TokenRepository for the collection that backs purpose.
func NewTokenRepository(db *mongo.Database, purpose auth.TokenPurpose) (*TokenRepository, error) {
	switch purpose {
	case auth.PurposeEmailVerification:
		return &TokenRepository{coll: db.Collection(CollectionEmailVerifications)}, nil
	case auth.PurposePasswordReset:
		return &TokenRepository{coll: db.Collection(CollectionForgottenPasswords)}, nil
	}
	return nil, oops.Code("TOKEN_REPO_CONFIG").
		With("purpose", string(purpose)).
		Errorf("unknown token purpose")
}

// GetByEmail retrieves the record for an email.
func (r *TokenRepository) GetByEmail(ctx context.Context, email string) (*auth.VerificationToken, error) {
	return r.findOne(ctx, bson.M{"email": email}, nil)
}

// GetByToken retrieves the most recently issued record with a token value.
func (r *TokenRepository) GetByToken(ctx context.Context, token string) (*auth.VerificationToken, error) {
	newest := options.FindOne().SetSort(bson.D{{Key: "issued_at", Value: -1}})
	return r.findOne(ctx, bson.M{"token": token}, newest)
}

func (r *TokenRepository) findOne(ctx context.Context, filter bson.M, opts *options.FindOneOptions) (*auth.VerificationToken, error) {
	var findOpts []*options.FindOneOptions
	if opts != nil {
		findOpts = append(findOpts, opts)
	}

	var doc tokenDocument
	if err := r.coll.FindOne(ctx, filter, findOpts...).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, oops.Code("TOKEN_NOT_FOUND").
				With("collection", r.coll.Name()).
				Wrap(auth.ErrNotFound)
		}
		return nil, oops.Code("TOKEN_GET_FAILED").
			With("collection", r.coll.Name()).
			Wrap(err)
	}
	return &auth.VerificationToken{Email: doc.Email, Token: doc.Token, IssuedAt: doc.IssuedAt.UTC()}, nil
}

// Upsert creates or replaces the record for the token's email.
func (r *TokenRepository) Upsert(ctx context.Context, token *auth.VerificationToken) error {
	update := bson.M{"$set": bson.M{"token": token.Token, "issued_at": token.IssuedAt}}
	_, err := r.coll.UpdateOne(ctx, bson.M{"email": token.Email}, update, options.Update().SetUpsert(true))
	if err != nil {
		return oops.Code("TOKEN_UPSERT_FAILED").
			With("collection", r.coll.Name()).
			With("email", token.Email).
			Wrap(err)
	}
	return nil
}

// DeleteByEmail removes the record for an email.
func (r *TokenRepository) DeleteByEmail(ctx context.Context, email string) error {
	if _, err := r.coll.DeleteOne(ctx, bson.M{"email": email}); err != nil {
		return oops.Code("TOKEN_DELETE_FAILED").
			With("collection", r.coll.Name()).
			With("email", email).
			Wrap(err)
	}
	return nil
}

// Compile-time interface checks.
var (
	_ auth.UserRepository  = (*UserRepository)(nil)
	_ auth.TokenRepository = (*TokenRepository)(nil)
)
