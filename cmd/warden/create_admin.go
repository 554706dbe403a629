// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package main

import (
	"context"
	"errors"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/wardenhq/warden/internal/auth"
	"github.com/wardenhq/warden/internal/config"
)

type createAdminOptions struct {
	email    string
	name     string
	password string
}

// NewCreateAdminCmd creates the create-admin subcommand.
func NewCreateAdminCmd() *cobra.Command {
	opts := &createAdminOptions{}

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create a verified ADMIN account",
		Long: `Create a verified account with the ADMIN role. Use it to bootstrap
the first administrator; the HTTP API only ever creates USER accounts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runCreateAdmin(cmd.Context(), cfg, opts, cmd, openBackend)
		},
	}

	cmd.Flags().StringVar(&opts.email, "email", "", "admin email address (required)")
	cmd.Flags().StringVar(&opts.name, "name", "Administrator", "display name")
	cmd.Flags().StringVar(&opts.password, "password", "", "initial password (required)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func runCreateAdmin(
	ctx context.Context,
	cfg *config.Config,
	opts *createAdminOptions,
	cmd *cobra.Command,
	backendFactory func(context.Context, *config.Config, bool) (*Backend, error),
) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := auth.ValidateRegistration(auth.RegisterInput{
		Name:            opts.name,
		Email:           opts.email,
		Password:        opts.password,
		PasswordConfirm: opts.password,
	}); err != nil {
		return err
	}

	backend, err := backendFactory(ctx, cfg, false)
	if err != nil {
		return oops.Code("STORE_OPEN_FAILED").With("driver", cfg.Database.Driver).Wrap(err)
	}
	defer backend.Close()

	hash, err := auth.NewArgon2idHasher().Hash(opts.password)
	if err != nil {
		return err
	}
	user, err := auth.NewUser(opts.name, opts.email, hash)
	if err != nil {
		return err
	}
	user.Role = auth.RoleAdmin
	user.MarkVerified()

	if err := backend.Users.Create(ctx, user); err != nil {
		if errors.Is(err, auth.ErrDuplicate) {
			return oops.Code(auth.CodeEmailTaken).
				With("email", opts.email).
				Errorf("an account with email %s already exists", opts.email)
		}
		return err
	}

	cmd.Printf("Created admin %s (%s)\n", user.Email, user.ID)
	return nil
}
