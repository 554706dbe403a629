// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package httpapi

import "github.com/wardenhq/warden/internal/auth"

// userDTO is the public view of a user. It never carries credentials.
type userDTO struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Role     auth.Role `json:"role"`
	Email    string    `json:"email"`
	ImageURL string    `json:"imageUrl"`
	Verified bool      `json:"verified"`
}

func newUserDTO(u *auth.User) userDTO {
	return userDTO{
		ID:       u.ID.String(),
		Name:     u.Name,
		Role:     u.Role,
		Email:    u.Email,
		ImageURL: u.ImageURL,
		Verified: u.Verified,
	}
}

type loginResponse struct {
	User  userDTO            `json:"user"`
	Token *auth.TokenPayload `json:"token"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type resetTokenResponse struct {
	Email string `json:"email"`
}
