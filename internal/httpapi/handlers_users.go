// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/samber/oops"

	"github.com/wardenhq/warden/internal/auth"
	"github.com/wardenhq/warden/internal/avatar"
)

func (a *api) handleAdmin(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	writeJSON(w, http.StatusOK, "only for you admin: "+user.Name)
}

func (a *api) handleListUsers(w http.ResponseWriter, r *http.Request) {
	take, err := queryInt(r, "take", auth.DefaultPageSize)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	skip, err := queryInt(r, "skip", 0)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	users, err := a.auth.ListUsers(r.Context(), take, skip)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	out := make([]userDTO, 0, len(users))
	for _, u := range users {
		out = append(out, newUserDTO(u))
	}
	writeJSON(w, http.StatusOK, out)
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, oops.Code(codeBadRequest).
			With("param", name).
			Errorf("%s must be a non-negative integer", name)
	}
	return v, nil
}

func (a *api) handleUploadAvatar(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, avatar.MaxSize+(1<<20))
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Expected multipart form with a file field")
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck // temp files only

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Expected multipart form with a file field")
		return
	}
	defer file.Close()

	url, err := a.avatars.Upload(r.Context(), user.ID.String(), header.Header.Get("Content-Type"), file, header.Size)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	if err := a.auth.SetImageURL(r.Context(), user, url); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserDTO(user))
}
