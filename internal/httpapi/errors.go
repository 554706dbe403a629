// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/samber/oops"

	"github.com/wardenhq/warden/internal/auth"
	"github.com/wardenhq/warden/internal/avatar"
	"github.com/wardenhq/warden/pkg/errutil"
)

const codeBadRequest = "HTTP_BAD_REQUEST"

var statusByCode = map[string]int{
	auth.CodeInvalidCredentials: http.StatusUnauthorized,
	auth.CodeInvalidToken:       http.StatusUnauthorized,
	auth.CodeAccountDisabled:    http.StatusUnauthorized,
	auth.CodeTooManyRequests:    http.StatusTooManyRequests,
	auth.CodeUserNotFound:       http.StatusNotFound,
	auth.CodeEmailTaken:         http.StatusConflict,
	auth.CodeValidationFailed:   http.StatusBadRequest,
	auth.CodeForbidden:          http.StatusForbidden,
	avatar.CodeInvalidType:      http.StatusBadRequest,
	avatar.CodeTooLarge:         http.StatusRequestEntityTooLarge,
	codeBadRequest:              http.StatusBadRequest,
}

// statusFor returns the HTTP status for err. Unknown codes are server errors.
func statusFor(err error) int {
	if status, ok := statusByCode[errutil.Code(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// writeServiceError maps a service error to a response. Server errors are
// logged with their cause and answered with a generic message.
func (a *api) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		errutil.LogErrorContext(r.Context(), a.logger, "request failed", err)
		writeError(w, status, "Internal server error")
		return
	}

	body := errorBody{StatusCode: status, Message: publicMessage(err, status)}

	switch status {
	case http.StatusBadRequest:
		body.Errors = auth.FieldErrors(err)
	case http.StatusTooManyRequests:
		if retry := retryAfter(err); retry > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(max(1, int(retry.Seconds()))))
		}
	}

	a.logger.DebugContext(r.Context(), "request rejected",
		"status", status,
		"code", errutil.Code(err),
		"error", err.Error())
	writeJSON(w, status, body)
}

func publicMessage(err error, status int) string {
	if oopsErr, ok := oops.AsOops(err); ok && oopsErr.Error() != "" {
		return oopsErr.Error()
	}
	return http.StatusText(status)
}

func retryAfter(err error) time.Duration {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return 0
	}
	raw, ok := oopsErr.Context()["retry_after"].(string)
	if !ok {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0
	}
	return d
}
