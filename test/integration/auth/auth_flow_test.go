// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

//go:build integration

package auth_test

import (
	"bytes"
	"encoding/json"
	"net/http"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
)

// call sends a JSON request and decodes the JSON response body.
func call(method, path, token string, body any) (int, map[string]any) {
	var payload bytes.Buffer
	if body != nil {
		Expect(json.NewEncoder(&payload).Encode(body)).To(Succeed())
	}
	req, err := http.NewRequestWithContext(env.ctx, method, env.server.URL+path, &payload)
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := env.server.Client().Do(req)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func login(email, password string) (int, string) {
	status, body := call(http.MethodPost, "/auth/login", "", map[string]string{
		"email": email, "password": password,
	})
	token, _ := body["token"].(string)
	return status, token
}

var _ = Describe("Account lifecycle against PostgreSQL", func() {
	const (
		email    = "ada@example.com"
		password = "analytical"
	)

	It("signs up, verifies, logs in and resets the password", func() {
		By("signing up")
		status, body := call(http.MethodPost, "/auth/signup", "", map[string]string{
			"name": "Ada", "email": email, "password": password, "passwordConfirm": password,
		})
		Expect(status).To(Equal(http.StatusOK))
		Expect(body["verified"]).To(BeFalse())
		Expect(body["role"]).To(Equal("USER"))

		verifyToken := env.notifier.verificationToken(email)
		Expect(verifyToken).To(MatchRegexp(`^\d{7}$`))

		By("rejecting a duplicate signup")
		status, _ = call(http.MethodPost, "/auth/signup", "", map[string]string{
			"name": "Ada", "email": email, "password": password, "passwordConfirm": password,
		})
		Expect(status).To(Equal(http.StatusConflict))

		By("throttling a second verification request")
		status, _ = call(http.MethodPost, "/auth/email/resend-verification", "", map[string]string{"email": email})
		Expect(status).To(Equal(http.StatusTooManyRequests))

		By("verifying the email")
		status, _ = call(http.MethodGet, "/auth/email/verify/"+verifyToken, "", nil)
		Expect(status).To(Equal(http.StatusOK))

		By("logging in")
		status, token := login(email, password)
		Expect(status).To(Equal(http.StatusOK))
		Expect(token).NotTo(BeEmpty())

		status, body = call(http.MethodGet, "/auth/me", token, nil)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body["email"]).To(Equal(email))
		Expect(body["verified"]).To(BeTrue())

		By("rejecting a wrong password")
		status, _ = login(email, "wrong-password")
		Expect(status).To(Equal(http.StatusUnauthorized))

		By("requesting a password reset")
		status, _ = call(http.MethodPost, "/auth/forgot-password", "", map[string]string{"email": email})
		Expect(status).To(Equal(http.StatusOK))
		resetToken := env.notifier.resetToken(email)
		Expect(resetToken).To(MatchRegexp(`^\d{7}$`))

		status, body = call(http.MethodGet, "/auth/email/reset-password/"+resetToken, "", nil)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body["email"]).To(Equal(email))

		By("resetting the password")
		status, _ = call(http.MethodPost, "/auth/email/reset-password/"+resetToken, "", map[string]string{
			"password": "difference-engine", "passwordConfirm": "difference-engine",
		})
		Expect(status).To(Equal(http.StatusOK))

		status, _ = login(email, password)
		Expect(status).To(Equal(http.StatusUnauthorized))
		status, _ = login(email, "difference-engine")
		Expect(status).To(Equal(http.StatusOK))
	})

	It("reports unknown accounts for password resets", func() {
		status, _ := call(http.MethodPost, "/auth/forgot-password", "", map[string]string{"email": "nobody@example.com"})
		Expect(status).To(Equal(http.StatusNotFound))
	})

	It("returns 404 for unknown tokens", func() {
		status, _ := call(http.MethodGet, "/auth/email/verify/0000000", "", nil)
		Expect(status).To(Equal(http.StatusNotFound))
	})
})
