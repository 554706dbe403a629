// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package ratelimit_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenhq/warden/internal/ratelimit"
)

type memCounter struct {
	mu     sync.Mutex
	counts map[string]int64
	keys   []string
	err    error
}

func (c *memCounter) Increment(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, 0, c.err
	}
	if c.counts == nil {
		c.counts = map[string]int64{}
	}
	c.counts[key]++
	c.keys = append(c.keys, key)
	return c.counts[key], window, nil
}

func TestLimiter_Allow(t *testing.T) {
	counter := &memCounter{}
	l := ratelimit.New(counter, 2, time.Minute)
	ctx := context.Background()

	d, err := l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)

	d, err = l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)

	d, err = l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Minute, d.RetryAfter)

	d, err = l.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "keys are limited independently")
}

func TestLimiter_Defaults(t *testing.T) {
	counter := &memCounter{}
	l := ratelimit.New(counter, 0, 0, ratelimit.WithKeyPrefix("p:"))
	d, err := l.Allow(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, ratelimit.DefaultRequests, d.Limit)
	assert.Equal(t, []string{"p:k"}, counter.keys)
}

func TestLimiter_Middleware(t *testing.T) {
	l := ratelimit.New(&memCounter{}, 1, 90*time.Second)
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.RemoteAddr = "192.0.2.1:5555"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	req.RemoteAddr = "192.0.2.1:6666"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "90", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "Too many requests")
}

func TestLimiter_MiddlewareFailsOpen(t *testing.T) {
	l := ratelimit.New(&memCounter{err: errors.New("redis down")}, 1, time.Minute)
	called := false
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	_, err := ratelimit.NewRedisClient(context.Background(), "redis://:bad:url:/x")
	require.Error(t, err)
}
