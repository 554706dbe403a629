// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package mail

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/wardenhq/warden/internal/observability"
	"github.com/wardenhq/warden/pkg/errutil"
)

// DefaultSendTimeout bounds a single background delivery.
const DefaultSendTimeout = 30 * time.Second

// Dispatcher sends messages in the background. Callers never wait for or see
// delivery failures; those are logged and counted.
type Dispatcher struct {
	sender  Sender
	logger  *slog.Logger
	timeout time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatchLogger sets the logger for delivery outcomes.
func WithDispatchLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithSendTimeout bounds each delivery.
func WithSendTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// NewDispatcher creates a Dispatcher over sender.
func NewDispatcher(sender Sender, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		sender:  sender,
		logger:  slog.Default(),
		timeout: DefaultSendTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch queues msg for delivery and returns immediately. kind labels the
// delivery in logs and metrics. Messages dispatched after Close are dropped.
func (d *Dispatcher) Dispatch(ctx context.Context, kind string, msg Message) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.WarnContext(ctx, "mail dropped, dispatcher closed", "kind", kind, "to", msg.To)
		observability.RecordMailDelivery(kind, "dropped")
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	// The request context ends with the response; keep its values only.
	sendCtx := context.WithoutCancel(ctx)

	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(sendCtx, d.timeout)
		defer cancel()

		if err := d.sender.Send(ctx, msg); err != nil {
			errutil.LogErrorContext(ctx, d.logger, "mail not sent", oops.Code("MAIL_DELIVERY_FAILED").
				With("kind", kind).
				With("to", msg.To).
				Wrap(err))
			observability.RecordMailDelivery(kind, "failed")
			return
		}
		d.logger.InfoContext(ctx, "mail sent", "kind", kind, "to", msg.To)
		observability.RecordMailDelivery(kind, "sent")
	}()
}

// Close stops accepting messages and waits for in-flight deliveries until ctx
// is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return oops.Code("MAIL_DRAIN_TIMEOUT").Wrap(ctx.Err())
	}
}
