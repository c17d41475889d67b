// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package parcel

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Runner keeps one subscriber alive for the lifetime of a cancellation
// signal: while the context is live it (re-)invokes Subscribe on the
// composed configuration, backing off exponentially between failed
// attempts. The runner itself processes no messages; all work happens in
// the subscriber pipeline. Run exactly one Runner per registered
// subscriber.
type Runner struct {
	run        func(context.Context) error
	logger     *zap.Logger
	maxBackoff time.Duration
}

// RunnerOption adjusts a Runner at construction time.
type RunnerOption func(*Runner)

// WithMaxBackoff caps the delay between resubscribe attempts.
func WithMaxBackoff(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.maxBackoff = d
	}
}

// NewRunner binds a subscriber to a call for hosting. The handler and call
// are captured once; every (re-)subscription uses the same composition.
func NewRunner[T any](c *Call, handler Handler[T], opts ...RunnerOption) *Runner {
	const stdMaxBackoff = 32 * time.Second

	r := &Runner{
		run: func(ctx context.Context) error {
			return Subscribe(ctx, c, handler)
		},
		logger:     c.svc.logger,
		maxBackoff: stdMaxBackoff,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Run blocks until the context is canceled, resubscribing whenever the
// subscription ends. The backoff doubles after each failure, capped by
// the configured maximum.
func (r *Runner) Run(ctx context.Context) {
	for wait := time.Second; ; wait = min(wait<<1, r.maxBackoff) {
		if ctx.Err() != nil {
			return
		}

		if err := r.run(ctx); err != nil && ctx.Err() == nil {
			r.logger.Warn("subscriber stopped", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}
