// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package storage

import (
	"context"

	"github.com/sony/gobreaker"

	"github.com/GwynCerbin/go_parcel/pkg/broker"
)

var _ broker.ObjectStore = (*Breaker)(nil)

// Breaker decorates an object store with a circuit breaker so a failing
// store surfaces fast instead of stalling every publish on I/O timeouts.
type Breaker struct {
	next broker.ObjectStore
	cb   *gobreaker.CircuitBreaker
}

// NewBreaker wraps next with a circuit breaker built from settings. A zero
// Settings value uses the gobreaker defaults.
func NewBreaker(next broker.ObjectStore, settings gobreaker.Settings) *Breaker {
	if settings.Name == "" {
		settings.Name = "object-store"
	}

	return &Breaker{
		next: next,
		cb:   gobreaker.NewCircuitBreaker(settings),
	}
}

// Put forwards to the wrapped store while the breaker allows it.
func (b *Breaker) Put(ctx context.Context, key string, data []byte) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Put(ctx, key, data)
	})

	return err
}

// Get forwards to the wrapped store while the breaker allows it.
func (b *Breaker) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Get(ctx, key)
	})
	if err != nil {
		return nil, err
	}

	return data.([]byte), nil
}
