// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/GwynCerbin/go_parcel/pkg/broker"
)

var _ broker.ObjectStore = (*Redis)(nil)

// Redis keeps offloaded documents as plain Redis strings keyed by their
// full object key. A zero TTL keeps objects until explicitly overwritten.
type Redis struct {
	client redis.Cmdable
	ttl    time.Duration
}

// RedisOption adjusts a Redis store at construction time.
type RedisOption func(*Redis)

// WithTTL sets an expiry on stored objects. The subscriber rewrites the
// document on ack and reject, refreshing the window each time.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		r.ttl = ttl
	}
}

// NewRedis wraps an existing Redis client as an object store.
func NewRedis(client redis.Cmdable, opts ...RedisOption) *Redis {
	r := &Redis{client: client}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Put writes data under key, overwriting any previous object.
func (r *Redis) Put(ctx context.Context, key string, data []byte) error {
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// Get reads the object under key or returns NotFoundError.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, NotFoundError{Key: key}
		}

		return nil, fmt.Errorf("redis get: %w", err)
	}

	return data, nil
}
