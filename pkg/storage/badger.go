// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package storage

import (
	"context"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/GwynCerbin/go_parcel/pkg/broker"
)

var _ broker.ObjectStore = (*Badger)(nil)

// Badger keeps offloaded documents in an embedded Badger database. It fits
// single-host deployments that want durable offload without an external
// store.
type Badger struct {
	db *badger.DB
}

// OpenBadger opens or creates a Badger-backed store at path. An empty path
// opens an in-memory database.
func OpenBadger(path string) (*Badger, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	return &Badger{db: db}, nil
}

// Put writes data under key, overwriting any previous object.
func (b *Badger) Put(_ context.Context, key string, data []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("badger set: %w", err)
	}

	return nil
}

// Get reads the object under key or returns NotFoundError.
func (b *Badger) Get(_ context.Context, key string) ([]byte, error) {
	var data []byte

	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}

		data, err = item.ValueCopy(nil)

		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, NotFoundError{Key: key}
		}

		return nil, fmt.Errorf("badger get: %w", err)
	}

	return data, nil
}

// Close releases the underlying database.
func (b *Badger) Close() error {
	if err := b.db.Close(); err != nil {
		return fmt.Errorf("close badger: %w", err)
	}

	return nil
}
