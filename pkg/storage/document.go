// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package storage

import (
	"context"
	"fmt"

	"github.com/GwynCerbin/go_parcel/pkg/broker"
	"github.com/GwynCerbin/go_parcel/pkg/crypt"
	"github.com/GwynCerbin/go_parcel/pkg/envelope"
)

// PutDocument serializes the stored document with the endpoint format and
// writes it under key plus the format extension. When enc is non-nil the
// object at rest is the encrypted portable hash of the serialized document;
// when nil the plain serialized bytes are written even if transport
// encryption is enabled elsewhere.
func PutDocument[T any](ctx context.Context, store broker.ObjectStore, f envelope.Format, enc *crypt.Config, key string, doc *envelope.Stored[T]) error {
	data, err := envelope.Marshal(f, doc)
	if err != nil {
		return fmt.Errorf("serialize stored message: %w", err)
	}

	if enc != nil {
		hash, err := crypt.Encrypt(string(data), enc)
		if err != nil {
			return fmt.Errorf("encrypt stored message: %w", err)
		}

		data = []byte(hash)
	}

	if err := store.Put(ctx, key+f.Ext(), data); err != nil {
		return fmt.Errorf("put object %s: %w", key+f.Ext(), err)
	}

	return nil
}

// GetDocument reads the object under key plus the format extension and
// reverses PutDocument: decrypt when enc is non-nil, then deserialize.
func GetDocument[T any](ctx context.Context, store broker.ObjectStore, f envelope.Format, enc *crypt.Config, key string) (*envelope.Stored[T], error) {
	data, err := store.Get(ctx, key+f.Ext())
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key+f.Ext(), err)
	}

	if enc != nil {
		plain, err := crypt.Decrypt(string(data), enc)
		if err != nil {
			return nil, fmt.Errorf("decrypt stored message: %w", err)
		}

		data = []byte(plain)
	}

	doc := new(envelope.Stored[T])
	if err := envelope.Unmarshal(f, data, doc); err != nil {
		return nil, fmt.Errorf("deserialize stored message: %w", err)
	}

	return doc, nil
}
