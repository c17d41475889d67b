// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package parcel

import (
	"go.uber.org/zap"

	"github.com/GwynCerbin/go_parcel/pkg/crypt"
)

// Call is one fluent publish or subscribe invocation: an endpoint reference
// plus optional per-call overrides. The effective configuration composes as
// per-call override, then endpoint-embedded setting, then process-wide
// default. A Call is cheap and single-use; configuration errors stick to it
// and surface on the terminal operation.
type Call struct {
	svc   *Service
	name  string
	bound *binding

	encryption *crypt.Config
	store      *StoreConfig

	// preEncrypted carries a payload the caller encrypted up front; it is
	// validated by the fluent setter and published as-is.
	preEncrypted string

	err error
}

// WithEncryption overrides the encryption configuration for this call only.
func (c *Call) WithEncryption(cfg *crypt.Config) *Call {
	c.encryption = cfg

	return c
}

// WithObjectStore overrides the object-store configuration for this call only.
func (c *Call) WithObjectStore(cfg *StoreConfig) *Call {
	c.store = cfg

	return c
}

// WithEncryptedPayload supplies an already encrypted wire payload, skipping
// the encryption step on publish. The value must be a portable hash
// produced by the crypt scheme; anything else fails the call synchronously.
func (c *Call) WithEncryptedPayload(hash string) *Call {
	if !crypt.IsHash(hash) {
		c.err = InvalidEncryptedValueError{}

		return c
	}

	c.preEncrypted = hash

	return c
}

// effective is the composed configuration one publish or subscribe runs with.
type effective struct {
	ep         *Endpoint
	binding    *binding
	encryption *crypt.Config
	store      *StoreConfig
	logger     *zap.Logger
}

// resolve composes the effective configuration and validates it.
func (c *Call) resolve() (*effective, error) {
	if c.err != nil {
		return nil, c.err
	}

	b := c.bound

	if b == nil {
		var err error

		b, err = c.svc.lookup(c.name)
		if err != nil {
			return nil, err
		}
	}

	c.svc.mu.RLock()
	defaultEnc, defaultStore := c.svc.defaultEncryption, c.svc.defaultStore
	c.svc.mu.RUnlock()

	eff := &effective{
		ep:         b.ep,
		binding:    b,
		encryption: firstSet(c.encryption, b.ep.Encryption, defaultEnc),
		store:      firstSet(c.store, b.ep.Store, defaultStore),
		logger:     c.svc.endpointLogger(b.ep),
	}

	if eff.store != nil && eff.store.Objects == nil {
		return nil, StoreClientMissingError{}
	}

	return eff, nil
}

// atRest returns the encryption applied to whole documents in the object
// store: set only when the store asks for it and an encryption config is
// present, preferring the store's own key material over the transport one.
func (e *effective) atRest() *crypt.Config {
	if e.store != nil && e.store.EncryptObjects {
		return firstSet(e.store.Encryption, e.encryption)
	}

	return nil
}

// firstSet returns the first non-nil config of the chain.
func firstSet[T any](vals ...*T) *T {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}

	return nil
}
