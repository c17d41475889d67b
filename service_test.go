// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package parcel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GwynCerbin/go_parcel/pkg/crypt"
	"github.com/GwynCerbin/go_parcel/pkg/storage"
)

func TestRegisterEndpointValidation(t *testing.T) {
	svc := NewService()

	assert.ErrorIs(t, svc.RegisterEndpoint(nil), EndpointConfEmptyError{})
	assert.ErrorIs(t, svc.RegisterEndpoint(&Endpoint{Name: "a"}), IncompleteEndpointError{Name: "a"})
	assert.ErrorIs(t, svc.RegisterEndpoint(&Endpoint{Endpoint: "q"}), IncompleteEndpointError{})
}

func TestRegistryDeduplicatesCaseInsensitively(t *testing.T) {
	svc := NewService()

	first := &Endpoint{Name: "Orders", Endpoint: "orders-q", Host: "a"}
	require.NoError(t, svc.RegisterEndpoint(first))

	// Same name, different case: the first entry wins.
	require.NoError(t, svc.RegisterEndpoint(&Endpoint{Name: "ORDERS", Endpoint: "other-q", Host: "b"}))

	b, err := svc.lookup("orders")
	require.NoError(t, err)
	assert.Same(t, first, b.ep)

	// Same endpoint identifier, different name: also deduplicated.
	require.NoError(t, svc.RegisterEndpoint(&Endpoint{Name: "fresh", Endpoint: "ORDERS-Q", Host: "c"}))

	_, err = svc.lookup("fresh")
	assert.ErrorIs(t, err, UnknownEndpointError{Name: "fresh"})
}

func TestLookupUnknownEndpoint(t *testing.T) {
	svc := NewService()

	_, err := svc.lookup("ghost")
	assert.ErrorIs(t, err, UnknownEndpointError{Name: "ghost"})
}

func TestDefaultEndpointFallback(t *testing.T) {
	svc := NewService()

	_, err := svc.lookup("")
	assert.ErrorIs(t, err, NoDefaultEndpointError{})

	def := &Endpoint{Name: "def", Endpoint: "def-q", Host: "h"}
	require.NoError(t, svc.RegisterDefaultEndpoint(def))

	b, err := svc.lookup("")
	require.NoError(t, err)
	assert.Same(t, def, b.ep)

	// The default is also a regular registry entry.
	b, err = svc.lookup("def")
	require.NoError(t, err)
	assert.Same(t, def, b.ep)
}

func TestCompositionPrecedence(t *testing.T) {
	svc := NewService(WithDialer(fakeDialer(&fakeBroker{}, nil)))

	endpointEnc := &crypt.Config{Secret: "endpoint"}
	defaultEnc := &crypt.Config{Secret: "default"}
	callEnc := &crypt.Config{Secret: "call"}

	defaultStore := &StoreConfig{BucketPrefix: "default", Objects: storage.NewMemory()}
	callStore := &StoreConfig{BucketPrefix: "call", Objects: storage.NewMemory()}

	svc.RegisterDefaultEncryption(defaultEnc)
	svc.RegisterDefaultObjectStore(defaultStore)

	require.NoError(t, svc.RegisterEndpoint(&Endpoint{
		Name: "ep", Endpoint: "q", Host: "h",
		Encryption: endpointEnc,
	}))

	// Endpoint setting beats the process-wide default.
	eff, err := svc.To("ep").resolve()
	require.NoError(t, err)
	assert.Same(t, endpointEnc, eff.encryption)
	assert.Same(t, defaultStore, eff.store)

	// Per-call override beats both.
	eff, err = svc.To("ep").WithEncryption(callEnc).WithObjectStore(callStore).resolve()
	require.NoError(t, err)
	assert.Same(t, callEnc, eff.encryption)
	assert.Same(t, callStore, eff.store)
}

func TestStoreWithoutClientFailsResolve(t *testing.T) {
	svc := NewService()

	require.NoError(t, svc.RegisterEndpoint(&Endpoint{
		Name: "ep", Endpoint: "q", Host: "h",
		Store: &StoreConfig{BucketPrefix: "p"},
	}))

	_, err := svc.To("ep").resolve()
	assert.ErrorIs(t, err, StoreClientMissingError{})
}

func TestWithEncryptedPayloadValidation(t *testing.T) {
	svc := NewService(WithDialer(fakeDialer(&fakeBroker{}, nil)))

	require.NoError(t, svc.RegisterEndpoint(&Endpoint{
		Name: "ep", Endpoint: "q", Host: "h",
		Encryption: &crypt.Config{Secret: "k"},
	}))

	_, err := Publish(context.Background(), svc.To("ep").WithEncryptedPayload("not-a-hash"), "x")
	assert.ErrorIs(t, err, InvalidEncryptedValueError{})

	hash, err := crypt.EncryptValue(svc.To("ep").mustEndpoint(t).format(), "x", &crypt.Config{Secret: "k"})
	require.NoError(t, err)

	msg, err := Publish(context.Background(), svc.To("ep").WithEncryptedPayload(hash), "x")
	require.NoError(t, err)
	assert.NotNil(t, msg.Published)
}

// mustEndpoint resolves the call's endpoint for test setup.
func (c *Call) mustEndpoint(t *testing.T) *Endpoint {
	t.Helper()

	eff, err := c.resolve()
	require.NoError(t, err)

	return eff.ep
}

func TestPreEncryptedWithoutConfigFails(t *testing.T) {
	svc := NewService(WithDialer(fakeDialer(&fakeBroker{}, nil)))

	require.NoError(t, svc.RegisterEndpoint(&Endpoint{Name: "ep", Endpoint: "q", Host: "h"}))

	hash, err := crypt.Encrypt("x", &crypt.Config{Secret: "k"})
	require.NoError(t, err)

	_, err = Publish(context.Background(), svc.To("ep").WithEncryptedPayload(hash), "x")
	assert.ErrorIs(t, err, crypt.MissingSecretError{})
}

func TestConnectionMemoized(t *testing.T) {
	var dials int

	b := &fakeBroker{}
	svc := NewService(WithDialer(fakeDialer(b, &dials)))

	require.NoError(t, svc.RegisterEndpoint(&Endpoint{Name: "ep", Endpoint: "q", Host: "h"}))

	for i := 0; i < 3; i++ {
		_, err := Publish(context.Background(), svc.To("ep"), note{Text: "again"})
		require.NoError(t, err)
	}

	assert.Equal(t, 1, dials)

	// Disconnect drops the cached connection; the next use redials.
	require.NoError(t, svc.Disconnect("ep"))

	_, err := Publish(context.Background(), svc.To("ep"), note{Text: "after"})
	require.NoError(t, err)
	assert.Equal(t, 2, dials)
}

func TestDisconnectAll(t *testing.T) {
	var dials int

	svc := NewService(WithDialer(fakeDialer(&fakeBroker{}, &dials)))

	require.NoError(t, svc.RegisterEndpoints([]*Endpoint{
		{Name: "a", Endpoint: "qa", Host: "h"},
		{Name: "b", Endpoint: "qb", Host: "h"},
	}))

	_, err := Publish(context.Background(), svc.To("a"), note{})
	require.NoError(t, err)
	_, err = Publish(context.Background(), svc.To("b"), note{})
	require.NoError(t, err)
	require.Equal(t, 2, dials)

	require.NoError(t, svc.Disconnect())

	_, err = Publish(context.Background(), svc.To("a"), note{})
	require.NoError(t, err)
	assert.Equal(t, 3, dials)
}

func TestMessageCount(t *testing.T) {
	b := &fakeBroker{}
	svc := newTestService(t, b)

	require.NoError(t, svc.RegisterDefaultEndpoint(&Endpoint{Name: "d", Endpoint: "qd", Host: "h"}))

	for i := 0; i < 2; i++ {
		_, err := Publish(context.Background(), svc.To("d"), note{Text: "depth"})
		require.NoError(t, err)
	}

	count, err := svc.MessageCount("d")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Empty name targets the default endpoint.
	count, err = svc.MessageCount("")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestToEndpointRegistersOnFirstUse(t *testing.T) {
	b := &fakeBroker{}
	svc := newTestService(t, b)

	ep := &Endpoint{Name: "adhoc", Endpoint: "q-adhoc", Host: "h"}

	_, err := Publish(context.Background(), svc.ToEndpoint(ep), note{Text: "direct"})
	require.NoError(t, err)

	// The endpoint is now resolvable by name.
	bnd, err := svc.lookup("adhoc")
	require.NoError(t, err)
	assert.Same(t, ep, bnd.ep)
}

func TestEndpointLoggerSuppression(t *testing.T) {
	svc := NewService()

	quiet := svc.endpointLogger(&Endpoint{Name: "q", SuppressLogs: true})
	loud := svc.endpointLogger(&Endpoint{Name: "l"})

	require.NotNil(t, quiet)
	require.NotNil(t, loud)
	assert.NotSame(t, quiet, loud)
}
