// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package crypt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GwynCerbin/go_parcel/pkg/envelope"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	cfg := &Config{Secret: "s3cr3t"}

	hash, err := Encrypt("hello broker", cfg)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$parcel$1$"))
	assert.NotContains(t, hash, "hello")

	plain, err := Decrypt(hash, cfg)
	require.NoError(t, err)
	assert.Equal(t, "hello broker", plain)
}

func TestPassCountSymmetry(t *testing.T) {
	for _, passes := range []int{1, 2, 5} {
		cfg := &Config{Secret: "deep", Passes: passes}

		hash, err := Encrypt("layered", cfg)
		require.NoError(t, err)

		plain, err := Decrypt(hash, cfg)
		require.NoError(t, err)
		assert.Equal(t, "layered", plain)
	}
}

func TestPassCountMismatchFails(t *testing.T) {
	hash, err := Encrypt("x", &Config{Secret: "k", Passes: 2})
	require.NoError(t, err)

	// Two unwinds succeed, the third expects a prefixed hash and finds the
	// plaintext instead.
	_, err = Decrypt(hash, &Config{Secret: "k", Passes: 3})
	require.Error(t, err)
}

func TestZeroPassesTreatedAsOne(t *testing.T) {
	hash, err := Encrypt("v", &Config{Secret: "k", Passes: 0})
	require.NoError(t, err)

	plain, err := Decrypt(hash, &Config{Secret: "k", Passes: 1})
	require.NoError(t, err)
	assert.Equal(t, "v", plain)
}

func TestDecryptRejectsForeignInput(t *testing.T) {
	cfg := &Config{Secret: "k"}

	for _, input := range []string{"", "plaintext", "$parcel$1$", "$parcel$1$!!!not-base64!!!"} {
		_, err := Decrypt(input, cfg)
		assert.ErrorIs(t, err, InvalidHashError{}, "input %q", input)
	}
}

func TestDecryptWrongSecretFails(t *testing.T) {
	hash, err := Encrypt("payload", &Config{Secret: "right"})
	require.NoError(t, err)

	_, err = Decrypt(hash, &Config{Secret: "wrong"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, InvalidHashError{})
}

func TestMissingSecret(t *testing.T) {
	_, err := Encrypt("x", nil)
	assert.ErrorIs(t, err, MissingSecretError{})

	_, err = Decrypt("x", &Config{})
	assert.ErrorIs(t, err, MissingSecretError{})
}

func TestIsHash(t *testing.T) {
	cfg := &Config{Secret: "k"}

	hash, err := Encrypt("anything", cfg)
	require.NoError(t, err)

	assert.True(t, IsHash(hash))
	assert.False(t, IsHash("anything"))
	assert.False(t, IsHash(""))
	assert.False(t, IsHash("$parcel$1$"))
	assert.False(t, IsHash("$parcel$1$abc"))
}

func TestHashesAreSalted(t *testing.T) {
	cfg := &Config{Secret: "k"}

	first, err := Encrypt("same", cfg)
	require.NoError(t, err)

	second, err := Encrypt("same", cfg)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestValueRoundTrip(t *testing.T) {
	type point struct {
		X int `json:"x" xml:"x"`
		Y int `json:"y" xml:"y"`
	}

	cfg := &Config{Secret: "geo", Passes: 2}

	for _, f := range []envelope.Format{envelope.JSON, envelope.XML} {
		hash, err := EncryptValue(f, point{X: 3, Y: 4}, cfg)
		require.NoError(t, err)
		assert.True(t, IsHash(hash))

		var out point
		require.NoError(t, DecryptValue(f, hash, cfg, &out))
		assert.Equal(t, point{X: 3, Y: 4}, out)
	}
}
