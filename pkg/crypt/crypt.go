// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

// Package crypt produces and consumes portable hashes: opaque,
// self-describing ciphertext strings safe to embed in serialized envelopes.
// The scheme is AES-256-GCM with a key derived from the configured secret;
// the pass count applies the cipher recursively and must match between
// encode and decode.
package crypt

import (
	"crypto/aes"
	stdcipher "crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/GwynCerbin/go_parcel/pkg/envelope"
)

// hashPrefix tags every portable hash with the scheme version. Decryption
// refuses input without it.
const hashPrefix = "$parcel$1$"

// Config describes one symmetric encryption setup. Secret is the shared
// key material; Passes is the number of recursive cipher applications,
// treated as 1 when smaller.
type Config struct {
	Secret string `env:"SECRET" yaml:"-"`
	Passes int    `env:"PASSES" yaml:"passes"`
}

// passCount normalizes the configured pass count to at least one.
func (c *Config) passCount() int {
	if c.Passes < 1 {
		return 1
	}

	return c.Passes
}

// InvalidHashError is returned when decryption input is not a portable hash
// produced by this scheme.
type InvalidHashError struct{}

// Error implements the error interface for InvalidHashError.
func (InvalidHashError) Error() string {
	return "input is not a valid portable hash"
}

// MissingSecretError is returned when an encryption config carries no secret.
type MissingSecretError struct{}

// Error implements the error interface for MissingSecretError.
func (MissingSecretError) Error() string {
	return "encryption config has no secret"
}

// IsHash reports whether s looks like a portable hash produced by Encrypt:
// correct prefix and decodable body. It backs the fluent setters that
// accept pre-encrypted values.
func IsHash(s string) bool {
	body, ok := strings.CutPrefix(s, hashPrefix)
	if !ok || body == "" {
		return false
	}

	raw, err := base64.RawURLEncoding.DecodeString(body)

	return err == nil && len(raw) > aes.BlockSize
}

// Encrypt turns plaintext into a portable hash, applying the configured
// number of passes.
func Encrypt(plain string, cfg *Config) (string, error) {
	if cfg == nil || cfg.Secret == "" {
		return "", MissingSecretError{}
	}

	gcm, err := sealer(cfg.Secret)
	if err != nil {
		return "", err
	}

	out := plain

	for i := 0; i < cfg.passCount(); i++ {
		nonce := make([]byte, gcm.NonceSize())
		if _, err := rand.Read(nonce); err != nil {
			return "", fmt.Errorf("generate nonce: %w", err)
		}

		sealed := gcm.Seal(nonce, nonce, []byte(out), nil)
		out = hashPrefix + base64.RawURLEncoding.EncodeToString(sealed)
	}

	return out, nil
}

// Decrypt unwinds a portable hash back to its plaintext, undoing the same
// number of passes Encrypt applied. It fails explicitly on input that was
// not produced by this scheme.
func Decrypt(hash string, cfg *Config) (string, error) {
	if cfg == nil || cfg.Secret == "" {
		return "", MissingSecretError{}
	}

	gcm, err := sealer(cfg.Secret)
	if err != nil {
		return "", err
	}

	out := hash

	for i := 0; i < cfg.passCount(); i++ {
		body, ok := strings.CutPrefix(out, hashPrefix)
		if !ok {
			return "", InvalidHashError{}
		}

		sealed, err := base64.RawURLEncoding.DecodeString(body)
		if err != nil || len(sealed) < gcm.NonceSize() {
			return "", InvalidHashError{}
		}

		plain, err := gcm.Open(nil, sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():], nil)
		if err != nil {
			return "", fmt.Errorf("open ciphertext: %w", err)
		}

		out = string(plain)
	}

	return out, nil
}

// EncryptValue serializes v with the given format and encrypts the result,
// yielding a portable hash suitable for a wire payload field.
func EncryptValue(f envelope.Format, v any, cfg *Config) (string, error) {
	data, err := envelope.Marshal(f, v)
	if err != nil {
		return "", err
	}

	return Encrypt(string(data), cfg)
}

// DecryptValue decrypts a portable hash and deserializes the plaintext into
// target with the given format.
func DecryptValue(f envelope.Format, hash string, cfg *Config, target any) error {
	plain, err := Decrypt(hash, cfg)
	if err != nil {
		return err
	}

	return envelope.Unmarshal(f, []byte(plain), target)
}

// sealer builds the AEAD for the secret. The key is the SHA-256 digest of
// the secret, giving AES-256.
func sealer(secret string) (stdcipher.AEAD, error) {
	key := sha256.Sum256([]byte(secret))

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}

	gcm, err := stdcipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}

	return gcm, nil
}
