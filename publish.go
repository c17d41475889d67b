// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package parcel

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/GwynCerbin/go_parcel/pkg/broker"
	"github.com/GwynCerbin/go_parcel/pkg/crypt"
	"github.com/GwynCerbin/go_parcel/pkg/envelope"
	"github.com/GwynCerbin/go_parcel/pkg/metrics"
	"github.com/GwynCerbin/go_parcel/pkg/storage"
)

// Publish sends a payload through the call's endpoint and returns the
// published message for caller inspection. The pipeline runs in a fixed
// order: construct, offload to the object store when configured, encrypt
// when configured, serialize, publish. Offload failure surfaces before any
// broker frame is emitted; a broker failure after a successful offload
// leaves the stored object in place and reports its key in the error.
func Publish[T any](ctx context.Context, c *Call, payload T) (*envelope.Message[T], error) {
	eff, err := c.resolve()
	if err != nil {
		return nil, err
	}

	var (
		f   = eff.ep.format()
		msg = envelope.New(payload)
	)

	if c.preEncrypted != "" && eff.encryption == nil {
		return nil, crypt.MissingSecretError{}
	}

	key, err := offload(ctx, c, eff, msg)
	if err != nil {
		metrics.PublishErrorTotal.WithLabelValues(eff.ep.Name).Inc()

		return nil, err
	}

	wire, err := wireFrame(c, eff, msg, key)
	if err != nil {
		metrics.PublishErrorTotal.WithLabelValues(eff.ep.Name).Inc()

		return nil, err
	}

	pub, err := c.svc.publisherFor(eff.binding)
	if err != nil {
		return nil, err
	}

	if err := pub.Publish(ctx, broker.Publishing{
		ContentType: f.ContentType(),
		MessageID:   msg.ID.String(),
		Body:        wire,
	}); err != nil {
		metrics.PublishErrorTotal.WithLabelValues(eff.ep.Name).Inc()

		if key != "" {
			return nil, fmt.Errorf("publish message %s (stored object %s left in place): %w", msg.ID, key, err)
		}

		return nil, fmt.Errorf("publish message %s: %w", msg.ID, err)
	}

	now := time.Now().UTC()
	msg.Published = &now

	metrics.PublishTotal.WithLabelValues(eff.ep.Name).Inc()
	eff.logger.Info("message published",
		zap.String("id", msg.ID.String()),
		zap.Bool("offloaded", key != ""),
		zap.Bool("encrypted", eff.encryption != nil),
	)

	return msg, nil
}

// offload persists the stored document when the call is object-store
// backed, returning the derived key. The broker-bound payload is reduced to
// that key by wireFrame. With transport encryption on, the document's
// envelope field is the independently encrypted user payload.
func offload[T any](ctx context.Context, c *Call, eff *effective, msg *envelope.Message[T]) (string, error) {
	if eff.store == nil {
		return "", nil
	}

	key := envelope.ObjectKey(eff.store.BucketPrefix, eff.ep.Endpoint, msg.ID, msg.Created)

	var err error

	if eff.encryption != nil {
		var hash string

		hash, err = envelopeHash(c, eff, msg.Payload)
		if err != nil {
			return "", err
		}

		ref := envelope.Reference(msg, hash)
		err = storage.PutDocument(ctx, eff.store.Objects, eff.ep.format(), eff.atRest(), key, envelope.NewStored(ref, key))
	} else {
		err = storage.PutDocument(ctx, eff.store.Objects, eff.ep.format(), eff.atRest(), key, envelope.NewStored(msg, key))
	}

	if err != nil {
		return "", fmt.Errorf("offload message %s: %w", msg.ID, err)
	}

	msg.StoredKey = key
	metrics.OffloadTotal.WithLabelValues(eff.ep.Name).Inc()

	return key, nil
}

// envelopeHash produces the encrypted form of the user payload, honoring a
// pre-encrypted value supplied through the fluent surface.
func envelopeHash[T any](c *Call, eff *effective, payload T) (string, error) {
	if c.preEncrypted != "" {
		return c.preEncrypted, nil
	}

	hash, err := crypt.EncryptValue(eff.ep.format(), payload, eff.encryption)
	if err != nil {
		return "", fmt.Errorf("encrypt payload: %w", err)
	}

	return hash, nil
}

// wireFrame serializes the broker-bound variant of the message: inline
// plain, inline encrypted, reference, or encrypted reference.
func wireFrame[T any](c *Call, eff *effective, msg *envelope.Message[T], key string) ([]byte, error) {
	f := eff.ep.format()

	switch {
	case key != "" && eff.encryption != nil:
		hash, err := crypt.Encrypt(key, eff.encryption)
		if err != nil {
			return nil, fmt.Errorf("encrypt object key: %w", err)
		}

		return envelope.Marshal(f, envelope.Reference(msg, hash))
	case key != "":
		return envelope.Marshal(f, envelope.Reference(msg, key))
	case eff.encryption != nil:
		hash, err := envelopeHash(c, eff, msg.Payload)
		if err != nil {
			return nil, err
		}

		return envelope.Marshal(f, envelope.Reference(msg, hash))
	default:
		return envelope.Marshal(f, msg)
	}
}
