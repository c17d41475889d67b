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
	"github.com/GwynCerbin/go_parcel/pkg/reject"
	"github.com/GwynCerbin/go_parcel/pkg/storage"
)

// Handler processes one reconstituted message. A nil return acknowledges
// the delivery; an error rejects it without requeue and, for offloaded
// messages, records the failure on the stored document.
type Handler[T any] func(ctx context.Context, msg *envelope.Message[T]) error

// Subscribe consumes the call's endpoint queue until the context is
// canceled or the transport fails. Each delivery runs the full pipeline:
// decode, decrypt and resolve the offloaded document when configured,
// dispatch to the handler, then acknowledge or reject at the broker and in
// the object store. Pipeline failures become reject decisions and are never
// re-raised to the caller; only transport breakdown and cancellation end
// the subscription.
func Subscribe[T any](ctx context.Context, c *Call, handler Handler[T]) error {
	eff, err := c.resolve()
	if err != nil {
		return err
	}

	t, err := c.svc.connect(eff.binding)
	if err != nil {
		return err
	}

	cons, err := t.Consumer(eff.ep)
	if err != nil {
		return fmt.Errorf("bind consumer to %s: %w", eff.ep.Endpoint, err)
	}

	defer func() {
		if err := cons.Close(); err != nil {
			eff.logger.Warn("close consumer", zap.Error(err))
		}
	}()

	for {
		d, err := cons.Consume(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			return err
		}

		handleDelivery(ctx, eff, d, handler)
	}
}

// handleDelivery runs the per-delivery state machine:
//
//	Received -> Decoded -> Resolved -> Dispatching -> Acknowledged | Rejected
//
// Cancellation observed at entry returns without any broker decision so the
// broker redelivers on its own terms.
func handleDelivery[T any](ctx context.Context, eff *effective, d broker.Delivery, handler Handler[T]) {
	if ctx.Err() != nil {
		return
	}

	metrics.ConsumeTotal.WithLabelValues(eff.ep.Name).Inc()

	msg, key, err := decode[T](ctx, eff, d.Body())
	if err != nil {
		eff.logger.Warn("delivery rejected",
			zap.String("stage", "decode"),
			zap.Error(err),
		)
		rejectDelivery[T](ctx, eff, d, key, reject.FromError(err))

		return
	}

	now := time.Now().UTC()
	msg.Consumed = &now

	if err := dispatch(ctx, handler, msg); err != nil {
		eff.logger.Warn("delivery rejected",
			zap.String("stage", "dispatch"),
			zap.String("id", msg.ID.String()),
			zap.Error(err),
		)
		rejectDelivery[T](ctx, eff, d, key, reject.FromError(err))

		return
	}

	// Broker decision first; the store write-back rides behind it and can
	// only be logged if it fails.
	if err := d.Ack(); err != nil {
		eff.logger.Warn("broker ack failed", zap.String("id", msg.ID.String()), zap.Error(err))

		return
	}

	metrics.AckTotal.WithLabelValues(eff.ep.Name).Inc()

	if key != "" {
		if err := ackStored[T](ctx, eff, key, time.Now().UTC()); err != nil {
			eff.logger.Warn("stored message ack bookkeeping failed",
				zap.String("key", key),
				zap.Error(err),
			)
		}
	}

	eff.logger.Info("message consumed", zap.String("id", msg.ID.String()))
}

// dispatch invokes the handler, converting a panic into a handler failure.
func dispatch[T any](ctx context.Context, handler Handler[T], msg *envelope.Message[T]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	return handler(ctx, msg)
}

// decode reconstitutes the original payload from the wire bytes, returning
// the message handed to the handler and, for offloaded deliveries, the
// recovered object key. The key is returned even when a later stage fails
// so the rejection can reach the stored document.
func decode[T any](ctx context.Context, eff *effective, body []byte) (*envelope.Message[T], string, error) {
	f := eff.ep.format()

	if eff.store == nil && eff.encryption == nil {
		var msg envelope.Message[T]
		if err := envelope.Unmarshal(f, body, &msg); err != nil {
			return nil, "", err
		}

		return &msg, "", nil
	}

	// Every other variant travels as Message[string].
	var wire envelope.Message[string]
	if err := envelope.Unmarshal(f, body, &wire); err != nil {
		return nil, "", err
	}

	if eff.store == nil {
		var payload T
		if err := crypt.DecryptValue(f, wire.Payload, eff.encryption, &payload); err != nil {
			return nil, "", err
		}

		return inline(&wire, payload, ""), "", nil
	}

	key := wire.Payload

	if eff.encryption != nil {
		plain, err := crypt.Decrypt(wire.Payload, eff.encryption)
		if err != nil {
			return nil, "", err
		}

		key = plain
	}

	payload, err := resolve[T](ctx, eff, key)
	if err != nil {
		return nil, key, err
	}

	return inline(&wire, payload, key), key, nil
}

// resolve fetches the stored document and recovers the user payload,
// decrypting the envelope field when transport encryption is on.
func resolve[T any](ctx context.Context, eff *effective, key string) (T, error) {
	var payload T

	f := eff.ep.format()

	if eff.encryption != nil {
		doc, err := storage.GetDocument[string](ctx, eff.store.Objects, f, eff.atRest(), key)
		if err != nil {
			return payload, err
		}

		if err := crypt.DecryptValue(f, doc.Envelope, eff.encryption, &payload); err != nil {
			return payload, err
		}

		return payload, nil
	}

	doc, err := storage.GetDocument[T](ctx, eff.store.Objects, f, eff.atRest(), key)
	if err != nil {
		return payload, err
	}

	return doc.Envelope, nil
}

// inline rebuilds the user-facing message from the wire frame.
func inline[T any](wire *envelope.Message[string], payload T, key string) *envelope.Message[T] {
	return &envelope.Message[T]{
		ID:        wire.ID,
		Created:   wire.Created,
		Published: wire.Published,
		Payload:   payload,
		StoredKey: key,
	}
}

// rejectDelivery rejects at the broker and, when an object key was
// recovered, marks the stored document rejected with the reason. Failures
// past the broker decision are logged only.
func rejectDelivery[T any](ctx context.Context, eff *effective, d broker.Delivery, key string, reason *reject.Reason) {
	if err := d.Reject(); err != nil {
		eff.logger.Warn("broker reject failed", zap.Error(err))

		return
	}

	metrics.RejectTotal.WithLabelValues(eff.ep.Name).Inc()

	if key == "" || eff.store == nil {
		return
	}

	if err := rejectStored[T](ctx, eff, key, time.Now().UTC(), reason); err != nil {
		eff.logger.Warn("stored message reject bookkeeping failed",
			zap.String("key", key),
			zap.Error(err),
		)
	}
}

// ackStored runs the acknowledge read-modify-write on the stored document.
// The envelope field type depends on whether transport encryption was on
// when the document was written.
func ackStored[T any](ctx context.Context, eff *effective, key string, at time.Time) error {
	if eff.encryption != nil {
		return bookkeep(ctx, eff, key, func(doc *envelope.Stored[string]) { doc.Acknowledge(at) })
	}

	return bookkeep(ctx, eff, key, func(doc *envelope.Stored[T]) { doc.Acknowledge(at) })
}

// rejectStored runs the reject read-modify-write on the stored document.
func rejectStored[T any](ctx context.Context, eff *effective, key string, at time.Time, reason *reject.Reason) error {
	if eff.encryption != nil {
		return bookkeep(ctx, eff, key, func(doc *envelope.Stored[string]) { doc.MarkRejected(at, reason) })
	}

	return bookkeep(ctx, eff, key, func(doc *envelope.Stored[T]) { doc.MarkRejected(at, reason) })
}

// bookkeep fetches the document, applies the mutation and writes it back
// under the same key.
func bookkeep[E any](ctx context.Context, eff *effective, key string, mark func(*envelope.Stored[E])) error {
	f := eff.ep.format()

	doc, err := storage.GetDocument[E](ctx, eff.store.Objects, f, eff.atRest(), key)
	if err != nil {
		return err
	}

	mark(doc)

	return storage.PutDocument(ctx, eff.store.Objects, f, eff.atRest(), key, doc)
}
