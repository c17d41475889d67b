// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package envelope

import (
	"time"

	"github.com/GwynCerbin/go_parcel/pkg/reject"
)

// Stored is the document persisted in the object store for an offloaded
// message. It carries the fields of Message[string] where Payload is the
// object key the document itself lives under, preserves the original user
// payload in Envelope, and records the terminal consumption outcome.
// Acknowledged and Rejected are mutually exclusive; exactly one is set once
// consumption completes.
type Stored[T any] struct {
	Message[string]

	// Envelope is the original user payload.
	Envelope T `json:"envelope" xml:"envelope"`
	// Acknowledged is set when the delivery was processed successfully.
	Acknowledged *time.Time `json:"acknowledged,omitempty" xml:"acknowledged,omitempty"`
	// Reason explains the rejection when Rejected is set.
	Reason *reject.Reason `json:"rejectedReason,omitempty" xml:"rejectedReason,omitempty"`
}

// NewStored builds the document for an offloaded message: identity and
// timestamps are taken from the message, Payload becomes the object key and
// the user payload moves into Envelope.
func NewStored[T any](m *Message[T], key string) *Stored[T] {
	return &Stored[T]{
		Message: Message[string]{
			ID:        m.ID,
			Created:   m.Created,
			Published: m.Published,
			Payload:   key,
		},
		Envelope: m.Payload,
	}
}

// Acknowledge marks the document as successfully consumed at the given time.
func (s *Stored[T]) Acknowledge(at time.Time) {
	s.Acknowledged = &at
	s.Consumed = &at
}

// MarkRejected marks the document as rejected at the given time with the
// supplied reason.
func (s *Stored[T]) MarkRejected(at time.Time, reason *reject.Reason) {
	s.Rejected = &at
	s.Reason = reason
}
