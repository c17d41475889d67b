// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package envelope

import (
	"encoding/xml"
	"time"

	"github.com/google/uuid"
)

// Message is the in-memory representation of a user payload in transit.
// The same shape serves all wire variants: for the inline variants Payload
// holds the user value, for the reference and encrypted variants the type
// parameter is string and Payload holds an object key or a portable hash.
type Message[T any] struct {
	XMLName xml.Name `json:"-" xml:"message"`

	// ID is the unique message identifier, assigned at construction.
	ID uuid.UUID `json:"id" xml:"id"`
	// Created is the UTC construction timestamp.
	Created time.Time `json:"created" xml:"created"`
	// Published is set once the broker has accepted the frame.
	Published *time.Time `json:"published,omitempty" xml:"published,omitempty"`
	// Consumed is set by the subscriber when the delivery is dispatched.
	Consumed *time.Time `json:"consumed,omitempty" xml:"consumed,omitempty"`
	// Rejected is set when a reject decision has been taken.
	Rejected *time.Time `json:"rejected,omitempty" xml:"rejected,omitempty"`
	// Payload is the user value, an object key or a portable hash.
	Payload T `json:"payload" xml:"payload"`

	// StoredKey is the key of the offloaded document, populated on the
	// message returned by the publisher and on the message handed to a
	// subscriber's handler. It never travels over the wire.
	StoredKey string `json:"-" xml:"-"`
}

// New constructs a Message with a fresh UUID v4 identifier and the current
// UTC time as its creation timestamp.
func New[T any](payload T) *Message[T] {
	return &Message[T]{
		ID:      uuid.New(),
		Created: time.Now().UTC(),
		Payload: payload,
	}
}

// Reference reduces a message to its broker-bound form for the offloaded
// variants: same identity and timestamps, payload replaced by the object key.
func Reference[T any](m *Message[T], key string) *Message[string] {
	return &Message[string]{
		ID:        m.ID,
		Created:   m.Created,
		Published: m.Published,
		Consumed:  m.Consumed,
		Rejected:  m.Rejected,
		Payload:   key,
	}
}
