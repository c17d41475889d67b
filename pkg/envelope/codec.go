// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

// Package envelope builds and parses the wire shapes a message travels in:
// inline or reference, plain or encrypted, serialized as JSON or XML. The
// codec is the single dispatch point for the variant family; which shape a
// frame takes is decided by endpoint configuration, not by type tags on the
// wire.
package envelope

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
)

// Format selects the serialization applied to wire frames and stored
// documents of an endpoint.
type Format string

const (
	// JSON is the default endpoint format.
	JSON Format = "json"
	// XML serializes the same logical envelope fields as JSON.
	XML Format = "xml"
)

// UnknownFormatError is returned when a format other than json or xml is
// used for encoding or decoding.
type UnknownFormatError struct {
	Format Format
}

// Error implements the error interface for UnknownFormatError.
func (e UnknownFormatError) Error() string {
	return fmt.Sprintf("unknown serialization format: %q", string(e.Format))
}

// Valid reports whether the format is one the codec can serve.
func (f Format) Valid() bool {
	return f == JSON || f == XML
}

// ContentType returns the MIME type announced on broker frames.
func (f Format) ContentType() string {
	return "application/" + string(f)
}

// Ext returns the object-key suffix for stored documents.
func (f Format) Ext() string {
	return "." + string(f)
}

// Marshal serializes v with the given format.
func Marshal(f Format, v any) ([]byte, error) {
	switch f {
	case JSON:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode json: %w", err)
		}

		return data, nil
	case XML:
		data, err := xml.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode xml: %w", err)
		}

		return data, nil
	default:
		return nil, UnknownFormatError{Format: f}
	}
}

// Unmarshal deserializes data into v with the given format.
func Unmarshal(f Format, data []byte, v any) error {
	switch f {
	case JSON:
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("decode json: %w", err)
		}

		return nil
	case XML:
		if err := xml.Unmarshal(data, v); err != nil {
			return fmt.Errorf("decode xml: %w", err)
		}

		return nil
	default:
		return UnknownFormatError{Format: f}
	}
}
