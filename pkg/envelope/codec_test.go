// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package envelope

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type order struct {
	Number int    `json:"number" xml:"number"`
	Note   string `json:"note" xml:"note"`
}

func TestNewAssignsIdentity(t *testing.T) {
	m := New(order{Number: 7})

	assert.NotEqual(t, uuid.Nil, m.ID)
	assert.False(t, m.Created.IsZero())
	assert.Equal(t, time.UTC, m.Created.Location())
	assert.Nil(t, m.Published)
	assert.Nil(t, m.Consumed)
	assert.Nil(t, m.Rejected)
}

func TestFormatProperties(t *testing.T) {
	assert.Equal(t, "application/json", JSON.ContentType())
	assert.Equal(t, "application/xml", XML.ContentType())
	assert.Equal(t, ".json", JSON.Ext())
	assert.Equal(t, ".xml", XML.Ext())
	assert.True(t, JSON.Valid())
	assert.True(t, XML.Valid())
	assert.False(t, Format("yaml").Valid())
}

func TestMarshalUnknownFormat(t *testing.T) {
	_, err := Marshal(Format("yaml"), New(order{}))

	require.ErrorIs(t, err, UnknownFormatError{Format: "yaml"})
}

func TestRoundTripBothFormats(t *testing.T) {
	for _, f := range []Format{JSON, XML} {
		t.Run(string(f), func(t *testing.T) {
			in := New(order{Number: 42, Note: "rush"})

			data, err := Marshal(f, in)
			require.NoError(t, err)

			var out Message[order]
			require.NoError(t, Unmarshal(f, data, &out))

			assert.Equal(t, in.ID, out.ID)
			assert.Equal(t, in.Payload, out.Payload)
			assert.True(t, in.Created.Equal(out.Created))
		})
	}
}

func TestReferenceKeepsIdentity(t *testing.T) {
	m := New(order{Number: 1})

	ref := Reference(m, "bucket/e1/2024/03/04/"+m.ID.String())

	assert.Equal(t, m.ID, ref.ID)
	assert.True(t, m.Created.Equal(ref.Created))
	assert.Equal(t, "bucket/e1/2024/03/04/"+m.ID.String(), ref.Payload)
}

func TestReferenceFrameCarriesNoEnvelope(t *testing.T) {
	m := New(order{Number: 9})

	data, err := Marshal(JSON, Reference(m, "k"))
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))

	assert.NotContains(t, raw, "envelope")
	assert.JSONEq(t, `"k"`, string(raw["payload"]))
}

func TestStoredDocumentShape(t *testing.T) {
	m := New(order{Number: 3, Note: "keep"})
	doc := NewStored(m, "p/e/2024/01/02/"+m.ID.String())

	assert.Equal(t, m.ID, doc.ID)
	assert.Equal(t, "p/e/2024/01/02/"+m.ID.String(), doc.Payload)
	assert.Equal(t, m.Payload, doc.Envelope)
	assert.Nil(t, doc.Acknowledged)
	assert.Nil(t, doc.Rejected)

	data, err := Marshal(JSON, doc)
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))

	assert.Contains(t, raw, "envelope")
	assert.JSONEq(t, `"p/e/2024/01/02/`+m.ID.String()+`"`, string(raw["payload"]))
}

func TestStoredTerminalStates(t *testing.T) {
	m := New(order{})

	at := time.Now().UTC()

	acked := NewStored(m, "k")
	acked.Acknowledge(at)
	assert.NotNil(t, acked.Acknowledged)
	assert.NotNil(t, acked.Consumed)
	assert.Nil(t, acked.Rejected)

	rejected := NewStored(m, "k")
	rejected.MarkRejected(at, nil)
	assert.NotNil(t, rejected.Rejected)
	assert.Nil(t, rejected.Acknowledged)
}

func TestStoredRoundTripXML(t *testing.T) {
	m := New(order{Number: 11, Note: "xml"})
	doc := NewStored(m, "prefix/q/2024/05/06/"+m.ID.String())

	data, err := Marshal(XML, doc)
	require.NoError(t, err)

	var out Stored[order]
	require.NoError(t, Unmarshal(XML, data, &out))

	assert.Equal(t, doc.ID, out.ID)
	assert.Equal(t, doc.Payload, out.Payload)
	assert.Equal(t, doc.Envelope, out.Envelope)
}
