// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package envelope

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ObjectKey derives the storage key for an offloaded message:
// {prefix}/{endpoint}/{YYYY}/{MM}/{DD}/{id}, with consecutive slashes
// collapsed. The derivation is deterministic for a given endpoint, id and
// creation date. The format extension is appended by the storage layer.
func ObjectKey(prefix, endpoint string, id uuid.UUID, created time.Time) string {
	var b strings.Builder

	b.WriteString(prefix)
	b.WriteByte('/')
	b.WriteString(endpoint)
	b.WriteByte('/')
	b.WriteString(created.UTC().Format("2006/01/02"))
	b.WriteByte('/')
	b.WriteString(id.String())

	return collapseSlashes(b.String())
}

// collapseSlashes reduces every run of consecutive slashes to a single one.
func collapseSlashes(s string) string {
	var (
		b    strings.Builder
		prev byte
	)

	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		if s[i] == '/' && prev == '/' {
			continue
		}

		b.WriteByte(s[i])
		prev = s[i]
	}

	return b.String()
}
