// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

// Package storage provides object-store backends for offloaded message
// documents and the typed document layer on top of the raw byte interface.
package storage

import "fmt"

// NotFoundError is returned when no object exists under the requested key.
type NotFoundError struct {
	Key string
}

// Error implements the error interface for NotFoundError.
func (e NotFoundError) Error() string {
	return fmt.Sprintf("object not found: %s", e.Key)
}
