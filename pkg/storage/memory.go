// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package storage

import (
	"context"
	"sync"

	"github.com/GwynCerbin/go_parcel/pkg/broker"
)

var _ broker.ObjectStore = (*Memory)(nil)

// Memory is an in-process object store. It serves tests and single-process
// setups where offloaded documents do not need to survive a restart.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemory returns an empty in-memory object store.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte)}
}

// Put stores a copy of data under key, overwriting any previous object.
func (m *Memory) Put(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := make([]byte, len(data))
	copy(cp, data)

	m.objects[key] = cp

	return nil
}

// Get returns a copy of the object under key or NotFoundError.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.objects[key]
	if !ok {
		return nil, NotFoundError{Key: key}
	}

	cp := make([]byte, len(data))
	copy(cp, data)

	return cp, nil
}

// Len reports the number of stored objects.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.objects)
}
