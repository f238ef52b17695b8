// Package storage defines the key-value contract used to persist client-side
// state, together with the no-op and in-memory variants.
//
// Durable variants live in subpackages (file, redis). A variant is chosen
// once, when the owning component is constructed.
package storage

import (
	"context"
	"maps"
	"slices"
	"sync"
)

// Storage is a key-value store scoped per key. Get returns (nil, nil) for
// keys that are not present. Set and Remove are idempotent.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

type noop struct{}

// Noop returns a Storage that keeps nothing: Get always reports the key as
// absent and Set/Remove succeed without effect.
func Noop() Storage { return noop{} }

func (noop) Get(context.Context, string) ([]byte, error) { return nil, nil }
func (noop) Set(context.Context, string, []byte) error   { return nil }
func (noop) Remove(context.Context, string) error        { return nil }

var (
	_ Storage = noop{}
	_ Storage = (*Memory)(nil)
)

// Memory is a process-local Storage.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// Get returns a copy of the stored value.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	return slices.Clone(v), nil
}

// Set stores a copy of value.
func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = slices.Clone(value)
	return nil
}

// Remove deletes key.
func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Keys returns the stored keys in sorted order.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.data))
}
