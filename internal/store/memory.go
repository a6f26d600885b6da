package store

import (
	"context"
	"sync"
)

// MemoryBackend keeps the identity for the lifetime of the process only.
type MemoryBackend struct {
	mu    sync.RWMutex
	value string
	saves int
}

func NewMemoryBackend(initial string) *MemoryBackend {
	return &MemoryBackend{value: initial}
}

func (m *MemoryBackend) Load(context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.value, nil
}

func (m *MemoryBackend) Save(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = sessionID
	m.saves++
	return nil
}

// Saves reports how many times Save was called.
func (m *MemoryBackend) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}
