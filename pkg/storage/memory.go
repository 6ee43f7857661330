package storage

import (
	"context"
	"maps"
	"sync"
)

// Memory is an in-memory backend intended for tests and examples. It records
// the number of physical writes so callers can assert write amplification.
type Memory struct {
	mu     sync.RWMutex
	files  map[string]string
	writes int
}

// NewMemory constructs an empty Memory backend.
func NewMemory() *Memory {
	return &Memory{files: map[string]string{}}
}

// Read returns the blob stored under name.
func (m *Memory) Read(_ context.Context, name string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	content, ok := m.files[name]
	return content, ok, nil
}

// Write replaces the blob stored under name and increments WriteCount.
func (m *Memory) Write(_ context.Context, name, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.files == nil {
		m.files = map[string]string{}
	}
	m.files[name] = content
	m.writes++
	return nil
}

// Put seeds a blob without counting it as a write.
func (m *Memory) Put(name, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.files == nil {
		m.files = map[string]string{}
	}
	m.files[name] = content
}

// WriteCount reports how many times Write was called.
func (m *Memory) WriteCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

// Files returns a copy of every stored blob keyed by name.
func (m *Memory) Files() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.files)
}
