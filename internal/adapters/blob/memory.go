package blob

import (
	"context"
	"sync"
)

// MemoryStore keeps uploads in memory for local mode and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemory() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (m *MemoryStore) UploadImage(ctx context.Context, name string, mimeType string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := make([]byte, len(data))
	copy(copied, data)
	m.objects[name] = copied

	return "memory://" + name, nil
}

// Get returns a stored object, for tests.
func (m *MemoryStore) Get(name string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[name]
	return data, ok
}
