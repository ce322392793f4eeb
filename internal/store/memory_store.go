package store

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
)

// MemoryStore keeps records in-process. Useful for tests and for
// running without any persistence configured.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]byte)}
}

// Put stores the JSON encoding of value.
func (m *MemoryStore) Put(_ context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.records[key] = data
	m.mu.Unlock()
	return nil
}

// Get decodes the record at key into out.
func (m *MemoryStore) Get(_ context.Context, key string, out any) (bool, error) {
	m.mu.RLock()
	data, ok := m.records[key]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		log.Printf("[store] corrupt record at %s treated as absent: %v", key, err)
		return false, nil
	}
	return true, nil
}

// GetRaw returns the stored JSON without decoding.
func (m *MemoryStore) GetRaw(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	data, ok := m.records[key]
	m.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	return string(data), true, nil
}

// Delete removes the record at key.
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.records, key)
	m.mu.Unlock()
	return nil
}

// ListKeys returns every key beginning with prefix.
func (m *MemoryStore) ListKeys(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.records))
	for k := range m.records {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// PutRaw injects a pre-encoded value, used by tests to simulate
// corrupt records.
func (m *MemoryStore) PutRaw(key string, data []byte) {
	m.mu.Lock()
	m.records[key] = append([]byte(nil), data...)
	m.mu.Unlock()
}
