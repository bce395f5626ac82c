package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rzpsarthak13/modstore/internal/core"
)

// ErrStoreClosed is returned by a store after Close.
var ErrStoreClosed = errors.New("KV store is closed")

type memoryItem struct {
	value   []byte
	expires time.Time
}

// MemoryKVStore implements core.KVStore in process memory. Expired keys are
// dropped lazily on access.
type MemoryKVStore struct {
	mu     sync.RWMutex
	items  map[string]memoryItem
	closed bool
	now    func() time.Time
}

// NewMemoryKVStore creates an empty in-memory store.
func NewMemoryKVStore() *MemoryKVStore {
	return &MemoryKVStore{
		items: make(map[string]memoryItem),
		now:   time.Now,
	}
}

// Get retrieves a value by key from the store.
func (m *MemoryKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return nil, ErrStoreClosed
	}
	item, ok := m.items[key]
	m.mu.RUnlock()

	if !ok {
		return nil, core.ErrKeyNotFound
	}
	if m.expired(item) {
		m.mu.Lock()
		if current, ok := m.items[key]; ok && m.expired(current) {
			delete(m.items, key)
		}
		m.mu.Unlock()
		return nil, core.ErrKeyNotFound
	}

	out := make([]byte, len(item.value))
	copy(out, item.value)
	return out, nil
}

// Set stores a key-value pair. A zero ttl never expires.
func (m *MemoryKVStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}

	item := memoryItem{value: make([]byte, len(value))}
	copy(item.value, value)
	if ttl > 0 {
		item.expires = m.now().Add(ttl)
	}
	m.items[key] = item
	return nil
}

// Delete removes a key from the store.
func (m *MemoryKVStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	delete(m.items, key)
	return nil
}

// Exists checks if a live key exists in the store.
func (m *MemoryKVStore) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return false, ErrStoreClosed
	}
	item, ok := m.items[key]
	return ok && !m.expired(item), nil
}

// Len returns the number of stored keys, expired ones included.
func (m *MemoryKVStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Close drops every key.
func (m *MemoryKVStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.items = nil
	return nil
}

func (m *MemoryKVStore) expired(item memoryItem) bool {
	return !item.expires.IsZero() && !m.now().Before(item.expires)
}
