package core

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned by KVStore.Get when the key is absent or expired.
var ErrKeyNotFound = errors.New("key not found")

// KVStore defines the interface for the key-value caches sitting in front
// of a DataStore.
type KVStore interface {
	// Get retrieves a value by key. Returns ErrKeyNotFound if absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a key-value pair with an optional TTL.
	// If ttl is 0, the key will not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists checks if a key exists in the store.
	Exists(ctx context.Context, key string) (bool, error)

	// Close releases resources.
	Close() error
}
