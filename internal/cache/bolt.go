package cache

import (
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"time"

	"github.com/rzpsarthak13/modstore/internal/core"
	"github.com/rzpsarthak13/modstore/internal/registry"
	"go.etcd.io/bbolt"
)

// BoltKVStore implements core.KVStore on a local bbolt file so the cache
// survives restarts. Each value is prefixed with its expiry as 8 bytes of
// big-endian unix nanoseconds; zero means no expiry.
type BoltKVStore struct {
	db     *bbolt.DB
	bucket []byte
	now    func() time.Time
}

// NewBoltKVStore opens (or creates) the cache file and bucket.
func NewBoltKVStore(cfg registry.BoltConfig) (*BoltKVStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("bolt path is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bolt bucket is required")
	}

	opts := *bbolt.DefaultOptions
	opts.Timeout = cfg.Timeout
	opts.NoFreelistSync = true
	opts.FreelistType = bbolt.FreelistMapType

	db, err := bbolt.Open(cfg.Path, 0o600, &opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt cache %s: %w", cfg.Path, err)
	}

	bucket := []byte(cfg.Bucket)
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.Bucket, err)
	}

	log.Printf("[BOLT] Opened cache %s (bucket %s)", cfg.Path, cfg.Bucket)
	return &BoltKVStore{db: db, bucket: bucket, now: time.Now}, nil
}

// Get retrieves a value by key from the store.
func (b *BoltKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	var out []byte
	expired := false
	err := b.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(b.bucket).Get([]byte(key))
		if raw == nil {
			return core.ErrKeyNotFound
		}
		value, live, err := b.unwrap(raw)
		if err != nil {
			return err
		}
		if !live {
			expired = true
			return core.ErrKeyNotFound
		}
		out = make([]byte, len(value))
		copy(out, value)
		return nil
	})
	if expired {
		if delErr := b.dropExpired(key); delErr != nil {
			log.Printf("[BOLT] ERROR: Failed to drop expired key %s: %v", key, delErr)
		}
	}
	return out, err
}

// dropExpired deletes key if it is still expired. The check and the delete
// share one write transaction, so a value Set after the read in Get survives.
func (b *BoltKVStore) dropExpired(key string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(b.bucket)
		raw := bucket.Get([]byte(key))
		if raw == nil {
			return nil
		}
		if _, live, err := b.unwrap(raw); err != nil || live {
			return err
		}
		return bucket.Delete([]byte(key))
	})
}

// Set stores a key-value pair with an optional TTL.
func (b *BoltKVStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expires int64
	if ttl > 0 {
		expires = b.now().Add(ttl).UnixNano()
	}
	raw := make([]byte, 8+len(value))
	binary.BigEndian.PutUint64(raw, uint64(expires))
	copy(raw[8:], value)

	err := b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(b.bucket).Put([]byte(key), raw)
	})
	if err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// Delete removes a key from the store.
func (b *BoltKVStore) Delete(ctx context.Context, key string) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(b.bucket).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// Exists checks if a live key exists in the store.
func (b *BoltKVStore) Exists(ctx context.Context, key string) (bool, error) {
	found := false
	err := b.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(b.bucket).Get([]byte(key))
		if raw == nil {
			return nil
		}
		_, live, err := b.unwrap(raw)
		found = live
		return err
	})
	return found, err
}

// Close closes the cache file.
func (b *BoltKVStore) Close() error {
	return b.db.Close()
}

func (b *BoltKVStore) unwrap(raw []byte) ([]byte, bool, error) {
	if len(raw) < 8 {
		return nil, false, fmt.Errorf("corrupt cache value (%d bytes)", len(raw))
	}
	expires := int64(binary.BigEndian.Uint64(raw[:8]))
	if expires != 0 && b.now().UnixNano() >= expires {
		return nil, false, nil
	}
	return raw[8:], true, nil
}
