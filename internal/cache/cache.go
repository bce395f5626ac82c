package cache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/rzpsarthak13/modstore/internal/core"
)

// RecordCache is a cache-first read path in front of a DataStore. Values are
// record lists encoded with EncodeRecords. A RecordCache without a KV store
// passes every Load straight to the loader.
type RecordCache struct {
	kv       core.KVStore
	prefix   string
	stampede *StampedePreventer
	ttl      time.Duration

	mu          sync.Mutex
	generations map[string]uint64
}

// NewRecordCache creates a record cache. kv may be nil. Entries are stored
// under "namespace:collection:key", or "collection:key" without a namespace.
func NewRecordCache(kv core.KVStore, namespace string, ttl time.Duration) *RecordCache {
	return &RecordCache{
		kv:          kv,
		prefix:      namespace,
		stampede:    NewStampedePreventer(),
		ttl:         ttl,
		generations: make(map[string]uint64),
	}
}

func (rc *RecordCache) key(collection string, key interface{}) string {
	if rc.prefix == "" {
		return fmt.Sprintf("%s:%v", collection, key)
	}
	return fmt.Sprintf("%s:%s:%v", rc.prefix, collection, key)
}

// Enabled reports whether a KV store backs the cache.
func (rc *RecordCache) Enabled() bool {
	return rc.kv != nil
}

// Get returns the cached records for collection/key. The boolean is false on
// a miss.
func (rc *RecordCache) Get(ctx context.Context, collection string, key interface{}) ([]core.Record, bool, error) {
	if rc.kv == nil {
		return nil, false, nil
	}

	cacheKey := rc.key(collection, key)
	value, err := rc.kv.Get(ctx, cacheKey)
	if errors.Is(err, core.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	records, err := DecodeRecords(value)
	if err != nil {
		log.Printf("[CACHE] Dropping unreadable entry %s: %v", cacheKey, err)
		if delErr := rc.kv.Delete(ctx, cacheKey); delErr != nil {
			log.Printf("[CACHE] ERROR: Failed to delete %s: %v", cacheKey, delErr)
		}
		return nil, false, nil
	}
	return records, true, nil
}

// Put stores records under collection/key with the cache TTL.
func (rc *RecordCache) Put(ctx context.Context, collection string, key interface{}, records []core.Record) error {
	if rc.kv == nil {
		return nil
	}
	value, err := EncodeRecords(records)
	if err != nil {
		return err
	}
	return rc.kv.Set(ctx, rc.key(collection, key), value, rc.ttl)
}

// Invalidate removes the given keys of a collection. A load that started
// before the invalidation will not write its result back.
func (rc *RecordCache) Invalidate(ctx context.Context, collection string, keys ...interface{}) error {
	if rc.kv == nil {
		return nil
	}

	var errs []error
	for _, key := range keys {
		cacheKey := rc.key(collection, key)
		rc.bump(cacheKey)
		if err := rc.kv.Delete(ctx, cacheKey); err != nil {
			log.Printf("[CACHE] ERROR: Failed to invalidate %s: %v", cacheKey, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Load returns the cached records for collection/key, or runs load on a miss
// and caches its result. Concurrent misses for one key share a single load.
// Cache failures are logged and never fail the read.
func (rc *RecordCache) Load(ctx context.Context, collection string, key interface{}, load func(context.Context) ([]core.Record, error)) ([]core.Record, error) {
	if rc.kv == nil {
		return load(ctx)
	}

	records, hit, err := rc.Get(ctx, collection, key)
	if err != nil {
		log.Printf("[CACHE] ERROR: Read of %s/%v failed, using store: %v", collection, key, err)
	}
	if hit {
		return records, nil
	}

	cacheKey := rc.key(collection, key)
	return rc.stampede.Do(ctx, cacheKey, func() ([]core.Record, error) {
		gen := rc.generation(cacheKey)
		records, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if rc.generation(cacheKey) != gen {
			return records, nil
		}
		if err := rc.Put(ctx, collection, key, records); err != nil {
			log.Printf("[CACHE] ERROR: Failed to populate %s: %v", cacheKey, err)
		}
		return records, nil
	})
}

// Close closes the underlying KV store.
func (rc *RecordCache) Close() error {
	if rc.kv == nil {
		return nil
	}
	return rc.kv.Close()
}

func (rc *RecordCache) generation(cacheKey string) uint64 {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.generations[cacheKey]
}

func (rc *RecordCache) bump(cacheKey string) {
	rc.mu.Lock()
	rc.generations[cacheKey]++
	rc.mu.Unlock()
}
