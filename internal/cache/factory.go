package cache

import (
	"context"
	"fmt"

	"github.com/rzpsarthak13/modstore/internal/core"
	"github.com/rzpsarthak13/modstore/internal/registry"
)

// NewKVStore creates the KV store selected by cfg.Type. The "none" type
// yields a nil store and no error.
func NewKVStore(ctx context.Context, cfg registry.CacheConfig) (core.KVStore, error) {
	switch cfg.Type {
	case registry.CacheNone, "":
		return nil, nil
	case registry.CacheMemory:
		return NewMemoryKVStore(), nil
	case registry.CacheRedis:
		store, err := NewRedisKVStore(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return store, nil
	case registry.CacheBolt:
		store, err := NewBoltKVStore(cfg.Bolt)
		if err != nil {
			return nil, err
		}
		return store, nil
	case registry.CacheDynamo:
		store, err := NewDynamoKVStore(ctx, cfg.Dynamo)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported KV store type: %s", cfg.Type)
	}
}

// New builds a RecordCache from configuration.
func New(ctx context.Context, cfg registry.CacheConfig) (*RecordCache, error) {
	kv, err := NewKVStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s cache: %w", cfg.Type, err)
	}
	return NewRecordCache(kv, cfg.Namespace, cfg.TTL), nil
}
