package cache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rzpsarthak13/modstore/internal/core"
	"github.com/rzpsarthak13/modstore/internal/registry"
)

// RedisKVStore implements the core.KVStore interface using Redis. It lets
// several servers share one cache.
type RedisKVStore struct {
	client redis.UniversalClient
	closed bool
}

// NewRedisKVStore connects to Redis and verifies the connection with PING.
func NewRedisKVStore(ctx context.Context, cfg registry.RedisConfig) (*RedisKVStore, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("at least one endpoint is required")
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        cfg.Endpoints,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Printf("[REDIS] Connected to %v", cfg.Endpoints)
	return NewRedisKVStoreFromClient(client), nil
}

// NewRedisKVStoreFromClient wraps an existing client.
func NewRedisKVStoreFromClient(client redis.UniversalClient) *RedisKVStore {
	return &RedisKVStore{client: client}
}

// Get retrieves a value by key from the store.
func (r *RedisKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if r.closed {
		return nil, ErrStoreClosed
	}

	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrKeyNotFound
	}
	if err != nil {
		log.Printf("[REDIS] ERROR: Failed to get key %s: %v", key, err)
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return val, nil
}

// Set stores a key-value pair with an optional TTL.
func (r *RedisKVStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if r.closed {
		return ErrStoreClosed
	}

	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		log.Printf("[REDIS] ERROR: Failed to set key %s: %v", key, err)
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// Delete removes a key from the store.
func (r *RedisKVStore) Delete(ctx context.Context, key string) error {
	if r.closed {
		return ErrStoreClosed
	}

	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// Exists checks if a key exists in the store.
func (r *RedisKVStore) Exists(ctx context.Context, key string) (bool, error) {
	if r.closed {
		return false, ErrStoreClosed
	}

	count, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check existence of key %s: %w", key, err)
	}
	return count > 0, nil
}

// Close closes the connection to the KV store.
func (r *RedisKVStore) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.client.Close()
}
