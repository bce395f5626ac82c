package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rzpsarthak13/modstore/internal/core"
	"github.com/rzpsarthak13/modstore/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openRedis(t *testing.T) (*RedisKVStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store := NewRedisKVStoreFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func TestRedisKVStoreExpiry(t *testing.T) {
	ctx := context.Background()
	store, mr := openRedis(t)

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))
	assert.Equal(t, time.Minute, mr.TTL("k"))

	mr.FastForward(time.Minute)
	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, core.ErrKeyNotFound)

	// A negative TTL stores without expiry.
	require.NoError(t, store.Set(ctx, "forever", []byte("v"), -time.Second))
	assert.Zero(t, mr.TTL("forever"))
}

func TestRedisKVStoreClosed(t *testing.T) {
	ctx := context.Background()
	store, _ := openRedis(t)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrStoreClosed)
	assert.ErrorIs(t, store.Set(ctx, "k", []byte("v"), 0), ErrStoreClosed)
	assert.ErrorIs(t, store.Delete(ctx, "k"), ErrStoreClosed)
	_, err = store.Exists(ctx, "k")
	assert.ErrorIs(t, err, ErrStoreClosed)
}

func TestNewRedisKVStore(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	store, err := NewRedisKVStore(ctx, registry.RedisConfig{Endpoints: []string{mr.Addr()}, DialTimeout: time.Second})
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Set(ctx, "k", []byte("v"), 0))
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	_, err = NewRedisKVStore(ctx, registry.RedisConfig{})
	assert.Error(t, err)
}
