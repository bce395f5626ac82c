package modstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rzpsarthak13/modstore/internal/core"
	"github.com/rzpsarthak13/modstore/internal/events"
	"github.com/rzpsarthak13/modstore/internal/moderation"
	"github.com/rzpsarthak13/modstore/internal/registry"
	"github.com/rzpsarthak13/modstore/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func sqliteConfig(endpoint string) *Config {
	cfg := DefaultConfig()
	cfg.Store.Endpoint = endpoint
	return cfg
}

func TestNewClientDefaults(t *testing.T) {
	ctx := context.Background()
	c, err := NewClient(ctx, sqliteConfig(":memory:"))
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, core.DriverRelationalEmbedded, c.Store().Type())
	assert.True(t, c.Store().IsConnected())
	assert.Empty(t, c.ServerID())

	require.NoError(t, c.Start(ctx))
	assert.False(t, c.IsRunning())

	ban, err := c.Moderation().Bans().Add(ctx, moderation.Punishment{Target: "u-1", Actor: "console"})
	require.NoError(t, err)
	active, err := c.Moderation().Bans().Active(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, ban.ID, active[0].ID)
}

func TestNewClientRejectsBadConfig(t *testing.T) {
	_, err := NewClient(context.Background(), nil)
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.Store.Driver = "oracle"
	_, err = NewClient(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNewClientConnectFailure(t *testing.T) {
	cfg := sqliteConfig(filepath.Join(t.TempDir(), "missing", "dir", "db.sqlite"))
	_, err := NewClient(context.Background(), cfg)
	assert.Error(t, err)
}

func TestCloseIsIdempotent(t *testing.T) {
	c, err := NewClient(context.Background(), sqliteConfig(":memory:"))
	require.NoError(t, err)
	store := c.Store()

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.False(t, store.IsConnected())
	assert.Error(t, c.Start(context.Background()))
}

func TestClientsShareInvalidations(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shared.db")
	bus := events.NewMemoryBus(100)

	cfgA := sqliteConfig(path)
	cfgA.Events.ServerID = "a"
	cfgB := sqliteConfig(path)
	cfgB.Events.ServerID = "b"

	a, err := NewClient(ctx, cfgA, WithMemoryBus(bus))
	require.NoError(t, err)
	defer a.Close()
	b, err := NewClient(ctx, cfgB, WithMemoryBus(bus))
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.Start(ctx))
	require.NoError(t, b.Start(ctx))
	assert.True(t, b.IsRunning())

	muted, err := b.Moderation().Mutes().IsPunished(ctx, "u-1")
	require.NoError(t, err)
	require.False(t, muted)

	_, err = a.Moderation().Mutes().Add(ctx, moderation.Punishment{Target: "u-1", Actor: "mod", Reason: "spam"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		muted, err := b.Moderation().Mutes().IsPunished(ctx, "u-1")
		return err == nil && muted
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, a.Stop())
	assert.False(t, a.IsRunning())
	require.NoError(t, a.Close())

	// Closing one client leaves the shared bus usable by the other.
	_, err = b.Moderation().Mutes().Revoke(ctx, "u-1", "mod")
	require.NoError(t, err)
}

func TestClientTracing(t *testing.T) {
	ctx := context.Background()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(ctx)

	cfg := sqliteConfig(":memory:")
	cfg.Store.Tracing = true
	c, err := NewClient(ctx, cfg, WithTracerProvider(tp))
	require.NoError(t, err)
	defer c.Close()

	assert.IsType(t, &telemetry.TracedStore{}, c.Store())
	assert.NotEmpty(t, recorder.Ended())
}

func TestWithoutSchema(t *testing.T) {
	ctx := context.Background()
	c, err := NewClient(ctx, sqliteConfig(":memory:"), WithoutSchema())
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Store().SelectAll(ctx, moderation.CollectionBans)
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "modstore.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  driver: sqlite\n  endpoint: /var/lib/mod.db\ncache:\n  type: none\n"), 0o600))
	t.Setenv("MODSTORE_STORE_ENDPOINT", "/tmp/override.db")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/override.db", cfg.Store.Endpoint)
	assert.Equal(t, registry.CacheNone, cfg.Cache.Type)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
