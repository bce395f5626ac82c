package telemetry

import (
	"context"
	"testing"

	"github.com/rzpsarthak13/modstore/internal/core"
	"github.com/rzpsarthak13/modstore/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func tracedSQLite(t *testing.T) (*TracedStore, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { provider.Shutdown(context.Background()) })

	store := Wrap(database.NewSQLiteDriver(), provider)
	require.NoError(t, store.Connect(context.Background(), ":memory:", "", ""))
	t.Cleanup(func() { store.Disconnect() })
	return store, recorder
}

func attrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestTracedStoreRecordsSpans(t *testing.T) {
	ctx := context.Background()
	store, recorder := tracedSQLite(t)

	require.NoError(t, store.Query(ctx, "CREATE TABLE bans (uuid TEXT, reason TEXT)"))
	require.NoError(t, store.Insert(ctx, "bans", core.NewRecord("uuid", "u1", "reason", "spam")))
	rows, err := store.SelectAll(ctx, "bans")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	spans := recorder.Ended()
	require.Len(t, spans, 4)
	names := make([]string, len(spans))
	for i, s := range spans {
		names[i] = s.Name()
	}
	assert.Equal(t, []string{"modstore.Connect", "modstore.Query", "modstore.Insert", "modstore.SelectAll"}, names)

	query := attrs(spans[1])
	assert.Equal(t, "CREATE TABLE bans (uuid TEXT, reason TEXT)", query[AttrStatement].AsString())
	assert.Equal(t, string(core.DriverRelationalEmbedded), query[AttrDriver].AsString())

	selectAll := attrs(spans[3])
	assert.Equal(t, "bans", selectAll[AttrCollection].AsString())
	assert.Equal(t, int64(1), selectAll[AttrRows].AsInt64())
	assert.Equal(t, codes.Unset, spans[3].Status().Code)
}

func TestTracedStoreRecordsErrors(t *testing.T) {
	ctx := context.Background()
	store, recorder := tracedSQLite(t)

	err := store.Insert(ctx, "missing", core.NewRecord("a", 1))
	require.Error(t, err)

	spans := recorder.Ended()
	last := spans[len(spans)-1]
	assert.Equal(t, "modstore.Insert", last.Name())
	assert.Equal(t, codes.Error, last.Status().Code)
	require.NotEmpty(t, last.Events())
	assert.Equal(t, "exception", last.Events()[0].Name)
}

func TestTracedStorePassesThrough(t *testing.T) {
	ctx := context.Background()
	store, _ := tracedSQLite(t)

	assert.Equal(t, core.DriverRelationalEmbedded, store.Type())
	assert.True(t, store.IsConnected())
	assert.IsType(t, &database.SQLDriver{}, store.Unwrap())

	require.NoError(t, store.Query(ctx, "CREATE TABLE users (name TEXT)"))
	require.NoError(t, store.StartTransaction(ctx))
	assert.True(t, store.InTransaction())
	require.NoError(t, store.Insert(ctx, "users", core.NewRecord("name", "alex")))
	require.NoError(t, store.RollbackTransaction(ctx))
	assert.False(t, store.InTransaction())

	rows, err := store.Select(ctx, "users", core.Equals(store.Type(), "name", "alex"))
	require.NoError(t, err)
	assert.Empty(t, rows)

	require.NoError(t, store.CreateIndex(ctx, core.IndexSpec{Collection: "users", Field: "name", Unique: true}))
}

func TestSetupWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), "modstore-test", "")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
