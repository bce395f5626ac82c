package telemetry

import (
	"context"

	"github.com/rzpsarthak13/modstore/internal/core"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope used for store spans.
const TracerName = "github.com/rzpsarthak13/modstore/internal/telemetry"

// Attribute keys set on store spans.
const (
	AttrDriver     = attribute.Key("modstore.driver")
	AttrCollection = attribute.Key("modstore.collection")
	AttrRows       = attribute.Key("modstore.rows")
	AttrStatement  = attribute.Key("db.statement")
	AttrKeyField   = attribute.Key("modstore.key_field")
)

// TracedStore wraps a DataStore and records one span per operation.
// Raw statements are attached to their span; values and credentials are not.
type TracedStore struct {
	core.DataStore
	tracer trace.Tracer
}

// Wrap returns store traced with the tracer of provider. A nil provider
// uses the global one.
func Wrap(store core.DataStore, provider trace.TracerProvider) *TracedStore {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return &TracedStore{DataStore: store, tracer: provider.Tracer(TracerName)}
}

// Unwrap returns the traced store.
func (s *TracedStore) Unwrap() core.DataStore {
	return s.DataStore
}

func (s *TracedStore) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, AttrDriver.String(string(s.DataStore.Type())))
	return s.tracer.Start(ctx, "modstore."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

func end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *TracedStore) Connect(ctx context.Context, endpoint, username, password string) error {
	ctx, span := s.start(ctx, "Connect")
	err := s.DataStore.Connect(ctx, endpoint, username, password)
	end(span, err)
	return err
}

func (s *TracedStore) Insert(ctx context.Context, collection string, record core.Record) error {
	ctx, span := s.start(ctx, "Insert", AttrCollection.String(collection))
	err := s.DataStore.Insert(ctx, collection, record)
	end(span, err)
	return err
}

func (s *TracedStore) Update(ctx context.Context, collection, keyField string, keyValue interface{}, record core.Record) error {
	ctx, span := s.start(ctx, "Update", AttrCollection.String(collection), AttrKeyField.String(keyField))
	err := s.DataStore.Update(ctx, collection, keyField, keyValue, record)
	end(span, err)
	return err
}

func (s *TracedStore) Delete(ctx context.Context, collection, keyField string, keyValue interface{}) error {
	ctx, span := s.start(ctx, "Delete", AttrCollection.String(collection), AttrKeyField.String(keyField))
	err := s.DataStore.Delete(ctx, collection, keyField, keyValue)
	end(span, err)
	return err
}

func (s *TracedStore) Select(ctx context.Context, collection string, filter core.Filter) ([]core.Record, error) {
	ctx, span := s.start(ctx, "Select", AttrCollection.String(collection))
	records, err := s.DataStore.Select(ctx, collection, filter)
	span.SetAttributes(AttrRows.Int(len(records)))
	end(span, err)
	return records, err
}

func (s *TracedStore) SelectAll(ctx context.Context, collection string) ([]core.Record, error) {
	ctx, span := s.start(ctx, "SelectAll", AttrCollection.String(collection))
	records, err := s.DataStore.SelectAll(ctx, collection)
	span.SetAttributes(AttrRows.Int(len(records)))
	end(span, err)
	return records, err
}

func (s *TracedStore) ExecuteQuery(ctx context.Context, raw string, args ...interface{}) ([]core.Record, error) {
	ctx, span := s.start(ctx, "ExecuteQuery", AttrStatement.String(raw))
	records, err := s.DataStore.ExecuteQuery(ctx, raw, args...)
	span.SetAttributes(AttrRows.Int(len(records)))
	end(span, err)
	return records, err
}

func (s *TracedStore) Query(ctx context.Context, raw string, args ...interface{}) error {
	ctx, span := s.start(ctx, "Query", AttrStatement.String(raw))
	err := s.DataStore.Query(ctx, raw, args...)
	end(span, err)
	return err
}

func (s *TracedStore) CreateIndex(ctx context.Context, spec core.IndexSpec) error {
	ctx, span := s.start(ctx, "CreateIndex",
		AttrCollection.String(spec.Collection),
		attribute.String("modstore.index_field", spec.Field),
		attribute.Bool("modstore.index_unique", spec.Unique),
	)
	err := s.DataStore.CreateIndex(ctx, spec)
	end(span, err)
	return err
}

func (s *TracedStore) StartTransaction(ctx context.Context) error {
	ctx, span := s.start(ctx, "StartTransaction")
	err := s.DataStore.StartTransaction(ctx)
	end(span, err)
	return err
}

func (s *TracedStore) CommitTransaction(ctx context.Context) error {
	ctx, span := s.start(ctx, "CommitTransaction")
	err := s.DataStore.CommitTransaction(ctx)
	end(span, err)
	return err
}

func (s *TracedStore) RollbackTransaction(ctx context.Context) error {
	ctx, span := s.start(ctx, "RollbackTransaction")
	err := s.DataStore.RollbackTransaction(ctx)
	end(span, err)
	return err
}
