package core

import (
	"context"
	"fmt"
	"strings"
)

// DriverType identifies a storage backend. It is fixed when a driver is
// constructed and never changes for the lifetime of that instance.
type DriverType string

const (
	// DriverRelationalNetworked is a client/server SQL engine (MySQL).
	DriverRelationalNetworked DriverType = "relational_networked"

	// DriverRelationalEmbedded is an in-process SQL engine (SQLite).
	DriverRelationalEmbedded DriverType = "relational_embedded"

	// DriverDocument is a schemaless document store (DynamoDB).
	DriverDocument DriverType = "document"
)

// DriverTypes lists every supported driver type.
var DriverTypes = []DriverType{DriverRelationalNetworked, DriverRelationalEmbedded, DriverDocument}

// ParseDriverType accepts either the canonical name or the backend alias
// ("mysql", "sqlite", "dynamodb").
func ParseDriverType(s string) (DriverType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mysql", string(DriverRelationalNetworked):
		return DriverRelationalNetworked, nil
	case "sqlite", "sqlite3", string(DriverRelationalEmbedded):
		return DriverRelationalEmbedded, nil
	case "dynamodb", "dynamo", string(DriverDocument):
		return DriverDocument, nil
	default:
		return "", fmt.Errorf("unknown driver type %q", s)
	}
}

// Relational reports whether the driver type speaks SQL.
func (t DriverType) Relational() bool {
	return t == DriverRelationalNetworked || t == DriverRelationalEmbedded
}

// IndexSpec describes a secondary index on a single field.
type IndexSpec struct {
	Collection string
	Field      string
	Unique     bool
}

// DataStore is the contract every storage backend implements.
//
// A DataStore owns exactly one session. It is not safe for concurrent use;
// callers that need concurrency must serialise access or use one instance
// per worker. Every call blocks until the backend answers; deadlines are the
// caller's responsibility through ctx.
type DataStore interface {
	// Type returns the backend this driver talks to.
	Type() DriverType

	// Connect opens the session. The endpoint format is backend specific.
	// On failure the session stays unset and the error is returned.
	Connect(ctx context.Context, endpoint, username, password string) error

	// Disconnect closes the session. Safe to call repeatedly or before Connect.
	Disconnect() error

	// IsConnected reports whether a session is open.
	IsConnected() bool

	// Insert appends one record as a single atomic operation.
	Insert(ctx context.Context, collection string, record Record) error

	// Update overwrites the provided fields of the row or document whose
	// keyField equals keyValue. Zero matches is a successful no-op.
	Update(ctx context.Context, collection, keyField string, keyValue interface{}, record Record) error

	// Delete removes at most one row or document whose keyField equals
	// keyValue. Zero matches is a successful no-op.
	Delete(ctx context.Context, collection, keyField string, keyValue interface{}) error

	// Select returns the records matching a backend-native filter.
	Select(ctx context.Context, collection string, filter Filter) ([]Record, error)

	// SelectAll returns every record in the collection in backend order.
	SelectAll(ctx context.Context, collection string) ([]Record, error)

	// ExecuteQuery runs a backend-native statement and returns its rows.
	ExecuteQuery(ctx context.Context, raw string, args ...interface{}) ([]Record, error)

	// Query runs a backend-native statement and discards any result.
	Query(ctx context.Context, raw string, args ...interface{}) error

	// CreateIndex creates a secondary index. Creating an identical index again
	// is a no-op; conflicting uniqueness fails with ErrIndexConflict.
	CreateIndex(ctx context.Context, spec IndexSpec) error

	// StartTransaction turns autocommit off. Nested transactions are rejected
	// and backends without transactions fail with ErrUnsupported.
	StartTransaction(ctx context.Context) error

	// CommitTransaction makes the transaction visible and restores autocommit.
	CommitTransaction(ctx context.Context) error

	// RollbackTransaction discards the transaction and restores autocommit.
	RollbackTransaction(ctx context.Context) error

	// InTransaction reports whether a transaction is active.
	InTransaction() bool
}
