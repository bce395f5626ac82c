package database

import (
	"context"
	"database/sql"

	"github.com/rzpsarthak13/modstore/internal/core"
)

// queryer is the subset shared by *sql.Conn and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// IndexInfo describes an index found on a table.
type IndexInfo struct {
	Name    string
	Columns []string
	Unique  bool
}

// Dialect captures what differs between SQL engines. Statement shapes that
// are common to both engines live in statement.go.
type Dialect interface {
	// Name is the log tag and human name of the engine ("MYSQL", "SQLITE").
	Name() string

	// DriverName is the database/sql driver to open.
	DriverName() string

	// DriverType is the DataStore type this dialect implements.
	DriverType() core.DriverType

	// DSN turns a documented endpoint string plus credentials into a driver DSN.
	DSN(endpoint, username, password string) (string, error)

	// Init runs once on the session right after it is opened.
	Init(ctx context.Context, conn *sql.Conn) error

	// DeleteOne returns a statement removing at most one row where keyField = ?.
	DeleteOne(table, keyField string) string

	// Indexes lists the indexes defined on table.
	Indexes(ctx context.Context, q queryer, table string) ([]IndexInfo, error)
}

// indexName returns the name given to single-column indexes created by the driver.
func indexName(table, field string, unique bool) string {
	if unique {
		return "uidx_" + table + "_" + field
	}
	return "idx_" + table + "_" + field
}
