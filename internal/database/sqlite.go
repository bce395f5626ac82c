package database

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rzpsarthak13/modstore/internal/core"
	_ "modernc.org/sqlite"
)

// SQLiteDialect implements Dialect for an embedded SQLite file.
//
// Endpoint format: a file path, or ":memory:" for a private in-memory
// database. Username and password are ignored.
type SQLiteDialect struct{}

// NewSQLiteDriver creates an unconnected RELATIONAL_EMBEDDED driver.
func NewSQLiteDriver() *SQLDriver {
	return NewSQLDriver(SQLiteDialect{})
}

func (SQLiteDialect) Name() string { return "SQLITE" }

func (SQLiteDialect) DriverName() string { return "sqlite" }

func (SQLiteDialect) DriverType() core.DriverType { return core.DriverRelationalEmbedded }

// DSN returns the cleaned file path.
func (SQLiteDialect) DSN(endpoint, username, password string) (string, error) {
	path := strings.TrimSpace(endpoint)
	if path == "" {
		return "", fmt.Errorf("endpoint is required")
	}
	if path == ":memory:" {
		return path, nil
	}
	return filepath.Clean(path), nil
}

// Init applies the session pragmas.
func (SQLiteDialect) Init(ctx context.Context, conn *sql.Conn) error {
	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// DeleteOne targets a single rowid since SQLite builds usually lack DELETE ... LIMIT.
func (SQLiteDialect) DeleteOne(table, keyField string) string {
	return fmt.Sprintf("DELETE FROM %s WHERE rowid IN (SELECT rowid FROM %s WHERE %s = ? LIMIT 1)", table, table, keyField)
}

// Indexes reads PRAGMA index_list and index_info.
func (SQLiteDialect) Indexes(ctx context.Context, q queryer, table string) ([]IndexInfo, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA index_list(%s)", quoteLiteral(table)))
	if err != nil {
		return nil, fmt.Errorf("failed to query indexes: %w", err)
	}

	var indexes []IndexInfo
	for rows.Next() {
		var (
			seq     int
			name    string
			unique  int
			origin  string
			partial int
		)
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan index: %w", err)
		}
		indexes = append(indexes, IndexInfo{Name: name, Unique: unique == 1})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating indexes: %w", err)
	}
	rows.Close()

	for i := range indexes {
		cols, err := sqliteIndexColumns(ctx, q, indexes[i].Name)
		if err != nil {
			return nil, err
		}
		indexes[i].Columns = cols
	}
	return indexes, nil
}

func sqliteIndexColumns(ctx context.Context, q queryer, index string) ([]string, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA index_info(%s)", quoteLiteral(index)))
	if err != nil {
		return nil, fmt.Errorf("failed to query index %s: %w", index, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var seqno, cid int
		var name sql.NullString
		if err := rows.Scan(&seqno, &cid, &name); err != nil {
			return nil, fmt.Errorf("failed to scan index column: %w", err)
		}
		cols = append(cols, name.String)
	}
	return cols, rows.Err()
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
