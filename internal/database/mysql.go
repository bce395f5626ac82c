package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/rzpsarthak13/modstore/internal/core"
)

// DefaultMySQLTimeout bounds the dial when the endpoint does not set one.
const DefaultMySQLTimeout = 10 * time.Second

// MySQLDialect implements Dialect for MySQL and MariaDB.
//
// Endpoint format: host:port/database[?param=value&...]. The "timeout"
// parameter is a Go duration; any other parameter is passed to the server as
// a session variable. parseTime is always enabled so DATETIME columns come
// back as time.Time.
type MySQLDialect struct{}

// NewMySQLDriver creates an unconnected RELATIONAL_NETWORKED driver.
func NewMySQLDriver() *SQLDriver {
	return NewSQLDriver(MySQLDialect{})
}

func (MySQLDialect) Name() string { return "MYSQL" }

func (MySQLDialect) DriverName() string { return "mysql" }

func (MySQLDialect) DriverType() core.DriverType { return core.DriverRelationalNetworked }

// DSN builds a go-sql-driver DSN from the endpoint.
func (MySQLDialect) DSN(endpoint, username, password string) (string, error) {
	if strings.TrimSpace(endpoint) == "" {
		return "", fmt.Errorf("endpoint is required")
	}
	u, err := url.Parse("mysql://" + endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("endpoint %q has no host", endpoint)
	}
	database := strings.TrimPrefix(u.Path, "/")
	if database == "" {
		return "", fmt.Errorf("endpoint %q has no database name", endpoint)
	}

	cfg := mysql.NewConfig()
	cfg.User = username
	cfg.Passwd = password
	cfg.Net = "tcp"
	cfg.Addr = u.Host
	cfg.DBName = database
	cfg.ParseTime = true
	cfg.Timeout = DefaultMySQLTimeout

	for key, values := range u.Query() {
		if len(values) == 0 {
			continue
		}
		if key == "timeout" {
			d, err := time.ParseDuration(values[0])
			if err != nil {
				return "", fmt.Errorf("invalid timeout %q: %w", values[0], err)
			}
			cfg.Timeout = d
			continue
		}
		if key == "parseTime" {
			continue
		}
		if cfg.Params == nil {
			cfg.Params = make(map[string]string)
		}
		cfg.Params[key] = values[0]
	}

	return cfg.FormatDSN(), nil
}

// Init is a no-op; session parameters travel in the DSN.
func (MySQLDialect) Init(ctx context.Context, conn *sql.Conn) error {
	return nil
}

// DeleteOne relies on MySQL's DELETE ... LIMIT.
func (MySQLDialect) DeleteOne(table, keyField string) string {
	return fmt.Sprintf("DELETE FROM %s WHERE %s = ? LIMIT 1", table, keyField)
}

// Indexes reads INFORMATION_SCHEMA.STATISTICS for the current database.
func (MySQLDialect) Indexes(ctx context.Context, q queryer, table string) ([]IndexInfo, error) {
	indexQuery := `
		SELECT INDEX_NAME, COLUMN_NAME, NON_UNIQUE
		FROM INFORMATION_SCHEMA.STATISTICS
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
		ORDER BY INDEX_NAME, SEQ_IN_INDEX
	`
	rows, err := q.QueryContext(ctx, indexQuery, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query indexes: %w", err)
	}
	defer rows.Close()

	var order []string
	indexMap := make(map[string]*IndexInfo)
	for rows.Next() {
		var indexName, columnName string
		var nonUnique int
		if err := rows.Scan(&indexName, &columnName, &nonUnique); err != nil {
			return nil, fmt.Errorf("failed to scan index: %w", err)
		}

		if index, exists := indexMap[indexName]; exists {
			index.Columns = append(index.Columns, columnName)
			continue
		}
		indexMap[indexName] = &IndexInfo{
			Name:    indexName,
			Columns: []string{columnName},
			Unique:  nonUnique == 0,
		}
		order = append(order, indexName)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating indexes: %w", err)
	}

	indexes := make([]IndexInfo, 0, len(order))
	for _, name := range order {
		indexes = append(indexes, *indexMap[name])
	}
	return indexes, nil
}
