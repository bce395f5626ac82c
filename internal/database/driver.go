package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/rzpsarthak13/modstore/internal/core"
)

// SQLDriver implements core.DataStore over database/sql. The engine specific
// parts come from its Dialect.
//
// The driver holds a single pinned connection; the underlying *sql.DB is
// capped at one open connection so no pooling happens behind it.
type SQLDriver struct {
	dialect    Dialect
	db         *sql.DB
	conn       *sql.Conn
	tx         *sql.Tx
	autocommit bool
}

var _ core.DataStore = (*SQLDriver)(nil)

// NewSQLDriver creates an unconnected driver for the given dialect.
func NewSQLDriver(dialect Dialect) *SQLDriver {
	return &SQLDriver{dialect: dialect, autocommit: true}
}

// Type implements core.DataStore.
func (d *SQLDriver) Type() core.DriverType {
	return d.dialect.DriverType()
}

// Dialect returns the engine dialect.
func (d *SQLDriver) Dialect() Dialect {
	return d.dialect
}

// Autocommit reports the session's autocommit flag.
func (d *SQLDriver) Autocommit() bool {
	return d.autocommit
}

// Connect opens the database and pins one connection as the session.
func (d *SQLDriver) Connect(ctx context.Context, endpoint, username, password string) error {
	if d.conn != nil {
		return d.fail("connect", "", core.ErrAlreadyConnected)
	}

	dsn, err := d.dialect.DSN(endpoint, username, password)
	if err != nil {
		return d.fail("connect", "", err)
	}

	log.Printf("[%s] Connecting to %s", d.dialect.Name(), endpoint)
	db, err := sql.Open(d.dialect.DriverName(), dsn)
	if err != nil {
		return d.fail("connect", "", fmt.Errorf("failed to open database: %w", err))
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return d.fail("connect", "", fmt.Errorf("failed to open session: %w", err))
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		db.Close()
		return d.fail("connect", "", fmt.Errorf("failed to ping database: %w", err))
	}
	if err := d.dialect.Init(ctx, conn); err != nil {
		conn.Close()
		db.Close()
		return d.fail("connect", "", fmt.Errorf("failed to initialise session: %w", err))
	}

	d.db = db
	d.conn = conn
	d.tx = nil
	d.autocommit = true
	log.Printf("[%s] Connected", d.dialect.Name())
	return nil
}

// Disconnect closes the session, rolling back an open transaction first.
// It is safe to call on a closed or never opened driver.
func (d *SQLDriver) Disconnect() error {
	if d.conn == nil && d.db == nil {
		return nil
	}

	var errs []error
	if d.tx != nil {
		if err := d.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			errs = append(errs, fmt.Errorf("failed to roll back open transaction: %w", err))
		}
		d.tx = nil
		d.autocommit = true
	}
	if d.conn != nil {
		if err := d.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close session: %w", err))
		}
		d.conn = nil
	}
	if d.db != nil {
		if err := d.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
		d.db = nil
	}

	log.Printf("[%s] Disconnected", d.dialect.Name())
	if len(errs) > 0 {
		return d.fail("disconnect", "", errors.Join(errs...))
	}
	return nil
}

// IsConnected implements core.DataStore.
func (d *SQLDriver) IsConnected() bool {
	return d.conn != nil
}

// InTransaction implements core.DataStore.
func (d *SQLDriver) InTransaction() bool {
	return d.tx != nil
}

// Insert implements core.DataStore with a single INSERT statement.
func (d *SQLDriver) Insert(ctx context.Context, collection string, record core.Record) error {
	q, err := d.session()
	if err != nil {
		return d.fail("insert", collection, err)
	}
	query, args, err := BuildInsert(collection, record)
	if err != nil {
		return d.fail("insert", collection, err)
	}
	_, err = d.exec(ctx, q, query, args...)
	return d.fail("insert", collection, err)
}

// Update implements core.DataStore. Rows not matching are left alone and no
// match at all is not an error.
func (d *SQLDriver) Update(ctx context.Context, collection, keyField string, keyValue interface{}, record core.Record) error {
	q, err := d.session()
	if err != nil {
		return d.fail("update", collection, err)
	}
	query, args, err := BuildUpdate(collection, keyField, keyValue, record)
	if err != nil {
		return d.fail("update", collection, err)
	}
	_, err = d.exec(ctx, q, query, args...)
	return d.fail("update", collection, err)
}

// Delete implements core.DataStore, removing at most one row.
func (d *SQLDriver) Delete(ctx context.Context, collection, keyField string, keyValue interface{}) error {
	q, err := d.session()
	if err != nil {
		return d.fail("delete", collection, err)
	}
	key, err := ToDBValue(keyValue)
	if err != nil {
		return d.fail("delete", collection, fmt.Errorf("%w: key '%s': %v", core.ErrInvalidRecord, keyField, err))
	}
	_, err = d.exec(ctx, q, d.dialect.DeleteOne(collection, keyField), key)
	return d.fail("delete", collection, err)
}

// Select implements core.DataStore. The filter must be a core.SQLFilter.
func (d *SQLDriver) Select(ctx context.Context, collection string, filter core.Filter) ([]core.Record, error) {
	q, err := d.session()
	if err != nil {
		return nil, d.fail("select", collection, err)
	}
	var where string
	var args []interface{}
	switch f := filter.(type) {
	case nil:
	case core.SQLFilter:
		where, args = f.Where, f.Args
	case *core.SQLFilter:
		if f != nil {
			where, args = f.Where, f.Args
		}
	case *core.DocumentFilter:
		if f != nil {
			return nil, d.fail("select", collection, fmt.Errorf("%w: got %s filter", core.ErrFilterMismatch, core.FilterDocument))
		}
	default:
		return nil, d.fail("select", collection, fmt.Errorf("%w: got %s filter", core.ErrFilterMismatch, filter.Backend()))
	}
	records, err := d.query(ctx, q, BuildSelect(collection, where), args...)
	if err != nil {
		return nil, d.fail("select", collection, err)
	}
	return records, nil
}

// SelectAll implements core.DataStore.
func (d *SQLDriver) SelectAll(ctx context.Context, collection string) ([]core.Record, error) {
	q, err := d.session()
	if err != nil {
		return nil, d.fail("select", collection, err)
	}
	records, err := d.query(ctx, q, BuildSelect(collection, ""))
	if err != nil {
		return nil, d.fail("select", collection, err)
	}
	return records, nil
}

// ExecuteQuery implements core.DataStore.
func (d *SQLDriver) ExecuteQuery(ctx context.Context, raw string, args ...interface{}) ([]core.Record, error) {
	q, err := d.session()
	if err != nil {
		return nil, d.fail("execute query", "", err)
	}
	records, err := d.query(ctx, q, raw, args...)
	if err != nil {
		return nil, d.fail("execute query", "", err)
	}
	return records, nil
}

// Query implements core.DataStore.
func (d *SQLDriver) Query(ctx context.Context, raw string, args ...interface{}) error {
	q, err := d.session()
	if err != nil {
		return d.fail("query", "", err)
	}
	_, err = d.exec(ctx, q, raw, args...)
	return d.fail("query", "", err)
}

// CreateIndex implements core.DataStore. An existing single-column index on
// the same field satisfies the request when its uniqueness matches.
func (d *SQLDriver) CreateIndex(ctx context.Context, spec core.IndexSpec) error {
	q, err := d.session()
	if err != nil {
		return d.fail("create index", spec.Collection, err)
	}

	indexes, err := d.dialect.Indexes(ctx, q, spec.Collection)
	if err != nil {
		return d.fail("create index", spec.Collection, err)
	}
	for _, idx := range indexes {
		if len(idx.Columns) != 1 || idx.Columns[0] != spec.Field {
			continue
		}
		if idx.Unique == spec.Unique {
			log.Printf("[%s] Index on %s(%s) already exists as %s", d.dialect.Name(), spec.Collection, spec.Field, idx.Name)
			return nil
		}
		return d.fail("create index", spec.Collection,
			fmt.Errorf("%w: %s on %s (unique=%t)", core.ErrIndexConflict, idx.Name, spec.Field, idx.Unique))
	}

	name := indexName(spec.Collection, spec.Field, spec.Unique)
	_, err = d.exec(ctx, q, BuildCreateIndex(name, spec.Collection, spec.Field, spec.Unique))
	return d.fail("create index", spec.Collection, err)
}

// StartTransaction implements core.DataStore.
func (d *SQLDriver) StartTransaction(ctx context.Context) error {
	if d.conn == nil {
		return d.fail("start transaction", "", core.ErrNotConnected)
	}
	if d.tx != nil {
		return d.fail("start transaction", "", core.ErrTransactionActive)
	}
	// database/sql rolls a transaction back when its context ends, so the
	// transaction must outlive the deadline the caller put on this call.
	tx, err := d.conn.BeginTx(context.WithoutCancel(ctx), nil)
	if err != nil {
		return d.fail("start transaction", "", fmt.Errorf("failed to begin transaction: %w", err))
	}
	d.tx = tx
	d.autocommit = false
	log.Printf("[%s] Transaction started", d.dialect.Name())
	return nil
}

// CommitTransaction implements core.DataStore. A failed commit leaves the
// transaction active so the caller can still roll back.
func (d *SQLDriver) CommitTransaction(ctx context.Context) error {
	if d.conn == nil {
		return d.fail("commit", "", core.ErrNotConnected)
	}
	if d.tx == nil {
		return d.fail("commit", "", core.ErrNoTransaction)
	}
	if err := d.tx.Commit(); err != nil {
		return d.fail("commit", "", fmt.Errorf("failed to commit transaction: %w", err))
	}
	d.tx = nil
	d.autocommit = true
	log.Printf("[%s] Transaction committed", d.dialect.Name())
	return nil
}

// RollbackTransaction implements core.DataStore. The transaction ends even
// if the backend reports an error, since the session can no longer use it.
func (d *SQLDriver) RollbackTransaction(ctx context.Context) error {
	if d.conn == nil {
		return d.fail("rollback", "", core.ErrNotConnected)
	}
	if d.tx == nil {
		return d.fail("rollback", "", core.ErrNoTransaction)
	}
	err := d.tx.Rollback()
	d.tx = nil
	d.autocommit = true
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return d.fail("rollback", "", fmt.Errorf("failed to roll back transaction: %w", err))
	}
	log.Printf("[%s] Transaction rolled back", d.dialect.Name())
	return nil
}

// session returns the active transaction, or the pinned connection when in
// autocommit mode.
func (d *SQLDriver) session() (queryer, error) {
	if d.conn == nil {
		return nil, core.ErrNotConnected
	}
	if d.tx != nil {
		return d.tx, nil
	}
	return d.conn, nil
}

func (d *SQLDriver) exec(ctx context.Context, q queryer, query string, args ...interface{}) (sql.Result, error) {
	log.Printf("[%s] Executing statement: %s with args: %v", d.dialect.Name(), query, args)
	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute statement: %w", err)
	}
	if rowsAffected, err := result.RowsAffected(); err == nil {
		log.Printf("[%s] Statement executed successfully (rows affected: %d)", d.dialect.Name(), rowsAffected)
	}
	return result, nil
}

func (d *SQLDriver) query(ctx context.Context, q queryer, query string, args ...interface{}) ([]core.Record, error) {
	log.Printf("[%s] Executing query: %s with args: %v", d.dialect.Name(), query, args)
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	log.Printf("[%s] Query returned %d rows", d.dialect.Name(), len(records))
	return records, nil
}

// fail logs and wraps err. It returns nil for a nil err so call sites can
// pass results straight through.
func (d *SQLDriver) fail(op, collection string, err error) error {
	if err == nil {
		return nil
	}
	log.Printf("[%s] ERROR: %s failed: %v", d.dialect.Name(), op, err)
	return core.NewStoreError(d.dialect.DriverType(), op, collection, err)
}
