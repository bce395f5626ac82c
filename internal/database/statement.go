package database

import (
	"fmt"
	"strings"

	"github.com/rzpsarthak13/modstore/internal/core"
)

// BuildInsert returns an INSERT statement whose column list and placeholder
// list follow the record's key order.
func BuildInsert(table string, record core.Record) (string, []interface{}, error) {
	if record.Len() == 0 {
		return "", nil, fmt.Errorf("%w: no columns to insert", core.ErrInvalidRecord)
	}

	columns := make([]string, 0, record.Len())
	placeholders := make([]string, 0, record.Len())
	args := make([]interface{}, 0, record.Len())

	for _, col := range record.Keys() {
		value, err := ToDBValue(record.Value(col))
		if err != nil {
			return "", nil, fmt.Errorf("%w: column '%s': %v", core.ErrInvalidRecord, col, err)
		}
		columns = append(columns, col)
		placeholders = append(placeholders, "?")
		args = append(args, value)
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		table,
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
	)
	return query, args, nil
}

// BuildUpdate returns an UPDATE statement setting every field of the record
// on rows where keyField equals keyValue. The key value is the last argument.
func BuildUpdate(table, keyField string, keyValue interface{}, record core.Record) (string, []interface{}, error) {
	if record.Len() == 0 {
		return "", nil, fmt.Errorf("%w: no columns to update", core.ErrInvalidRecord)
	}

	setParts := make([]string, 0, record.Len())
	args := make([]interface{}, 0, record.Len()+1)

	for _, col := range record.Keys() {
		value, err := ToDBValue(record.Value(col))
		if err != nil {
			return "", nil, fmt.Errorf("%w: column '%s': %v", core.ErrInvalidRecord, col, err)
		}
		setParts = append(setParts, fmt.Sprintf("%s = ?", col))
		args = append(args, value)
	}

	key, err := ToDBValue(keyValue)
	if err != nil {
		return "", nil, fmt.Errorf("%w: key '%s': %v", core.ErrInvalidRecord, keyField, err)
	}
	args = append(args, key)

	query := fmt.Sprintf(
		"UPDATE %s SET %s WHERE %s = ?",
		table,
		strings.Join(setParts, ", "),
		keyField,
	)
	return query, args, nil
}

// BuildSelect returns a SELECT * statement with an optional predicate.
func BuildSelect(table, where string) string {
	if strings.TrimSpace(where) == "" {
		return fmt.Sprintf("SELECT * FROM %s", table)
	}
	return fmt.Sprintf("SELECT * FROM %s WHERE %s", table, where)
}

// BuildCreateIndex returns a CREATE [UNIQUE] INDEX statement.
func BuildCreateIndex(name, table, field string, unique bool) string {
	if unique {
		return fmt.Sprintf("CREATE UNIQUE INDEX %s ON %s (%s)", name, table, field)
	}
	return fmt.Sprintf("CREATE INDEX %s ON %s (%s)", name, table, field)
}
