package database

import (
	"database/sql"
	"fmt"

	"github.com/rzpsarthak13/modstore/internal/core"
)

// scanRecords drains rows into records. Every reported column becomes one
// record field, in column order.
func scanRecords(rows *sql.Rows) ([]core.Record, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read column types: %w", err)
	}

	records := make([]core.Record, 0)
	values := make([]interface{}, len(columns))
	valuePtrs := make([]interface{}, len(columns))
	for i := range values {
		valuePtrs[i] = &values[i]
	}

	for rows.Next() {
		for i := range values {
			values[i] = nil
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		record := core.Record{}
		for i := 0; i < len(columns); i++ {
			value, err := FromDBValue(values[i], columnTypes[i].DatabaseTypeName())
			if err != nil {
				return nil, fmt.Errorf("failed to convert value for column '%s': %w", columns[i], err)
			}
			record.Set(columns[i], value)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return records, nil
}
