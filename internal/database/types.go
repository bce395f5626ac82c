package database

import (
	"database/sql/driver"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// ToDBValue checks that a record value is a scalar the relational path can
// bind and normalises it for the driver. Nested values are rejected.
func ToDBValue(value interface{}) (interface{}, error) {
	if value == nil {
		return nil, nil
	}

	switch v := value.(type) {
	case string, bool, []byte, time.Time, int64, float64:
		return v, nil
	case *time.Time:
		if v == nil {
			return nil, nil
		}
		return *v, nil
	case driver.Valuer:
		return v.Value()
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return nil, fmt.Errorf("unsigned value %d overflows int64", u)
		}
		return int64(u), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.String:
		return rv.String(), nil
	case reflect.Bool:
		return rv.Bool(), nil
	}

	return nil, fmt.Errorf("unsupported value type %T", value)
}

// FromDBValue converts a scanned value into a record value using the
// column's database type name. Text comes back as string, integers as int64,
// floating point as float64, and time columns as time.Time.
func FromDBValue(value interface{}, dbType string) (interface{}, error) {
	if value == nil {
		return nil, nil
	}

	baseType := strings.ToUpper(strings.TrimSpace(dbType))
	if idx := strings.Index(baseType, "("); idx > 0 {
		baseType = baseType[:idx]
	}
	baseType = strings.TrimPrefix(baseType, "UNSIGNED ")

	raw, isBytes := value.([]byte)
	if !isBytes {
		return value, nil
	}

	switch baseType {
	case "BINARY", "VARBINARY", "BLOB", "LONGBLOB", "MEDIUMBLOB", "TINYBLOB":
		out := make([]byte, len(raw))
		copy(out, raw)
		return out, nil
	case "INT", "INTEGER", "MEDIUMINT", "BIGINT", "SMALLINT", "TINYINT", "YEAR":
		n, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("cannot parse %q as %s: %w", raw, baseType, err)
		}
		return n, nil
	case "FLOAT", "DOUBLE", "DOUBLE PRECISION", "REAL":
		f, err := strconv.ParseFloat(string(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("cannot parse %q as %s: %w", raw, baseType, err)
		}
		return f, nil
	default:
		// DECIMAL stays a string to preserve precision.
		return string(raw), nil
	}
}
