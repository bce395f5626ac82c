package core

import "fmt"

// Filter is a backend-native predicate handed to DataStore.Select.
// It is never translated between backends: each driver accepts only its own
// variant and rejects the others with ErrFilterMismatch.
type Filter interface {
	// Backend reports which family of drivers understands the filter.
	Backend() FilterBackend
}

// FilterBackend names a family of drivers sharing a filter language.
type FilterBackend string

const (
	FilterSQL      FilterBackend = "sql"
	FilterDocument FilterBackend = "document"
)

// SQLFilter is a SQL predicate placed after WHERE, with positional arguments
// for its ? placeholders.
type SQLFilter struct {
	Where string
	Args  []interface{}
}

// Backend implements Filter.
func (SQLFilter) Backend() FilterBackend { return FilterSQL }

// DocumentFilter is a document-store condition expression together with its
// attribute name and value placeholders (for DynamoDB: FilterExpression,
// ExpressionAttributeNames and ExpressionAttributeValues).
type DocumentFilter struct {
	Expression string
	Names      map[string]string
	Values     Record
}

// Backend implements Filter.
func (DocumentFilter) Backend() FilterBackend { return FilterDocument }

// FilterBackendFor returns the filter family understood by a driver type.
func FilterBackendFor(t DriverType) FilterBackend {
	if t.Relational() {
		return FilterSQL
	}
	return FilterDocument
}

// Equals builds a single field equality filter in the language of the given
// driver type. It is the only helper that spans backends.
func Equals(t DriverType, field string, value interface{}) Filter {
	if t.Relational() {
		return SQLFilter{Where: fmt.Sprintf("%s = ?", field), Args: []interface{}{value}}
	}
	return DocumentFilter{
		Expression: "#f0 = :v0",
		Names:      map[string]string{"#f0": field},
		Values:     NewRecord(":v0", value),
	}
}
