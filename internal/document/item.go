package document

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rzpsarthak13/modstore/internal/core"
)

const (
	// idField is the hash key of every collection table.
	idField = "_id"

	// autoIDField marks items whose _id was generated by the driver. Such ids
	// are hidden from returned records.
	autoIDField = "_auto_id"
)

// toItem converts a record into a DynamoDB item. Nested records, maps and
// slices are allowed on the document path.
func toItem(record core.Record) (map[string]types.AttributeValue, error) {
	item := make(map[string]types.AttributeValue, record.Len())
	for _, key := range record.Keys() {
		av, err := toAttribute(record.Value(key))
		if err != nil {
			return nil, fmt.Errorf("%w: field '%s': %v", core.ErrInvalidRecord, key, err)
		}
		item[key] = av
	}
	return item, nil
}

// toAttribute marshals a single value.
func toAttribute(value interface{}) (types.AttributeValue, error) {
	return attributevalue.Marshal(normalize(value))
}

// normalize turns records into plain maps so the marshaler can see their fields.
func normalize(value interface{}) interface{} {
	switch v := value.(type) {
	case core.Record:
		m := make(map[string]interface{}, v.Len())
		for _, k := range v.Keys() {
			m[k] = normalize(v.Value(k))
		}
		return m
	case *core.Record:
		if v == nil {
			return nil
		}
		return normalize(*v)
	case []core.Record:
		out := make([]interface{}, len(v))
		for i := range v {
			out[i] = normalize(v[i])
		}
		return out
	}
	return value
}

// toRecord converts an item into a record with sorted keys. A generated _id
// and the marker attribute are dropped.
func toRecord(item map[string]types.AttributeValue) (core.Record, error) {
	auto := false
	if marker, ok := item[autoIDField].(*types.AttributeValueMemberBOOL); ok {
		auto = marker.Value
	}

	keys := make([]string, 0, len(item))
	for k := range item {
		if k == autoIDField || (auto && k == idField) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	record := core.Record{}
	for _, k := range keys {
		value, err := fromAttribute(item[k])
		if err != nil {
			return core.Record{}, fmt.Errorf("attribute '%s': %w", k, err)
		}
		record.Set(k, value)
	}
	return record, nil
}

// fromAttribute decodes an attribute into a Go value. Numbers become int64
// when they are integral and float64 otherwise.
func fromAttribute(av types.AttributeValue) (interface{}, error) {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value, nil
	case *types.AttributeValueMemberN:
		return parseNumber(v.Value)
	case *types.AttributeValueMemberBOOL:
		return v.Value, nil
	case *types.AttributeValueMemberNULL:
		return nil, nil
	case *types.AttributeValueMemberB:
		out := make([]byte, len(v.Value))
		copy(out, v.Value)
		return out, nil
	case *types.AttributeValueMemberSS:
		out := make([]string, len(v.Value))
		copy(out, v.Value)
		return out, nil
	case *types.AttributeValueMemberNS:
		out := make([]interface{}, 0, len(v.Value))
		for _, n := range v.Value {
			parsed, err := parseNumber(n)
			if err != nil {
				return nil, err
			}
			out = append(out, parsed)
		}
		return out, nil
	case *types.AttributeValueMemberBS:
		out := make([][]byte, len(v.Value))
		copy(out, v.Value)
		return out, nil
	case *types.AttributeValueMemberL:
		out := make([]interface{}, 0, len(v.Value))
		for _, elem := range v.Value {
			decoded, err := fromAttribute(elem)
			if err != nil {
				return nil, err
			}
			out = append(out, decoded)
		}
		return out, nil
	case *types.AttributeValueMemberM:
		out := make(map[string]interface{}, len(v.Value))
		for k, elem := range v.Value {
			decoded, err := fromAttribute(elem)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = decoded
		}
		return out, nil
	case nil:
		return nil, nil
	}
	return nil, fmt.Errorf("unsupported attribute type %T", av)
}

func parseNumber(s string) (interface{}, error) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return f, nil
}

// expressionValues converts a filter's placeholder record.
func expressionValues(values core.Record) (map[string]types.AttributeValue, error) {
	if values.Len() == 0 {
		return nil, nil
	}
	out := make(map[string]types.AttributeValue, values.Len())
	for _, k := range values.Keys() {
		av, err := toAttribute(values.Value(k))
		if err != nil {
			return nil, fmt.Errorf("%w: placeholder '%s': %v", core.ErrInvalidRecord, k, err)
		}
		out[k] = av
	}
	return out, nil
}

// statementParameters converts positional PartiQL arguments.
func statementParameters(args []interface{}) ([]types.AttributeValue, error) {
	if len(args) == 0 {
		return nil, nil
	}
	out := make([]types.AttributeValue, 0, len(args))
	for i, arg := range args {
		av, err := toAttribute(arg)
		if err != nil {
			return nil, fmt.Errorf("%w: parameter %d: %v", core.ErrInvalidRecord, i, err)
		}
		out = append(out, av)
	}
	return out, nil
}
