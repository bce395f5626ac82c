package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"time"
)

// Record is an ordered mapping of field name to scalar value.
// It is the only data shape exchanged between the domain layer and a driver.
// Keys are unique and keep their insertion order.
//
// Records are passed by value. Set and Delete copy the storage before
// writing, so a change made through one copy is never seen by another.
type Record struct {
	keys   []string
	values map[string]interface{}
}

// NewRecord builds a record from alternating key/value pairs.
// It panics if a key is not a string or the pair list is uneven.
func NewRecord(kv ...interface{}) Record {
	if len(kv)%2 != 0 {
		panic("core.NewRecord: odd number of arguments")
	}
	r := Record{}
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			panic(fmt.Sprintf("core.NewRecord: key at position %d is %T, not string", i, kv[i]))
		}
		r.set(key, kv[i+1])
	}
	return r
}

// RecordFromMap converts a plain map into a record. Keys are sorted so the
// resulting order is deterministic.
func RecordFromMap(m map[string]interface{}) Record {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	r := Record{keys: make([]string, 0, len(keys)), values: make(map[string]interface{}, len(keys))}
	for _, k := range keys {
		r.set(k, m[k])
	}
	return r
}

// Set stores value under key. An existing key keeps its position.
func (r *Record) Set(key string, value interface{}) {
	*r = r.Clone()
	r.set(key, value)
}

// set writes in place. Only used on records nothing else holds yet.
func (r *Record) set(key string, value interface{}) {
	if r.values == nil {
		r.values = make(map[string]interface{})
	}
	if _, exists := r.values[key]; !exists {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Get returns the value stored under key.
func (r Record) Get(key string) (interface{}, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Value returns the value stored under key, or nil.
func (r Record) Value(key string) interface{} {
	return r.values[key]
}

// Has reports whether key is present.
func (r Record) Has(key string) bool {
	_, ok := r.values[key]
	return ok
}

// Delete removes key from the record.
func (r *Record) Delete(key string) {
	if _, ok := r.values[key]; !ok {
		return
	}
	c := Record{keys: make([]string, 0, len(r.keys)-1), values: make(map[string]interface{}, len(r.values)-1)}
	for _, k := range r.keys {
		if k != key {
			c.keys = append(c.keys, k)
			c.values[k] = r.values[k]
		}
	}
	*r = c
}

// Keys returns the field names in insertion order.
func (r Record) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Values returns the field values in key order.
func (r Record) Values() []interface{} {
	out := make([]interface{}, len(r.keys))
	for i, k := range r.keys {
		out[i] = r.values[k]
	}
	return out
}

// Len returns the number of fields.
func (r Record) Len() int {
	return len(r.keys)
}

// Clone returns a copy that shares no key storage with r.
func (r Record) Clone() Record {
	c := Record{keys: make([]string, len(r.keys)), values: make(map[string]interface{}, len(r.values))}
	copy(c.keys, r.keys)
	for k, v := range r.values {
		c.values[k] = v
	}
	return c
}

// Map returns the fields as a plain map.
func (r Record) Map() map[string]interface{} {
	m := make(map[string]interface{}, len(r.values))
	for k, v := range r.values {
		m[k] = v
	}
	return m
}

// String returns the fields as a comma-separated key=value list.
func (r Record) String() string {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteString(", ")
		}
		fmt.Fprintf(&buf, "%s=%v", k, r.values[k])
	}
	buf.WriteByte('}')
	return buf.String()
}

// Equal reports whether both records hold the same key set with
// semantically equal values. Key order is not significant.
func (r Record) Equal(other Record) bool {
	if r.Len() != other.Len() {
		return false
	}
	return r.Subset(other)
}

// Subset reports whether every field of r is present in other with a
// semantically equal value.
func (r Record) Subset(other Record) bool {
	for _, k := range r.keys {
		ov, ok := other.values[k]
		if !ok {
			return false
		}
		if !ValuesEqual(r.values[k], ov) {
			return false
		}
	}
	return true
}

// ValuesEqual compares two scalar values, treating numeric kinds by value
// and []byte as string, so that backend type coercion does not break equality.
func ValuesEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
	}
	if ba, ok := toBool(a); ok {
		if bb, ok := toBool(b); ok {
			return ba == bb
		}
	}
	if sa, ok := toText(a); ok {
		if sb, ok := toText(b); ok {
			return sa == sb
		}
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v interface{}) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

// toBool accepts the integer 0/1 encoding relational engines use for booleans.
func toBool(v interface{}) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	}
	if f, ok := toFloat(v); ok && (f == 0 || f == 1) {
		return f == 1, true
	}
	return false, false
}

func toText(v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case []byte:
		return string(t), true
	}
	return "", false
}

// MarshalJSON encodes the record as a JSON object preserving key order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping the order fields appear in.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("record: expected JSON object")
	}

	*r = Record{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("record: expected string key, got %v", tok)
		}
		var raw interface{}
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("record: field %q: %w", key, err)
		}
		if n, ok := raw.(json.Number); ok {
			if i, err := n.Int64(); err == nil {
				raw = i
			} else if f, err := n.Float64(); err == nil {
				raw = f
			}
		}
		r.set(key, raw)
	}
	_, err = dec.Token()
	return err
}
