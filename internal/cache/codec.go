package cache

import (
	"bytes"
	"fmt"
	"math"
	"time"

	"github.com/rzpsarthak13/modstore/internal/core"
	"github.com/vmihailenco/msgpack/v5"
)

// codecVersion is bumped whenever the entry layout changes; entries written
// with another version are treated as misses.
const codecVersion = 1

type entry struct {
	Version  int            `msgpack:"ver"`
	StoredAt int64          `msgpack:"at"`
	Records  []recordFields `msgpack:"recs"`
}

// recordFields keeps the key order of a record, which a msgpack map would lose.
type recordFields struct {
	Keys   []string      `msgpack:"k"`
	Values []interface{} `msgpack:"v"`
}

// ErrStaleEntry is returned when a cached entry has an unknown layout.
var ErrStaleEntry = fmt.Errorf("cache entry has an unsupported version")

// EncodeRecords serialises a record list with msgpack.
func EncodeRecords(records []core.Record) ([]byte, error) {
	e := entry{Version: codecVersion, StoredAt: time.Now().UnixMilli(), Records: make([]recordFields, len(records))}
	for i, r := range records {
		e.Records[i] = recordFields{Keys: r.Keys(), Values: r.Values()}
	}

	var buf bytes.Buffer
	enc := msgpack.GetEncoder()
	enc.Reset(&buf)
	err := enc.Encode(&e)
	msgpack.PutEncoder(enc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode records using MsgPack: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeRecords restores a record list written by EncodeRecords. Integers
// come back as int64 and floats as float64.
func DecodeRecords(data []byte) ([]core.Record, error) {
	var e entry
	dec := msgpack.GetDecoder()
	dec.Reset(bytes.NewReader(data))
	dec.UseLooseInterfaceDecoding(true)
	err := dec.Decode(&e)
	msgpack.PutDecoder(dec)
	if err != nil {
		return nil, fmt.Errorf("failed to decode records from MsgPack: %w", err)
	}
	if e.Version != codecVersion {
		return nil, ErrStaleEntry
	}

	records := make([]core.Record, 0, len(e.Records))
	for _, fields := range e.Records {
		if len(fields.Keys) != len(fields.Values) {
			return nil, fmt.Errorf("corrupt cache entry: %d keys, %d values", len(fields.Keys), len(fields.Values))
		}
		r := core.Record{}
		for i, k := range fields.Keys {
			r.Set(k, normalizeDecoded(fields.Values[i]))
		}
		records = append(records, r)
	}
	return records, nil
}

func normalizeDecoded(v interface{}) interface{} {
	if u, ok := v.(uint64); ok && u <= math.MaxInt64 {
		return int64(u)
	}
	return v
}
