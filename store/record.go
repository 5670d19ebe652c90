package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// NoID is the id value that Get treats as "no id given".
const NoID int64 = 0

// Record is a schemaless row. The "id" field holds its positive integer id.
type Record map[string]any

// ID returns the record id and whether it is a positive integer.
func (r Record) ID() (int64, bool) {
	if r == nil {
		return 0, false
	}
	id, ok := toInt64(r["id"])
	if !ok || id <= 0 {
		return 0, false
	}
	return id, true
}

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r)+1)
	for k, v := range r {
		out[k] = v
	}
	return out
}

// hasID reports whether the record id equals id.
func (r Record) hasID(id int64) bool {
	got, ok := r.ID()
	return ok && got == id
}

// decodeTable parses the stored value of a table. Numbers are kept as
// json.Number so ids and payload values round-trip exactly.
func decodeTable(table string, raw []byte) ([]Record, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []Record{}, nil
	}
	if trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: %q", ErrNotATable, table)
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var records []Record
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("decode table %q: %w", table, err)
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

func encodeTable(records []Record) ([]byte, error) {
	if records == nil {
		records = []Record{}
	}
	return json.Marshal(records)
}

// toInt64 converts an integral JSON-compatible value to int64.
func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return floatToInt64(f)
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float32:
		return floatToInt64(float64(n))
	case float64:
		return floatToInt64(n)
	default:
		return 0, false
	}
}

func floatToInt64(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// number reports the numeric value of v. Strings holding a number count, so
// "1" matches 1 the way loosely typed callers expect of a foreign key.
func number(v any) (i int64, f float64, isInt, ok bool) {
	switch n := v.(type) {
	case json.Number:
		return parseNumber(string(n))
	case string:
		return parseNumber(strings.TrimSpace(n))
	case bool, nil:
		return 0, 0, false, false
	}
	if i, ok := toInt64(v); ok {
		return i, float64(i), true, true
	}
	switch n := v.(type) {
	case float32:
		return 0, float64(n), false, true
	case float64:
		return 0, n, false, true
	}
	return 0, 0, false, false
}

func parseNumber(s string) (int64, float64, bool, bool) {
	if s == "" {
		return 0, 0, false, false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, float64(i), true, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return 0, 0, false, false
	}
	if i, ok := floatToInt64(f); ok {
		return i, f, true, true
	}
	return 0, f, false, true
}

// looseEqual compares two field values for joins. Numbers compare by value
// across representations; two strings compare as strings; everything else
// compares structurally.
func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	as, aIsStr := a.(string)
	bs, bIsStr := b.(string)
	if aIsStr && bIsStr {
		return as == bs
	}
	if ai, af, aInt, ok := number(a); ok {
		if bi, bf, bInt, ok := number(b); ok {
			if aInt && bInt {
				return ai == bi
			}
			return af == bf
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}
