package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Value is a sealed interface representing the scalar types a relation cell
// can hold. Only Null, String, Int and Bool implement it.
// NO Float - floating point cells break content hashing of tenant contexts.
type Value interface {
	irValue() // Sealed - only these types implement it
	fmt.Stringer
}

// Null represents an absent cell value.
type Null struct{}

func (Null) irValue() {}

// String renders Null as the SQL keyword.
func (Null) String() string { return "NULL" }

// MarshalJSON implements json.Marshaler for Null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// String is a text cell.
type String string

func (String) irValue() {}

func (s String) String() string { return string(s) }

// Int is an integer cell. Always int64.
type Int int64

func (Int) irValue() {}

func (n Int) String() string { return strconv.FormatInt(int64(n), 10) }

// Bool is a boolean cell. Stored by the engine as 0/1.
type Bool bool

func (Bool) irValue() {}

func (b Bool) String() string { return strconv.FormatBool(bool(b)) }

// Row is one tuple written to or read from a relation.
type Row []Value

// Strings renders every cell with its String method.
func (r Row) Strings() []string {
	out := make([]string, len(r))
	for i, v := range r {
		out[i] = v.String()
	}
	return out
}

// FromAny converts a Go value decoded from YAML, JSON or flags into a Value.
//
// Whole-number floats (as produced by encoding/json) become Int; any other
// float is rejected.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case []byte:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint32:
		return Int(val), nil
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("floats are not valid cell values: %s", val)
		}
		return Int(n), nil
	case float64:
		if val != math.Trunc(val) || math.IsInf(val, 0) || math.IsNaN(val) {
			return nil, fmt.Errorf("floats are not valid cell values: %v", val)
		}
		return Int(int64(val)), nil
	default:
		return nil, fmt.Errorf("unsupported cell type: %T", v)
	}
}

// FromSQL converts a value scanned from the SQLite driver into a Value.
//
// SQLite may surface REAL results from aggregate queries. Integral reals
// become Int; the rest are kept as their decimal text so they stay
// comparable without introducing a float cell type.
func FromSQL(v any) Value {
	switch val := v.(type) {
	case nil:
		return Null{}
	case int64:
		return Int(val)
	case string:
		return String(val)
	case []byte:
		return String(val)
	case bool:
		return Bool(val)
	case float64:
		if val == math.Trunc(val) && !math.IsInf(val, 0) {
			return Int(int64(val))
		}
		return String(strconv.FormatFloat(val, 'f', -1, 64))
	default:
		return String(fmt.Sprint(val))
	}
}

// SQLArg returns the driver argument for a Value.
func SQLArg(v Value) any {
	switch val := v.(type) {
	case Null, nil:
		return nil
	case String:
		return string(val)
	case Int:
		return int64(val)
	case Bool:
		if val {
			return int64(1)
		}
		return int64(0)
	default:
		return v.String()
	}
}

// SQLLiteral renders a Value as an SQL literal for inlining into view
// definitions. Strings are single-quoted with quotes doubled.
func SQLLiteral(v Value) string {
	switch val := v.(type) {
	case Null, nil:
		return "NULL"
	case String:
		return "'" + strings.ReplaceAll(string(val), "'", "''") + "'"
	case Int:
		return val.String()
	case Bool:
		if val {
			return "1"
		}
		return "0"
	default:
		return "NULL"
	}
}

// MarshalValue marshals a Value to JSON bytes.
func MarshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case Null, nil:
		return []byte("null"), nil
	case String:
		return json.Marshal(string(val))
	case Int:
		return json.Marshal(int64(val))
	case Bool:
		return json.Marshal(bool(val))
	default:
		return nil, fmt.Errorf("unknown Value type: %T", v)
	}
}

// UnmarshalValue decodes a single JSON scalar into a Value.
// Floats, arrays and objects are rejected.
func UnmarshalValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	switch raw.(type) {
	case []any, map[string]any:
		return nil, fmt.Errorf("cell values must be scalars, got %s", string(data))
	}
	return FromAny(raw)
}

// MarshalJSON implements json.Marshaler for Row.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, v := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := MarshalValue(v)
		if err != nil {
			return nil, fmt.Errorf("row[%d]: %w", i, err)
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler for Row.
func (r *Row) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = make(Row, len(raw))
	for i, v := range raw {
		val, err := UnmarshalValue(v)
		if err != nil {
			return fmt.Errorf("row[%d]: %w", i, err)
		}
		(*r)[i] = val
	}
	return nil
}
