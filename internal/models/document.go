package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind identifies the concrete type held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// Value is a tagged JSON-compatible value. Threat details and evidence
// raw_data are arbitrary structured payloads from callers; holding them as
// tagged values instead of raw interface{} maps keeps round-tripping
// through Postgres JSONB lossless (numbers stay json.Number, never
// collapse to float64) while staying type-checked at the boundary.
type Value struct {
	kind Kind
	b    bool
	num  json.Number
	str  string
	arr  []Value
	obj  Document
}

// Document is a key-value collection of tagged values.
type Document map[string]Value

// Null returns the null value.
func Null() Value { return Value{kind: KindNull} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number wraps a float.
func Number(f float64) Value {
	return Value{kind: KindNumber, num: json.Number(strconv.FormatFloat(f, 'g', -1, 64))}
}

// Int wraps an integer.
func Int(i int) Value {
	return Value{kind: KindNumber, num: json.Number(strconv.Itoa(i))}
}

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Array wraps a list of values.
func Array(items ...Value) Value { return Value{kind: KindArray, arr: items} }

// Strings wraps a list of strings.
func Strings(items ...string) Value {
	arr := make([]Value, len(items))
	for i, s := range items {
		arr[i] = String(s)
	}
	return Value{kind: KindArray, arr: arr}
}

// Object wraps a nested document.
func Object(d Document) Value { return Value{kind: KindObject, obj: d} }

// Kind reports the value's type tag.
func (v Value) Kind() Kind { return v.kind }

// BoolVal returns the boolean payload (false for other kinds).
func (v Value) BoolVal() bool { return v.b }

// NumberVal returns the numeric payload as a float (0 for other kinds).
func (v Value) NumberVal() float64 {
	f, err := v.num.Float64()
	if err != nil {
		return 0
	}
	return f
}

// StringVal returns the string payload ("" for other kinds).
func (v Value) StringVal() string { return v.str }

// ArrayVal returns the array payload (nil for other kinds).
func (v Value) ArrayVal() []Value { return v.arr }

// ObjectVal returns the nested document (nil for other kinds).
func (v Value) ObjectVal() Document { return v.obj }

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return []byte(strconv.FormatBool(v.b)), nil
	case KindNumber:
		if v.num == "" {
			return []byte("0"), nil
		}
		return []byte(v.num), nil
	case KindString:
		return json.Marshal(v.str)
	case KindArray:
		if v.arr == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.arr)
	case KindObject:
		if v.obj == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(map[string]Value(v.obj))
	}
	return nil, fmt.Errorf("unknown value kind %d", v.kind)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	val, err := fromAny(raw)
	if err != nil {
		return err
	}
	*v = val
	return nil
}

func fromAny(raw any) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		return Value{kind: KindNumber, num: t}, nil
	case string:
		return String(t), nil
	case []any:
		arr := make([]Value, len(t))
		for i, item := range t {
			v, err := fromAny(item)
			if err != nil {
				return Value{}, err
			}
			arr[i] = v
		}
		return Value{kind: KindArray, arr: arr}, nil
	case map[string]any:
		obj := make(Document, len(t))
		for k, item := range t {
			v, err := fromAny(item)
			if err != nil {
				return Value{}, err
			}
			obj[k] = v
		}
		return Object(obj), nil
	}
	return Value{}, fmt.Errorf("unsupported value type %T", raw)
}

// Has reports whether the key is present.
func (d Document) Has(key string) bool {
	_, ok := d[key]
	return ok
}

// GetString returns the string at key, or "" when absent or not a string.
func (d Document) GetString(key string) string { return d[key].StringVal() }

// GetNumber returns the number at key, or 0 when absent or not numeric.
func (d Document) GetNumber(key string) float64 { return d[key].NumberVal() }

// Clone returns a copy of the document's top level. Nested values are
// shared; callers treat values as immutable.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Value implements driver.Valuer so documents land in JSONB columns.
func (d Document) Value() (driver.Value, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]Value(d))
}

// Scan implements sql.Scanner for reading JSONB columns back.
func (d *Document) Scan(src any) error {
	if src == nil {
		*d = Document{}
		return nil
	}
	var data []byte
	switch t := src.(type) {
	case []byte:
		data = t
	case string:
		data = []byte(t)
	default:
		return fmt.Errorf("cannot scan %T into Document", src)
	}
	var out Document
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	*d = out
	return nil
}
