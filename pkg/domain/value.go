package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// ValueKind enumerates the variants of Value.
type ValueKind int

const (
	// KindMissing means no value was ever provided for a slot. It is a
	// deliberate variant, distinct from Null, so every operator's behaviour
	// on an absent operand is an explicit branch rather than a nil deref
	// waiting to happen.
	KindMissing ValueKind = iota
	KindNull
	KindBool
	KindNumber
	KindString
	KindList
	KindRecord
)

func (k ValueKind) String() string {
	switch k {
	case KindMissing:
		return "missing"
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindRecord:
		return "record"
	}
	return "unknown"
}

// Value is the tagged union carried by every slot. The zero Value is Missing.
// Values are immutable once constructed; share them freely.
type Value struct {
	kind ValueKind
	b    bool
	n    float64
	s    string
	list []Value
	rec  map[string]Value
}

// MissingValue returns the explicit "never provided" variant.
func MissingValue() Value { return Value{} }

// NullValue returns the explicit null variant (provided, but empty).
func NullValue() Value { return Value{kind: KindNull} }

func BoolValue(b bool) Value      { return Value{kind: KindBool, b: b} }
func NumberValue(n float64) Value { return Value{kind: KindNumber, n: n} }
func StringValue(s string) Value  { return Value{kind: KindString, s: s} }

func ListValue(items ...Value) Value {
	return Value{kind: KindList, list: items}
}

func RecordValue(fields map[string]Value) Value {
	return Value{kind: KindRecord, rec: fields}
}

func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsMissing() bool { return v.kind == KindMissing }
func (v Value) IsNull() bool    { return v.kind == KindNull }

// Bool returns the boolean payload; ok is false for any other kind.
func (v Value) Bool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// Number returns the numeric payload; ok is false for any other kind.
func (v Value) Number() (float64, bool) {
	return v.n, v.kind == KindNumber
}

// Text returns the string payload; ok is false for any other kind.
func (v Value) Text() (string, bool) {
	return v.s, v.kind == KindString
}

// Items returns the list payload; ok is false for any other kind.
func (v Value) Items() ([]Value, bool) {
	return v.list, v.kind == KindList
}

// Fields returns the record payload; ok is false for any other kind.
func (v Value) Fields() (map[string]Value, bool) {
	return v.rec, v.kind == KindRecord
}

// Equal reports structural equality. Missing equals Missing and Null equals
// Null; kinds never compare equal across variants (no numeric/string
// coercion).
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindMissing, KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindNumber:
		return v.n == o.n
	case KindString:
		return v.s == o.s
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindRecord:
		if len(v.rec) != len(o.rec) {
			return false
		}
		for k, vv := range v.rec {
			ov, ok := o.rec[k]
			if !ok || !vv.Equal(ov) {
				return false
			}
		}
		return true
	}
	return false
}

// Canonical renders a scalar value as a stable string, used as the lookup
// key for table-driven calculations. Numbers drop trailing zeros so 8 and
// 8.0 share a key. Non-scalar kinds report ok false.
func (v Value) Canonical() (string, bool) {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b), true
	case KindNumber:
		return strconv.FormatFloat(v.n, 'f', -1, 64), true
	case KindString:
		return v.s, true
	}
	return "", false
}

// String renders the value for logs and error messages.
func (v Value) String() string {
	switch v.kind {
	case KindMissing:
		return "<missing>"
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		return strconv.FormatFloat(v.n, 'f', -1, 64)
	case KindString:
		return strconv.Quote(v.s)
	case KindList:
		return fmt.Sprintf("list(%d)", len(v.list))
	case KindRecord:
		keys := make([]string, 0, len(v.rec))
		for k := range v.rec {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return fmt.Sprintf("record%v", keys)
	}
	return "<unknown>"
}

// MarshalJSON serializes the value. Missing has no wire form of its own and
// marshals as null; callers persisting value maps must omit Missing entries
// instead of storing them.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindMissing, KindNull:
		return []byte("null"), nil
	case KindBool:
		return json.Marshal(v.b)
	case KindNumber:
		return json.Marshal(v.n)
	case KindString:
		return json.Marshal(v.s)
	case KindList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	case KindRecord:
		if v.rec == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(v.rec)
	}
	return nil, fmt.Errorf("cannot marshal value kind %d", v.kind)
}

// UnmarshalJSON parses any JSON value. JSON null becomes Null (a value that
// arrived on the wire was provided, so it is never Missing).
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := ValueFromJSON(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ValueFromJSON converts raw JSON into a Value. Empty input means the field
// was absent and yields Missing.
func ValueFromJSON(data []byte) (Value, error) {
	if len(data) == 0 {
		return MissingValue(), nil
	}
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return Value{}, fmt.Errorf("parse value: %w", err)
	}
	return fromAny(raw)
}

func fromAny(raw any) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return NullValue(), nil
	case bool:
		return BoolValue(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("parse number %q: %w", t.String(), err)
		}
		return NumberValue(f), nil
	case string:
		return StringValue(t), nil
	case []any:
		items := make([]Value, 0, len(t))
		for _, item := range t {
			v, err := fromAny(item)
			if err != nil {
				return Value{}, err
			}
			items = append(items, v)
		}
		return ListValue(items...), nil
	case map[string]any:
		fields := make(map[string]Value, len(t))
		for k, item := range t {
			v, err := fromAny(item)
			if err != nil {
				return Value{}, err
			}
			fields[k] = v
		}
		return RecordValue(fields), nil
	}
	return Value{}, fmt.Errorf("unsupported value type %T", raw)
}
