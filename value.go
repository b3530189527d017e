// FILE: strata/value.go
package strata

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the concrete type held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindList
)

// String returns the lowercase kind name used in error messages.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	default:
		return "invalid"
	}
}

// Value is a typed configuration leaf: one of string, int, float, bool,
// list of values, or null. Values are immutable once constructed; lists
// are copied on the way in and out.
type Value struct {
	kind Kind
	raw  any // string, int64, float64, bool, []Value, or nil
}

// Null returns the null Value. The zero Value is also null.
func Null() Value { return Value{} }

// String wraps a string leaf.
func String(s string) Value { return Value{kind: KindString, raw: s} }

// Int wraps an integer leaf.
func Int(i int64) Value { return Value{kind: KindInt, raw: i} }

// Float wraps a floating-point leaf.
func Float(f float64) Value { return Value{kind: KindFloat, raw: f} }

// Bool wraps a boolean leaf.
func Bool(b bool) Value { return Value{kind: KindBool, raw: b} }

// List wraps a list leaf. The elements are copied.
func List(elems ...Value) Value {
	cp := make([]Value, len(elems))
	copy(cp, elems)
	return Value{kind: KindList, raw: cp}
}

// Kind reports the concrete type of the value.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is the null leaf.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsString returns the string content, or false if the kind differs.
func (v Value) AsString() (string, bool) {
	s, ok := v.raw.(string)
	return s, ok && v.kind == KindString
}

// AsInt returns the integer content, or false if the kind differs.
func (v Value) AsInt() (int64, bool) {
	i, ok := v.raw.(int64)
	return i, ok && v.kind == KindInt
}

// AsFloat returns the float content, or false if the kind differs.
func (v Value) AsFloat() (float64, bool) {
	f, ok := v.raw.(float64)
	return f, ok && v.kind == KindFloat
}

// AsBool returns the boolean content, or false if the kind differs.
func (v Value) AsBool() (bool, bool) {
	b, ok := v.raw.(bool)
	return b, ok && v.kind == KindBool
}

// AsList returns a copy of the list elements, or false if the kind differs.
func (v Value) AsList() ([]Value, bool) {
	l, ok := v.raw.([]Value)
	if !ok || v.kind != KindList {
		return nil, false
	}
	cp := make([]Value, len(l))
	copy(cp, l)
	return cp, true
}

// Interface returns the content as a plain Go value: string, int64,
// float64, bool, []any, or nil. Used when handing trees to encoders
// and struct decoding.
func (v Value) Interface() any {
	switch v.kind {
	case KindList:
		elems := v.raw.([]Value)
		out := make([]any, len(elems))
		for i, e := range elems {
			out[i] = e.Interface()
		}
		return out
	case KindNull:
		return nil
	default:
		return v.raw
	}
}

// Equal reports whether two values have the same kind and content.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	if v.kind != KindList {
		return v.raw == o.raw
	}
	a := v.raw.([]Value)
	b := o.raw.([]Value)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// String renders the value for diagnostics and error messages.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindString:
		return v.raw.(string)
	case KindInt:
		return strconv.FormatInt(v.raw.(int64), 10)
	case KindFloat:
		return strconv.FormatFloat(v.raw.(float64), 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.raw.(bool))
	case KindList:
		elems := v.raw.([]Value)
		parts := make([]string, len(elems))
		for i, e := range elems {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return "invalid"
	}
}

// fromRaw converts a decoded value from one of the format parsers into a
// Value. Numbers arrive as json.Number (JSON with UseNumber), int/int64/
// uint64/float64 (YAML, TOML), or already-normalized Go scalars. Maps are
// structural and must not appear here; a map inside an array has no leaf
// representation and is rejected by the caller.
func fromRaw(raw any) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint64:
		if t > uint64(1)<<63-1 {
			return Null(), fmt.Errorf("integer %d overflows int64", t)
		}
		return Int(int64(t)), nil
	case float32:
		return Float(float64(t)), nil
	case float64:
		return Float(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return Null(), fmt.Errorf("unparseable number %q", t.String())
		}
		return Float(f), nil
	case []any:
		elems := make([]Value, 0, len(t))
		for i, e := range t {
			ev, err := fromRaw(e)
			if err != nil {
				return Null(), fmt.Errorf("element %d: %w", i, err)
			}
			elems = append(elems, ev)
		}
		return Value{kind: KindList, raw: elems}, nil
	case []Value:
		return List(t...), nil
	case []map[string]any:
		// TOML arrays of tables decode to this shape.
		return Null(), fmt.Errorf("nested tables are not supported as values")
	case map[string]any, map[any]any:
		return Null(), fmt.Errorf("nested tables are not supported as values")
	default:
		return Null(), fmt.Errorf("unsupported value type %T", raw)
	}
}
