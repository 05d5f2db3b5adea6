// Package facts holds the flat per-case fact store and the mapper that is the
// only path for writing questionnaire answers into it.
package facts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindArray:
		return "array"
	default:
		return "unknown"
	}
}

// ErrNotFlat is returned when decoding meets an object, or an array holding
// anything but scalars.
var ErrNotFlat = errors.New("fact value must be a scalar, null or an array of scalars")

// Value is one fact: null, string, number, bool, or an array of those scalars.
// There is no object variant.
type Value struct {
	kind  Kind
	str   string
	num   float64
	flag  bool
	items []Value
}

func Null() Value { return Value{kind: KindNull} }
func String(s string) Value { return Value{kind: KindString, str: s} }
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }
func Bool(b bool) Value { return Value{kind: KindBool, flag: b} }
func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }
func (v Value) IsArray() bool { return v.kind == KindArray }

// Array builds an array value. Every item must be a scalar or null.
func Array(items ...Value) (Value, error) {
	out := make([]Value, len(items))
	for i, it := range items {
		if it.kind == KindArray {
			return Value{}, fmt.Errorf("item %d: %w", i, ErrNotFlat)
		}
		out[i] = it
	}
	return Value{kind: KindArray, items: out}, nil
}

// Strings builds an array of strings.
func Strings(ss ...string) Value {
	items := make([]Value, len(ss))
	for i, s := range ss {
		items[i] = String(s)
	}
	return Value{kind: KindArray, items: items}
}

// Str returns the string payload.
func (v Value) Str() (string, bool) {
	return v.str, v.kind == KindString
}

// Num returns the number payload. Numeric strings are accepted since the
// questionnaire posts money fields as text.
func (v Value) Num() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindString:
		n, err := strconv.ParseFloat(v.str, 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// Truth returns the bool payload, also accepting "yes"/"no" and "true"/"false" strings.
func (v Value) Truth() (bool, bool) {
	switch v.kind {
	case KindBool:
		return v.flag, true
	case KindString:
		switch v.str {
		case "true", "yes", "Yes", "YES", "y":
			return true, true
		case "false", "no", "No", "NO", "n":
			return false, true
		}
	}
	return false, false
}

// Items returns a copy of the array items.
func (v Value) Items() []Value {
	if v.kind != KindArray {
		return nil
	}
	out := make([]Value, len(v.items))
	copy(out, v.items)
	return out
}

// Text renders scalars as display text; arrays are joined with ", ".
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.flag)
	case KindArray:
		var b bytes.Buffer
		for i, it := range v.items {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(it.Text())
		}
		return b.String()
	}
	return ""
}

// Equal compares two values structurally.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.flag == o.flag
	case KindArray:
		if len(v.items) != len(o.items) {
			return false
		}
		for i := range v.items {
			if !v.items[i].Equal(o.items[i]) {
				return false
			}
		}
	}
	return true
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return nil, fmt.Errorf("fact number is not finite")
		}
		return []byte(strconv.FormatFloat(v.num, 'f', -1, 64)), nil
	case KindBool:
		return []byte(strconv.FormatBool(v.flag)), nil
	case KindArray:
		var b bytes.Buffer
		b.WriteByte('[')
		for i, it := range v.items {
			if i > 0 {
				b.WriteByte(',')
			}
			raw, err := it.MarshalJSON()
			if err != nil {
				return nil, err
			}
			b.Write(raw)
		}
		b.WriteByte(']')
		return b.Bytes(), nil
	}
	return nil, fmt.Errorf("unknown fact kind %d", v.kind)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	val, ok := valueFromAny(raw, true)
	if !ok {
		return ErrNotFlat
	}
	*v = val
	return nil
}

// scalarFromAny converts a decoded JSON scalar. Objects and arrays are rejected.
func scalarFromAny(raw any) (Value, bool) {
	switch x := raw.(type) {
	case nil:
		return Null(), true
	case string:
		return String(x), true
	case bool:
		return Bool(x), true
	case json.Number:
		n, err := x.Float64()
		if err != nil {
			return Value{}, false
		}
		return Number(n), true
	case float64:
		return Number(x), true
	case float32:
		return Number(float64(x)), true
	case int:
		return Number(float64(x)), true
	case int64:
		return Number(float64(x)), true
	}
	return Value{}, false
}

// valueFromAny converts a decoded JSON value, allowing one level of array
// when allowArray is set.
func valueFromAny(raw any, allowArray bool) (Value, bool) {
	if arr, ok := raw.([]any); ok {
		if !allowArray {
			return Value{}, false
		}
		items := make([]Value, 0, len(arr))
		for _, it := range arr {
			sv, ok := scalarFromAny(it)
			if !ok {
				return Value{}, false
			}
			items = append(items, sv)
		}
		return Value{kind: KindArray, items: items}, true
	}
	return scalarFromAny(raw)
}
