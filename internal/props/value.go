package props

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"unicode/utf16"
)

// Value is a sealed interface representing constrained property values.
// Only Null, String, Int, Bool, List and Dict implement it.
type Value interface {
	propValue() // Sealed - only these types implement it
}

// Null represents an unset property. It is distinct from String("").
type Null struct{}

func (Null) propValue() {}

// MarshalJSON implements json.Marshaler for Null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// String is a text property value.
type String string

func (String) propValue() {}

// Int is an integer property value. Always int64, never float64.
type Int int64

func (Int) propValue() {}

// Bool is a boolean property value.
type Bool bool

func (Bool) propValue() {}

// List is an ordered list of values (group memberships, imports, ...).
type List []Value

func (List) propValue() {}

// Dict maps string keys to values (custom variables, arguments, ...).
// Use SortedKeys() for deterministic iteration.
type Dict map[string]Value

func (Dict) propValue() {}

// Strings builds a List of String values.
func Strings(vals ...string) List {
	l := make(List, len(vals))
	for i, v := range vals {
		l[i] = String(v)
	}
	return l
}

// IsNull reports whether v is nil or Null.
func IsNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's sort.Strings uses UTF-8 byte order, which differs for astral runes.
func (d Dict) SortedKeys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings by UTF-16 code units.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := min(len(a16), len(b16))
	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// StringList returns the string elements of v.
// A String yields a single-element slice, Null yields nil, and a List yields
// the text of each non-null element.
func StringList(v Value) []string {
	switch val := v.(type) {
	case nil, Null:
		return nil
	case List:
		out := make([]string, 0, len(val))
		for _, elem := range val {
			if IsNull(elem) {
				continue
			}
			out = append(out, Text(elem))
		}
		return out
	default:
		s := Text(val)
		if s == "" {
			return nil
		}
		return []string{s}
	}
}

// Equal reports whether two values are deeply equal.
func Equal(a, b Value) bool {
	if IsNull(a) || IsNull(b) {
		return IsNull(a) && IsNull(b)
	}
	ab, errA := MarshalCanonical(a)
	bb, errB := MarshalCanonical(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

// Clone returns a deep copy of v.
func Clone(v Value) Value {
	switch val := v.(type) {
	case List:
		out := make(List, len(val))
		for i, elem := range val {
			out[i] = Clone(elem)
		}
		return out
	case Dict:
		return val.Clone()
	default:
		return v
	}
}

// Clone returns a deep copy of the dict. A nil dict clones to an empty one.
func (d Dict) Clone() Dict {
	out := make(Dict, len(d))
	for k, v := range d {
		out[k] = Clone(v)
	}
	return out
}

// UnmarshalJSON implements json.Unmarshaler for Dict.
func (d *Dict) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*d = make(Dict, len(raw))
	for k, v := range raw {
		val, err := unmarshalValue(v)
		if err != nil {
			return fmt.Errorf("dict key %q: %w", k, err)
		}
		(*d)[k] = val
	}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler for List.
func (l *List) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*l = make(List, len(raw))
	for i, v := range raw {
		val, err := unmarshalValue(v)
		if err != nil {
			return fmt.Errorf("list index %d: %w", i, err)
		}
		(*l)[i] = val
	}
	return nil
}

// MarshalJSON implements json.Marshaler for Dict using canonical encoding.
func (d Dict) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(d)
}

// MarshalJSON implements json.Marshaler for List using canonical encoding.
func (l List) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(l)
}

// ParseDict decodes a JSON object into a Dict. Empty input yields an empty Dict.
func ParseDict(data string) (Dict, error) {
	if strings.TrimSpace(data) == "" {
		return Dict{}, nil
	}
	var d Dict
	if err := json.Unmarshal([]byte(data), &d); err != nil {
		return nil, fmt.Errorf("parse dict: %w", err)
	}
	return d, nil
}

// unmarshalValue decodes a single JSON value. Floats are rejected.
func unmarshalValue(data []byte) (Value, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty JSON value")
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return String(s), nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, err
		}
		return Bool(b), nil
	case 'n':
		return Null{}, nil
	case '[':
		var l List
		if err := json.Unmarshal(data, &l); err != nil {
			return nil, err
		}
		return l, nil
	case '{':
		var d Dict
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, err
		}
		return d, nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return nil, err
		}
		i, err := n.Int64()
		if err != nil {
			return nil, fmt.Errorf("floats are not allowed in property values: %s", string(data))
		}
		return Int(i), nil
	}
}

// FromAny converts a decoded Go value (from YAML, JSON or a SQL driver) into a
// Value. Floats with an integral value are accepted as Int; others are
// rendered as their decimal text so import rows stay forgiving.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case []byte:
		return String(string(val)), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint64:
		return Int(int64(val)), nil
	case float64:
		if val == float64(int64(val)) {
			return Int(int64(val)), nil
		}
		return String(fmt.Sprintf("%v", val)), nil
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return Int(i), nil
		}
		return String(val.String()), nil
	case []any:
		l := make(List, len(val))
		for i, elem := range val {
			pv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			l[i] = pv
		}
		return l, nil
	case map[string]any:
		d := make(Dict, len(val))
		for k, elem := range val {
			pv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			d[k] = pv
		}
		return d, nil
	default:
		if s, ok := v.(fmt.Stringer); ok {
			return String(s.String()), nil
		}
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}
