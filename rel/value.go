package rel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"unicode/utf16"
)

// Value is a sealed interface representing constrained field values.
// Only Null, String, Int, Bool, Array, and Object implement this.
// NO float variant - floats break canonical determinism and are rejected
// at every decode boundary.
type Value interface {
	relValue() // Sealed - only these types implement it
}

// Null represents an absent reference, typically a foreign key that
// points at nothing. Using an explicit type keeps the sealed interface
// total: a Record never holds a Go nil.
type Null struct{}

func (Null) relValue() {}

// MarshalJSON implements json.Marshaler for Null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// String represents a string value.
type String string

func (String) relValue() {}

// Int represents an integer value. Always int64, never float64.
type Int int64

func (Int) relValue() {}

// Bool represents a boolean value.
type Bool bool

func (Bool) relValue() {}

// Array represents an ordered sequence of Value elements.
type Array []Value

func (Array) relValue() {}

// Object represents a map of string keys to Value elements.
// Use SortedKeys for deterministic iteration.
type Object map[string]Value

func (Object) relValue() {}

// Record is one entity row: a mapping from field name to value.
// Relational fields hold the referenced id as a scalar (or Null),
// never a nested record - that is the normalization invariant.
type Record = Object

// IsScalar reports whether v can serve as an entity id.
// Ids are String or Int only; Bool, Null, Array, and Object cannot
// index a branch.
func IsScalar(v Value) bool {
	switch v.(type) {
	case String, Int:
		return true
	default:
		return false
	}
}

// Pair represents a key-value pair for typed Object construction.
type Pair struct {
	Key   string
	Value Value
}

// NewObject creates an Object from typed key-value pairs.
// Provides compile-time type safety - cannot pass floats.
// Example: NewObject(F("name", String("tolstoy")), F("born", Int(1828)))
func NewObject(pairs ...Pair) Object {
	obj := make(Object, len(pairs))
	for _, p := range pairs {
		obj[p.Key] = p.Value
	}
	return obj
}

// F is a shorthand for Pair for ergonomic construction.
// Example: NewObject(F("id", Int(1)), F("name", String("a")))
func F(key string, value Value) Pair {
	return Pair{Key: key, Value: value}
}

// IDs is a shorthand for building an id selector.
// Example: NewDelete("Book", IDs(Int(1), Int(2)))
func IDs(vs ...Value) []Value {
	return vs
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// NOTE: Go's sort.Strings uses UTF-8 byte order, which differs for
// characters outside the BMP.
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering
// as required by RFC 8785 (Canonical JSON). Must use unicode/utf16.Encode
// for correct surrogate handling.
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

	// All compared units equal, shorter string comes first.
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	default:
		return 0
	}
}

// UnmarshalJSON implements json.Unmarshaler for Object.
func (obj *Object) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*obj = make(Object, len(raw))
	for k, v := range raw {
		val, err := UnmarshalValue(v)
		if err != nil {
			return fmt.Errorf("object key %q: %w", k, err)
		}
		(*obj)[k] = val
	}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler for Array.
func (arr *Array) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*arr = make(Array, len(raw))
	for i, v := range raw {
		val, err := UnmarshalValue(v)
		if err != nil {
			return fmt.Errorf("array index %d: %w", i, err)
		}
		(*arr)[i] = val
	}
	return nil
}

// UnmarshalValue decodes a JSON value into the appropriate Value type.
// Floats are rejected; null decodes to Null (absent foreign keys are a
// normal state for a relational record).
func UnmarshalValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}

	return FromAny(raw)
}

// FromAny recursively converts a plain Go value to a Value. It accepts
// the shapes produced by encoding/json (with UseNumber) and yaml.v3
// decoding: nil, bool, string, int, int64, json.Number, []any, and
// map[string]any. Floats are rejected.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case json.Number:
		s := string(val)
		if strings.ContainsAny(s, ".eE") {
			return nil, fmt.Errorf("floats are forbidden: %s", s)
		}
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("number out of int64 range: %s", s)
		}
		return Int(n), nil
	case float64, float32:
		return nil, fmt.Errorf("floats are forbidden: %v", val)
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			rv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = rv
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			rv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[k] = rv
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// MarshalJSON implements json.Marshaler for Object with sorted keys
// (RFC 8785 ordering). NOTE: this is NOT canonical marshaling - it may
// HTML-escape strings. Use MarshalCanonical for content-addressed hashing.
func (obj Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	keys := obj.SortedKeys()
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := MarshalValue(obj[k])
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalValue marshals a Value to JSON bytes using type-switch dispatch.
// NOTE: not canonical; use MarshalCanonical for hashing.
func MarshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case Null:
		return []byte("null"), nil
	case String:
		return json.Marshal(string(val))
	case Int:
		return json.Marshal(int64(val))
	case Bool:
		return json.Marshal(bool(val))
	case Array:
		return marshalArray(val)
	case Object:
		return val.MarshalJSON()
	default:
		return nil, fmt.Errorf("unknown Value type: %T", v)
	}
}

func marshalArray(arr Array) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')

	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		elemBytes, err := MarshalValue(elem)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		buf.Write(elemBytes)
	}

	buf.WriteByte(']')
	return buf.Bytes(), nil
}
