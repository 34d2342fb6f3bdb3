package rel

import (
	"encoding/json"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueSealed(t *testing.T) {
	// Verify all types implement Value (compile-time check via assignment)
	var _ Value = Null{}
	var _ Value = String("test")
	var _ Value = Int(42)
	var _ Value = Bool(true)
	var _ Value = Array{String("a"), Int(1)}
	var _ Value = Object{"key": String("value")}
}

func TestObjectSortedKeys(t *testing.T) {
	obj := Object{
		"zebra":  String("z"),
		"apple":  String("a"),
		"banana": String("b"),
	}

	keys := obj.SortedKeys()

	assert.Equal(t, []string{"apple", "banana", "zebra"}, keys)
}

func TestSortedKeysUTF16Order(t *testing.T) {
	// U+E000 (Private Use Area) vs U+10000 (Linear B) - the pair where
	// UTF-8 byte order and UTF-16 code unit order disagree.
	//
	// U+E000 - UTF-8: [0xEE, 0x80, 0x80], UTF-16: [0xE000]
	// U+10000 - UTF-8: [0xF0, 0x90, 0x80, 0x80], UTF-16: [0xD800, 0xDC00]
	obj := Object{
		"\ue000": Int(1),
		"𐀀":      Int(2), // surrogate pair 0xD800, 0xDC00
	}

	// RFC 8785 UTF-16 order: surrogate high (0xD800) < BMP high (0xE000)
	expectedRFC8785Order := []string{"𐀀", "\ue000"}

	keys := obj.SortedKeys()
	assert.Equal(t, expectedRFC8785Order, keys, "RFC 8785 UTF-16 ordering must be used")

	// Same order every time.
	for i := 0; i < 100; i++ {
		assert.Equal(t, keys, obj.SortedKeys(), "ordering must be deterministic")
	}

	// Go's default sort.Strings produces the opposite order here.
	wrongOrderKeys := []string{"\ue000", "𐀀"}
	sort.Strings(wrongOrderKeys)
	assert.NotEqual(t, expectedRFC8785Order, wrongOrderKeys, "UTF-8 and UTF-16 orders must differ for this pair")
}

func TestSortedKeysBasicCases(t *testing.T) {
	tests := []struct {
		name     string
		input    map[string]Value
		expected []string
	}{
		{
			name: "basic latin",
			input: map[string]Value{
				"b": Int(1),
				"a": Int(2),
				"c": Int(3),
			},
			expected: []string{"a", "b", "c"},
		},
		{
			name: "uppercase before lowercase",
			input: map[string]Value{
				"a":  Int(1),
				"A":  Int(2),
				"AA": Int(3),
				"aa": Int(4),
			},
			expected: []string{"A", "AA", "a", "aa"},
		},
		{
			name: "empty string first",
			input: map[string]Value{
				"a": Int(1),
				"":  Int(2),
			},
			expected: []string{"", "a"},
		},
		{
			name: "numbers as strings - lexicographic",
			input: map[string]Value{
				"10": Int(1),
				"2":  Int(2),
				"1":  Int(3),
			},
			expected: []string{"1", "10", "2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj := Object(tt.input)
			assert.Equal(t, tt.expected, obj.SortedKeys())
		})
	}
}

func TestUnmarshalRejectsFloats(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"simple float", `3.14`},
		{"scientific notation", `1e10`},
		{"scientific notation uppercase", `1E10`},
		{"negative float", `-2.5`},
		{"nested float in object", `{"value": 1.5}`},
		{"array with float", `[1, 2.0, 3]`},
		{"deeply nested float", `{"a": {"b": [1.5]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalValue([]byte(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "float")
		})
	}
}

func TestUnmarshalAcceptsNull(t *testing.T) {
	// Null is a legal field value: it is how a record represents an
	// absent foreign key.
	tests := []struct {
		name     string
		input    string
		expected Value
	}{
		{"top-level null", `null`, Null{}},
		{"null in object", `{"publisherId": null}`, Object{"publisherId": Null{}}},
		{"null in array", `[1, null]`, Array{Int(1), Null{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := UnmarshalValue([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestUnmarshalValidJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Value
	}{
		{"string", `"hello"`, String("hello")},
		{"integer", `42`, Int(42)},
		{"negative integer", `-100`, Int(-100)},
		{"bool true", `true`, Bool(true)},
		{"bool false", `false`, Bool(false)},
		{"simple array", `[1,2,3]`, Array{Int(1), Int(2), Int(3)}},
		{"simple object", `{"a":1}`, Object{"a": Int(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := UnmarshalValue([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestMarshalValueRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		value Value
	}{
		{"string", String("hello")},
		{"empty string", String("")},
		{"int", Int(42)},
		{"max int64", Int(9223372036854775807)},
		{"min int64", Int(-9223372036854775808)},
		{"bool true", Bool(true)},
		{"bool false", Bool(false)},
		{"null", Null{}},
		{"empty array", Array{}},
		{"array of ints", Array{Int(1), Int(2), Int(3)}},
		{"empty object", Object{}},
		{"simple object", Object{"key": String("value")}},
		{"record with null fk", Object{
			"id":          Int(7),
			"publisherId": Null{},
			"name":        String("test"),
		}},
		{"nested", Object{
			"array":  Array{Int(1), Object{"nested": Bool(true)}},
			"string": String("test"),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := MarshalValue(tt.value)
			require.NoError(t, err)

			result, err := UnmarshalValue(data)
			require.NoError(t, err)

			assert.Equal(t, tt.value, result)
		})
	}
}

func TestMarshalObjectKeyOrder(t *testing.T) {
	obj := Object{
		"zebra": String("z"),
		"apple": String("a"),
		"mango": String("m"),
	}

	data, err := json.Marshal(obj)
	require.NoError(t, err)

	expected := `{"apple":"a","mango":"m","zebra":"z"}`
	assert.Equal(t, expected, string(data))
}

func TestNullInRecord(t *testing.T) {
	rec := Record{
		"present": String("value"),
		"missing": Null{},
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"missing":null`)

	var decoded Record
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)

	// Null comes back as Null, never a Go nil.
	val := decoded["missing"]
	_, isNull := val.(Null)
	assert.True(t, isNull, "expected Null, got %T", val)
}

func TestFromAny(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected Value
	}{
		{"nil", nil, Null{}},
		{"bool", true, Bool(true)},
		{"string", "x", String("x")},
		{"int", 5, Int(5)},
		{"int64", int64(9), Int(9)},
		{"json number", json.Number("12"), Int(12)},
		{"already a value", Int(3), Int(3)},
		{"slice", []any{1, "a"}, Array{Int(1), String("a")}},
		{"map", map[string]any{"k": 1}, Object{"k": Int(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := FromAny(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}

	_, err := FromAny(3.5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "float")

	_, err = FromAny(json.Number("1.5"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "float")
}

func TestIsScalar(t *testing.T) {
	assert.True(t, IsScalar(String("a")))
	assert.True(t, IsScalar(Int(1)))
	assert.False(t, IsScalar(Bool(true)))
	assert.False(t, IsScalar(Null{}))
	assert.False(t, IsScalar(Array{}))
	assert.False(t, IsScalar(Object{}))
}

func TestHelperConstructors(t *testing.T) {
	obj := NewObject(
		F("name", String("tolstoy")),
		F("born", Int(1828)),
	)
	assert.Equal(t, String("tolstoy"), obj["name"])
	assert.Equal(t, Int(1828), obj["born"])

	sel := IDs(Int(1), String("b"))
	assert.Equal(t, []Value{Int(1), String("b")}, sel)
}
