package ir

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"nil", nil, "null"},
		{"string", "hello", `"hello"`},
		{"empty string", "", `""`},
		{"int", 42, "42"},
		{"int64", int64(-100), "-100"},
		{"uint", uint8(7), "7"},
		{"max int64", int64(9223372036854775807), "9223372036854775807"},
		{"min int64", int64(-9223372036854775808), "-9223372036854775808"},
		{"bool true", true, "true"},
		{"bool false", false, "false"},
		{"nil slice", []any(nil), "[]"},
		{"empty map", map[string]any{}, "{}"},
		{"nil in map", map[string]any{"a": nil}, `{"a":null}`},
		{"slice", []any{int64(1), "two", true}, `[1,"two",true]`},
		{"path", Path{"counters", "a"}, `["counters","a"]`},
		{"typed map", map[string]int{"b": 1, "a": 2}, `{"a":2,"b":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalNestedSortedKeys(t *testing.T) {
	state := map[string]any{
		"z": map[string]any{"b": 1, "a": 2},
		"a": 3,
	}

	result, err := MarshalCanonical(state)
	require.NoError(t, err)
	assert.Equal(t, `{"a":3,"z":{"a":2,"b":1}}`, string(result))
}

func TestMarshalCanonicalUTF16Ordering(t *testing.T) {
	// U+10000 encodes as the surrogate pair 0xD800 0xDC00, which sorts
	// before U+E000 in UTF-16 but after it in UTF-8.
	m := map[string]any{
		"\uE000":     1,
		"\U00010000": 2,
	}

	result, err := MarshalCanonical(m)
	require.NoError(t, err)
	assert.Equal(t, "{\"\U00010000\":2,\"\uE000\":1}", string(result))
	assert.Equal(t, []string{"\U00010000", "\uE000"}, SortedKeys(m))
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	result, err := MarshalCanonical(map[string]any{
		"html": "<script>alert('x')</script>",
		"amp":  "a & b",
	})
	require.NoError(t, err)
	assert.Equal(t, `{"amp":"a & b","html":"<script>alert('x')</script>"}`, string(result))
	assert.NotContains(t, string(result), `\u003c`)
	assert.NotContains(t, string(result), `\u0026`)
}

func TestMarshalCanonicalRejects(t *testing.T) {
	tests := []struct {
		name  string
		input any
		msg   string
	}{
		{"float64", 3.14, "float"},
		{"float32", float32(1), "float"},
		{"nested float", map[string]any{"a": []any{1.5}}, `value for key "a": array[0]: floats`},
		{"int keys", map[int]string{1: "a"}, "map key"},
		{"struct", struct{ A int }{1}, "unsupported type"},
		{"func", func() {}, "unsupported type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MarshalCanonical(tt.input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestMarshalCanonicalNFCNormalization(t *testing.T) {
	composed := "caf\u00e9"
	decomposed := "cafe\u0301"

	v1, err := MarshalCanonical(composed)
	require.NoError(t, err)
	v2, err := MarshalCanonical(decomposed)
	require.NoError(t, err)
	assert.Equal(t, v1, v2)

	k1, err := MarshalCanonical(map[string]any{composed: 1})
	require.NoError(t, err)
	k2, err := MarshalCanonical(map[string]any{decomposed: 1})
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
}

func TestMarshalCanonicalStringEscaping(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"newline", "a\nb", `"a\nb"`},
		{"tab", "a\tb", `"a\tb"`},
		{"quote", `a"b`, `"a\"b"`},
		{"backslash", `a\b`, `"a\\b"`},
		{"line separator", "a\u2028b", "\"a\u2028b\""},
		{"paragraph separator", "a\u2029b", "\"a\u2029b\""},
		{"literal escape text", `is \u2028`, `"is \\u2028"`},
		{"mixed", "lit \\u2028 real \u2028", "\"lit \\\\u2028 real \u2028\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

// decodeInts parses JSON with every number as int64, failing on fractions.
func decodeInts(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return toInts(v)
}

func toInts(v any) (any, error) {
	switch val := v.(type) {
	case json.Number:
		return val.Int64()
	case []any:
		for i := range val {
			n, err := toInts(val[i])
			if err != nil {
				return nil, err
			}
			val[i] = n
		}
	case map[string]any:
		for k := range val {
			n, err := toInts(val[k])
			if err != nil {
				return nil, err
			}
			val[k] = n
		}
	}
	return v, nil
}

func FuzzMarshalCanonicalIdempotent(f *testing.F) {
	f.Add(`{"a":1,"b":"test"}`)
	f.Add(`[1,2,3]`)
	f.Add(`"hello"`)
	f.Add(`null`)
	f.Add(`{"counters":{"a":{"count":5}},"app":{"settings":{"dark":true}}}`)

	f.Fuzz(func(t *testing.T, input string) {
		v, err := decodeInts([]byte(input))
		if err != nil {
			t.Skip()
		}
		first, err := MarshalCanonical(v)
		if err != nil {
			t.Skip()
		}

		again, err := decodeInts(first)
		require.NoError(t, err)
		second, err := MarshalCanonical(again)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})
}
