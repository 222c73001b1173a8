package docstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"sorted keys", map[string]any{"b": 1, "a": true}, `{"a":true,"b":1}`},
		{"nested", map[string]any{"m": []any{"x", int64(2)}}, `{"m":["x",2]}`},
		{"string slice", []string{"b", "a"}, `["b","a"]`},
		{"no html escape", "<a&b>", `"<a&b>"`},
		{"nfc", "Nike\u0301", "\"Nik\u00e9\""},
		{"line separator literal", "a\u2028b", "\"a\u2028b\""},
		{"escaped backslash kept", `a\u2028`, `"a\\u2028"`},
		{"utf16 order", map[string]any{"\U0001F600": 1, "\uFF61": 2}, "{\"\U0001F600\":1,\"\uFF61\":2}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCanonical(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestMarshalCanonical_Rejects(t *testing.T) {
	for _, v := range []any{nil, 1.5, map[string]any{"x": nil}, struct{}{}} {
		_, err := MarshalCanonical(v)
		assert.Error(t, err, "%#v", v)
	}
}

func TestDecodeJSON_Integers(t *testing.T) {
	doc, err := decodeJSON([]byte(`{"a":1,"b":[2],"c":{"d":3}}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"a": int64(1),
		"b": []any{int64(2)},
		"c": map[string]any{"d": int64(3)},
	}, doc)

	_, err = decodeJSON([]byte(`{"a":1.5}`))
	assert.Error(t, err)
}
