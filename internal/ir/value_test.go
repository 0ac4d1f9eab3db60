package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueSealed(t *testing.T) {
	var _ Value = Null{}
	var _ Value = String("test")
	var _ Value = Int(42)
	var _ Value = MustDecimal("1.5")
	var _ Value = Bool(true)
	var _ Value = Enum("ASC")
	var _ Value = List{String("a"), Int(1)}
	var _ Value = Object{"key": String("value")}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		value Value
		want  Kind
	}{
		{nil, KindNull},
		{Null{}, KindNull},
		{String("a"), KindString},
		{Int(1), KindInt},
		{MustDecimal("2.5"), KindDecimal},
		{Bool(false), KindBool},
		{Enum("BAR"), KindEnum},
		{List{}, KindList},
		{Object{}, KindObject},
	}

	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.value))
		})
	}
}

func TestObjectGet_MissingIsNull(t *testing.T) {
	obj := Object{"a": Int(1), "b": nil}

	assert.Equal(t, Int(1), obj.Get("a"))
	assert.Equal(t, Null{}, obj.Get("b"))
	assert.Equal(t, Null{}, obj.Get("missing"))
}

func TestObjectSortedKeysRFC8785Order(t *testing.T) {
	obj := Object{
		"a":  Int(1),
		"A":  Int(2),
		"aa": Int(3),
		"aA": Int(4),
		"Aa": Int(5),
		"AA": Int(6),
	}

	assert.Equal(t, []string{"A", "AA", "Aa", "a", "aA", "aa"}, obj.SortedKeys())
}

func TestDecode_NumberKinds(t *testing.T) {
	v, err := Decode([]byte(`{"i": 12, "d": 1.25, "e": 1e3, "n": null, "s": "x", "b": true, "l": [1, "a"]}`))
	require.NoError(t, err)

	obj, ok := v.(Object)
	require.True(t, ok)

	assert.Equal(t, Int(12), obj["i"])
	assert.Equal(t, KindDecimal, KindOf(obj["d"]))
	assert.Equal(t, "1.25", obj["d"].(Decimal).String())
	assert.Equal(t, KindDecimal, KindOf(obj["e"]))
	assert.Equal(t, Null{}, obj["n"])
	assert.Equal(t, String("x"), obj["s"])
	assert.Equal(t, Bool(true), obj["b"])
	assert.Equal(t, List{Int(1), String("a")}, obj["l"])
}

func TestDecodeObject_RejectsNonObject(t *testing.T) {
	_, err := DecodeObject([]byte(`[1, 2]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected JSON object")
}

func TestFromAny_YAMLShapes(t *testing.T) {
	v, err := FromAny(map[string]any{
		"count": 3,
		"ratio": 0.5,
		"whole": 4.0,
		"items": []any{"a", nil},
	})
	require.NoError(t, err)

	obj := v.(Object)
	assert.Equal(t, Int(3), obj["count"])
	assert.Equal(t, KindDecimal, KindOf(obj["ratio"]))
	assert.Equal(t, Int(4), obj["whole"], "integral floats normalize to Int")
	assert.Equal(t, List{String("a"), Null{}}, obj["items"])
}

func TestFromAny_Unsupported(t *testing.T) {
	_, err := FromAny(struct{}{})
	require.Error(t, err)
}

func TestMarshal_RoundTrip(t *testing.T) {
	original := Object{
		"name":  String("widget"),
		"count": Int(3),
		"price": MustDecimal("9.99"),
		"tags":  List{String("a"), Null{}},
		"kind":  Enum("BAR"),
	}

	data, err := json.Marshal(original)
	require.NoError(t, err)
	assert.JSONEq(t, `{"count":3,"kind":"BAR","name":"widget","price":9.99,"tags":["a",null]}`, string(data))

	var decoded Object
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, String("BAR"), decoded["kind"], "enums decode as strings")
	assert.True(t, Equal(original["price"], decoded["price"]))
}

func TestToAny(t *testing.T) {
	got := ToAny(Object{"a": List{Int(1), Null{}, Enum("X")}})
	assert.Equal(t, map[string]any{"a": []any{int64(1), nil, "X"}}, got)
}

func TestDecimalAsInt(t *testing.T) {
	tests := []struct {
		in   string
		want Int
		ok   bool
	}{
		{"12", 12, true},
		{"-4.000", -4, true},
		{"9223372036854775807", 9223372036854775807, true},
		{"-9223372036854775808", -9223372036854775808, true},
		{"9223372036854775808", 0, false},
		{"18446744073709551618", 0, false},
		{"1.5", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := MustDecimal(tt.in).AsInt()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
