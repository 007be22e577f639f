package binjson

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromJSON_Basics(t *testing.T) {
	v, err := FromJSONString(`{"name":"ada","age":36,"score":0.5,"ok":true,"gone":null,"tags":["a","b"]}`)
	require.NoError(t, err)
	require.Equal(t, KindObject, v.Kind())

	assert.True(t, Equal(Str("ada"), v.Get("name")))
	assert.Equal(t, KindInt, v.Get("age").Kind())
	assert.Equal(t, KindFloat, v.Get("score").Kind())
	assert.True(t, v.Get("gone").IsNull())
	assert.Equal(t, 2, v.Get("tags").Len())
}

func TestFromJSON_OrderPreserved(t *testing.T) {
	v, err := FromJSONString(`{"z":1,"a":2,"m":3}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "a", "m"}, v.Keys())
}

func TestFromJSON_NumberClassification(t *testing.T) {
	tests := []struct {
		in   string
		want *Value
	}{
		{"0", Int(0)},
		{"42", Int(42)},
		{"-7", Int(-7)},
		{"9223372036854775807", Int(math.MaxInt64)},
		{"-9223372036854775808", Int(math.MinInt64)},
		{"3.5", Float(3.5)},
		{"-0.25", Float(-0.25)},
		{"1e3", Float(1000)},
		{"9223372036854775808", Float(9223372036854775808)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v, err := FromJSONString(tt.in)
			require.NoError(t, err)
			assert.True(t, Equal(tt.want, v), "got kind %s", v.Kind())
		})
	}
}

func TestFromJSON_DuplicateKey(t *testing.T) {
	_, err := FromJSONString(`{"a":1,"a":2}`)
	require.Error(t, err)

	var dup *DuplicateKeyError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "a", dup.Key)
}

func TestFromJSON_Errors(t *testing.T) {
	_, err := FromJSON(nil)
	assert.ErrorIs(t, err, ErrUnexpectedEOF)

	_, err = FromJSONString(`1 2`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trailing data")

	_, err = FromJSONString(`{"a":`)
	assert.Error(t, err)

	_, err = FromJSONString(`[1,}`)
	assert.Error(t, err)
}

func TestFromJSON_MaxDepth(t *testing.T) {
	deep := strings.Repeat("[", DefaultMaxDepth+1) + strings.Repeat("]", DefaultMaxDepth+1)
	_, err := FromJSONString(deep)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTooDeep)
}

func TestToJSON_Golden(t *testing.T) {
	tests := []struct {
		name string
		v    *Value
		want string
	}{
		{"null", Null(), `null`},
		{"nil value", nil, `null`},
		{"true", Bool(true), `true`},
		{"false", Bool(false), `false`},
		{"int", Int(-42), `-42`},
		{"float", Float(1.5), `1.5`},
		{"float exponent", Float(6.022e23), `6.022e+23`},
		{"nan", Float(math.NaN()), `"NaN"`},
		{"inf", Float(math.Inf(1)), `"inf"`},
		{"neg inf", Float(math.Inf(-1)), `"-inf"`},
		{"string", Str("hi"), `"hi"`},
		{"string escapes", Str("a\"b\\c\nd\te\r"), `"a\"b\\c\nd\te\r"`},
		{"string control", Str("x\x01y"), `"xy"`},
		{"string unicode", Str("héllo ☃"), `"héllo ☃"`},
		{"blob", Blob([]byte{0xDE, 0xAD, 0xBE, 0xEF}), `"3q2+7w=="`},
		{"empty array", Array(), `[]`},
		{"array", Array(Int(1), Str("x"), Null()), `[1,"x",null]`},
		{"empty object", Object(), `{}`},
		{
			"object order preserved",
			Object(Field("z", Int(1)), Field("a", Int(2))),
			`{"z":1,"a":2}`,
		},
		{
			"nested",
			Object(Field("xs", Array(Object(Field("ok", Bool(true)))))),
			`{"xs":[{"ok":true}]}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToJSONString(tt.v)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJSON_RoundTrip(t *testing.T) {
	const src = `{"id":7,"ratio":0.125,"name":"π ≈ 3","items":[null,true,"x"],"meta":{"b":2,"a":1}}`

	v, err := FromJSONString(src)
	require.NoError(t, err)

	out, err := ToJSONString(v)
	require.NoError(t, err)
	assert.Equal(t, src, out, "render must preserve member order and number forms")

	back, err := FromJSONString(out)
	require.NoError(t, err)
	assert.True(t, Equal(v, back))
}

func TestValue_JSONInterop(t *testing.T) {
	type envelope struct {
		Kind string `json:"kind"`
		Body *Value `json:"body"`
	}

	in := envelope{
		Kind: "event",
		Body: Object(Field("n", Int(1)), Field("s", Str("x"))),
	}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Equal(t, `{"kind":"event","body":{"n":1,"s":"x"}}`, string(data))

	var out envelope
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "event", out.Kind)
	assert.True(t, Equal(in.Body, out.Body))
}

func TestAppendJSON(t *testing.T) {
	buf := []byte("x=")
	buf, err := AppendJSON(buf, Int(5))
	require.NoError(t, err)
	assert.Equal(t, "x=5", string(buf))
}
