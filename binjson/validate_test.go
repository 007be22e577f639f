package binjson

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_CleanValue(t *testing.T) {
	v := Object(
		Field("name", Str("ada")),
		Field("scores", Array(Int(1), Float(0.5))),
		Field("raw", Blob([]byte{1, 2})),
	)
	res := Validate(v, DefaultLimits())
	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Warnings)
}

func TestValidate_ReportsPath(t *testing.T) {
	v := Object(
		Field("users", Array(
			Object(Field("name", Str("bad\xffutf8"))),
		)),
	)
	res := Validate(v, DefaultLimits())
	require.False(t, res.Valid)
	require.Len(t, res.Errors, 1)

	assert.Equal(t, "users[0].name", res.Errors[0].Path)
	assert.Equal(t, "invalid_utf8", res.Errors[0].Code)
}

func TestValidate_DuplicateKey(t *testing.T) {
	v := Object(
		Field("a", Int(1)),
		Field("a", Int(2)),
	)
	res := Validate(v, DefaultLimits())
	require.False(t, res.Valid)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "duplicate_key", res.Errors[0].Code)
	assert.Equal(t, "a", res.Errors[0].Path)
}

func TestValidate_MaxDepth(t *testing.T) {
	v := Array(Array(Array(Int(1))))

	res := Validate(v, Limits{MaxDepth: 2})
	require.False(t, res.Valid)
	assert.Equal(t, "max_depth", res.Errors[0].Code)

	res = Validate(v, Limits{MaxDepth: 3})
	assert.True(t, res.Valid)
}

func TestValidate_SizeLimits(t *testing.T) {
	limits := Limits{
		MaxStringLen: 3,
		MaxBlobLen:   2,
		MaxArrayLen:  1,
		MaxObjectLen: 1,
	}

	tests := []struct {
		name string
		v    *Value
		code string
	}{
		{"string", Str("abcd"), "string_too_long"},
		{"blob", Blob([]byte{1, 2, 3}), "blob_too_long"},
		{"array", Array(Int(1), Int(2)), "array_too_long"},
		{"object", Object(Field("a", Int(1)), Field("b", Int(2))), "object_too_long"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Validate(tt.v, limits)
			require.False(t, res.Valid)
			assert.Equal(t, tt.code, res.Errors[0].Code)
		})
	}
}

func TestValidate_AllViolationsReported(t *testing.T) {
	v := Object(
		Field("s", Str("abcd")),
		Field("b", Blob([]byte{1, 2, 3})),
	)
	res := Validate(v, Limits{MaxStringLen: 3, MaxBlobLen: 2})
	require.False(t, res.Valid)
	assert.Len(t, res.Errors, 2)
}

func TestValidate_NonFiniteFloatWarns(t *testing.T) {
	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		res := Validate(Float(f), DefaultLimits())
		assert.True(t, res.Valid, "non-finite floats are valid values")
		require.Len(t, res.Warnings, 1)
		assert.Equal(t, "nonfinite_float", res.Warnings[0].Code)
	}
}

func TestValidate_TotalNodesReportedOnce(t *testing.T) {
	v := Array(Int(1), Int(2), Int(3), Int(4), Int(5))

	res := Validate(v, Limits{MaxTotalNodes: 3})
	require.False(t, res.Valid)

	count := 0
	for _, e := range res.Errors {
		if e.Code == "too_many_nodes" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestValidate_ZeroLimitsAreUnlimited(t *testing.T) {
	v := Int(0)
	for i := 0; i < 50; i++ {
		v = Array(v)
	}
	res := Validate(v, Limits{})
	assert.True(t, res.Valid)
}

func TestIsValid(t *testing.T) {
	assert.True(t, IsValid(Object(Field("k", Int(1)))))
	assert.False(t, IsValid(Str("\xff")))
}

func TestValidationError_Error(t *testing.T) {
	e := &ValidationError{Path: "a.b", Message: "boom"}
	assert.Equal(t, "a.b: boom", e.Error())

	e = &ValidationError{Message: "boom"}
	assert.Equal(t, "boom", e.Error())
}
