package binjson

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalize_SortsObjectKeys(t *testing.T) {
	v := Object(
		Field("z", Int(1)),
		Field("a", Object(Field("y", Int(2)), Field("b", Int(3)))),
	)
	c := Canonicalize(v)

	assert.Equal(t, []string{"a", "z"}, c.Keys())

	inner := c.Get("a")
	require.NotNil(t, inner)
	assert.Equal(t, []string{"b", "y"}, inner.Keys())

	// The source value keeps its order.
	assert.Equal(t, []string{"z", "a"}, v.Keys())
}

func TestCanonicalize_PreservesArrayOrder(t *testing.T) {
	v := Array(Int(3), Int(1), Int(2))
	c := Canonicalize(v)
	assert.True(t, Equal(v, c))
}

func TestCanonicalize_NormalizesFloats(t *testing.T) {
	negZero := Canonicalize(Float(math.Copysign(0, -1)))
	f, err := negZero.AsFloat()
	require.NoError(t, err)
	assert.False(t, math.Signbit(f), "-0 normalizes to +0")

	// A NaN with a nonstandard payload collapses to the canonical NaN.
	odd := Float(math.Float64frombits(0x7FF8000000000001))
	canon := Float(math.NaN())
	assert.Equal(t, CanonicalEncode(canon), CanonicalEncode(odd))
}

func TestDigest_OrderInsensitive(t *testing.T) {
	a := Object(Field("x", Int(1)), Field("y", Int(2)))
	b := Object(Field("y", Int(2)), Field("x", Int(1)))

	assert.False(t, Equal(a, b), "member order distinguishes values")
	assert.Equal(t, Digest(a), Digest(b), "but not digests")
}

func TestDigest_DistinguishesContent(t *testing.T) {
	a := Object(Field("x", Int(1)))
	b := Object(Field("x", Int(2)))
	c := Object(Field("y", Int(1)))

	assert.NotEqual(t, Digest(a), Digest(b))
	assert.NotEqual(t, Digest(a), Digest(c))
}

func TestDigest_ArrayOrderSensitive(t *testing.T) {
	a := Array(Int(1), Int(2))
	b := Array(Int(2), Int(1))
	assert.NotEqual(t, Digest(a), Digest(b))
}

func TestDigest_Stable(t *testing.T) {
	v := Object(
		Field("name", Str("ada")),
		Field("tags", Array(Str("a"), Str("b"))),
	)
	d1 := Digest(v)
	d2 := Digest(v.Clone())
	assert.Equal(t, d1, d2)
}

func TestDigestHex(t *testing.T) {
	h := DigestHex(Null())
	assert.Len(t, h, 16)
	assert.Regexp(t, "^[0-9a-f]{16}$", h)
}

func TestCanonicalEncode_DecodesToCanonicalForm(t *testing.T) {
	v := Object(Field("b", Int(2)), Field("a", Int(1)))

	got, err := Decode(CanonicalEncode(v))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got.Keys())
}
