package binjson

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyDict_Intern(t *testing.T) {
	d := NewKeyDict(DefaultKeyDictOptions())

	assert.Equal(t, 0, d.Intern("alpha"))
	assert.Equal(t, 1, d.Intern("beta"))
	assert.Equal(t, 0, d.Intern("alpha"), "existing key keeps its index")
	assert.Equal(t, 2, d.Len())

	idx, ok := d.Lookup("beta")
	require.True(t, ok)
	assert.Equal(t, 1, idx)

	key, ok := d.Key(1)
	require.True(t, ok)
	assert.Equal(t, "beta", key)

	_, ok = d.Key(2)
	assert.False(t, ok)
	_, ok = d.Key(-1)
	assert.False(t, ok)
}

func TestKeyDict_Freeze(t *testing.T) {
	d := NewKeyDict(DefaultKeyDictOptions())
	d.Intern("a")
	d.Freeze()

	assert.True(t, d.IsFrozen())
	assert.Equal(t, -1, d.Intern("b"))
	assert.Equal(t, 0, d.Intern("a"), "frozen dict still resolves existing keys")

	d.Unfreeze()
	assert.Equal(t, 1, d.Intern("b"))
}

func TestKeyDict_Full(t *testing.T) {
	d := NewKeyDict(KeyDictOptions{MaxEntries: 2})
	assert.Equal(t, 0, d.Intern("a"))
	assert.Equal(t, 1, d.Intern("b"))
	assert.Equal(t, -1, d.Intern("c"))
	assert.Equal(t, 2, d.Len())
}

func TestKeyDict_Reset(t *testing.T) {
	d := NewKeyDict(DefaultKeyDictOptions())
	d.Intern("a")
	d.Freeze()
	d.Reset()

	assert.Equal(t, 0, d.Len())
	assert.False(t, d.IsFrozen())
	assert.Equal(t, 0, d.Intern("z"))
}

func TestKeyDict_Preload(t *testing.T) {
	d := NewKeyDict(KeyDictOptions{Preload: []string{"id", "name"}})
	assert.Equal(t, 2, d.Len())

	idx, ok := d.Lookup("name")
	require.True(t, ok)
	assert.Equal(t, 1, idx)
}

func TestEncodeWithDict_WireForm(t *testing.T) {
	v := Object(Field("k", Int(1)))

	// First encode carries the key inline (ref 0, then length + bytes).
	enc := NewKeyDict(DefaultKeyDictOptions())
	first := EncodeWithDict(v, enc)
	assert.Equal(t, "080100016b0302", hex.EncodeToString(first))

	// Second encode references entry 0 as ref 1.
	second := EncodeWithDict(v, enc)
	assert.Equal(t, "0801010302", hex.EncodeToString(second))
	assert.Less(t, len(second), len(first))
}

func TestEncodeWithDict_RoundTrip(t *testing.T) {
	enc := NewKeyDict(DefaultKeyDictOptions())
	dec := NewKeyDict(DefaultKeyDictOptions())

	values := []*Value{
		Object(Field("host", Str("a")), Field("port", Int(1))),
		Object(Field("host", Str("b")), Field("port", Int(2))),
		Object(Field("host", Str("c")), Field("seen", Bool(true))),
	}
	for i, v := range values {
		data := EncodeWithDict(v, enc)
		got, err := DecodeWithDict(data, dec)
		require.NoError(t, err, "value %d", i)
		assert.True(t, Equal(v, got), "value %d", i)
	}

	// The decoder learned the same table.
	assert.Equal(t, enc.Len(), dec.Len())
	for i := 0; i < enc.Len(); i++ {
		ek, _ := enc.Key(i)
		dk, ok := dec.Key(i)
		require.True(t, ok)
		assert.Equal(t, ek, dk)
	}
}

func TestEncodeWithDict_FullDictStaysInSync(t *testing.T) {
	enc := NewKeyDict(KeyDictOptions{MaxEntries: 1})
	dec := NewKeyDict(KeyDictOptions{MaxEntries: 1})

	v := Object(Field("a", Int(1)), Field("b", Int(2)))
	for i := 0; i < 3; i++ {
		got, err := DecodeWithDict(EncodeWithDict(v, enc), dec)
		require.NoError(t, err)
		assert.True(t, Equal(v, got))
	}
	assert.Equal(t, 1, enc.Len(), "only the first key fits")
	assert.Equal(t, 1, dec.Len())
}

func TestDecodeWithDict_BadIndex(t *testing.T) {
	// object{ ref 6 -> entry 5 } against an empty dictionary.
	data, err := hex.DecodeString("08010600")
	require.NoError(t, err)

	_, err = DecodeWithDict(data, NewKeyDict(DefaultKeyDictOptions()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestDecodeWithDict_DuplicateViaRef(t *testing.T) {
	// Key "a" inline, then the same key again by reference.
	dict := NewKeyDict(DefaultKeyDictOptions())
	raw, err := hex.DecodeString("0802000161000100")
	require.NoError(t, err)

	_, err = DecodeWithDict(raw, dict)
	require.Error(t, err)

	var dup *DuplicateKeyError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "a", dup.Key)
}

func TestKeyDict_SerializeParse(t *testing.T) {
	d := NewKeyDict(DefaultKeyDictOptions())
	d.Intern("id")
	d.Intern("name")
	d.Intern("tags")

	data := d.Serialize()
	assert.Equal(t, "BJKD", string(data[:4]))

	parsed, err := ParseKeyDict(data, DefaultKeyDictOptions())
	require.NoError(t, err)
	require.Equal(t, 3, parsed.Len())
	for i := 0; i < d.Len(); i++ {
		want, _ := d.Key(i)
		got, ok := parsed.Key(i)
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
}

func TestParseKeyDict_Corrupt(t *testing.T) {
	d := NewKeyDict(DefaultKeyDictOptions())
	d.Intern("key")
	data := d.Serialize()

	_, err := ParseKeyDict(data[:5], DefaultKeyDictOptions())
	assert.ErrorContains(t, err, "too short")

	bad := append([]byte{}, data...)
	bad[0] = 'X'
	_, err = ParseKeyDict(bad, DefaultKeyDictOptions())
	assert.ErrorContains(t, err, "magic")

	flipped := append([]byte{}, data...)
	flipped[len(flipped)-1] ^= 0xFF
	_, err = ParseKeyDict(flipped, DefaultKeyDictOptions())
	assert.ErrorContains(t, err, "checksum")

	truncated := data[:len(data)-1]
	_, err = ParseKeyDict(truncated, DefaultKeyDictOptions())
	assert.ErrorContains(t, err, "truncated")
}

func TestParseKeyDict_TooManyEntries(t *testing.T) {
	d := NewKeyDict(DefaultKeyDictOptions())
	d.Intern("a")
	d.Intern("b")
	data := d.Serialize()

	_, err := ParseKeyDict(data, KeyDictOptions{MaxEntries: 1})
	assert.ErrorContains(t, err, "max entries")
}
