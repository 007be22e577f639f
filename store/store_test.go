package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Neumenon/binjson/binjson"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_PutGet(t *testing.T) {
	s := openTestStore(t)

	want := binjson.Object(
		binjson.Field("zeta", binjson.Int(1)),
		binjson.Field("alpha", binjson.Str("first by insertion")),
		binjson.Field("nested", binjson.Array(binjson.Bool(true), binjson.Null())),
	)
	require.NoError(t, s.Put("doc", want))

	got, err := s.Get("doc")
	require.NoError(t, err)
	assert.True(t, binjson.Equal(got, want))

	// Member order survives storage.
	assert.Equal(t, []string{"zeta", "alpha", "nested"}, got.Keys())
}

func TestStore_GetMissing(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Get("absent")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStore_Overwrite(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Put("k", binjson.Int(1)))
	first, err := s.Digest("k")
	require.NoError(t, err)

	require.NoError(t, s.Put("k", binjson.Int(2)))
	got, err := s.Get("k")
	require.NoError(t, err)
	assert.True(t, binjson.Equal(got, binjson.Int(2)))

	second, err := s.Digest("k")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestStore_Delete(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Put("k", binjson.Str("v")))
	require.NoError(t, s.Delete("k"))

	_, err := s.Get("k")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = s.Digest("k")
	assert.True(t, errors.Is(err, ErrNotFound))

	assert.True(t, errors.Is(s.Delete("k"), ErrNotFound))
}

func TestStore_List(t *testing.T) {
	s := openTestStore(t)

	keys, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, keys)

	for _, k := range []string{"c", "a", "b"} {
		require.NoError(t, s.Put(k, binjson.Str(k)))
	}

	keys, err = s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, keys)
}

func TestStore_Digest(t *testing.T) {
	s := openTestStore(t)

	v := binjson.Object(
		binjson.Field("b", binjson.Int(2)),
		binjson.Field("a", binjson.Int(1)),
	)
	require.NoError(t, s.Put("k", v))

	dig, err := s.Digest("k")
	require.NoError(t, err)
	assert.Equal(t, binjson.Digest(v), dig)

	// The digest is canonical, so a reordered equivalent matches.
	reordered := binjson.Object(
		binjson.Field("a", binjson.Int(1)),
		binjson.Field("b", binjson.Int(2)),
	)
	assert.Equal(t, binjson.Digest(reordered), dig)
}

func TestStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path, nil)
	require.NoError(t, err)
	want := binjson.Object(binjson.Field("persisted", binjson.Bool(true)))
	require.NoError(t, s.Put("doc", want))
	wantDig, err := s.Digest("doc")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path, nil)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get("doc")
	require.NoError(t, err)
	assert.True(t, binjson.Equal(got, want))

	dig, err := s.Digest("doc")
	require.NoError(t, err)
	assert.Equal(t, wantDig, dig)
}
