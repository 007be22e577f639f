package binjson

import (
	"fmt"
	"math"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// ============================================================
// Canonical Form
// ============================================================
//
// The canonical form of a value sorts object members bytewise by key,
// recursively, and normalizes floats (-0 becomes 0, all NaN payloads
// become the canonical NaN). Two values that differ only in object member
// order or float bit noise share one canonical encoding, which is what the
// content digest hashes.

// Canonicalize returns the canonical form of v as a new value. Array order
// is preserved; v itself is not modified.
func Canonicalize(v *Value) *Value {
	if v == nil {
		return Null()
	}

	switch v.kind {
	case KindFloat:
		f := v.floatVal
		if f == 0 {
			return Float(0)
		}
		if math.IsNaN(f) {
			return Float(math.NaN())
		}
		return Float(f)

	case KindArray:
		elems := make([]*Value, len(v.arrVal))
		for i, e := range v.arrVal {
			elems[i] = Canonicalize(e)
		}
		return Array(elems...)

	case KindObject:
		members := make([]Member, len(v.objVal))
		for i, m := range v.objVal {
			members[i] = Member{Key: m.Key, Value: Canonicalize(m.Value)}
		}
		sort.Slice(members, func(i, j int) bool { return members[i].Key < members[j].Key })
		return Object(members...)

	default:
		return v.Clone()
	}
}

// CanonicalEncode encodes the canonical form of v.
func CanonicalEncode(v *Value) []byte {
	return Encode(Canonicalize(v))
}

// Digest returns a 64-bit content digest of v: the xxhash of its canonical
// encoding. Values equal up to object member order digest identically.
func Digest(v *Value) uint64 {
	return xxhash.Sum64(CanonicalEncode(v))
}

// DigestHex returns the content digest as 16 hex digits.
func DigestHex(v *Value) string {
	return fmt.Sprintf("%016x", Digest(v))
}
