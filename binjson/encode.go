package binjson

import (
	"encoding/binary"
	"math"
	"math/bits"
)

// Wire tags, one byte per encoded form. Booleans use two tags so they carry
// no payload.
const (
	tagNull   = 0x00
	tagFalse  = 0x01
	tagTrue   = 0x02
	tagInt    = 0x03
	tagFloat  = 0x04
	tagString = 0x05
	tagBlob   = 0x06
	tagArray  = 0x07
	tagObject = 0x08
)

// Binary layout per tag:
//
//	null/false/true  tag only
//	int              zig-zag varint
//	float            8 bytes IEEE-754 binary64, little-endian
//	string, blob     uvarint byte length + bytes
//	array            uvarint count + encoded elements
//	object           uvarint count + (key, value) pairs
//
// Object keys are uvarint length + UTF-8 bytes with no tag. The encoding is
// headerless and self-terminating.

// Encode encodes a value to its binary form.
func Encode(v *Value) []byte {
	return AppendEncode(make([]byte, 0, EncodedSize(v)), v)
}

// AppendEncode appends the binary form of v to dst and returns the
// extended slice.
func AppendEncode(dst []byte, v *Value) []byte {
	return appendValue(dst, v, nil)
}

func appendValue(dst []byte, v *Value, dict *KeyDict) []byte {
	if v == nil {
		return append(dst, tagNull)
	}

	switch v.kind {
	case KindNull:
		return append(dst, tagNull)

	case KindBool:
		if v.boolVal {
			return append(dst, tagTrue)
		}
		return append(dst, tagFalse)

	case KindInt:
		dst = append(dst, tagInt)
		return binary.AppendVarint(dst, v.intVal)

	case KindFloat:
		dst = append(dst, tagFloat)
		return binary.LittleEndian.AppendUint64(dst, math.Float64bits(v.floatVal))

	case KindString:
		dst = append(dst, tagString)
		dst = binary.AppendUvarint(dst, uint64(len(v.strVal)))
		return append(dst, v.strVal...)

	case KindBlob:
		dst = append(dst, tagBlob)
		dst = binary.AppendUvarint(dst, uint64(len(v.blobVal)))
		return append(dst, v.blobVal...)

	case KindArray:
		dst = append(dst, tagArray)
		dst = binary.AppendUvarint(dst, uint64(len(v.arrVal)))
		for _, e := range v.arrVal {
			dst = appendValue(dst, e, dict)
		}
		return dst

	case KindObject:
		dst = append(dst, tagObject)
		dst = binary.AppendUvarint(dst, uint64(len(v.objVal)))
		for _, m := range v.objVal {
			dst = appendKey(dst, m.Key, dict)
			dst = appendValue(dst, m.Value, dict)
		}
		return dst

	default:
		return append(dst, tagNull)
	}
}

func appendKey(dst []byte, key string, dict *KeyDict) []byte {
	if dict != nil {
		if idx, ok := dict.Lookup(key); ok {
			return binary.AppendUvarint(dst, uint64(idx)+1)
		}
		dict.Intern(key)
		dst = binary.AppendUvarint(dst, 0)
	}
	dst = binary.AppendUvarint(dst, uint64(len(key)))
	return append(dst, key...)
}

// EncodedSize returns the exact number of bytes Encode produces for v.
func EncodedSize(v *Value) int {
	if v == nil {
		return 1
	}

	switch v.kind {
	case KindNull, KindBool:
		return 1
	case KindInt:
		return 1 + varintLen(v.intVal)
	case KindFloat:
		return 9
	case KindString:
		return 1 + uvarintLen(uint64(len(v.strVal))) + len(v.strVal)
	case KindBlob:
		return 1 + uvarintLen(uint64(len(v.blobVal))) + len(v.blobVal)
	case KindArray:
		n := 1 + uvarintLen(uint64(len(v.arrVal)))
		for _, e := range v.arrVal {
			n += EncodedSize(e)
		}
		return n
	case KindObject:
		n := 1 + uvarintLen(uint64(len(v.objVal)))
		for _, m := range v.objVal {
			n += uvarintLen(uint64(len(m.Key))) + len(m.Key)
			n += EncodedSize(m.Value)
		}
		return n
	default:
		return 1
	}
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (v *Value) MarshalBinary() ([]byte, error) {
	return Encode(v), nil
}

// uvarintLen returns the encoded size of x as a uvarint.
func uvarintLen(x uint64) int {
	return (bits.Len64(x|1) + 6) / 7
}

// varintLen returns the encoded size of x as a zig-zag varint.
func varintLen(x int64) int {
	ux := uint64(x) << 1
	if x < 0 {
		ux = ^ux
	}
	return uvarintLen(ux)
}
