package binjson

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"
)

// DefaultMaxDepth bounds container nesting during decoding when
// DecodeOptions.MaxDepth is zero.
const DefaultMaxDepth = 1000

// DecodeOptions controls decoding strictness.
type DecodeOptions struct {
	// MaxDepth bounds container nesting. Zero means DefaultMaxDepth.
	MaxDepth int

	// AllowTrailing accepts input with bytes remaining after the value.
	AllowTrailing bool
}

// DefaultDecodeOptions returns the default decoding options.
func DefaultDecodeOptions() DecodeOptions {
	return DecodeOptions{MaxDepth: DefaultMaxDepth}
}

// Decode decodes a single value from data. The whole input must be
// consumed; trailing bytes are an error.
func Decode(data []byte) (*Value, error) {
	return DecodeWithOptions(data, DefaultDecodeOptions())
}

// DecodeWithOptions decodes a single value from data using opts.
func DecodeWithOptions(data []byte, opts DecodeOptions) (*Value, error) {
	d := newDecoder(data, opts, nil)
	v, err := d.value(0)
	if err != nil {
		return nil, err
	}
	if d.off != len(d.data) && !opts.AllowTrailing {
		return nil, decodeErr(d.off, ErrTrailingBytes)
	}
	return v, nil
}

// DecodePartial decodes one value from the front of data and returns the
// remaining bytes.
func DecodePartial(data []byte) (*Value, []byte, error) {
	d := newDecoder(data, DefaultDecodeOptions(), nil)
	v, err := d.value(0)
	if err != nil {
		return nil, nil, err
	}
	return v, data[d.off:], nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (v *Value) UnmarshalBinary(data []byte) error {
	dec, err := Decode(data)
	if err != nil {
		return err
	}
	*v = *dec
	return nil
}

type decoder struct {
	data     []byte
	off      int
	maxDepth int
	dict     *KeyDict
}

func newDecoder(data []byte, opts DecodeOptions, dict *KeyDict) *decoder {
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &decoder{data: data, maxDepth: maxDepth, dict: dict}
}

func (d *decoder) value(depth int) (*Value, error) {
	tagOff := d.off
	tag, err := d.readByte()
	if err != nil {
		return nil, err
	}

	switch tag {
	case tagNull:
		return Null(), nil

	case tagFalse:
		return Bool(false), nil

	case tagTrue:
		return Bool(true), nil

	case tagInt:
		n, err := d.readVarint()
		if err != nil {
			return nil, err
		}
		return Int(n), nil

	case tagFloat:
		b, err := d.take(8)
		if err != nil {
			return nil, err
		}
		return Float(math.Float64frombits(binary.LittleEndian.Uint64(b))), nil

	case tagString:
		b, err := d.readLengthPrefixed()
		if err != nil {
			return nil, err
		}
		if !utf8.Valid(b) {
			return nil, decodeErr(d.off, ErrInvalidUTF8)
		}
		return Str(string(b)), nil

	case tagBlob:
		b, err := d.readLengthPrefixed()
		if err != nil {
			return nil, err
		}
		blob := make([]byte, len(b))
		copy(blob, b)
		return Blob(blob), nil

	case tagArray:
		if depth+1 > d.maxDepth {
			return nil, decodeErr(tagOff, ErrTooDeep)
		}
		count, err := d.readCount()
		if err != nil {
			return nil, err
		}
		elems := make([]*Value, 0, count)
		for i := 0; i < count; i++ {
			e, err := d.value(depth + 1)
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
		}
		return Array(elems...), nil

	case tagObject:
		if depth+1 > d.maxDepth {
			return nil, decodeErr(tagOff, ErrTooDeep)
		}
		count, err := d.readCount()
		if err != nil {
			return nil, err
		}
		members := make([]Member, 0, count)
		seen := make(map[string]struct{}, count)
		for i := 0; i < count; i++ {
			keyOff := d.off
			key, err := d.readKey()
			if err != nil {
				return nil, err
			}
			if _, dup := seen[key]; dup {
				return nil, decodeErr(keyOff, &DuplicateKeyError{Key: key})
			}
			seen[key] = struct{}{}
			val, err := d.value(depth + 1)
			if err != nil {
				return nil, err
			}
			members = append(members, Member{Key: key, Value: val})
		}
		return Object(members...), nil

	default:
		return nil, decodeErrf(tagOff, "unknown tag 0x%02x", tag)
	}
}

func (d *decoder) readKey() (string, error) {
	if d.dict != nil {
		ref, err := d.readUvarint()
		if err != nil {
			return "", err
		}
		if ref > 0 {
			key, ok := d.dict.Key(int(ref - 1))
			if !ok {
				return "", decodeErrf(d.off, "key dictionary index %d out of range", ref-1)
			}
			return key, nil
		}
		// ref of zero means an inline key follows; both sides intern it.
		key, err := d.readInlineKey()
		if err != nil {
			return "", err
		}
		d.dict.Intern(key)
		return key, nil
	}
	return d.readInlineKey()
}

func (d *decoder) readInlineKey() (string, error) {
	b, err := d.readLengthPrefixed()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", decodeErr(d.off, ErrInvalidUTF8)
	}
	return string(b), nil
}

// readLengthPrefixed reads a uvarint byte length and that many bytes. The
// returned slice aliases the input.
func (d *decoder) readLengthPrefixed() ([]byte, error) {
	n, err := d.readUvarint()
	if err != nil {
		return nil, err
	}
	if n > uint64(len(d.data)-d.off) {
		return nil, decodeErrf(d.off, "length %d exceeds remaining input (%d bytes): %w",
			n, len(d.data)-d.off, ErrUnexpectedEOF)
	}
	return d.take(int(n))
}

// readCount reads a container element count and rejects counts that could
// not possibly fit in the remaining input, so a hostile length claim fails
// before allocating.
func (d *decoder) readCount() (int, error) {
	n, err := d.readUvarint()
	if err != nil {
		return 0, err
	}
	if n > uint64(len(d.data)-d.off) {
		return 0, decodeErrf(d.off, "count %d exceeds remaining input (%d bytes): %w",
			n, len(d.data)-d.off, ErrUnexpectedEOF)
	}
	return int(n), nil
}

func (d *decoder) readByte() (byte, error) {
	if d.off >= len(d.data) {
		return 0, decodeErr(d.off, ErrUnexpectedEOF)
	}
	b := d.data[d.off]
	d.off++
	return b, nil
}

func (d *decoder) take(n int) ([]byte, error) {
	if n > len(d.data)-d.off {
		return nil, decodeErr(d.off, ErrUnexpectedEOF)
	}
	b := d.data[d.off : d.off+n]
	d.off += n
	return b, nil
}

func (d *decoder) readUvarint() (uint64, error) {
	n, size := binary.Uvarint(d.data[d.off:])
	if size <= 0 {
		if size == 0 {
			return 0, decodeErr(d.off, ErrUnexpectedEOF)
		}
		return 0, decodeErr(d.off, fmt.Errorf("uvarint overflows 64 bits"))
	}
	d.off += size
	return n, nil
}

func (d *decoder) readVarint() (int64, error) {
	n, size := binary.Varint(d.data[d.off:])
	if size <= 0 {
		if size == 0 {
			return 0, decodeErr(d.off, ErrUnexpectedEOF)
		}
		return 0, decodeErr(d.off, fmt.Errorf("varint overflows 64 bits"))
	}
	d.off += size
	return n, nil
}
