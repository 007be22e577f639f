package binjson

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
)

// ============================================================
// JSON Interop
// ============================================================
//
// Converts between JSON text and Value. Decoding is token-level so object
// member order survives (a map round-trip would shuffle it). Two lossy
// corners are inherent to JSON: blobs render as base64 strings, and
// non-finite floats render as the strings "NaN", "inf", "-inf".

// FromJSON parses JSON text into a Value. Object member order is
// preserved; duplicate keys are an error. Numbers become Int when they
// parse as int64, otherwise Float.
func FromJSON(data []byte) (*Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := parseJSONValue(dec, 0)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("binjson: trailing data after JSON value")
	}
	return v, nil
}

// FromJSONString parses a JSON string into a Value.
func FromJSONString(s string) (*Value, error) {
	return FromJSON([]byte(s))
}

func parseJSONValue(dec *json.Decoder, depth int) (*Value, error) {
	if depth > DefaultMaxDepth {
		return nil, fmt.Errorf("binjson: %w", ErrTooDeep)
	}

	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("binjson: %w", ErrUnexpectedEOF)
		}
		return nil, fmt.Errorf("binjson: JSON parse error: %w", err)
	}

	switch t := tok.(type) {
	case nil:
		return Null(), nil

	case bool:
		return Bool(t), nil

	case string:
		return Str(t), nil

	case json.Number:
		return numberToValue(t)

	case json.Delim:
		switch t {
		case '[':
			var elems []*Value
			for dec.More() {
				e, err := parseJSONValue(dec, depth+1)
				if err != nil {
					return nil, err
				}
				elems = append(elems, e)
			}
			if _, err := dec.Token(); err != nil {
				return nil, fmt.Errorf("binjson: JSON parse error: %w", err)
			}
			return Array(elems...), nil

		case '{':
			var members []Member
			seen := make(map[string]struct{})
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, fmt.Errorf("binjson: JSON parse error: %w", err)
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("binjson: JSON object key is not a string: %v", keyTok)
				}
				if _, dup := seen[key]; dup {
					return nil, &DuplicateKeyError{Key: key}
				}
				seen[key] = struct{}{}

				val, err := parseJSONValue(dec, depth+1)
				if err != nil {
					return nil, err
				}
				members = append(members, Member{Key: key, Value: val})
			}
			if _, err := dec.Token(); err != nil {
				return nil, fmt.Errorf("binjson: JSON parse error: %w", err)
			}
			return Object(members...), nil
		}
		return nil, fmt.Errorf("binjson: unexpected JSON delimiter %v", t)

	default:
		return nil, fmt.Errorf("binjson: unexpected JSON token %v", tok)
	}
}

func numberToValue(n json.Number) (*Value, error) {
	if i, err := n.Int64(); err == nil {
		return Int(i), nil
	}
	f, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("binjson: invalid JSON number %q: %w", n.String(), err)
	}
	return Float(f), nil
}

// ToJSON renders a Value as compact JSON text. Object member order is
// preserved. Blobs become base64 strings; NaN and infinities become the
// strings "NaN", "inf", "-inf".
func ToJSON(v *Value) ([]byte, error) {
	return AppendJSON(make([]byte, 0, 64), v)
}

// ToJSONString renders a Value as a JSON string.
func ToJSONString(v *Value) (string, error) {
	data, err := ToJSON(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// AppendJSON appends the JSON rendering of v to dst.
func AppendJSON(dst []byte, v *Value) ([]byte, error) {
	if v == nil {
		return append(dst, "null"...), nil
	}

	switch v.kind {
	case KindNull:
		return append(dst, "null"...), nil

	case KindBool:
		if v.boolVal {
			return append(dst, "true"...), nil
		}
		return append(dst, "false"...), nil

	case KindInt:
		return strconv.AppendInt(dst, v.intVal, 10), nil

	case KindFloat:
		return appendJSONFloat(dst, v.floatVal), nil

	case KindString:
		return appendJSONString(dst, v.strVal), nil

	case KindBlob:
		dst = append(dst, '"')
		n := len(dst)
		dst = append(dst, make([]byte, base64.StdEncoding.EncodedLen(len(v.blobVal)))...)
		base64.StdEncoding.Encode(dst[n:], v.blobVal)
		return append(dst, '"'), nil

	case KindArray:
		dst = append(dst, '[')
		for i, e := range v.arrVal {
			if i > 0 {
				dst = append(dst, ',')
			}
			var err error
			dst, err = AppendJSON(dst, e)
			if err != nil {
				return nil, err
			}
		}
		return append(dst, ']'), nil

	case KindObject:
		dst = append(dst, '{')
		for i, m := range v.objVal {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = appendJSONString(dst, m.Key)
			dst = append(dst, ':')
			var err error
			dst, err = AppendJSON(dst, m.Value)
			if err != nil {
				return nil, err
			}
		}
		return append(dst, '}'), nil

	default:
		return nil, fmt.Errorf("binjson: unsupported kind %s", v.kind)
	}
}

func appendJSONFloat(dst []byte, f float64) []byte {
	switch {
	case math.IsNaN(f):
		return append(dst, `"NaN"`...)
	case math.IsInf(f, 1):
		return append(dst, `"inf"`...)
	case math.IsInf(f, -1):
		return append(dst, `"-inf"`...)
	}

	// Shortest round-trip form. The 'g' verb emits a lowercase exponent,
	// which stays inside JSON's number grammar.
	return strconv.AppendFloat(dst, f, 'g', -1, 64)
}

// appendJSONString appends s as a quoted JSON string with minimal escapes.
func appendJSONString(dst []byte, s string) []byte {
	dst = append(dst, '"')
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 0x20 && c != '"' && c != '\\' {
			continue
		}
		dst = append(dst, s[start:i]...)
		switch c {
		case '"':
			dst = append(dst, '\\', '"')
		case '\\':
			dst = append(dst, '\\', '\\')
		case '\n':
			dst = append(dst, '\\', 'n')
		case '\r':
			dst = append(dst, '\\', 'r')
		case '\t':
			dst = append(dst, '\\', 't')
		default:
			dst = append(dst, '\\', 'u', '0', '0', hexDigits[c>>4], hexDigits[c&0xF])
		}
		start = i + 1
	}
	dst = append(dst, s[start:]...)
	return append(dst, '"')
}

const hexDigits = "0123456789abcdef"

// MarshalJSON implements json.Marshaler, so a Value embeds naturally in
// encoding/json structs.
func (v *Value) MarshalJSON() ([]byte, error) {
	return ToJSON(v)
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := FromJSON(data)
	if err != nil {
		return err
	}
	*v = *parsed
	return nil
}
