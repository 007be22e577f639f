package binjson

import (
	"errors"
	"fmt"
	"reflect"
)

// Decode errors
var (
	ErrUnexpectedEOF = errors.New("unexpected eof")
	ErrTrailingBytes = errors.New("trailing bytes after value")
	ErrTooDeep       = errors.New("max depth exceeded")
	ErrInvalidUTF8   = errors.New("invalid utf-8 in string")
	ErrIntOverflow   = errors.New("integer overflows int64")
)

// DecodeError reports a malformed byte stream. Offset is the byte position
// the decoder had reached when it failed. It unwraps to the underlying
// cause, so errors.Is works against the sentinels above.
type DecodeError struct {
	Offset int
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("binjson: decode error at offset %d: %v", e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ExpectedError reports a kind mismatch during conversion: the conversion
// needed Want but found Got. Want and Got are kind names or shape
// descriptions such as "string key" or "length 3".
type ExpectedError struct {
	Want string
	Got  string
}

func (e *ExpectedError) Error() string {
	return fmt.Sprintf("binjson: expected %s, got %s", e.Want, e.Got)
}

// DuplicateKeyError reports an object key that appeared more than once.
type DuplicateKeyError struct {
	Key string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("binjson: key %q was duplicated", e.Key)
}

// UnknownFieldError reports an object key with no matching struct field,
// raised only when unknown fields are disallowed.
type UnknownFieldError struct {
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("binjson: field %q was unknown", e.Field)
}

// UnsupportedTypeError reports a Go type the bridge cannot convert.
type UnsupportedTypeError struct {
	Type reflect.Type
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("binjson: unsupported type %s", e.Type)
}

// InvalidTargetError reports a FromValue target that is not a non-nil
// pointer.
type InvalidTargetError struct {
	Type reflect.Type
}

func (e *InvalidTargetError) Error() string {
	if e.Type == nil {
		return "binjson: target must be a non-nil pointer, got nil"
	}
	if e.Type.Kind() != reflect.Pointer {
		return fmt.Sprintf("binjson: target must be a non-nil pointer, got %s", e.Type)
	}
	return fmt.Sprintf("binjson: target must be a non-nil pointer, got nil %s", e.Type)
}

// expected builds an ExpectedError from a wanted description and the kind
// actually found.
func expected(want string, got Kind) error {
	return &ExpectedError{Want: want, Got: got.String()}
}

// decodeErr wraps a cause with the offset it occurred at.
func decodeErr(offset int, err error) error {
	return &DecodeError{Offset: offset, Err: err}
}

// decodeErrf wraps a formatted message with the offset it occurred at.
func decodeErrf(offset int, format string, args ...any) error {
	return &DecodeError{Offset: offset, Err: fmt.Errorf(format, args...)}
}
