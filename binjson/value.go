package binjson

import (
	"bytes"
	"fmt"
	"math"
)

// Kind identifies the type of a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindBlob
	KindArray
	KindObject
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBlob:
		return "blob"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value represents a JSON-like dynamic value: a finite tree of nulls,
// booleans, numbers, strings, blobs, arrays, and objects. The zero Value
// and a nil *Value both behave as null.
type Value struct {
	kind Kind

	// Scalar values (only one valid based on kind)
	boolVal  bool
	intVal   int64
	floatVal float64
	strVal   string
	blobVal  []byte

	// Container values
	arrVal []*Value
	objVal []Member
}

// Member represents a key-value pair in an object. Member order is the
// object's document order and is preserved by the codec.
type Member struct {
	Key   string
	Value *Value
}

// ============================================================
// Constructors
// ============================================================

// Null creates a null value.
func Null() *Value {
	return &Value{kind: KindNull}
}

// Bool creates a boolean value.
func Bool(v bool) *Value {
	return &Value{kind: KindBool, boolVal: v}
}

// Int creates an integer value.
func Int(v int64) *Value {
	return &Value{kind: KindInt, intVal: v}
}

// Float creates a float value.
func Float(v float64) *Value {
	return &Value{kind: KindFloat, floatVal: v}
}

// Str creates a string value.
func Str(v string) *Value {
	return &Value{kind: KindString, strVal: v}
}

// Blob creates a blob value. The byte slice is not copied.
func Blob(v []byte) *Value {
	return &Value{kind: KindBlob, blobVal: v}
}

// Array creates an array value.
func Array(values ...*Value) *Value {
	return &Value{kind: KindArray, arrVal: values}
}

// Object creates an object value from key-value members.
func Object(members ...Member) *Value {
	return &Value{kind: KindObject, objVal: members}
}

// Field creates a Member for use in Object construction.
func Field(key string, value *Value) Member {
	return Member{Key: key, Value: value}
}

// ============================================================
// Accessors
// ============================================================

// Kind returns the value kind.
func (v *Value) Kind() Kind {
	if v == nil {
		return KindNull
	}
	return v.kind
}

// IsNull returns true if this is a null value.
func (v *Value) IsNull() bool {
	return v == nil || v.kind == KindNull
}

// AsBool returns the boolean value.
func (v *Value) AsBool() (bool, error) {
	if v == nil {
		return false, fmt.Errorf("binjson: nil value")
	}
	if v.kind != KindBool {
		return false, fmt.Errorf("binjson: expected bool, got %s", v.kind)
	}
	return v.boolVal, nil
}

// AsInt returns the integer value.
func (v *Value) AsInt() (int64, error) {
	if v == nil {
		return 0, fmt.Errorf("binjson: nil value")
	}
	if v.kind != KindInt {
		return 0, fmt.Errorf("binjson: expected int, got %s", v.kind)
	}
	return v.intVal, nil
}

// AsFloat returns the float value.
func (v *Value) AsFloat() (float64, error) {
	if v == nil {
		return 0, fmt.Errorf("binjson: nil value")
	}
	if v.kind != KindFloat {
		return 0, fmt.Errorf("binjson: expected float, got %s", v.kind)
	}
	return v.floatVal, nil
}

// AsStr returns the string value.
func (v *Value) AsStr() (string, error) {
	if v == nil {
		return "", fmt.Errorf("binjson: nil value")
	}
	if v.kind != KindString {
		return "", fmt.Errorf("binjson: expected string, got %s", v.kind)
	}
	return v.strVal, nil
}

// AsBlob returns the blob bytes.
func (v *Value) AsBlob() ([]byte, error) {
	if v == nil {
		return nil, fmt.Errorf("binjson: nil value")
	}
	if v.kind != KindBlob {
		return nil, fmt.Errorf("binjson: expected blob, got %s", v.kind)
	}
	return v.blobVal, nil
}

// AsArray returns the array elements.
func (v *Value) AsArray() ([]*Value, error) {
	if v == nil {
		return nil, fmt.Errorf("binjson: nil value")
	}
	if v.kind != KindArray {
		return nil, fmt.Errorf("binjson: expected array, got %s", v.kind)
	}
	return v.arrVal, nil
}

// AsObject returns the object members in document order.
func (v *Value) AsObject() ([]Member, error) {
	if v == nil {
		return nil, fmt.Errorf("binjson: nil value")
	}
	if v.kind != KindObject {
		return nil, fmt.Errorf("binjson: expected object, got %s", v.kind)
	}
	return v.objVal, nil
}

// Len returns the length of an array or object.
func (v *Value) Len() int {
	if v == nil {
		return 0
	}
	switch v.kind {
	case KindArray:
		return len(v.arrVal)
	case KindObject:
		return len(v.objVal)
	default:
		return 0
	}
}

// Get returns a member value by key from an object, or nil if absent.
func (v *Value) Get(key string) *Value {
	if v == nil || v.kind != KindObject {
		return nil
	}
	for _, m := range v.objVal {
		if m.Key == key {
			return m.Value
		}
	}
	return nil
}

// Has reports whether an object has a member with the given key.
func (v *Value) Has(key string) bool {
	if v == nil || v.kind != KindObject {
		return false
	}
	for _, m := range v.objVal {
		if m.Key == key {
			return true
		}
	}
	return false
}

// Keys returns the object keys in document order.
func (v *Value) Keys() []string {
	if v == nil || v.kind != KindObject {
		return nil
	}
	keys := make([]string, len(v.objVal))
	for i, m := range v.objVal {
		keys[i] = m.Key
	}
	return keys
}

// Index returns the i-th element of an array.
func (v *Value) Index(i int) (*Value, error) {
	if v == nil || v.kind != KindArray {
		return nil, fmt.Errorf("binjson: not an array")
	}
	if i < 0 || i >= len(v.arrVal) {
		return nil, fmt.Errorf("binjson: index %d out of bounds (len=%d)", i, len(v.arrVal))
	}
	return v.arrVal[i], nil
}

// ============================================================
// Mutators
// ============================================================

// Set sets a member value on an object. An existing key keeps its position;
// a new key is appended. Panics if the value is not an object.
func (v *Value) Set(key string, val *Value) {
	if v == nil || v.kind != KindObject {
		panic("binjson: cannot set on non-object")
	}
	for i := range v.objVal {
		if v.objVal[i].Key == key {
			v.objVal[i].Value = val
			return
		}
	}
	v.objVal = append(v.objVal, Member{Key: key, Value: val})
}

// Delete removes a member by key from an object, reporting whether it was
// present. Panics if the value is not an object.
func (v *Value) Delete(key string) bool {
	if v == nil || v.kind != KindObject {
		panic("binjson: cannot delete on non-object")
	}
	for i := range v.objVal {
		if v.objVal[i].Key == key {
			v.objVal = append(v.objVal[:i], v.objVal[i+1:]...)
			return true
		}
	}
	return false
}

// Append adds an element to an array. Panics if the value is not an array.
func (v *Value) Append(val *Value) {
	if v == nil || v.kind != KindArray {
		panic("binjson: cannot append to non-array")
	}
	v.arrVal = append(v.arrVal, val)
}

// ============================================================
// Numeric Coercion Helpers
// ============================================================

// Number returns a numeric value as float64 if int or float.
func (v *Value) Number() (float64, bool) {
	if v == nil {
		return 0, false
	}
	switch v.kind {
	case KindInt:
		return float64(v.intVal), true
	case KindFloat:
		return v.floatVal, true
	default:
		return 0, false
	}
}

// IsNumeric returns true if int or float.
func (v *Value) IsNumeric() bool {
	return v != nil && (v.kind == KindInt || v.kind == KindFloat)
}

// ============================================================
// Equality and Cloning
// ============================================================

// Equal reports whether two values are deeply equal. Object member order is
// significant. Floats compare with ==, except that NaN equals NaN, so Equal
// is an equivalence relation and the codec round-trip preserves it.
func Equal(a, b *Value) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	switch a.Kind() {
	case KindNull:
		return true
	case KindBool:
		return a.boolVal == b.boolVal
	case KindInt:
		return a.intVal == b.intVal
	case KindFloat:
		if math.IsNaN(a.floatVal) && math.IsNaN(b.floatVal) {
			return true
		}
		return a.floatVal == b.floatVal
	case KindString:
		return a.strVal == b.strVal
	case KindBlob:
		return bytes.Equal(a.blobVal, b.blobVal)
	case KindArray:
		if len(a.arrVal) != len(b.arrVal) {
			return false
		}
		for i := range a.arrVal {
			if !Equal(a.arrVal[i], b.arrVal[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(a.objVal) != len(b.objVal) {
			return false
		}
		for i := range a.objVal {
			if a.objVal[i].Key != b.objVal[i].Key {
				return false
			}
			if !Equal(a.objVal[i].Value, b.objVal[i].Value) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Clone returns a deep copy sharing no mutable state with the original.
func (v *Value) Clone() *Value {
	if v == nil {
		return Null()
	}
	switch v.kind {
	case KindBlob:
		b := make([]byte, len(v.blobVal))
		copy(b, v.blobVal)
		return Blob(b)
	case KindArray:
		elems := make([]*Value, len(v.arrVal))
		for i, e := range v.arrVal {
			elems[i] = e.Clone()
		}
		return Array(elems...)
	case KindObject:
		members := make([]Member, len(v.objVal))
		for i, m := range v.objVal {
			members[i] = Member{Key: m.Key, Value: m.Value.Clone()}
		}
		return Object(members...)
	default:
		c := *v
		return &c
	}
}
