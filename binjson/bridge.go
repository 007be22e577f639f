package binjson

import (
	"encoding"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
	"sync"
)

// ============================================================
// Typed Bridge
// ============================================================
//
// Converts between arbitrary Go values and Value so statically-typed data
// can pass through the codec. Struct fields honor `binjson:"name,omitempty"`
// tags, falling back to `json` tags so existing annotated types work
// unchanged.

// ValueMarshaler is implemented by types that convert themselves to a Value.
type ValueMarshaler interface {
	MarshalValue() (*Value, error)
}

// ValueUnmarshaler is implemented by types that populate themselves from a
// Value.
type ValueUnmarshaler interface {
	UnmarshalValue(*Value) error
}

// BridgeOpts configures typed-bridge behavior.
type BridgeOpts struct {
	// DisallowUnknownFields makes FromValue fail when an object member has
	// no matching struct field.
	DisallowUnknownFields bool
}

// DefaultBridgeOpts returns the default (lenient) options.
func DefaultBridgeOpts() BridgeOpts {
	return BridgeOpts{}
}

var (
	valueType            = reflect.TypeOf(Value{})
	valuePtrType         = reflect.TypeOf((*Value)(nil))
	valueMarshalerType   = reflect.TypeOf((*ValueMarshaler)(nil)).Elem()
	valueUnmarshalerType = reflect.TypeOf((*ValueUnmarshaler)(nil)).Elem()
	textMarshalerType    = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
	textUnmarshalerType  = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
)

// ============================================================
// Go to Value
// ============================================================

// ToValue converts an arbitrary Go value to a Value. Maps convert to
// objects with keys sorted bytewise, since Go map order is unstable;
// struct fields keep declaration order.
func ToValue(x any) (*Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case *Value:
		return t.Clone(), nil
	case Value:
		return t.Clone(), nil
	}
	return toValue(reflect.ValueOf(x), 0)
}

func toValue(rv reflect.Value, depth int) (*Value, error) {
	if depth > DefaultMaxDepth {
		return nil, fmt.Errorf("binjson: %w", ErrTooDeep)
	}
	if !rv.IsValid() {
		return Null(), nil
	}

	t := rv.Type()
	if t == valuePtrType {
		if rv.IsNil() {
			return Null(), nil
		}
		return rv.Interface().(*Value).Clone(), nil
	}
	if t == valueType {
		vv := rv.Interface().(Value)
		return vv.Clone(), nil
	}
	if t.Implements(valueMarshalerType) {
		if rv.Kind() == reflect.Pointer && rv.IsNil() {
			return Null(), nil
		}
		return rv.Interface().(ValueMarshaler).MarshalValue()
	}
	if rv.Kind() != reflect.Pointer && rv.CanAddr() && reflect.PointerTo(t).Implements(valueMarshalerType) {
		return rv.Addr().Interface().(ValueMarshaler).MarshalValue()
	}
	if t.Implements(textMarshalerType) {
		if rv.Kind() == reflect.Pointer && rv.IsNil() {
			return Null(), nil
		}
		text, err := rv.Interface().(encoding.TextMarshaler).MarshalText()
		if err != nil {
			return nil, err
		}
		return Str(string(text)), nil
	}
	if rv.Kind() != reflect.Pointer && rv.CanAddr() && reflect.PointerTo(t).Implements(textMarshalerType) {
		text, err := rv.Addr().Interface().(encoding.TextMarshaler).MarshalText()
		if err != nil {
			return nil, err
		}
		return Str(string(text)), nil
	}

	switch rv.Kind() {
	case reflect.Bool:
		return Bool(rv.Bool()), nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return nil, fmt.Errorf("binjson: uint64 value %d: %w", u, ErrIntOverflow)
		}
		return Int(int64(u)), nil

	case reflect.Float32, reflect.Float64:
		return Float(rv.Float()), nil

	case reflect.String:
		return Str(rv.String()), nil

	case reflect.Slice:
		if rv.IsNil() {
			return Null(), nil
		}
		if t.Elem().Kind() == reflect.Uint8 && !t.Elem().Implements(valueMarshalerType) {
			b := make([]byte, rv.Len())
			reflect.Copy(reflect.ValueOf(b), rv)
			return Blob(b), nil
		}
		return sliceToValue(rv, depth)

	case reflect.Array:
		return sliceToValue(rv, depth)

	case reflect.Map:
		if rv.IsNil() {
			return Null(), nil
		}
		return mapToValue(rv, depth)

	case reflect.Struct:
		return structToValue(rv, depth)

	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Null(), nil
		}
		return toValue(rv.Elem(), depth)

	default:
		return nil, &UnsupportedTypeError{Type: t}
	}
}

func sliceToValue(rv reflect.Value, depth int) (*Value, error) {
	elems := make([]*Value, rv.Len())
	for i := range elems {
		ev, err := toValue(rv.Index(i), depth+1)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		elems[i] = ev
	}
	return Array(elems...), nil
}

func mapToValue(rv reflect.Value, depth int) (*Value, error) {
	members := make([]Member, 0, rv.Len())
	seen := make(map[string]struct{}, rv.Len())

	iter := rv.MapRange()
	for iter.Next() {
		key, err := stringifyMapKey(iter.Key())
		if err != nil {
			return nil, err
		}
		if _, dup := seen[key]; dup {
			return nil, &DuplicateKeyError{Key: key}
		}
		seen[key] = struct{}{}

		mv, err := toValue(iter.Value(), depth+1)
		if err != nil {
			return nil, fmt.Errorf("object[%q]: %w", key, err)
		}
		members = append(members, Member{Key: key, Value: mv})
	}

	// Go map iteration order is random, so sort for a deterministic object.
	sort.Slice(members, func(i, j int) bool { return members[i].Key < members[j].Key })
	return Object(members...), nil
}

func stringifyMapKey(key reflect.Value) (string, error) {
	if key.Kind() == reflect.String {
		return key.String(), nil
	}
	if tm, ok := key.Interface().(encoding.TextMarshaler); ok {
		text, err := tm.MarshalText()
		if err != nil {
			return "", err
		}
		return string(text), nil
	}
	return "", &ExpectedError{Want: "string key", Got: key.Type().String()}
}

func structToValue(rv reflect.Value, depth int) (*Value, error) {
	fields := cachedTypeFields(rv.Type())
	members := make([]Member, 0, len(fields))
	for _, f := range fields {
		fv, ok := fieldByIndex(rv, f.index)
		if !ok {
			continue
		}
		if f.omitEmpty && isEmptyValue(fv) {
			continue
		}
		mv, err := toValue(fv, depth+1)
		if err != nil {
			return nil, fmt.Errorf("object[%q]: %w", f.name, err)
		}
		members = append(members, Member{Key: f.name, Value: mv})
	}
	return Object(members...), nil
}

// ============================================================
// Value to Go
// ============================================================

// FromValue converts a Value into out, which must be a non-nil pointer.
// Kind coercions follow the codec's conversion rules: ints widen into float
// targets, floats never narrow into int targets, null leaves non-nilable
// targets unchanged.
func FromValue(v *Value, out any) error {
	return FromValueWithOpts(v, out, DefaultBridgeOpts())
}

// FromValueWithOpts converts a Value into out with options.
func FromValueWithOpts(v *Value, out any, opts BridgeOpts) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return &InvalidTargetError{Type: reflect.TypeOf(out)}
	}
	return assign(v, rv.Elem(), opts, 0)
}

func assign(v *Value, rv reflect.Value, opts BridgeOpts, depth int) error {
	if depth > DefaultMaxDepth {
		return fmt.Errorf("binjson: %w", ErrTooDeep)
	}

	if v.IsNull() {
		return assignNull(rv)
	}

	// Walk pointers, allocating along the way, and let unmarshalers take
	// over at any level.
	for {
		if rv.Type() == valuePtrType {
			rv.Set(reflect.ValueOf(v.Clone()))
			return nil
		}
		if rv.Type() == valueType {
			rv.Set(reflect.ValueOf(*v.Clone()))
			return nil
		}
		if rv.Kind() == reflect.Pointer {
			if rv.IsNil() {
				rv.Set(reflect.New(rv.Type().Elem()))
			}
			if u, ok := rv.Interface().(ValueUnmarshaler); ok {
				return u.UnmarshalValue(v)
			}
			if v.Kind() == KindString {
				if u, ok := rv.Interface().(encoding.TextUnmarshaler); ok {
					return u.UnmarshalText([]byte(v.strVal))
				}
			}
			rv = rv.Elem()
			continue
		}
		break
	}
	if rv.CanAddr() {
		pt := reflect.PointerTo(rv.Type())
		if pt.Implements(valueUnmarshalerType) {
			return rv.Addr().Interface().(ValueUnmarshaler).UnmarshalValue(v)
		}
		if v.Kind() == KindString && pt.Implements(textUnmarshalerType) {
			return rv.Addr().Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(v.strVal))
		}
	}

	switch v.Kind() {
	case KindBool:
		return assignBool(v, rv)
	case KindInt:
		return assignInt(v, rv)
	case KindFloat:
		return assignFloat(v, rv)
	case KindString:
		return assignString(v, rv)
	case KindBlob:
		return assignBlob(v, rv)
	case KindArray:
		return assignArray(v, rv, opts, depth)
	case KindObject:
		return assignObject(v, rv, opts, depth)
	default:
		return &ExpectedError{Want: rv.Type().String(), Got: v.Kind().String()}
	}
}

// assignNull follows the encoding/json convention: null sets nilable
// targets to nil and leaves everything else unchanged.
func assignNull(rv reflect.Value) error {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		rv.SetZero()
	}
	return nil
}

func assignBool(v *Value, rv reflect.Value) error {
	switch rv.Kind() {
	case reflect.Bool:
		rv.SetBool(v.boolVal)
		return nil
	case reflect.Interface:
		if rv.NumMethod() == 0 {
			rv.Set(reflect.ValueOf(v.boolVal))
			return nil
		}
	}
	return &ExpectedError{Want: rv.Type().String(), Got: "bool"}
}

func assignInt(v *Value, rv reflect.Value) error {
	n := v.intVal
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if rv.OverflowInt(n) {
			return fmt.Errorf("binjson: int value %d overflows %s", n, rv.Type())
		}
		rv.SetInt(n)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if n < 0 || rv.OverflowUint(uint64(n)) {
			return fmt.Errorf("binjson: int value %d overflows %s", n, rv.Type())
		}
		rv.SetUint(uint64(n))
		return nil
	case reflect.Float32, reflect.Float64:
		rv.SetFloat(float64(n))
		return nil
	case reflect.Interface:
		if rv.NumMethod() == 0 {
			rv.Set(reflect.ValueOf(n))
			return nil
		}
	}
	return &ExpectedError{Want: rv.Type().String(), Got: "int"}
}

func assignFloat(v *Value, rv reflect.Value) error {
	f := v.floatVal
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		if rv.OverflowFloat(f) {
			return fmt.Errorf("binjson: float value %g overflows %s", f, rv.Type())
		}
		rv.SetFloat(f)
		return nil
	case reflect.Interface:
		if rv.NumMethod() == 0 {
			rv.Set(reflect.ValueOf(f))
			return nil
		}
	}
	return &ExpectedError{Want: rv.Type().String(), Got: "float"}
}

func assignString(v *Value, rv reflect.Value) error {
	switch rv.Kind() {
	case reflect.String:
		rv.SetString(v.strVal)
		return nil
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			rv.SetBytes([]byte(v.strVal))
			return nil
		}
	case reflect.Interface:
		if rv.NumMethod() == 0 {
			rv.Set(reflect.ValueOf(v.strVal))
			return nil
		}
	}
	return &ExpectedError{Want: rv.Type().String(), Got: "string"}
}

func assignBlob(v *Value, rv reflect.Value) error {
	switch rv.Kind() {
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			b := make([]byte, len(v.blobVal))
			copy(b, v.blobVal)
			rv.SetBytes(b)
			return nil
		}
	case reflect.Interface:
		if rv.NumMethod() == 0 {
			b := make([]byte, len(v.blobVal))
			copy(b, v.blobVal)
			rv.Set(reflect.ValueOf(b))
			return nil
		}
	}
	return &ExpectedError{Want: rv.Type().String(), Got: "blob"}
}

func assignArray(v *Value, rv reflect.Value, opts BridgeOpts, depth int) error {
	elems := v.arrVal
	switch rv.Kind() {
	case reflect.Slice:
		s := reflect.MakeSlice(rv.Type(), len(elems), len(elems))
		for i, e := range elems {
			if err := assign(e, s.Index(i), opts, depth+1); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		rv.Set(s)
		return nil
	case reflect.Array:
		n := rv.Len()
		for i := 0; i < n && i < len(elems); i++ {
			if err := assign(elems[i], rv.Index(i), opts, depth+1); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		// Extra target slots are zeroed, extra source elements dropped.
		for i := len(elems); i < n; i++ {
			rv.Index(i).SetZero()
		}
		return nil
	case reflect.Interface:
		if rv.NumMethod() == 0 {
			rv.Set(reflect.ValueOf(ToAny(v)))
			return nil
		}
	}
	return &ExpectedError{Want: rv.Type().String(), Got: "array"}
}

func assignObject(v *Value, rv reflect.Value, opts BridgeOpts, depth int) error {
	switch rv.Kind() {
	case reflect.Struct:
		return assignStruct(v, rv, opts, depth)
	case reflect.Map:
		return assignMap(v, rv, opts, depth)
	case reflect.Interface:
		if rv.NumMethod() == 0 {
			rv.Set(reflect.ValueOf(ToAny(v)))
			return nil
		}
	}
	return &ExpectedError{Want: rv.Type().String(), Got: "object"}
}

func assignStruct(v *Value, rv reflect.Value, opts BridgeOpts, depth int) error {
	fields := cachedTypeFields(rv.Type())
	byName := make(map[string]int, len(fields))
	for i, f := range fields {
		byName[f.name] = i
	}

	for _, m := range v.objVal {
		fi, ok := byName[m.Key]
		if !ok {
			if opts.DisallowUnknownFields {
				return &UnknownFieldError{Field: m.Key}
			}
			continue
		}
		fv, err := fieldByIndexAlloc(rv, fields[fi].index)
		if err != nil {
			return err
		}
		if err := assign(m.Value, fv, opts, depth+1); err != nil {
			return fmt.Errorf("object[%q]: %w", m.Key, err)
		}
	}
	return nil
}

func assignMap(v *Value, rv reflect.Value, opts BridgeOpts, depth int) error {
	t := rv.Type()
	kt := t.Key()
	keyIsString := kt.Kind() == reflect.String
	keyIsText := reflect.PointerTo(kt).Implements(textUnmarshalerType)
	if !keyIsString && !keyIsText {
		return &ExpectedError{Want: t.String(), Got: "object"}
	}

	if rv.IsNil() {
		rv.Set(reflect.MakeMapWithSize(t, v.Len()))
	}
	for _, m := range v.objVal {
		key := reflect.New(kt).Elem()
		if keyIsString {
			key.SetString(m.Key)
		} else {
			if err := key.Addr().Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(m.Key)); err != nil {
				return fmt.Errorf("object[%q]: %w", m.Key, err)
			}
		}
		elem := reflect.New(t.Elem()).Elem()
		if err := assign(m.Value, elem, opts, depth+1); err != nil {
			return fmt.Errorf("object[%q]: %w", m.Key, err)
		}
		rv.SetMapIndex(key, elem)
	}
	return nil
}

// ============================================================
// Go-Native Interop (any)
// ============================================================

// ToAny converts a Value to its Go-native rendering: nil, bool, int64,
// float64, string, []byte, []any, or map[string]any. Object member order
// is lost in the map form.
func ToAny(v *Value) any {
	if v == nil {
		return nil
	}
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.boolVal
	case KindInt:
		return v.intVal
	case KindFloat:
		return v.floatVal
	case KindString:
		return v.strVal
	case KindBlob:
		b := make([]byte, len(v.blobVal))
		copy(b, v.blobVal)
		return b
	case KindArray:
		items := make([]any, len(v.arrVal))
		for i, e := range v.arrVal {
			items[i] = ToAny(e)
		}
		return items
	case KindObject:
		obj := make(map[string]any, len(v.objVal))
		for _, m := range v.objVal {
			obj[m.Key] = ToAny(m.Value)
		}
		return obj
	default:
		return nil
	}
}

// FromAny converts a Go-native value to a Value. It is ToValue restricted
// to the renderings ToAny produces, but accepts anything ToValue does.
func FromAny(x any) (*Value, error) {
	return ToValue(x)
}

// ============================================================
// Struct Field Collection
// ============================================================

type structField struct {
	name      string
	index     []int
	omitEmpty bool
	tagged    bool
}

var fieldCache sync.Map // reflect.Type -> []structField

func cachedTypeFields(t reflect.Type) []structField {
	if f, ok := fieldCache.Load(t); ok {
		return f.([]structField)
	}
	f := collectFields(t)
	actual, _ := fieldCache.LoadOrStore(t, f)
	return actual.([]structField)
}

type fieldScan struct {
	typ   reflect.Type
	index []int
}

// collectFields gathers the serializable fields of a struct type,
// descending into anonymous embedded structs breadth-first so shallower
// fields shadow deeper ones. Within one depth, a tagged field wins over an
// untagged one; remaining conflicts keep the first field in declaration
// order.
func collectFields(t reflect.Type) []structField {
	var fields []structField
	byName := make(map[string]int)
	visited := make(map[reflect.Type]bool)
	next := []fieldScan{{typ: t}}

	for len(next) > 0 {
		current := next
		next = nil
		for _, scan := range current {
			if visited[scan.typ] {
				continue
			}
			visited[scan.typ] = true

			for i := 0; i < scan.typ.NumField(); i++ {
				sf := scan.typ.Field(i)
				index := make([]int, len(scan.index)+1)
				copy(index, scan.index)
				index[len(scan.index)] = i

				tag, tagged := fieldTag(sf)
				if tag == "-" {
					continue
				}

				if sf.Anonymous {
					ft := sf.Type
					if ft.Kind() == reflect.Pointer {
						ft = ft.Elem()
					}
					if ft.Kind() == reflect.Struct && !tagged {
						if sf.IsExported() || sf.Type.Kind() != reflect.Pointer {
							next = append(next, fieldScan{typ: ft, index: index})
						}
						continue
					}
				}
				if !sf.IsExported() {
					continue
				}

				name, opts, _ := strings.Cut(tag, ",")
				if name == "" {
					name = sf.Name
				}
				f := structField{
					name:      name,
					index:     index,
					omitEmpty: tagOptContains(opts, "omitempty"),
					tagged:    tagged,
				}

				if prev, ok := byName[name]; ok {
					// Shallower fields were collected in an earlier pass.
					if len(fields[prev].index) == len(index) && !fields[prev].tagged && f.tagged {
						fields[prev] = f
					}
					continue
				}
				byName[name] = len(fields)
				fields = append(fields, f)
			}
		}
	}

	// Order by index path so promoted fields appear at the position of
	// their embedding declaration.
	sort.Slice(fields, func(i, j int) bool {
		a, b := fields[i].index, fields[j].index
		for k := 0; k < len(a) && k < len(b); k++ {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return len(a) < len(b)
	})
	return fields
}

// fieldTag returns the field's serialization tag, preferring binjson over
// json, and whether a tag was present.
func fieldTag(sf reflect.StructField) (string, bool) {
	if tag, ok := sf.Tag.Lookup("binjson"); ok {
		return tag, true
	}
	if tag, ok := sf.Tag.Lookup("json"); ok {
		return tag, true
	}
	return "", false
}

func tagOptContains(opts, name string) bool {
	for opts != "" {
		var o string
		o, opts, _ = strings.Cut(opts, ",")
		if o == name {
			return true
		}
	}
	return false
}

// fieldByIndex resolves a possibly embedded field for reading. A nil
// embedded pointer along the path reports false and the field is skipped.
func fieldByIndex(rv reflect.Value, index []int) (reflect.Value, bool) {
	for _, i := range index {
		if rv.Kind() == reflect.Pointer {
			if rv.IsNil() {
				return reflect.Value{}, false
			}
			rv = rv.Elem()
		}
		rv = rv.Field(i)
	}
	return rv, true
}

// fieldByIndexAlloc resolves a possibly embedded field for writing,
// allocating nil embedded pointers along the path.
func fieldByIndexAlloc(rv reflect.Value, index []int) (reflect.Value, error) {
	for _, i := range index {
		if rv.Kind() == reflect.Pointer {
			if rv.IsNil() {
				if !rv.CanSet() {
					return reflect.Value{}, fmt.Errorf("binjson: cannot set embedded pointer of type %s", rv.Type())
				}
				rv.Set(reflect.New(rv.Type().Elem()))
			}
			rv = rv.Elem()
		}
		rv = rv.Field(i)
	}
	return rv, nil
}

func isEmptyValue(rv reflect.Value) bool {
	switch rv.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return rv.Len() == 0
	case reflect.Bool:
		return !rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
