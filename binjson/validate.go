package binjson

import (
	"fmt"
	"math"
	"unicode/utf8"
)

// ValidationError represents a single validation failure.
type ValidationError struct {
	Path    string // JSON-path style location, e.g. "users[3].name"
	Message string // Human-readable error message
	Code    string // Machine-readable error code
}

func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationResult contains all validation errors and warnings.
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// Limits bounds the shape of a value. A zero field means that dimension is
// unlimited.
type Limits struct {
	MaxDepth      int // container nesting depth
	MaxStringLen  int // bytes per string
	MaxBlobLen    int // bytes per blob
	MaxArrayLen   int // elements per array
	MaxObjectLen  int // members per object
	MaxTotalNodes int // values in the whole tree
}

// DefaultLimits returns protective defaults for validating untrusted data
// before encoding.
func DefaultLimits() Limits {
	return Limits{
		MaxDepth:      DefaultMaxDepth,
		MaxStringLen:  1 << 20,
		MaxBlobLen:    1 << 24,
		MaxArrayLen:   1 << 20,
		MaxObjectLen:  1 << 20,
		MaxTotalNodes: 1 << 22,
	}
}

// Validate checks a value tree against limits and structural invariants
// (unique object keys, valid UTF-8 in strings and keys). All violations
// are reported, not just the first. Non-finite floats produce a warning
// since they do not survive JSON interop losslessly.
func Validate(v *Value, limits Limits) *ValidationResult {
	val := &validator{limits: limits}
	val.walk(v, "", 0)
	return &ValidationResult{
		Valid:    len(val.errors) == 0,
		Errors:   val.errors,
		Warnings: val.warnings,
	}
}

// IsValid reports whether a value passes validation under DefaultLimits.
func IsValid(v *Value) bool {
	return Validate(v, DefaultLimits()).Valid
}

type validator struct {
	limits        Limits
	errors        []ValidationError
	warnings      []ValidationError
	nodes         int
	nodesReported bool
}

func (val *validator) walk(v *Value, path string, depth int) {
	val.nodes++
	if val.limits.MaxTotalNodes > 0 && val.nodes > val.limits.MaxTotalNodes && !val.nodesReported {
		val.nodesReported = true
		val.addError(path, "too_many_nodes", "value tree exceeds %d nodes", val.limits.MaxTotalNodes)
	}

	if v == nil {
		return
	}

	switch v.kind {
	case KindFloat:
		if !isFinite(v.floatVal) {
			val.addWarning(path, "nonfinite_float", "non-finite float renders as a string in JSON")
		}

	case KindString:
		if val.limits.MaxStringLen > 0 && len(v.strVal) > val.limits.MaxStringLen {
			val.addError(path, "string_too_long", "string length %d exceeds %d", len(v.strVal), val.limits.MaxStringLen)
		}
		if !utf8.ValidString(v.strVal) {
			val.addError(path, "invalid_utf8", "string is not valid UTF-8")
		}

	case KindBlob:
		if val.limits.MaxBlobLen > 0 && len(v.blobVal) > val.limits.MaxBlobLen {
			val.addError(path, "blob_too_long", "blob length %d exceeds %d", len(v.blobVal), val.limits.MaxBlobLen)
		}

	case KindArray:
		if val.exceedsDepth(depth + 1) {
			val.addError(path, "max_depth", "nesting exceeds depth %d", val.limits.MaxDepth)
			return
		}
		if val.limits.MaxArrayLen > 0 && len(v.arrVal) > val.limits.MaxArrayLen {
			val.addError(path, "array_too_long", "array length %d exceeds %d", len(v.arrVal), val.limits.MaxArrayLen)
		}
		for i, e := range v.arrVal {
			val.walk(e, fmt.Sprintf("%s[%d]", path, i), depth+1)
		}

	case KindObject:
		if val.exceedsDepth(depth + 1) {
			val.addError(path, "max_depth", "nesting exceeds depth %d", val.limits.MaxDepth)
			return
		}
		if val.limits.MaxObjectLen > 0 && len(v.objVal) > val.limits.MaxObjectLen {
			val.addError(path, "object_too_long", "object size %d exceeds %d", len(v.objVal), val.limits.MaxObjectLen)
		}
		seen := make(map[string]struct{}, len(v.objVal))
		for _, m := range v.objVal {
			memberPath := joinPath(path, m.Key)
			if _, dup := seen[m.Key]; dup {
				val.addError(memberPath, "duplicate_key", "key %q appears more than once", m.Key)
			}
			seen[m.Key] = struct{}{}
			if !utf8.ValidString(m.Key) {
				val.addError(memberPath, "invalid_utf8", "object key is not valid UTF-8")
			}
			val.walk(m.Value, memberPath, depth+1)
		}
	}
}

func (val *validator) exceedsDepth(depth int) bool {
	return val.limits.MaxDepth > 0 && depth > val.limits.MaxDepth
}

func (val *validator) addError(path, code, format string, args ...any) {
	val.errors = append(val.errors, ValidationError{
		Path:    path,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	})
}

func (val *validator) addWarning(path, code, format string, args ...any) {
	val.warnings = append(val.warnings, ValidationError{
		Path:    path,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	})
}

func joinPath(base, key string) string {
	if base == "" {
		return key
	}
	return base + "." + key
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
