// internal/filter/operators.go
package filter

import (
	"reflect"
)

/*
 * Value comparison used by literal and identity predicates.
 *
 * Literal equality tolerates numeric type mixing so that an attribute
 * holding int compares equal to a predicate decoded from the wire as
 * float64. Values of uncomparable dynamic types (slices, maps) fall back
 * to reflect.DeepEqual instead of panicking on ==.
 *
 * Identity compares instances by value first, then by ID() when both sides
 * are Identified. The second rule lets a wire-decoded Ref match a live
 * instance.
 */

// EqualValues performs literal equality with numeric type coercion.
func EqualValues(a, b any) bool {
	if IsNil(a) || IsNil(b) {
		return IsNil(a) && IsNil(b)
	}
	if na, nb, ok := asNumbers(a, b); ok {
		return na == nb
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

// SameInstance reports whether a and b denote the same instance.
func SameInstance(a, b any) bool {
	if IsNil(a) || IsNil(b) {
		return false
	}
	ta := reflect.TypeOf(a)
	if ta == reflect.TypeOf(b) && ta.Comparable() && a == b {
		return true
	}
	ia, oka := a.(Identified)
	ib, okb := b.(Identified)
	if !oka || !okb {
		return false
	}
	return ia.ID() != "" && ia.ID() == ib.ID()
}

// IsInstance reports whether v is a non-nil Subject or Identified value.
func IsInstance(v any) bool {
	if IsNil(v) {
		return false
	}
	switch v.(type) {
	case Subject, Identified:
		return true
	}
	return false
}

// IsNil reports whether v is nil or a typed nil pointer, map, slice,
// channel, function or interface.
func IsNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}

// asNumbers attempts to convert both values to float64 for numeric comparison.
func asNumbers(a, b any) (float64, float64, bool) {
	na, oka := toFloat64(a)
	nb, okb := toFloat64(b)
	return na, nb, oka && okb
}

// toFloat64 converts value to float64 if it's a numeric type.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
