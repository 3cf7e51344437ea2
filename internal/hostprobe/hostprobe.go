// SPDX-License-Identifier: MPL-2.0

// Package hostprobe finds internal state inside host values by structure
// rather than by name. Lookups see unexported fields and walk embedded
// structs; a miss is reported as false, never as an error.
package hostprobe

import (
	"reflect"
	"unsafe"
)

const maxEmbedDepth = 4

// Field returns the first field of the struct behind target whose type
// satisfies match. target must be a non-nil pointer to a struct. The
// returned value is addressable and settable even for unexported fields.
func Field(target any, match func(reflect.Type) bool) (reflect.Value, bool) {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return reflect.Value{}, false
	}
	return search(v.Elem(), match, 0)
}

func search(s reflect.Value, match func(reflect.Type) bool, depth int) (reflect.Value, bool) {
	t := s.Type()
	for i := range t.NumField() {
		sf := t.Field(i)
		f := s.Field(i)
		if match(sf.Type) {
			return expose(f), true
		}
		if !sf.Anonymous || depth >= maxEmbedDepth {
			continue
		}
		switch {
		case f.Kind() == reflect.Struct:
			if found, ok := search(f, match, depth+1); ok {
				return found, true
			}
		case f.Kind() == reflect.Pointer && !f.IsNil() && f.Elem().Kind() == reflect.Struct:
			if found, ok := search(f.Elem(), match, depth+1); ok {
				return found, true
			}
		}
	}
	return reflect.Value{}, false
}

// expose returns a view of f that ignores export restrictions.
func expose(f reflect.Value) reflect.Value {
	if f.CanSet() {
		return f
	}
	return reflect.NewAt(f.Type(), unsafe.Pointer(f.UnsafeAddr())).Elem() //nolint:gosec // host internals are reached deliberately
}

// Slot returns a pointer to the first field of exact type T inside target.
func Slot[T any](target any) (*T, bool) {
	want := reflect.TypeFor[T]()
	f, ok := Field(target, func(t reflect.Type) bool { return t == want })
	if !ok {
		return nil, false
	}
	return f.Addr().Interface().(*T), true
}

// Implementing returns the value of the first field of target whose type
// implements the interface I. A nil first match reports false.
func Implementing[I any](target any) (I, bool) {
	var zero I
	iface := reflect.TypeFor[I]()
	if iface.Kind() != reflect.Interface {
		return zero, false
	}
	f, ok := Field(target, func(t reflect.Type) bool {
		return t.Implements(iface)
	})
	if !ok || isNil(f) {
		return zero, false
	}
	impl, ok := f.Interface().(I)
	return impl, ok
}

func isNil(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	default:
		return false
	}
}
