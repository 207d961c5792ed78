package property

import (
	"reflect"
	"unsafe"
)

// SameValue reports whether a and b are the same value for change
// detection. Comparable values use ==. Slices, maps, funcs, chans and
// pointers are compared by identity, so a new slice with equal contents is a
// change while re-setting the same map is not. Other non-comparable values
// (structs holding slices, for example) fall back to reflect.DeepEqual.
//
// Zero-size allocations all share one address in Go, so empty non-nil slices
// with no capacity and pointers to zero-size values are never the same: a
// fresh empty array is always reported as a change.
func SameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	switch ta.Kind() {
	case reflect.Slice:
		va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
		if va.IsNil() || vb.IsNil() {
			return va.IsNil() && vb.IsNil()
		}
		if va.Cap() == 0 || vb.Cap() == 0 || ta.Elem().Size() == 0 {
			return false
		}
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	case reflect.Func:
		// Pointer() is the code address, shared by every method value of a
		// type; the interface data word is the closure itself.
		va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
		if va.IsNil() || vb.IsNil() {
			return va.IsNil() && vb.IsNil()
		}
		return dataWord(a) == dataWord(b)
	case reflect.Pointer:
		if ta.Elem().Size() == 0 {
			va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
			return va.IsNil() && vb.IsNil()
		}
		return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
	case reflect.Map, reflect.Chan, reflect.UnsafePointer:
		return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
	}
	if ta.Comparable() {
		return comparableEqual(a, b)
	}
	return reflect.DeepEqual(a, b)
}

// eface mirrors the runtime layout of an empty interface.
type eface struct {
	typ  unsafe.Pointer
	data unsafe.Pointer
}

func dataWord(v any) unsafe.Pointer {
	return (*eface)(unsafe.Pointer(&v)).data
}

// comparableEqual guards against arrays or structs whose interface fields
// hold uncomparable values at run time.
func comparableEqual(a, b any) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = reflect.DeepEqual(a, b)
		}
	}()
	return a == b
}
