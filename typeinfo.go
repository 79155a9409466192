package arena

import (
	"fmt"
	"reflect"
	"sync"
)

// Route identifies which backing store services a value type. The answer is
// a property of the type alone, never of an individual value, so aggregate
// layouts can be derived from it ahead of time.
type Route uint8

const (
	// RouteBytes serves pointer-free, finalizer-free types through a shared
	// ByteArena.
	RouteBytes Route = iota
	// RouteTyped serves types that implement Finalizer, or whose layout
	// contains Go pointers, through a TypedArena dedicated to the type.
	RouteTyped
)

// String returns "bytes" or "typed".
func (r Route) String() string {
	switch r {
	case RouteBytes:
		return "bytes"
	case RouteTyped:
		return "typed"
	}
	return fmt.Sprintf("Route(%d)", uint8(r))
}

// RouteOf reports the backing store for values of type T.
//
// Pointer-bearing types route to typed storage even when they need no
// finalization: byte chunks are opaque to the garbage collector, so a Go
// pointer stored there would not keep its referent alive. Typed chunks are
// ordinary scanned slices and hold such values safely.
func RouteOf[T any]() Route {
	if hasFinalizer[T]() {
		return RouteTyped
	}
	// Common pointer-free types, settled without reflection.
	switch any((*T)(nil)).(type) {
	case *bool, *int, *int8, *int16, *int32, *int64,
		*uint, *uint8, *uint16, *uint32, *uint64, *uintptr,
		*float32, *float64, *complex64, *complex128:
		return RouteBytes
	}
	if pointerFree(reflect.TypeFor[T]()) {
		return RouteBytes
	}
	return RouteTyped
}

// hasFinalizer reports whether *T implements Finalizer. Checked against the
// pointer type so that value and pointer receivers both count.
func hasFinalizer[T any]() bool {
	_, ok := any((*T)(nil)).(Finalizer)
	return ok
}

// assertByteRoute panics unless values of T may live in byte storage. This
// is the misuse boundary for the byte route: it fires on first contact with
// the type, before any storage is touched.
func assertByteRoute[T any]() {
	if RouteOf[T]() == RouteBytes {
		return
	}
	t := reflect.TypeFor[T]()
	if hasFinalizer[T]() {
		panic(fmt.Sprintf("arena: %v implements Finalizer; allocate it from a TypedArena or a Store so finalization can run", t))
	}
	panic(fmt.Sprintf("arena: %v contains Go pointers, which byte storage would hide from the garbage collector; allocate it from a TypedArena or a Store", t))
}

// pointerFreeCache memoizes the reflect walk per type. Each arena has a
// single owner, but different arenas live on different goroutines, so this
// process-wide cache must be concurrent.
var pointerFreeCache sync.Map // reflect.Type -> bool

// pointerFree reports whether values of t contain no Go pointers anywhere in
// their layout and may therefore live in unscanned byte storage.
func pointerFree(t reflect.Type) bool {
	if free, ok := pointerFreeCache.Load(t); ok {
		return free.(bool)
	}
	free := pointerFreeWalk(t)
	pointerFreeCache.Store(t, free)
	return free
}

func pointerFreeWalk(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Uintptr, reflect.Float32, reflect.Float64,
		reflect.Complex64, reflect.Complex128:
		return true
	case reflect.Array:
		return pointerFree(t.Elem())
	case reflect.Struct:
		for i := range t.NumField() {
			if !pointerFree(t.Field(i).Type) {
				return false
			}
		}
		return true
	default:
		// Pointers, slices, maps, chans, funcs, strings, interfaces and
		// unsafe.Pointer all hold references the collector must see.
		return false
	}
}
