package arena

import (
	"fmt"
	"iter"
	"reflect"
)

// dedicated is the type-erased handle a Store keeps for one declared type's
// TypedArena.
type dedicated struct {
	arena     any // *TypedArena[T]
	finalizes bool
	release   func()
	stats     func() Stats
}

// Store is an aggregate of one shared ByteArena plus one dedicated
// TypedArena per declared type, behind a single routed allocation surface:
// Finalizer-implementing and pointer-bearing types land in their dedicated
// arena, everything else in the shared byte storage. All values live until
// the Store is released.
//
// The zero value is ready to use. Not safe for concurrent use; each store
// has a single owner.
type Store struct {
	bytes    ByteArena
	typed    map[reflect.Type]*dedicated
	order    []reflect.Type // declaration order, also the release order
	released bool
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{}
}

// Declare registers a dedicated TypedArena for T, detecting a Finalizer
// implementation the way NewTyped does. Declaring a type that routes to the
// byte storage is allowed and costs nothing: its dedicated arena simply
// stays empty.
func Declare[T any](s *Store) {
	declare(s, NewTyped[T]())
}

// DeclareFunc registers a dedicated TypedArena for T with an explicit
// finalizer, for types one cannot attach a Finalize method to. A non-nil
// fin pins T to its dedicated arena even when T's own route would be the
// byte storage.
func DeclareFunc[T any](s *Store, fin func(*T)) {
	declare(s, NewTypedFunc[T](fin))
}

func declare[T any](s *Store, ta *TypedArena[T]) {
	s.panicIfReleased()
	t := reflect.TypeFor[T]()
	if _, dup := s.typed[t]; dup {
		panic(fmt.Sprintf("arena: %v is already declared in this Store", t))
	}
	if s.typed == nil {
		s.typed = make(map[reflect.Type]*dedicated)
	}
	s.typed[t] = &dedicated{
		arena:     ta,
		finalizes: ta.fin != nil,
		release:   ta.Release,
		stats:     ta.Stats,
	}
	s.order = append(s.order, t)
}

// Alloc copies v into the store, routed by its type, and returns a unique
// pointer valid until the store is released. Typed-route types (see
// RouteOf) must have been declared first.
func Alloc[T any](s *Store, v T) *T {
	if d := dedicatedFor[T](s); d != nil {
		return d.Alloc(v)
	}
	return Value(&s.bytes, v)
}

// AllocSlice copies vs contiguously into the shared byte storage. The
// element type must be pointer-free and finalizer-free; sequences of
// typed-route elements go through AllocFrom or the dedicated arena's own
// AllocSlice.
func AllocSlice[T any](s *Store, vs []T) []T {
	s.panicIfReleased()
	return Slice(&s.bytes, vs)
}

// AllocFrom collects the values of seq into one contiguous slice, routed by
// the element type like Alloc.
func AllocFrom[T any](s *Store, seq iter.Seq[T]) []T {
	if d := dedicatedFor[T](s); d != nil {
		return d.Collect(seq)
	}
	return Collect(&s.bytes, seq)
}

// AllocString copies text into the shared byte storage and returns it.
func (s *Store) AllocString(text string) string {
	s.panicIfReleased()
	return s.bytes.AllocString(text)
}

// Bytes exposes the shared byte storage, for callers that need AllocBytes
// or RawAlloc through a Store.
func (s *Store) Bytes() *ByteArena {
	return &s.bytes
}

// Dedicated returns T's declared dedicated arena, or nil if T was never
// declared. Mostly of use to generated aggregate code and tests; ordinary
// allocation goes through Alloc, which routes by itself.
func Dedicated[T any](s *Store) *TypedArena[T] {
	if d, ok := s.typed[reflect.TypeFor[T]()]; ok {
		return d.arena.(*TypedArena[T])
	}
	return nil
}

// dedicatedFor resolves the arena serving allocations of T, or nil when T
// takes the byte route. Allocating an undeclared typed-route type is a
// misuse of the aggregate contract and panics here, before any storage is
// touched.
func dedicatedFor[T any](s *Store) *TypedArena[T] {
	s.panicIfReleased()
	t := reflect.TypeFor[T]()
	if d, ok := s.typed[t]; ok {
		if d.finalizes || RouteOf[T]() == RouteTyped {
			return d.arena.(*TypedArena[T])
		}
		return nil // declared but byte-routed; the dedicated arena stays empty
	}
	if RouteOf[T]() == RouteTyped {
		panic(fmt.Sprintf("arena: %v routes to a dedicated arena but was never declared; call Declare[%v] on this Store first", t, t))
	}
	return nil
}

// Release finalizes every live value in every dedicated arena, in
// declaration order, then drops the shared byte storage. The Store is
// unusable afterwards. Release is idempotent.
func (s *Store) Release() {
	if s.released {
		return
	}
	for _, t := range s.order {
		s.typed[t].release()
	}
	s.bytes.Release()
	s.typed = nil
	s.order = nil
	s.released = true
}

// panicIfReleased panics if the store has been released.
func (s *Store) panicIfReleased() {
	if s.released {
		panic("arena: use after Release()")
	}
}
