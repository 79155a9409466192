package arena

import (
	"runtime"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resource implements Finalizer and records teardown order.
type resource struct {
	id     int
	closed *[]int
}

func (r *resource) Finalize() { *r.closed = append(*r.closed, r.id) }

// token holds a string but needs no finalization; the pointer rule still
// sends it to its dedicated arena.
type token struct {
	text string
	kind int
}

// coord is pointer-free and finalizer-free: always byte-routed.
type coord struct{ X, Y int16 }

func TestStoreEndToEnd(t *testing.T) {
	s := NewStore()

	var closed []int
	Declare[resource](s)
	Declare[token](s)
	Declare[coord](s)

	// Byte-routed types work without declaration.
	num := Alloc(s, 1)
	require.Equal(t, 1, *num)

	sl := AllocSlice(s, []int{10, 15, 17})
	require.Equal(t, []int{10, 15, 17}, sl)

	c := Alloc(s, coord{X: 2, Y: 3})
	require.Equal(t, coord{X: 2, Y: 3}, *c)

	tok := Alloc(s, token{text: "ident", kind: 7})
	require.Equal(t, "ident", tok.text)

	res := Alloc(s, resource{id: 1, closed: &closed})
	require.Equal(t, 1, res.id)

	vals := AllocFrom(s, func(yield func(token) bool) {
		for i := 1; i < 3; i++ {
			if !yield(token{kind: i}) {
				return
			}
		}
	})
	require.Len(t, vals, 2)
	require.Equal(t, 1, vals[0].kind)
	require.Equal(t, 2, vals[1].kind)

	str := s.AllocString("hello world")
	require.Equal(t, "hello world", str)

	s.Release()
	require.Equal(t, []int{1}, closed, "release must finalize the declared resources")
}

func TestStoreRouting(t *testing.T) {
	s := NewStore()
	defer s.Release()

	Declare[coord](s)
	Declare[token](s)

	for i := range 100 {
		Alloc(s, coord{X: int16(i)})
		Alloc(s, token{text: "x", kind: i})
	}

	// The byte-routed type's dedicated arena stays empty; its values all
	// surface through the shared byte storage.
	require.Zero(t, Dedicated[coord](s).Len())
	require.Empty(t, Dedicated[coord](s).chunks)
	assert.Positive(t, s.Bytes().Stats().LiveBytes)

	require.Equal(t, 100, Dedicated[token](s).Len())
}

func TestStoreUndeclaredTypedRoute(t *testing.T) {
	s := NewStore()
	defer s.Release()

	assert.PanicsWithValue(t,
		"arena: arena.resource routes to a dedicated arena but was never declared; call Declare[arena.resource] on this Store first",
		func() { Alloc(s, resource{}) })
	assert.Panics(t, func() { Alloc(s, "undeclared") })
	assert.Panics(t, func() { AllocFrom(s, func(func(token) bool) {}) })

	assert.NotPanics(t, func() { Alloc(s, 42) })
}

func TestStoreDuplicateDeclare(t *testing.T) {
	s := NewStore()
	defer s.Release()

	Declare[coord](s)
	assert.PanicsWithValue(t, "arena: arena.coord is already declared in this Store", func() {
		Declare[coord](s)
	})
	assert.Panics(t, func() { DeclareFunc[coord](s, nil) })
}

func TestStoreZeroValue(t *testing.T) {
	var s Store
	p := Alloc(&s, uint32(7))
	require.Equal(t, uint32(7), *p)
	require.Equal(t, "zed", s.AllocString("zed"))
	s.Release()
}

func TestStoreReleaseOrder(t *testing.T) {
	s := NewStore()

	var closed []int
	Declare[resource](s)
	// An explicit finalizer pins a byte-routed type to its dedicated arena.
	DeclareFunc[coord](s, func(c *coord) { closed = append(closed, int(c.X)+1000) })

	Alloc(s, resource{id: 1, closed: &closed})
	Alloc(s, resource{id: 2, closed: &closed})
	Alloc(s, coord{X: 5})
	require.Equal(t, 1, Dedicated[coord](s).Len())

	s.Release()
	require.Equal(t, []int{1, 2, 1005}, closed, "arenas must finalize in declaration order")

	s.Release() // idempotent: nothing finalizes twice
	require.Equal(t, []int{1, 2, 1005}, closed)
}

func TestStoreUseAfterRelease(t *testing.T) {
	s := NewStore()
	Declare[token](s)
	Alloc(s, token{text: "x"})
	s.Release()

	assert.PanicsWithValue(t, "arena: use after Release()", func() { Alloc(s, 1) })
	assert.PanicsWithValue(t, "arena: use after Release()", func() { AllocSlice(s, []int{1}) })
	assert.PanicsWithValue(t, "arena: use after Release()", func() { s.AllocString("x") })
	assert.PanicsWithValue(t, "arena: use after Release()", func() { Declare[coord](s) })
}

func TestStoreStringsSurviveGC(t *testing.T) {
	// Dedicated chunks are ordinary scanned slices, so heap references held
	// by arena values must survive collection.
	s := NewStore()
	defer s.Release()
	Declare[token](s)

	toks := make([]*token, 200)
	for i := range toks {
		toks[i] = Alloc(s, token{text: strconv.Itoa(i), kind: i})
	}
	runtime.GC()
	runtime.GC()
	for i, tok := range toks {
		require.Equal(t, strconv.Itoa(i), tok.text)
		require.Equal(t, i, tok.kind)
	}
}

func TestStoreAllocSliceIsByteRouteOnly(t *testing.T) {
	s := NewStore()
	defer s.Release()
	Declare[token](s)

	// Slices of typed-route elements go through AllocFrom or the dedicated
	// arena, never through the raw byte path.
	assert.Panics(t, func() { AllocSlice(s, []token{{kind: 1}}) })

	out := AllocFrom(s, func(yield func(uint16) bool) {
		for i := range 5 {
			if !yield(uint16(i * 2)) {
				return
			}
		}
	})
	require.Equal(t, []uint16{0, 2, 4, 6, 8}, out)
}

func TestDedicatedUndeclared(t *testing.T) {
	s := NewStore()
	defer s.Release()
	require.Nil(t, Dedicated[token](s))
}
