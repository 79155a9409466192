package arena

import (
	"iter"
	"unsafe"
)

// Finalizer is implemented by types whose values need per-value teardown
// when the arena holding them is reset or released.
type Finalizer interface {
	Finalize()
}

// typedChunk is one contiguous block of storage for a single element type.
// The backing array is allocated once and never moves, so pointers into it
// stay valid until the owning arena reclaims it.
type typedChunk[T any] struct {
	storage []T
	fill    int // elements allocated so far; live values are storage[:fill]
}

// TypedArena is a chunked bump allocator for values of a single type, with
// per-value finalization on Reset and Release. Unlike ByteArena its chunks
// are ordinary scanned slices, so pointer-bearing element types are safe
// here. Construct with NewTyped or NewTypedFunc. Not safe for concurrent
// use; each arena has a single owner.
type TypedArena[T any] struct {
	chunks   []typedChunk[T]
	current  *typedChunk[T] // last chunk, cached for the fast path
	fin      func(*T)       // nil when T needs no finalization
	released bool
}

// NewTyped creates an empty arena for values of type T. If *T implements
// Finalizer, every live value's Finalize method runs on Reset and Release.
// No chunk is allocated until the first allocation.
func NewTyped[T any]() *TypedArena[T] {
	var fin func(*T)
	if _, ok := any((*T)(nil)).(Finalizer); ok {
		fin = func(p *T) { any(p).(Finalizer).Finalize() }
	}
	return &TypedArena[T]{fin: fin}
}

// NewTypedFunc creates an empty arena whose values are finalized with fin,
// for element types one cannot attach a Finalize method to. A nil fin means
// no per-value teardown.
func NewTypedFunc[T any](fin func(*T)) *TypedArena[T] {
	return &TypedArena[T]{fin: fin}
}

// Alloc moves v into the arena and returns a unique pointer to it, valid
// until the next Reset or Release.
func (a *TypedArena[T]) Alloc(v T) *T {
	c := a.current
	if c == nil || c.fill == len(c.storage) {
		c = a.grow(1)
	}
	p := &c.storage[c.fill]
	*p = v
	c.fill++
	return p
}

// AllocSlice copies vs into one contiguous region of the arena and returns
// it. An empty input returns nil without touching storage.
func (a *TypedArena[T]) AllocSlice(vs []T) []T {
	if len(vs) == 0 {
		return nil
	}
	c := a.current
	if c == nil || len(c.storage)-c.fill < len(vs) {
		c = a.grow(len(vs))
	}
	out := c.storage[c.fill : c.fill+len(vs) : c.fill+len(vs)]
	copy(out, vs)
	c.fill += len(vs)
	return out
}

// Collect moves every value produced by seq into the arena and returns them
// as one contiguous slice, in sequence order. The element count need not be
// known up front: when the active chunk fills mid-sequence, the partial run
// moves to a fresh larger chunk and the old chunk's cursor rewinds past the
// moved prefix. Allocating into the same arena from inside the sequence
// body is allowed; such values land outside the run. An empty sequence
// returns nil without touching storage.
func (a *TypedArena[T]) Collect(seq iter.Seq[T]) []T {
	run := -1 // index of the chunk holding the partial result
	var start int
	var out []T // the partial result; cap reaches the chunk's end

	// Give back the reserved tail beyond the last full element. Deferred so
	// that a panicking sequence body cannot leave reserved slots counted as
	// live, which would hand them to the finalizer.
	defer func() {
		if run >= 0 {
			a.chunks[run].fill = start + len(out)
		}
	}()

	for v := range seq {
		if run < 0 {
			c := a.current
			if c == nil || c.fill == len(c.storage) {
				c = a.grow(1)
			}
			run = len(a.chunks) - 1
			start = c.fill
			out = c.storage[start:start:len(c.storage)]
			c.fill = len(c.storage) // reserve the tail; given back on return
		} else if len(out) == cap(out) {
			// Move to a chunk at least twice the run, keeping the copying
			// amortized.
			n := len(out)
			c := a.grow(2 * n)
			a.chunks[run].fill = start
			run = len(a.chunks) - 1
			start = 0
			next := c.storage[0:n:len(c.storage)]
			copy(next, out)
			out = next
			c.fill = len(c.storage)
		}
		out = append(out, v)
	}
	if run < 0 {
		return nil
	}
	return out[:len(out):len(out)]
}

// Reserve ensures the active chunk can take n more values without growing,
// so a burst of known size stays within one chunk.
func (a *TypedArena[T]) Reserve(n int) {
	a.panicIfReleased()
	if n <= 0 {
		return
	}
	c := a.current
	if c == nil || len(c.storage)-c.fill < n {
		a.grow(n)
	}
}

// Len reports how many values are currently live in the arena.
func (a *TypedArena[T]) Len() int {
	n := 0
	for i := range a.chunks {
		n += a.chunks[i].fill
	}
	return n
}

// Reset finalizes every live value and reclaims chunk storage, keeping only
// the most capacious chunk with its cursor rewound to zero, ready for the
// next cycle of allocations. Under the doubling growth policy that chunk is
// also the newest one. A never-allocated arena resets to itself.
func (a *TypedArena[T]) Reset() {
	a.panicIfReleased()
	if len(a.chunks) == 0 {
		return
	}
	a.finalizeAll()

	keep := 0
	for i := range a.chunks {
		if len(a.chunks[i].storage) >= len(a.chunks[keep].storage) {
			keep = i
		}
	}
	kept := a.chunks[keep]
	kept.fill = 0
	clear(a.chunks)
	a.chunks = a.chunks[:1]
	a.chunks[0] = kept
	a.current = &a.chunks[0]
}

// Release finalizes every live value and drops all chunks, making the arena
// unusable. Any subsequent operation panics. Release is idempotent.
func (a *TypedArena[T]) Release() {
	if a.released {
		return
	}
	a.finalizeAll()
	a.chunks = nil
	a.current = nil
	a.released = true
}

// finalizeAll runs the finalizer over every live value in allocation order.
func (a *TypedArena[T]) finalizeAll() {
	if a.fin == nil {
		return
	}
	for i := range a.chunks {
		live := a.chunks[i].storage[:a.chunks[i].fill]
		for j := range live {
			a.fin(&live[j])
		}
	}
}

// grow appends a chunk able to hold at least need more elements. The first
// chunk starts near a page; each later chunk doubles its predecessor's
// capacity up to the byte ceiling. Element counts stand in for bytes when T
// is zero-size, so logical growth stays bounded too.
func (a *TypedArena[T]) grow(need int) *typedChunk[T] {
	a.panicIfReleased()

	var zero T
	elemSize := max(int(unsafe.Sizeof(zero)), 1)
	elems := max(minChunkBytes/elemSize, 1)
	if n := len(a.chunks); n > 0 {
		prev := len(a.chunks[n-1].storage)
		elems = max(min(prev*2, maxChunkBytes/elemSize), 1)
	}
	elems = max(elems, need)

	a.chunks = append(a.chunks, typedChunk[T]{storage: make([]T, elems)})
	a.current = &a.chunks[len(a.chunks)-1]
	return a.current
}

// panicIfReleased panics if the arena has been released.
func (a *TypedArena[T]) panicIfReleased() {
	if a.released {
		panic("arena: use after Release()")
	}
}
