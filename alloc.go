package arena

import (
	"iter"
	"unsafe"
)

// Value copies v into the arena and returns a pointer to the copy, valid
// until the arena is released. The type must be pointer-free and must not
// implement Finalizer (see RouteOf); strings go through AllocString instead.
// Zero-size values occupy no storage.
func Value[T any](a *ByteArena, v T) *T {
	assertByteRoute[T]()
	if unsafe.Sizeof(v) == 0 {
		return new(T)
	}
	p := (*T)(a.RawAlloc(unsafe.Sizeof(v), unsafe.Alignof(v)))
	*p = v
	return p
}

// Slice copies vs into one contiguous region of arena storage and returns
// it. The element type is restricted like Value's. An empty input returns
// nil without touching storage.
func Slice[T any](a *ByteArena, vs []T) []T {
	assertByteRoute[T]()
	if len(vs) == 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	if size == 0 {
		return make([]T, len(vs))
	}
	p := (*T)(a.RawAlloc(size*uintptr(len(vs)), unsafe.Alignof(zero)))
	out := unsafe.Slice(p, len(vs))
	copy(out, vs)
	return out
}

// Collect copies every value produced by seq into the arena and returns them
// as one contiguous slice, in sequence order. The element count need not be
// known up front: when the active chunk fills mid-sequence, the partial run
// moves to a fresh larger chunk and the old chunk's cursor rewinds past the
// moved prefix. Allocating into the same arena from inside the sequence body
// is allowed; such values land outside the run. An empty sequence returns
// nil without touching storage.
func Collect[T any](a *ByteArena, seq iter.Seq[T]) []T {
	assertByteRoute[T]()
	var zero T
	size, align := unsafe.Sizeof(zero), unsafe.Alignof(zero)
	if size == 0 {
		n := 0
		for range seq {
			n++
		}
		return make([]T, n)
	}

	run := -1         // index of the chunk holding the partial result
	var start uintptr // byte offset of the result within that chunk
	var out []T       // the partial result; cap reaches the chunk's end

	// Give back the reserved tail beyond the last full element. Deferred so
	// that a panicking sequence body cannot leave reserved storage counted
	// as allocated.
	defer func() {
		if run >= 0 {
			a.chunks[run].fill = start + uintptr(len(out))*size
		}
	}()

	for v := range seq {
		if run < 0 {
			run, start, out = collectStart[T](a, size, align)
		} else if len(out) == cap(out) {
			run, start, out = collectMove(a, run, start, out, size, align)
		}
		out = append(out, v)
	}
	if run < 0 {
		return nil
	}
	return out[:len(out):len(out)]
}

// collectStart claims the free tail of the active chunk (growing first if
// not even one element fits) as the destination of an in-progress Collect.
// The whole tail is reserved so that reentrant allocations from the sequence
// body cannot interleave with the run; Collect returns the unused part when
// the sequence ends.
func collectStart[T any](a *ByteArena, size, align uintptr) (int, uintptr, []T) {
	c := a.current
	if c == nil || alignOff(c, align)+size > uintptr(len(c.buf)) {
		a.grow(int(size + align - 1))
		c = a.current
	}
	start := alignOff(c, align)
	capacity := (uintptr(len(c.buf)) - start) / size
	out := unsafe.Slice((*T)(unsafe.Pointer(&c.buf[start])), capacity)[:0]
	c.fill = uintptr(len(c.buf))
	return len(a.chunks) - 1, start, out
}

// collectMove relocates a full partial run to a chunk at least twice its
// size, keeping the copying amortized, and rewinds the old chunk past the
// moved prefix. Safe because no reference to the run has been returned yet.
func collectMove[T any](a *ByteArena, run int, start uintptr, out []T, size, align uintptr) (int, uintptr, []T) {
	n := len(out)
	a.grow(2*n*int(size) + int(align-1))
	a.chunks[run].fill = start

	c := a.current
	start = alignOff(c, align)
	capacity := (uintptr(len(c.buf)) - start) / size
	next := unsafe.Slice((*T)(unsafe.Pointer(&c.buf[start])), capacity)[:n]
	copy(next, out)
	c.fill = uintptr(len(c.buf))
	return len(a.chunks) - 1, start, next
}
