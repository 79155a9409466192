package arena

import "unsafe"

const (
	// minChunkBytes is the capacity of an arena's first chunk. Later chunks
	// double their predecessor's capacity, so small arenas stay small.
	minChunkBytes = 1 << 12 // 4 KiB

	// maxChunkBytes caps the doubling. A single oversized request still gets
	// an exact-fit chunk above the cap.
	maxChunkBytes = 2 << 20 // 2 MiB
)

// ptrAlign is the default alignment for untyped byte allocations.
const ptrAlign = unsafe.Sizeof(uintptr(0))

// byteChunk is a single raw memory chunk within a ByteArena.
type byteChunk struct {
	buf     []byte  // backing memory
	fill    uintptr // allocation offset within buf
	mmapped bool    // buf came from mmapChunk, not the heap
}

// ByteArena is a chunked bump allocator for raw, finalizer-free storage:
// pointer-free values, slices and strings. It keeps no per-value records and
// never finalizes anything; the only bulk operation is Release, which drops
// all storage at once. Every byte range handed out stays valid until then.
//
// Values whose layout contains Go pointers must not be placed here, because
// byte chunks are opaque to the garbage collector; Value, Slice and Collect
// enforce this. Use a TypedArena or a Store for pointer-bearing types.
//
// The zero value is ready to use. Not safe for concurrent use; each arena
// has a single owner.
type ByteArena struct {
	chunks   []byteChunk
	current  *byteChunk // last chunk, cached for the fast path
	baseSize int        // first-chunk size; minChunkBytes when zero
	maxSize  int        // doubling ceiling; maxChunkBytes when zero
	mmap     bool
	released bool
}

// Option configures a ByteArena at construction.
type Option func(*ByteArena)

// WithChunkSize sets the size in bytes of the arena's first chunk. Later
// chunks double from there as usual.
func WithChunkSize(n int) Option {
	return func(a *ByteArena) { a.baseSize = n }
}

// WithMaxChunkSize caps the doubling growth at n bytes. A single request
// larger than n still gets an exact-fit chunk.
func WithMaxChunkSize(n int) Option {
	return func(a *ByteArena) { a.maxSize = n }
}

// WithMmapChunks backs chunks with anonymous memory mappings instead of heap
// buffers on platforms that support them (heap buffers elsewhere). Mapped
// chunks are returned to the kernel on Release, so nothing handed out by the
// arena may be touched after that.
func WithMmapChunks() Option {
	return func(a *ByteArena) { a.mmap = true }
}

// NewBytes creates an empty ByteArena. No chunk is allocated until the first
// allocation.
func NewBytes(opts ...Option) *ByteArena {
	a := new(ByteArena)
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RawAlloc carves size bytes at the requested alignment out of the arena and
// returns a pointer to them. The memory is zeroed. align must be a power of
// two. Returns nil if size is 0.
func (a *ByteArena) RawAlloc(size, align uintptr) unsafe.Pointer {
	if align == 0 || align&(align-1) != 0 {
		panic("arena: alignment must be a power of two")
	}
	if size == 0 {
		return nil
	}

	// Fast path: bump the cached current chunk.
	if c := a.current; c != nil {
		off := alignOff(c, align)
		if off+size <= uintptr(len(c.buf)) {
			c.fill = off + size
			return unsafe.Pointer(&c.buf[off])
		}
	}

	return a.rawAllocSlow(size, align)
}

// rawAllocSlow handles allocation when the fast path fails.
func (a *ByteArena) rawAllocSlow(size, align uintptr) unsafe.Pointer {
	a.panicIfReleased()

	a.grow(int(size + align - 1))
	c := a.current
	off := alignOff(c, align)
	c.fill = off + size
	return unsafe.Pointer(&c.buf[off])
}

// AllocBytes returns an n-byte slice of arena storage, aligned for pointer
// width. The bytes are zeroed. Returns nil if n <= 0.
func (a *ByteArena) AllocBytes(n int) []byte {
	if n <= 0 {
		return nil
	}
	p := a.RawAlloc(uintptr(n), ptrAlign)
	return unsafe.Slice((*byte)(p), n)
}

// AllocString copies text into the arena and returns it as a string backed
// by arena storage. An empty input returns "" without touching storage.
func (a *ByteArena) AllocString(text string) string {
	if len(text) == 0 {
		return ""
	}
	p := a.RawAlloc(uintptr(len(text)), 1)
	b := unsafe.Slice((*byte)(p), len(text))
	copy(b, text)
	return unsafe.String(&b[0], len(b))
}

// Release drops all chunks and makes the arena unusable. Mapped chunks are
// returned to the kernel, so no reference into the arena may be used after
// this. Any subsequent allocation panics. Release is idempotent.
func (a *ByteArena) Release() {
	if a.released {
		return
	}
	for i := range a.chunks {
		if a.chunks[i].mmapped {
			munmapChunk(a.chunks[i].buf)
		}
	}
	a.chunks = nil
	a.current = nil
	a.released = true
}

// grow appends a new chunk of at least need bytes, doubling the previous
// chunk's capacity up to the configured ceiling.
func (a *ByteArena) grow(need int) {
	a.panicIfReleased()

	base := a.baseSize
	if base <= 0 {
		base = minChunkBytes
	}
	ceil := a.maxSize
	if ceil <= 0 {
		ceil = maxChunkBytes
	}
	ceil = max(ceil, base)

	size := base
	if n := len(a.chunks); n > 0 {
		size = min(len(a.chunks[n-1].buf)*2, ceil)
	}
	size = max(size, need)

	var buf []byte
	mmapped := false
	if a.mmap {
		if b := mmapChunk(size); b != nil {
			buf, mmapped = b, true
		}
	}
	if buf == nil {
		buf = make([]byte, size)
	}
	a.chunks = append(a.chunks, byteChunk{buf: buf, mmapped: mmapped})
	a.current = &a.chunks[len(a.chunks)-1]
}

// panicIfReleased panics if the arena has been released.
func (a *ByteArena) panicIfReleased() {
	if a.released {
		panic("arena: use after Release()")
	}
}

// alignOff returns the chunk's fill offset advanced so that the backing
// address at the result is aligned to align.
func alignOff(c *byteChunk, align uintptr) uintptr {
	base := uintptr(unsafe.Pointer(&c.buf[0]))
	return alignUp(base+c.fill, align) - base
}

// alignUp rounds addr up to the next multiple of align (a power of two).
func alignUp(addr, align uintptr) uintptr {
	mask := align - 1
	return (addr + mask) &^ mask
}
