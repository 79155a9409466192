package arena

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/dustin/go-humanize"
)

// Stats is a point-in-time snapshot of one arena's storage accounting.
type Stats struct {
	Live      int // live values (typed arenas) or live bytes (byte arenas)
	LiveBytes int // bytes occupied by live values, alignment padding included
	CapBytes  int // total capacity of all chunks in bytes
	Chunks    int // number of chunks
}

// Utilization returns the ratio of bytes in use to total capacity (0.0 to
// 1.0). Returns 0.0 if the arena has no capacity.
func (st Stats) Utilization() float64 {
	if st.CapBytes == 0 {
		return 0
	}
	return float64(st.LiveBytes) / float64(st.CapBytes)
}

// String renders the snapshot compactly, e.g.
// "12 KiB/64 KiB in 2 chunks (18.8% full)".
func (st Stats) String() string {
	return fmt.Sprintf("%s/%s in %d chunks (%.1f%% full)",
		humanize.IBytes(uint64(st.LiveBytes)), humanize.IBytes(uint64(st.CapBytes)),
		st.Chunks, 100*st.Utilization())
}

// Stats returns a snapshot of the arena's storage accounting. Zero-size
// element types report zero bytes with the live count intact.
func (a *TypedArena[T]) Stats() Stats {
	var zero T
	elemSize := int(unsafe.Sizeof(zero))
	st := Stats{Chunks: len(a.chunks)}
	for i := range a.chunks {
		st.Live += a.chunks[i].fill
		st.CapBytes += len(a.chunks[i].storage) * elemSize
	}
	st.LiveBytes = st.Live * elemSize
	return st
}

// Stats returns a snapshot of the arena's storage accounting. Live and
// LiveBytes are the same figure here, since the byte arena has no notion of
// a value.
func (a *ByteArena) Stats() Stats {
	st := Stats{Chunks: len(a.chunks)}
	for i := range a.chunks {
		st.LiveBytes += int(a.chunks[i].fill)
		st.CapBytes += len(a.chunks[i].buf)
	}
	st.Live = st.LiveBytes
	return st
}

// TypedStats pairs a declared type with its dedicated arena's snapshot.
type TypedStats struct {
	Type string
	Stats
}

// StoreStats aggregates the snapshots of a Store's byte storage and every
// dedicated arena, in declaration order.
type StoreStats struct {
	Bytes Stats
	Typed []TypedStats
}

// Stats returns a snapshot of every arena in the store.
func (s *Store) Stats() StoreStats {
	st := StoreStats{Bytes: s.bytes.Stats()}
	for _, t := range s.order {
		st.Typed = append(st.Typed, TypedStats{Type: t.String(), Stats: s.typed[t].stats()})
	}
	return st
}

// String renders one line per arena in the store.
func (st StoreStats) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "bytes: %s", st.Bytes)
	for _, ts := range st.Typed {
		fmt.Fprintf(&b, "\n%s: %s", ts.Type, ts.Stats)
	}
	return b.String()
}
