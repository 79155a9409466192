// Package arena implements region-based memory allocation for
// phase-structured programs: compilers, parsers and request loops that
// build huge numbers of small objects, use them together, and throw them
// all away at once.
//
// # Overview
//
// Three layers build on one chunked bump allocator:
//
//   - TypedArena holds values of a single type and runs per-value
//     finalization when the arena is reset or released. Its chunks are
//     ordinary slices, so pointer-bearing types are safe here.
//   - ByteArena holds raw, finalizer-free storage: pointer-free values,
//     slices, strings and aligned byte runs. Nothing placed here is ever
//     finalized, and chunks are invisible to the garbage collector.
//   - Store aggregates one shared ByteArena with one dedicated TypedArena
//     per declared type and routes every allocation by its type, so callers
//     use a single API no matter where a value must live.
//
// Growth never moves memory: when a chunk fills, a new, larger chunk is
// allocated beside it, so every pointer, slice and string handed out stays
// valid until its arena is reset or released.
//
// # Basic Usage
//
//	nodes := arena.NewTyped[Node]()   // Finalize runs per node, if defined
//	defer nodes.Release()
//
//	n := nodes.Alloc(Node{Kind: KindAdd})
//	kids := nodes.AllocSlice([]Node{{Kind: KindLit}, {Kind: KindLit}})
//	n.Left, n.Right = &kids[0], &kids[1]
//
//	nodes.Reset() // finalizes all nodes, keeps the biggest chunk for reuse
//
// Raw storage goes through a ByteArena:
//
//	raw := arena.NewBytes()
//	defer raw.Release()
//
//	pi := arena.Value(raw, 3.14159)
//	ids := arena.Slice(raw, []uint32{1, 2, 3, 4, 5})
//	name := raw.AllocString("anonymous")
//
// A Store routes both kinds behind one surface:
//
//	s := arena.NewStore()
//	defer s.Release()
//
//	arena.Declare[Symbol](s)          // *Symbol implements Finalizer
//	sym := arena.Alloc(s, Symbol{Name: "x"})   // dedicated TypedArena
//	off := arena.Alloc(s, uint64(42))          // shared byte storage
//	lit := s.AllocString("hello")
//
// # Type Routing
//
// RouteOf reports, per type, which backing store a Store uses: types that
// implement Finalizer or contain Go pointers route to a dedicated
// TypedArena; everything else routes to the shared ByteArena. The decision
// depends only on the type, so code generators can lay out aggregate
// structures from it ahead of time. Declaring a byte-routed type is legal;
// its dedicated arena just stays empty.
//
// # Finalization
//
// A TypedArena finalizes exactly the values allocated since the last Reset:
// each Reset and the final Release runs Finalize (or the NewTypedFunc
// callback) once per live value, in allocation order. ByteArena storage is
// never finalized, which is why finalizer-implementing types are rejected
// there.
//
// # Memory Layout
//
// The first chunk holds about 4 KiB; each subsequent chunk doubles the
// previous capacity up to 2 MiB, and an oversized request gets an exact-fit
// chunk. Reset keeps the most capacious chunk so a reused arena reaches its
// steady state without reallocating. Zero-size types cost no storage at
// all; the arena tracks a logical count so finalization still runs per
// value.
//
// # Thread Safety
//
// No arena type is safe for concurrent use: every arena and store has a
// single owning goroutine, matching the bulk-lifetime model. Distinct
// arenas on distinct goroutines are fine.
//
// # Metrics
//
// Each arena reports a Stats snapshot:
//
//	st := nodes.Stats()
//	fmt.Printf("utilization: %.2f%%\n", st.Utilization()*100)
//	fmt.Println(st) // "12 KiB/64 KiB in 2 chunks (18.8% full)"
package arena
