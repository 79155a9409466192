// Command arenaprof drives a synthetic compiler-style workload through an
// arena Store and reports allocator behavior, optionally capturing pprof
// profiles. It exists to eyeball chunk growth, routing and reuse under a
// realistic allocation mix, not to benchmark (use go test -bench for that).
package main

import (
	"fmt"
	"iter"
	"log/slog"
	"os"
	"runtime"
	"runtime/debug"
	"runtime/pprof"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/lmittmann/tint"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/regionkit/arena"
)

var (
	Nodes      = pflag.IntP("nodes", "n", 200_000, "tree nodes to build per cycle")
	Cycles     = pflag.IntP("cycles", "c", 10, "build/teardown cycles to run")
	Workers    = pflag.IntP("workers", "w", 1, "cycles to run in parallel, one store per goroutine")
	Mmap       = pflag.Bool("mmap", false, "also stress a mmap-backed byte arena")
	MemStats   = pflag.Bool("memstats", false, "log runtime memory statistics at the end")
	MemProfile = pflag.String("memprofile", "", "write a heap profile to this file")
	CPUProfile = pflag.String("cpuprofile", "", "write a cpu profile to this file")
	LogJSON    = pflag.Bool("log-json", false, "use json logs")
	Verbose    = pflag.BoolP("verbose", "v", false, "log per-cycle arena stats")
	Help       = pflag.BoolP("help", "h", false, "show this help text")
)

func main() {
	pflag.Parse()

	if *Help || pflag.NArg() != 0 {
		fmt.Printf("usage: %s [options]\n%s", os.Args[0], pflag.CommandLine.FlagUsages())
		if *Help {
			return
		}
		os.Exit(2)
	}

	level := slog.LevelInfo
	if *Verbose {
		level = slog.LevelDebug
	}
	if *LogJSON {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})))
	} else {
		slog.SetDefault(slog.New(tint.NewHandler(os.Stdout, &tint.Options{
			Level: level,
		})))
	}

	if err := run(); err != nil {
		slog.Error("failed to run workload", "error", err)
		os.Exit(1)
	}
}

// span is a pointer-free source range; a Store serves it from shared byte
// storage.
type span struct {
	Lo, Hi uint32
}

// symbol carries a name string, so it routes to a dedicated typed arena even
// though it needs no finalization.
type symbol struct {
	Name string
	ID   int
}

// node is the tree element the workload is built around. Finalize gives the
// dedicated arena per-value teardown to run at release time.
type node struct {
	Kind  uint8
	Span  span
	Left  *node
	Right *node
	Sym   *symbol
}

// finalized is shared by every worker's nodes, so it must be atomic even
// though each store has a single owner.
var finalized atomic.Int64

func (n *node) Finalize() { finalized.Add(1) }

func run() error {
	if *CPUProfile != "" {
		f, err := os.Create(*CPUProfile)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return err
		}
		defer pprof.StopCPUProfile()
	}

	// Arenas are single-owner, so parallelism means one complete store per
	// goroutine, never a shared one.
	var g errgroup.Group
	g.SetLimit(max(*Workers, 1))

	start := time.Now()
	for cycle := range *Cycles {
		g.Go(func() error {
			s := arena.NewStore()
			defer s.Release()
			arena.Declare[node](s)
			arena.Declare[symbol](s)
			arena.Declare[span](s) // byte-routed; its dedicated arena stays empty

			root := build(s, *Nodes)
			leaves := arena.AllocFrom(s, leafSpans(root))
			if *Nodes > 0 && len(leaves) == 0 {
				return fmt.Errorf("cycle %d: tree of %d nodes has no leaves", cycle, *Nodes)
			}

			if *Verbose {
				st := s.Stats()
				slog.Debug("cycle done",
					"cycle", cycle,
					"leaves", len(leaves),
					"bytes", st.Bytes.String())
				for _, ts := range st.Typed {
					slog.Debug("dedicated arena", "type", ts.Type, "stats", ts.Stats.String())
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	total := int64(*Cycles) * int64(*Nodes)
	slog.Info("store workload done",
		"cycles", *Cycles,
		"workers", *Workers,
		"nodes", total,
		"finalized", finalized.Load(),
		"elapsed", time.Since(start).Round(time.Millisecond))
	if finalized.Load() != total {
		return fmt.Errorf("finalizer ran %d times, want %d", finalized.Load(), total)
	}

	if *Mmap {
		if err := stressMmap(); err != nil {
			return err
		}
	}

	if *MemStats {
		debug.FreeOSMemory()
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		slog.Info("runtime memory",
			"heap_alloc", humanize.IBytes(ms.HeapAlloc),
			"heap_sys", humanize.IBytes(ms.HeapSys),
			"total_alloc", humanize.IBytes(ms.TotalAlloc),
			"gc_cycles", ms.NumGC)
	}

	if *MemProfile != "" {
		f, err := os.Create(*MemProfile)
		if err != nil {
			return err
		}
		defer f.Close()
		runtime.GC()
		if err := pprof.WriteHeapProfile(f); err != nil {
			return err
		}
		slog.Info("wrote heap profile", "path", *MemProfile)
	}
	return nil
}

// build allocates a binary tree of n nodes through the store, interning a
// symbol for every 16th node. Children are allocated while the parent is
// being filled in, the way a parser interleaves allocations.
func build(s *arena.Store, n int) *node {
	if n <= 0 {
		return nil
	}
	half := (n - 1) / 2
	root := arena.Alloc(s, node{
		Kind: uint8(n % 7),
		Span: span{Lo: uint32(n), Hi: uint32(n) + 1},
	})
	if n%16 == 0 {
		root.Sym = arena.Alloc(s, symbol{Name: s.AllocString(fmt.Sprintf("sym%d", n)), ID: n})
	}
	root.Left = build(s, half)
	root.Right = build(s, n-1-half)
	return root
}

// leafSpans yields the spans of the tree's leaves in traversal order; its
// length is unknown to the collector up front.
func leafSpans(root *node) iter.Seq[span] {
	return func(yield func(span) bool) {
		var walk func(*node) bool
		walk = func(n *node) bool {
			if n == nil {
				return true
			}
			if n.Left == nil && n.Right == nil {
				return yield(n.Span)
			}
			return walk(n.Left) && walk(n.Right)
		}
		walk(root)
	}
}

// stressMmap pushes a gigabyte of slices through a mmap-backed byte arena
// so mapped-chunk growth and release show up in profiles.
func stressMmap() error {
	a := arena.NewBytes(arena.WithMmapChunks(), arena.WithChunkSize(1<<20))
	defer a.Release()

	start := time.Now()
	buf := make([]uint64, 512)
	for i := range buf {
		buf[i] = uint64(i)
	}
	for written := 0; written < 1<<30; written += len(buf) * 8 {
		out := arena.Slice(a, buf)
		if out[511] != 511 {
			return fmt.Errorf("mmap arena corrupted a slice")
		}
	}
	st := a.Stats()
	slog.Info("mmap workload done",
		"live", humanize.IBytes(uint64(st.LiveBytes)),
		"capacity", humanize.IBytes(uint64(st.CapBytes)),
		"chunks", st.Chunks,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}
