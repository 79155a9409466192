//go:build unix

package arena

import "golang.org/x/sys/unix"

// mmapChunk acquires an anonymous, zeroed mapping of at least size bytes,
// rounded up to whole pages. Returns nil on any mmap failure so the caller
// falls back to heap storage.
func mmapChunk(size int) []byte {
	page := unix.Getpagesize()
	size = (size + page - 1) / page * page
	b, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil
	}
	return b
}

// munmapChunk returns a mapping acquired by mmapChunk to the kernel.
func munmapChunk(b []byte) {
	_ = unix.Munmap(b)
}
