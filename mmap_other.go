//go:build !unix

package arena

// Mapped chunks are only available on unix; elsewhere WithMmapChunks
// silently uses heap buffers.
func mmapChunk(int) []byte { return nil }

func munmapChunk([]byte) {}
