package regionprovider

// defaultFallbackCapacity bounds the non-unix, in-memory system
// provider. It exists so cmd/heap-inspect and similar tools build and
// run identically on platforms without an mmap-based implementation.
const defaultFallbackCapacity = 256 << 20 // 256 MiB

// NewSystem returns the best available real-memory Provider for the
// current platform: Unix's mmap/mprotect reservation where supported,
// falling back to a large fixed-capacity Memory provider elsewhere.
func NewSystem() (Provider, error) {
	return newSystem()
}
