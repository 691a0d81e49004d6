// Package integrity implements the allocator's Integrity Layer: header
// checksums and payload red-zone fences.
//
// Grounded on original_source/src/heap.c's calculate_control_sum,
// set_control_sum, set_fence and check_fence, with one deliberate
// strengthening noted by spec.md §9: the checksum sums the full
// uintptr width of the prev/next links rather than truncating to 32
// bits, which only improves corruption detection.
package integrity

import (
	"unsafe"

	"github.com/orizon-lang/heapcore/internal/block"
)

// Checksum computes the expected checksum for h from its current
// prev/next/size/free fields. It does not read or write h.Checksum.
func Checksum(h *block.Header) uintptr {
	if h == nil {
		return 0
	}

	return h.Prev + h.Next + h.Size + uintptr(h.Free)
}

// Refresh recomputes and stores h's own checksum.
func Refresh(h *block.Header) {
	if h == nil {
		return
	}

	h.Checksum = Checksum(h)
}

// RefreshWithNeighbors recomputes and stores the checksum of h and of
// its immediate prev/next neighbors. Any mutation of h's link fields
// changes a neighbor's own link field (their Prev or Next now points
// at h), so the neighbor's checksum is stale until refreshed too — this
// is heap.c's set_control_sum behavior, applied verbatim.
func RefreshWithNeighbors(h *block.Header) {
	if h == nil {
		return
	}

	Refresh(h)

	if h.Prev != 0 {
		Refresh(block.At(h.Prev))
	}

	if h.Next != 0 {
		Refresh(block.At(h.Next))
	}
}

// Valid reports whether h's stored checksum matches the recomputed one.
func Valid(h *block.Header) bool {
	return h.Checksum == Checksum(h)
}

// SetFence writes a 4-byte red-zone fence starting at p.
func SetFence(p unsafe.Pointer) {
	fence := (*[block.FenceSize]byte)(p)
	for i := range fence {
		fence[i] = block.FenceByte
	}
}

// CheckFence reports whether the 4 bytes starting at p are all intact
// fence bytes.
func CheckFence(p unsafe.Pointer) bool {
	fence := (*[block.FenceSize]byte)(p)
	for _, b := range fence {
		if b != block.FenceByte {
			return false
		}
	}

	return true
}

// SetFences lays both fences around h's payload.
func SetFences(h *block.Header) {
	SetFence(block.LowFence(h))
	SetFence(block.HighFence(h))
}

// FencesIntact reports whether both of h's fences are intact.
func FencesIntact(h *block.Header) bool {
	return CheckFence(block.LowFence(h)) && CheckFence(block.HighFence(h))
}
