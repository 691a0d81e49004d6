// Package block defines the on-disk (in-heap) layout of allocator
// blocks: the header record, the red-zone fences around a payload, and
// the arithmetic that relates a header address to its payload address.
//
// A block is not a Go value with a stable identity; it is a view onto
// bytes owned by an internal/regionprovider.Provider. Headers are
// decoded and mutated in place via unsafe.Pointer arithmetic, mirroring
// the donor codebase's own unsafe-pointer-based allocator internals.
package block

import "unsafe"

const (
	// FenceSize is the width, in bytes, of each red-zone fence.
	FenceSize = 4
	// FenceByte is the value every fence byte must hold.
	FenceByte = 0xFA
	// AlignUnit is the payload alignment granularity.
	AlignUnit = 4
)

// Header is the in-band control record placed at a block's low address.
//
// Prev and Next are addresses of neighboring headers (0 means NULL);
// Size is the user-requested payload size, pre-alignment; Free is 0 or
// 1; Checksum is the integrity word from internal/integrity. The
// struct's only job is to describe the record's fields — callers
// access it through a *Header obtained via At, never by value, since
// its address is load-bearing.
type Header struct {
	Prev     uintptr
	Next     uintptr
	Size     uintptr
	Free     uint32
	Checksum uintptr
}

// HeaderSize is sizeof(Header) in this process.
const HeaderSize = unsafe.Sizeof(Header{})

// EmptyBlockFullSize is the footprint of the smallest possible
// non-sentinel block: a header plus both fences around a zero-length
// payload. It is the threshold insert_between/split_if_room use to
// decide whether a gap can host a new block (§4.3).
const EmptyBlockFullSize = HeaderSize + 2*FenceSize

// Align4 returns the smallest multiple of AlignUnit that is >= n.
func Align4(n uintptr) uintptr {
	return (n + AlignUnit - 1) &^ (AlignUnit - 1)
}

// FullSize returns the total byte span of a non-sentinel block holding
// payloadSize requested bytes: header + both fences + aligned payload.
func FullSize(payloadSize uintptr) uintptr {
	return HeaderSize + 2*FenceSize + Align4(payloadSize)
}

// At reinterprets the bytes at addr as a Header. addr must point at a
// live header within a region owned by the caller.
func At(addr uintptr) *Header {
	return (*Header)(unsafe.Pointer(addr)) //nolint:gosec // intentional: headers are embedded in the region buffer
}

// Addr returns h's own address.
func Addr(h *Header) uintptr {
	return uintptr(unsafe.Pointer(h))
}

// PayloadPtr returns the address of the first payload byte of h,
// i.e. immediately after the low fence.
func PayloadPtr(h *Header) unsafe.Pointer {
	return unsafe.Pointer(Addr(h) + HeaderSize + FenceSize)
}

// LowFence returns the address of h's low fence (immediately after the
// header).
func LowFence(h *Header) unsafe.Pointer {
	return unsafe.Pointer(Addr(h) + HeaderSize)
}

// HighFence returns the address of h's high fence (immediately after
// the aligned payload).
func HighFence(h *Header) unsafe.Pointer {
	return unsafe.Pointer(uintptr(PayloadPtr(h)) + Align4(h.Size))
}

// UserToHeader maps a payload pointer back to its owning header.
func UserToHeader(p unsafe.Pointer) *Header {
	return At(uintptr(p) - FenceSize - HeaderSize)
}

// End returns the address one past h's full extent, assuming h is a
// non-sentinel block.
func End(h *Header) uintptr {
	return Addr(h) + FullSize(h.Size)
}
