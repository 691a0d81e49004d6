// Package regionprovider implements the external Region Provider
// collaborator described by spec.md §6: the primitive that grows or
// shrinks a single contiguous byte region, standing in for the host
// OS's data-segment break (sbrk) in the original C source this module
// was distilled from.
//
// The allocator core never talks to an OS directly; it only ever
// depends on the Provider interface, so tests can substitute an
// in-memory backing buffer instead of touching real address space.
package regionprovider

import (
	"errors"
	"unsafe"
)

// ErrExhausted is returned by Adjust when the requested adjustment does
// not fit the provider's reserved address space or fixed-capacity
// buffer, or when the provider has no region left to adjust.
var ErrExhausted = errors.New("regionprovider: cannot satisfy requested adjustment")

// Provider is the Region Provider contract from spec.md §6: a current
// break query and a signed adjustment, plus Base for obtaining the
// fixed starting address of the region (needed because this is Go, not
// C — the allocator works in terms of a stable unsafe.Pointer rather
// than re-deriving one from a global).
type Provider interface {
	// Base returns the address of the region's first byte. It is
	// fixed once the provider has committed its first byte and never
	// changes for the provider's lifetime — growth is additive only
	// and never relocates existing bytes.
	Base() unsafe.Pointer

	// Current returns the current break: Base() advanced by the
	// number of bytes committed so far. Returns 0 only when the
	// provider has no backing region.
	Current() uintptr

	// Adjust moves the break by delta bytes (positive grows, negative
	// shrinks) and returns the break's value from *before* the
	// adjustment. On failure it returns ErrExhausted, or another error
	// describing why, and leaves the region unchanged.
	//
	// The allocator core only ever issues positive deltas while
	// operating, and exactly one delta equal to minus the total number
	// of committed bytes during teardown (Clean); no provider needs to
	// support partial shrinks.
	Adjust(delta int64) (previousBreak uintptr, err error)
}
