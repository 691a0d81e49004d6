// Package freelist implements the Free-List Engine (spec.md §4.3): the
// doubly-linked list of blocks threaded between the HEAD and TAIL
// sentinels, and the three mutations that keep it consistent —
// insertion, coalescing, and splitting.
//
// Every exported function here mutates raw header bytes in place and
// leaves the Integrity Layer's checksums refreshed before returning;
// callers (internal/allocator) are responsible for calling these in
// the right order and for fence maintenance on the caller's own block
// when that isn't implied by the operation itself.
package freelist

import (
	"github.com/orizon-lang/heapcore/internal/block"
	"github.com/orizon-lang/heapcore/internal/integrity"
)

// InsertBetween places a new, non-sentinel block of payloadSize bytes
// immediately before next, in the gap right after next.Prev. It
// returns (nil, false) if the new block's full extent (header, both
// fences and aligned payload) would run past tailAddr; a block may end
// exactly at TAIL.
func InsertBetween(headAddr, tailAddr uintptr, payloadSize uintptr, next *block.Header) (*block.Header, bool) {
	prevAddr := next.Prev
	prev := block.At(prevAddr)

	var prevEnd uintptr
	if prevAddr == headAddr {
		// HEAD holds no fences; its real footprint is just the header.
		prevEnd = prevAddr + block.HeaderSize
	} else {
		prevEnd = block.End(prev)
	}

	if prevEnd+block.EmptyBlockFullSize+block.Align4(payloadSize) > tailAddr {
		return nil, false
	}

	newBlock := block.At(prevEnd)
	newBlock.Size = payloadSize
	newBlock.Free = 0
	newBlock.Prev = prevAddr
	newBlock.Next = block.Addr(next)

	prev.Next = prevEnd
	next.Prev = prevEnd

	integrity.SetFences(newBlock)
	integrity.RefreshWithNeighbors(newBlock)

	return newBlock, true
}

// CoalesceWithNext merges curr's next block (which must be free) into
// curr. curr is never a sentinel; its next is never a sentinel either,
// since TAIL is never free. The absorbed block's fences are discarded.
func CoalesceWithNext(curr *block.Header) {
	next := block.At(curr.Next)

	curr.Size = block.Align4(block.FullSize(curr.Size) + block.FullSize(next.Size) - block.HeaderSize - 2*block.FenceSize)
	curr.Next = next.Next
	block.At(next.Next).Prev = block.Addr(curr)

	integrity.RefreshWithNeighbors(curr)
}

// SplitIfRoom carves a free residual block out of the gap between curr
// (already resized and fenced by the caller) and curr.Next, if that gap
// is large enough to host one. It is a no-op otherwise.
func SplitIfRoom(headAddr, tailAddr uintptr, curr *block.Header) {
	next := block.At(curr.Next)

	gap := block.Addr(next) - block.End(curr)
	if gap < block.EmptyBlockFullSize {
		return
	}

	residual := gap - block.EmptyBlockFullSize

	newBlock, ok := InsertBetween(headAddr, tailAddr, residual, next)
	if !ok {
		// Not enough room even accounting for the caller's own resize;
		// original_source/src/heap.c's split_block silently drops the
		// residue in this case too (add_new_block returning NULL).
		return
	}

	newBlock.Free = 1
	integrity.Refresh(newBlock)
}
