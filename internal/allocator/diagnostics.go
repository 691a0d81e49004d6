package allocator

import (
	"unsafe"

	"github.com/orizon-lang/heapcore/internal/block"
	"github.com/orizon-lang/heapcore/internal/integrity"
)

// Validate walks the free list from firstBlock to TAIL and reports the
// first structural problem it finds (spec.md §4.6). It never mutates
// state and never touches LastError.
func (a *Allocator) Validate() ValidateCode {
	if a.base == 0 || a.length == 0 || a.headAddr == 0 || a.tailAddr == 0 {
		return ValidateUninitialized
	}

	if a.firstBlock == 0 {
		head, tail := a.head(), a.tail()
		if head.Next != 0 || tail.Prev != 0 {
			return ValidateCorrupted
		}

		return ValidateOK
	}

	heapStart, heapEnd := a.base, a.base+a.length
	fenceBroken := false

	curr := block.At(a.firstBlock)
	for block.Addr(curr) != a.tailAddr {
		addr := block.Addr(curr)

		if addr < heapStart || addr+block.HeaderSize > heapEnd {
			return ValidateCorrupted
		}

		if curr.Next != a.tailAddr && (curr.Next < heapStart || curr.Next >= heapEnd) {
			return ValidateCorrupted
		}

		if curr.Prev != a.headAddr && (curr.Prev < heapStart || curr.Prev >= heapEnd) {
			return ValidateCorrupted
		}

		if block.At(curr.Next).Prev != addr {
			return ValidateCorrupted
		}

		if block.At(curr.Prev).Next != addr {
			return ValidateCorrupted
		}

		if curr.Free != 0 && curr.Free != 1 {
			return ValidateCorrupted
		}

		if curr.Size > heapEnd-addr {
			return ValidateCorrupted
		}

		if curr.Checksum != integrity.Checksum(curr) {
			return ValidateCorrupted
		}

		if curr.Free == 0 {
			if uintptr(block.HighFence(curr))+block.FenceSize > heapEnd {
				fenceBroken = true
			} else if !integrity.CheckFence(block.LowFence(curr)) || !integrity.CheckFence(block.HighFence(curr)) {
				fenceBroken = true
			}
		}

		curr = block.At(curr.Next)
	}

	if fenceBroken {
		return ValidateFenceBroken
	}

	return ValidateOK
}

// LargestUsedBlockSize returns the payload size of the largest block
// currently in use, or 0 if the heap holds none or fails validation.
func (a *Allocator) LargestUsedBlockSize() uintptr {
	if a.Validate() != ValidateOK || a.firstBlock == 0 {
		return 0
	}

	var largest uintptr

	curr := block.At(a.firstBlock)
	for block.Addr(curr) != a.tailAddr {
		if curr.Free == 0 && curr.Size > largest {
			largest = curr.Size
		}

		curr = block.At(curr.Next)
	}

	return largest
}

// Classify reports which zone of the heap p falls into (spec.md §4.6).
func (a *Allocator) Classify(p unsafe.Pointer) PointerClass {
	return a.classify(p)
}

func (a *Allocator) classify(p unsafe.Pointer) PointerClass {
	if p == nil {
		return ClassNull
	}

	if a.base == 0 || a.firstBlock == 0 {
		return ClassUnallocated
	}

	if a.Validate() != ValidateOK {
		return ClassHeapCorrupted
	}

	addr := uintptr(p)

	curr := block.At(a.firstBlock)
	for block.Addr(curr) != a.tailAddr {
		blockStart := block.Addr(curr)
		blockEnd := blockStart + block.FullSize(curr.Size)

		if curr.Free == 1 {
			if addr >= blockStart && addr < blockEnd {
				return ClassUnallocated
			}

			curr = block.At(curr.Next)

			continue
		}

		headFenceStart := blockStart + block.HeaderSize
		dataStart := uintptr(block.PayloadPtr(curr))
		tailFenceStart := uintptr(block.HighFence(curr))
		lastByte := tailFenceStart + block.FenceSize

		switch {
		case addr >= blockStart && addr < headFenceStart:
			return ClassControlBlock
		case addr >= headFenceStart && addr < dataStart:
			return ClassInsideFences
		case addr == dataStart:
			return ClassValid
		case addr > dataStart && addr < tailFenceStart:
			return ClassInsideDataBlock
		case addr >= tailFenceStart && addr < lastByte:
			return ClassInsideFences
		}

		curr = block.At(curr.Next)
	}

	return ClassUnallocated
}
