// Package allocator is the Allocator API and Diagnostics layer
// (spec.md §4.4–§4.6): allocate/zero-allocate/reallocate/free,
// first-fit placement, region-growth triggering, heap validation,
// largest-used-block reporting, and pointer classification.
//
// The manager is an explicit *Allocator value rather than a
// package-level global (spec.md §9's "promote it to an explicit
// allocator object" variant, matching how the donor codebase prefers
// constructors like NewSystemAllocator/NewRegionAllocator over a bare
// package-level GlobalAllocator). An *Allocator is single-owner and
// single-threaded: it performs no internal locking and must not be
// shared across goroutines without external synchronization, matching
// the donor's own separation between lock-free single-owner structures
// and separately-synchronized wrappers.
package allocator

import (
	"unsafe"

	"github.com/orizon-lang/heapcore/internal/block"
	"github.com/orizon-lang/heapcore/internal/errors"
	"github.com/orizon-lang/heapcore/internal/freelist"
	"github.com/orizon-lang/heapcore/internal/integrity"
	"github.com/orizon-lang/heapcore/internal/regionprovider"
)

// PageSize is the fixed page granularity region growth operates in.
const PageSize = 4096

// ValidateCode is the result of Validate (spec.md §4.6).
type ValidateCode int

const (
	ValidateOK            ValidateCode = 0
	ValidateFenceBroken   ValidateCode = 1
	ValidateUninitialized ValidateCode = 2
	ValidateCorrupted     ValidateCode = 3
)

func (c ValidateCode) String() string {
	switch c {
	case ValidateOK:
		return "ok"
	case ValidateFenceBroken:
		return "fence_broken"
	case ValidateUninitialized:
		return "uninitialized"
	case ValidateCorrupted:
		return "corrupted"
	default:
		return "unknown"
	}
}

// PointerClass is the result of Classify (spec.md §4.6).
type PointerClass int

const (
	ClassNull PointerClass = iota
	ClassHeapCorrupted
	ClassControlBlock
	ClassInsideFences
	ClassInsideDataBlock
	ClassUnallocated
	ClassValid
)

func (c PointerClass) String() string {
	switch c {
	case ClassNull:
		return "null"
	case ClassHeapCorrupted:
		return "heap_corrupted"
	case ClassControlBlock:
		return "control_block"
	case ClassInsideFences:
		return "inside_fences"
	case ClassInsideDataBlock:
		return "inside_data_block"
	case ClassUnallocated:
		return "unallocated"
	case ClassValid:
		return "valid"
	default:
		return "unknown"
	}
}

// Logger receives structured diagnostic events (spec.md §4.8). It is
// never required for correctness; a nil Logger disables logging
// entirely with zero overhead.
type Logger func(event string, fields map[string]any)

// Allocator is a single heap instance: a Region Provider plus the
// free-list state threaded through it. Its zero value is not usable;
// construct with New.
type Allocator struct {
	provider regionprovider.Provider

	base   uintptr
	length uintptr

	headAddr uintptr
	tailAddr uintptr

	firstBlock uintptr // 0 means no user block has ever been placed

	lastErr error
	logger  Logger
}

// Option configures an Allocator at construction time.
type Option func(*Allocator)

// WithLogger attaches a structured event logger (spec.md §4.8).
func WithLogger(logger Logger) Option {
	return func(a *Allocator) { a.logger = logger }
}

// New constructs an Allocator over provider. Call Setup before any
// other operation.
func New(provider regionprovider.Provider, opts ...Option) *Allocator {
	a := &Allocator{provider: provider}
	for _, opt := range opts {
		opt(a)
	}

	return a
}

func (a *Allocator) head() *block.Header { return block.At(a.headAddr) }
func (a *Allocator) tail() *block.Header { return block.At(a.tailAddr) }

func (a *Allocator) log(event string, fields map[string]any) {
	if a.logger != nil {
		a.logger(event, fields)
	}
}

func (a *Allocator) fail(err error) {
	a.lastErr = err

	if a.logger != nil {
		a.logger("error", map[string]any{"error": err.Error()})
	}
}

// failValidate records a diagnostic error for a non-OK Validate result,
// distinguishing an uninitialized heap (Setup never called, or called
// after Clean) from genuine structural corruption.
func (a *Allocator) failValidate(operation string, code ValidateCode) {
	if code == ValidateUninitialized {
		a.fail(errors.Uninitialized(operation))

		return
	}

	a.fail(errors.HeapCorrupted(operation, int(code)))
}

// LastError returns the most recently recorded diagnostic error, or
// nil if the last public operation succeeded. It never participates in
// an operation's return value or control flow (spec.md §4.7).
func (a *Allocator) LastError() error {
	return a.lastErr
}

// Setup captures the provider's current break as the region base,
// grows it by one page, and installs HEAD/TAIL sentinels with an empty
// list between them. It is idempotent only when preceded by Clean.
func (a *Allocator) Setup() error {
	a.lastErr = nil

	if _, err := a.provider.Adjust(int64(PageSize)); err != nil {
		a.fail(errors.ProviderExhausted(PageSize, err))

		return a.lastErr
	}

	a.base = uintptr(a.provider.Base())
	a.length = PageSize
	a.headAddr = a.base
	a.tailAddr = a.base + a.length - block.HeaderSize
	a.firstBlock = 0

	head := a.head()
	head.Prev = 0
	head.Next = 0
	head.Size = 0
	head.Free = 0
	integrity.Refresh(head)

	tail := a.tail()
	tail.Prev = 0
	tail.Next = 0
	tail.Size = 0
	tail.Free = 0
	integrity.Refresh(tail)

	a.log("setup", map[string]any{"base": a.base, "length": a.length})

	return nil
}

// Clean returns the entire region to the provider and zeroes manager
// state. It is a no-op if the allocator was never set up.
func (a *Allocator) Clean() {
	if a.base == 0 {
		return
	}

	_, _ = a.provider.Adjust(-int64(a.length))

	a.log("clean", map[string]any{"length": a.length})

	a.base = 0
	a.length = 0
	a.headAddr = 0
	a.tailAddr = 0
	a.firstBlock = 0
	a.lastErr = nil
}

// grow extends the region by enough whole pages to cover
// requiredPayload, relocating only the TAIL sentinel. Growth never
// moves existing blocks (spec.md §4.5).
func (a *Allocator) grow(requiredPayload uintptr) error {
	pages := requiredPayload/PageSize + 1
	delta := int64(pages * PageSize)

	oldTailAddr := a.tailAddr
	oldTailPrev := block.At(oldTailAddr).Prev

	if _, err := a.provider.Adjust(delta); err != nil {
		a.fail(errors.ProviderExhausted(uintptr(delta), err))

		return a.lastErr
	}

	a.length += uintptr(delta)
	a.tailAddr = a.base + a.length - block.HeaderSize

	newTail := a.tail()
	newTail.Free = 0
	newTail.Size = 0
	newTail.Next = 0
	newTail.Prev = oldTailPrev

	if a.firstBlock != 0 {
		// grow's rewiring of the block preceding the old TAIL assumes a
		// first block already exists; spec.md §9 flags this precondition
		// as one to make explicit rather than silently trust.
		if oldTailPrev == 0 {
			panic("heapcore: grow invariant violated: firstBlock is set but TAIL had no preceding block")
		}

		prevOfTail := block.At(oldTailPrev)
		prevOfTail.Next = a.tailAddr
		integrity.Refresh(prevOfTail)
	}

	integrity.Refresh(newTail)

	a.log("grow", map[string]any{"pages": pages, "newLength": a.length})

	return nil
}

// Allocate places a payload of size bytes and returns a pointer to it,
// or nil on usage error, heap corruption, or resource exhaustion
// (spec.md §4.4).
func (a *Allocator) Allocate(size uintptr) unsafe.Pointer {
	a.lastErr = nil

	if code := a.Validate(); code != ValidateOK {
		a.failValidate("Allocate", code)

		return nil
	}

	if size < 1 {
		a.fail(errors.InvalidSize(size, "Allocate"))

		return nil
	}

	if a.firstBlock == 0 {
		return a.allocateFirst(size)
	}

	if p := a.firstFit(size); p != nil {
		return p
	}

	newBlock, ok := freelist.InsertBetween(a.headAddr, a.tailAddr, size, a.tail())
	if !ok {
		if err := a.grow(size); err != nil {
			return nil
		}

		newBlock, ok = freelist.InsertBetween(a.headAddr, a.tailAddr, size, a.tail())
		if !ok {
			return nil
		}
	}

	return block.PayloadPtr(newBlock)
}

// allocateFirst handles the special case where no user block has ever
// been placed: growing if needed, then installing the block directly
// after HEAD with TAIL as its successor.
func (a *Allocator) allocateFirst(size uintptr) unsafe.Pointer {
	needed := func() uintptr { return 3*block.HeaderSize + 2*block.FenceSize + block.Align4(size) }

	if a.length < needed() {
		if err := a.grow(size); err != nil {
			return nil
		}
	}

	// spec.md §9 open question: if it still doesn't fit after growth,
	// leave firstBlock unset and return nil rather than ever placing a
	// too-small first block.
	if a.length < needed() {
		return nil
	}

	addr := a.headAddr + block.HeaderSize
	first := block.At(addr)
	first.Prev = a.headAddr
	first.Next = a.tailAddr
	first.Size = size
	first.Free = 0

	head := a.head()
	head.Next = addr

	tail := a.tail()
	tail.Prev = addr

	integrity.SetFences(first)
	integrity.Refresh(first)
	integrity.Refresh(head)
	integrity.Refresh(tail)

	a.firstBlock = addr

	return block.PayloadPtr(first)
}

// firstFit scans the list in address order for the first free block
// that fits size, and returns its payload pointer, or nil if none
// fits.
func (a *Allocator) firstFit(size uintptr) unsafe.Pointer {
	curr := block.At(a.firstBlock)

	for block.Addr(curr) != a.tailAddr {
		if curr.Free == 1 && curr.Size >= size {
			curr.Free = 0
			curr.Size = size
			integrity.SetFences(curr)

			if curr.Next != a.tailAddr {
				freelist.SplitIfRoom(a.headAddr, a.tailAddr, curr)
			}

			integrity.Refresh(curr)

			return block.PayloadPtr(curr)
		}

		curr = block.At(curr.Next)
	}

	return nil
}

// ZeroAllocate allocates count*unit bytes and zeroes them.
func (a *Allocator) ZeroAllocate(count, unit uintptr) unsafe.Pointer {
	if count < 1 || unit < 1 {
		a.lastErr = nil
		a.fail(errors.InvalidSize(count*unit, "ZeroAllocate"))

		return nil
	}

	p := a.Allocate(count * unit)
	if p == nil {
		return nil
	}

	zeroBytes(p, block.UserToHeader(p).Size)

	return p
}

// Reallocate resizes the block at p to size bytes, per the cases in
// spec.md §4.4.
func (a *Allocator) Reallocate(p unsafe.Pointer, size uintptr) unsafe.Pointer {
	if p == nil {
		return a.Allocate(size)
	}

	a.lastErr = nil

	if code := a.Validate(); code != ValidateOK {
		a.failValidate("Reallocate", code)

		return nil
	}

	if a.classify(p) != ClassValid {
		a.fail(errors.InvalidPointer("Reallocate"))

		return nil
	}

	if size == 0 {
		a.Free(p)

		return nil
	}

	curr := block.UserToHeader(p)

	if curr.Size == size {
		return p
	}

	if size < curr.Size {
		curr.Size = size
		integrity.SetFences(curr)
		integrity.Refresh(curr)
		freelist.SplitIfRoom(a.headAddr, a.tailAddr, curr)

		return p
	}

	if curr.Next != a.tailAddr {
		next := block.At(curr.Next)
		if next.Free == 1 && curr.Size+block.FullSize(next.Size) >= size {
			freelist.CoalesceWithNext(curr)

			if curr.Size >= size {
				curr.Size = size
				integrity.SetFences(curr)
				integrity.Refresh(curr)
				freelist.SplitIfRoom(a.headAddr, a.tailAddr, curr)

				return p
			}
		}
	}

	if curr.Next == a.tailAddr {
		deficit := size - curr.Size
		if err := a.grow(deficit); err == nil {
			curr.Size = size
			integrity.SetFences(curr)
			integrity.Refresh(curr)

			return p
		}
	}

	newPtr := a.Allocate(size)
	if newPtr == nil {
		return nil
	}

	copyBytes(newPtr, p, curr.Size)
	a.Free(p)

	return newPtr
}

// Free releases the block at p. It is a no-op for a nil pointer, a
// pointer that does not classify as valid, or a block already free.
func (a *Allocator) Free(p unsafe.Pointer) {
	if p == nil {
		return
	}

	a.lastErr = nil

	if code := a.Validate(); code != ValidateOK {
		a.failValidate("Free", code)

		return
	}

	if a.classify(p) != ClassValid {
		a.fail(errors.InvalidPointer("Free"))

		return
	}

	curr := block.UserToHeader(p)
	if curr.Free == 1 {
		return
	}

	curr.Free = 1
	integrity.Refresh(curr)

	if curr.Next != a.tailAddr && block.At(curr.Next).Free == 1 {
		freelist.CoalesceWithNext(curr)
	}

	if curr.Prev != a.headAddr && block.At(curr.Prev).Free == 1 {
		freelist.CoalesceWithNext(block.At(curr.Prev))
		curr = block.At(curr.Prev)
	}

	next := block.At(curr.Next)
	curr.Size += block.Addr(next) - block.End(curr)
	integrity.Refresh(curr)
}

func zeroBytes(p unsafe.Pointer, n uintptr) {
	b := unsafe.Slice((*byte)(p), n)
	for i := range b {
		b[i] = 0
	}
}

func copyBytes(dst, src unsafe.Pointer, n uintptr) {
	copy(unsafe.Slice((*byte)(dst), n), unsafe.Slice((*byte)(src), n))
}
