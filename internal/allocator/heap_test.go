package allocator

import (
	"testing"
	"unsafe"

	"go.uber.org/mock/gomock"

	"github.com/orizon-lang/heapcore/internal/block"
	"github.com/orizon-lang/heapcore/internal/regionprovider"
	"github.com/orizon-lang/heapcore/internal/regionprovider/regionprovidermock"
)

func newTestAllocator(t *testing.T) *Allocator {
	t.Helper()

	provider := regionprovider.NewMemory(8 << 20)
	a := New(provider)

	if err := a.Setup(); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	t.Cleanup(a.Clean)

	return a
}

func writeBytes(p unsafe.Pointer, data []byte) {
	dst := unsafe.Slice((*byte)(p), len(data))
	copy(dst, data)
}

func readByte(p unsafe.Pointer, offset int) byte {
	return *(*byte)(unsafe.Pointer(uintptr(p) + uintptr(offset)))
}

func TestAllocatorScenarios(t *testing.T) {
	t.Run("DemoProgramWalkthrough", func(t *testing.T) {
		a := newTestAllocator(t)

		p := a.Allocate(50)
		if p == nil {
			t.Fatal("allocate(50) returned nil")
		}

		writeBytes(p, []byte("Custom malloc test!\x00"))

		if got := a.LargestUsedBlockSize(); got != 50 {
			t.Fatalf("largest used block = %d, want 50", got)
		}

		a.Free(p)

		if got := a.LargestUsedBlockSize(); got != 0 {
			t.Fatalf("largest used block after free = %d, want 0", got)
		}
	})

	t.Run("FirstFitReusesFreedBlock", func(t *testing.T) {
		a := newTestAllocator(t)

		aPtr := a.Allocate(100)
		bPtr := a.Allocate(200)

		if aPtr == nil || bPtr == nil {
			t.Fatal("initial allocations failed")
		}

		a.Free(aPtr)

		cPtr := a.Allocate(80)
		if cPtr != aPtr {
			t.Fatalf("first-fit reuse: c = %p, want a = %p", cPtr, aPtr)
		}

		if code := a.Validate(); code != ValidateOK {
			t.Fatalf("validate = %s, want ok", code)
		}
	})

	t.Run("FreeCoalescesBothNeighbors", func(t *testing.T) {
		a := newTestAllocator(t)

		aPtr := a.Allocate(100)
		bPtr := a.Allocate(100)

		a.Free(bPtr)
		a.Free(aPtr)

		if code := a.Validate(); code != ValidateOK {
			t.Fatalf("validate = %s, want ok", code)
		}

		cPtr := a.Allocate(180)
		if cPtr != aPtr {
			t.Fatalf("allocate(180) = %p, want coalesced block at %p", cPtr, aPtr)
		}
	})

	t.Run("FenceOverwriteIsDetected", func(t *testing.T) {
		a := newTestAllocator(t)

		p := a.Allocate(10)
		if p == nil {
			t.Fatal("allocate(10) returned nil")
		}

		*(*byte)(block.HighFence(block.UserToHeader(p))) = 0x00

		if code := a.Validate(); code != ValidateFenceBroken {
			t.Fatalf("validate = %s, want fence_broken", code)
		}
	})

	t.Run("HeaderCorruptionIsDetected", func(t *testing.T) {
		a := newTestAllocator(t)

		p := a.Allocate(10)
		if p == nil {
			t.Fatal("allocate(10) returned nil")
		}

		h := block.UserToHeader(p)
		h.Next = h.Next ^ 1 // flip a bit without refreshing the checksum

		if code := a.Validate(); code != ValidateCorrupted {
			t.Fatalf("validate = %s, want corrupted", code)
		}

		if got := a.Allocate(8); got != nil {
			t.Fatalf("allocate(8) on corrupted heap = %p, want nil", got)
		}

		if class := a.Classify(p); class != ClassHeapCorrupted {
			t.Fatalf("classify(p) on corrupted heap = %s, want heap_corrupted", class)
		}
	})

	t.Run("RepeatedAllocationTriggersGrowth", func(t *testing.T) {
		a := newTestAllocator(t)

		for i := 0; i < 16; i++ {
			p := a.Allocate(PageSize)
			if p == nil {
				t.Fatalf("allocation %d failed: %v", i, a.LastError())
			}

			if code := a.Validate(); code != ValidateOK {
				t.Fatalf("validate after allocation %d = %s, want ok", i, code)
			}
		}
	})
}

func TestAllocatorBoundaryBehaviors(t *testing.T) {
	t.Run("ZeroSizesRejected", func(t *testing.T) {
		a := newTestAllocator(t)

		if p := a.Allocate(0); p != nil {
			t.Errorf("allocate(0) = %p, want nil", p)
		}

		if p := a.ZeroAllocate(0, 8); p != nil {
			t.Errorf("zero_allocate(0, 8) = %p, want nil", p)
		}

		if p := a.ZeroAllocate(8, 0); p != nil {
			t.Errorf("zero_allocate(8, 0) = %p, want nil", p)
		}
	})

	t.Run("FreeNilIsNoop", func(t *testing.T) {
		a := newTestAllocator(t)
		a.Free(nil) // must not panic

		if code := a.Validate(); code != ValidateOK {
			t.Fatalf("validate after free(nil) = %s, want ok", code)
		}
	})

	t.Run("DoubleFreeIsNoop", func(t *testing.T) {
		a := newTestAllocator(t)

		p := a.Allocate(32)
		a.Free(p)
		a.Free(p) // must not panic or corrupt state

		if code := a.Validate(); code != ValidateOK {
			t.Fatalf("validate after double free = %s, want ok", code)
		}
	})

	t.Run("ClassifyZonesInOrder", func(t *testing.T) {
		a := newTestAllocator(t)

		p := a.Allocate(16)
		if p == nil {
			t.Fatal("allocate(16) returned nil")
		}

		h := block.UserToHeader(p)

		for addr := block.Addr(h); addr < block.Addr(h)+block.HeaderSize; addr++ {
			if class := a.Classify(unsafe.Pointer(addr)); class != ClassControlBlock {
				t.Errorf("classify(header+%d) = %s, want control_block", addr-block.Addr(h), class)
			}
		}

		lowFence := uintptr(block.LowFence(h))
		for addr := lowFence; addr < lowFence+block.FenceSize; addr++ {
			if class := a.Classify(unsafe.Pointer(addr)); class != ClassInsideFences {
				t.Errorf("classify(low_fence+%d) = %s, want inside_fences", addr-lowFence, class)
			}
		}

		if class := a.Classify(p); class != ClassValid {
			t.Errorf("classify(payload_start) = %s, want valid", class)
		}

		for addr := uintptr(p) + 1; addr < uintptr(p)+16; addr++ {
			if class := a.Classify(unsafe.Pointer(addr)); class != ClassInsideDataBlock {
				t.Errorf("classify(payload+%d) = %s, want inside_data_block", addr-uintptr(p), class)
			}
		}

		highFence := uintptr(block.HighFence(h))
		for addr := highFence; addr < highFence+block.FenceSize; addr++ {
			if class := a.Classify(unsafe.Pointer(addr)); class != ClassInsideFences {
				t.Errorf("classify(high_fence+%d) = %s, want inside_fences", addr-highFence, class)
			}
		}
	})

	t.Run("ClassifyNull", func(t *testing.T) {
		a := newTestAllocator(t)
		if class := a.Classify(nil); class != ClassNull {
			t.Fatalf("classify(nil) = %s, want null", class)
		}
	})

	t.Run("ClassifyUnallocatedBeforeFirstAllocation", func(t *testing.T) {
		provider := regionprovider.NewMemory(8 << 20)
		a := New(provider)

		if err := a.Setup(); err != nil {
			t.Fatalf("Setup failed: %v", err)
		}
		defer a.Clean()

		if class := a.Classify(unsafe.Pointer(a.headAddr)); class != ClassUnallocated {
			t.Fatalf("classify on empty heap = %s, want unallocated", class)
		}
	})
}

func TestAllocatorLaws(t *testing.T) {
	t.Run("AllocateThenFreeRestoresShape", func(t *testing.T) {
		a := newTestAllocator(t)

		before := a.Validate()

		p := a.Allocate(64)
		a.Free(p)

		after := a.Validate()

		if before != ValidateOK || after != ValidateOK {
			t.Fatalf("validate before=%s after=%s, want both ok", before, after)
		}

		if a.firstBlock != 0 {
			head := a.head()
			if block.At(head.Next).Free != 1 {
				t.Fatalf("sole block after allocate+free should be free")
			}
		}
	})

	t.Run("ReallocateNilIsAllocate", func(t *testing.T) {
		a := newTestAllocator(t)

		p := a.Reallocate(nil, 40)
		if p == nil {
			t.Fatal("reallocate(nil, 40) returned nil")
		}

		if block.UserToHeader(p).Size != 40 {
			t.Fatalf("reallocate(nil, 40) produced a block of size %d, want 40", block.UserToHeader(p).Size)
		}
	})

	t.Run("ReallocateToZeroIsFree", func(t *testing.T) {
		a := newTestAllocator(t)

		p := a.Allocate(40)
		if got := a.Reallocate(p, 0); got != nil {
			t.Fatalf("reallocate(p, 0) = %p, want nil", got)
		}

		if code := a.Validate(); code != ValidateOK {
			t.Fatalf("validate after reallocate-to-zero = %s, want ok", code)
		}
	})

	t.Run("ExactWriteLeavesFencesIntact", func(t *testing.T) {
		a := newTestAllocator(t)

		const n = 37

		p := a.Allocate(n)
		if p == nil {
			t.Fatal("allocate returned nil")
		}

		buf := make([]byte, n)
		for i := range buf {
			buf[i] = byte(i)
		}

		writeBytes(p, buf)

		h := block.UserToHeader(p)
		if *(*uint32)(block.LowFence(h)) != 0xFAFAFAFA {
			t.Error("low fence disturbed by an exact-size write")
		}

		if *(*uint32)(block.HighFence(h)) != 0xFAFAFAFA {
			t.Error("high fence disturbed by an exact-size write")
		}
	})

	t.Run("ReallocateShrinkInPlaceKeepsPrefix", func(t *testing.T) {
		a := newTestAllocator(t)

		p := a.Allocate(100)
		writeBytes(p, []byte("hello, world"))

		smaller := a.Reallocate(p, 12)
		if smaller != p {
			t.Fatalf("shrink-in-place changed the pointer: %p -> %p", p, smaller)
		}

		if readByte(smaller, 0) != 'h' {
			t.Error("shrink-in-place disturbed the retained prefix")
		}

		if code := a.Validate(); code != ValidateOK {
			t.Fatalf("validate after shrink = %s, want ok", code)
		}
	})

	t.Run("ReallocateShrinkOfLastBlockSplitsResidue", func(t *testing.T) {
		a := newTestAllocator(t)

		p := a.Allocate(100)
		if p == nil {
			t.Fatal("allocate returned nil")
		}

		h := block.UserToHeader(p)
		if h.Next != a.tailAddr {
			t.Fatal("test assumes the allocated block is the last one before TAIL")
		}

		shrunk := a.Reallocate(p, 4)
		if shrunk != p {
			t.Fatalf("shrink-in-place changed the pointer: %p -> %p", p, shrunk)
		}

		h = block.UserToHeader(shrunk)
		if h.Next == a.tailAddr {
			t.Fatal("shrinking the last block did not split off a free residual block")
		}

		residual := block.At(h.Next)
		if residual.Free != 1 {
			t.Error("residual block after shrinking the last block is not marked free")
		}

		if residual.Next != a.tailAddr {
			t.Error("residual block should sit directly before TAIL")
		}

		if code := a.Validate(); code != ValidateOK {
			t.Fatalf("validate after shrinking last block = %s, want ok", code)
		}
	})
}

func TestAllocatorProviderExhaustion(t *testing.T) {
	t.Run("FirstAllocationFailsWhenProviderRefusesGrowth", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mock := regionprovidermock.NewMockProvider(ctrl)

		backing := make([]byte, PageSize)
		base := unsafe.Pointer(&backing[0])

		mock.EXPECT().Base().Return(base).AnyTimes()
		mock.EXPECT().Adjust(int64(PageSize)).Return(uintptr(0), nil).Times(1)
		mock.EXPECT().Adjust(gomock.Any()).Return(uintptr(0), regionprovider.ErrExhausted).AnyTimes()

		a := New(mock)
		if err := a.Setup(); err != nil {
			t.Fatalf("Setup failed: %v", err)
		}

		big := PageSize * 2
		if p := a.Allocate(uintptr(big)); p != nil {
			t.Fatalf("allocate(%d) on an exhausted provider = %p, want nil", big, p)
		}

		if a.LastError() == nil {
			t.Error("LastError() is nil after a provider-exhaustion failure")
		}
	})

	t.Run("GrowthTriggeredAllocationFailsCleanly", func(t *testing.T) {
		// A provider with a small fixed capacity: the growth this first
		// allocation needs exceeds its ceiling, and the allocator must
		// fail cleanly rather than corrupt state or panic.
		hugeProvider := regionprovider.NewMemory(PageSize * 2)
		huge := New(hugeProvider)

		if err := huge.Setup(); err != nil {
			t.Fatalf("Setup failed: %v", err)
		}
		defer huge.Clean()

		if p := huge.Allocate(PageSize * 10); p != nil {
			t.Fatalf("allocate(%d) against a %d-byte-capacity provider = %p, want nil", PageSize*10, PageSize*2, p)
		}

		if huge.LastError() == nil {
			t.Error("LastError() is nil after growth-triggered exhaustion")
		}
	})
}

func TestAllocatorSetupCleanRoundTrip(t *testing.T) {
	provider := regionprovider.NewMemory(1 << 20)
	a := New(provider)

	if err := a.Setup(); err != nil {
		t.Fatalf("first Setup failed: %v", err)
	}

	if code := a.Validate(); code != ValidateOK {
		t.Fatalf("validate after setup = %s, want ok", code)
	}

	a.Clean()

	if code := a.Validate(); code != ValidateUninitialized {
		t.Fatalf("validate after clean = %s, want uninitialized", code)
	}

	if err := a.Setup(); err != nil {
		t.Fatalf("second Setup (after clean) failed: %v", err)
	}
	defer a.Clean()

	if code := a.Validate(); code != ValidateOK {
		t.Fatalf("validate after re-setup = %s, want ok", code)
	}
}

func TestAllocatorLoggerHook(t *testing.T) {
	var events []string

	provider := regionprovider.NewMemory(1 << 20)
	a := New(provider, WithLogger(func(event string, fields map[string]any) {
		events = append(events, event)
	}))

	if err := a.Setup(); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	defer a.Clean()

	if len(events) == 0 || events[0] != "setup" {
		t.Fatalf("events = %v, want first event to be setup", events)
	}
}
