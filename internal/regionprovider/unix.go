//go:build unix

package regionprovider

import (
	"errors"
	"unsafe"

	"golang.org/x/sys/unix"
)

// defaultReservation is how much virtual address space Unix reserves
// up front. Reservation is cheap (no physical pages are backed until
// Adjust commits them via mprotect), so this can comfortably exceed
// any realistic heap.
const defaultReservation = 1 << 30 // 1 GiB

// errPartialShrink is returned if a caller ever asks Unix to shrink by
// less than everything it has committed — the allocator core never
// does this (spec.md §6: "one large negative delta during teardown"),
// so supporting partial munmap/mprotect-back-to-PROT_NONE shrinks would
// be unused complexity.
var errPartialShrink = errors.New("regionprovider: unix provider only supports full teardown shrinks")

// Unix is a Provider backed by a single mmap reservation, the closest
// portable analogue to sbrk available without cgo. Pages are reserved
// PROT_NONE up front and promoted to PROT_READ|PROT_WRITE in
// page-sized increments as Adjust grows the region, so the base
// address never moves.
//
// Built only on unix platforms, mirroring the donor codebase's own
// //go:build unix + golang.org/x/sys/unix split for OS primitives
// (internal/runtime/asyncio/zerocopy_unix_splice.go,
// kqueue_poller_bsd.go).
type Unix struct {
	mem       []byte
	committed uintptr
}

// NewUnix reserves defaultReservation bytes of address space.
func NewUnix() (*Unix, error) {
	return NewUnixSized(defaultReservation)
}

// NewUnixSized reserves size bytes of address space, rounded up to a
// whole number of pages by the kernel.
func NewUnixSized(size uintptr) (*Unix, error) {
	mem, err := unix.Mmap(-1, 0, int(size), unix.PROT_NONE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, err
	}

	return &Unix{mem: mem}, nil
}

func (u *Unix) Base() unsafe.Pointer {
	if len(u.mem) == 0 {
		return nil
	}

	return unsafe.Pointer(&u.mem[0])
}

func (u *Unix) Current() uintptr {
	base := u.Base()
	if base == nil {
		return 0
	}

	return uintptr(base) + u.committed
}

func (u *Unix) Adjust(delta int64) (uintptr, error) {
	prev := u.Current()

	if len(u.mem) == 0 {
		return 0, ErrExhausted
	}

	if delta < 0 {
		shrink := uintptr(-delta)
		if shrink != u.committed {
			return 0, errPartialShrink
		}

		mem := u.mem
		u.mem = nil
		u.committed = 0

		if err := unix.Munmap(mem); err != nil {
			return 0, err
		}

		return prev, nil
	}

	grow := uintptr(delta)
	if u.committed+grow > uintptr(len(u.mem)) {
		return 0, ErrExhausted
	}

	region := u.mem[u.committed : u.committed+grow]
	if err := unix.Mprotect(region, unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return 0, err
	}

	u.committed += grow

	return prev, nil
}
