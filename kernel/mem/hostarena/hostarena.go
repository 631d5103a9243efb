// Package hostarena stands in for the physical address space when this
// subsystem runs as an ordinary (non-freestanding) Go process instead of
// inside a booted kernel image. The teacher's pmm/vmm packages assume a
// direct-mapped region of real physical RAM is already addressable; on a
// host process there is no such thing, so Arena mmaps a single anonymous,
// page-aligned byte slice and frame/page addresses are offsets into it.
package hostarena

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"swapkernel/kernel/mem"
)

// Arena is a flat, page-aligned block of host memory used as the backing
// store for every physical frame the allocator hands out.
type Arena struct {
	mem []byte
}

// New mmaps an anonymous region large enough to hold nframes pages. The
// region is private, anonymous memory (MAP_PRIVATE|MAP_ANON, no file
// backing), so its lifetime is exactly the Arena's. It is not locked in host
// RAM.
func New(nframes int) (*Arena, error) {
	if nframes <= 0 {
		return nil, fmt.Errorf("hostarena: nframes must be positive, got %d", nframes)
	}
	if got := unix.Getpagesize(); got != int(mem.PageSize) {
		return nil, fmt.Errorf("hostarena: host page size %d does not match mem.PageSize %d", got, mem.PageSize)
	}

	size := nframes * int(mem.PageSize)
	region, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("hostarena: mmap %d bytes: %w", size, err)
	}

	return &Arena{mem: region}, nil
}

// Close unmaps the arena. Any Frame addresses handed out by the caller
// become invalid.
func (a *Arena) Close() error {
	if a.mem == nil {
		return nil
	}
	err := unix.Munmap(a.mem)
	a.mem = nil
	return err
}

// NFrames returns the number of page-sized frames backed by the arena.
func (a *Arena) NFrames() int {
	return len(a.mem) / int(mem.PageSize)
}

// Base returns the arena's start address as a uintptr, matching the style of
// the teacher's Frame.Address()/Page.Address() methods which also deal in
// raw uintptr values rather than slices.
func (a *Arena) Base() uintptr {
	if len(a.mem) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&a.mem[0]))
}

// FrameBytes returns the byte slice backing frame number fn. Callers must
// not retain the slice past the arena's lifetime.
func (a *Arena) FrameBytes(fn uint32) []byte {
	off := int(fn) * int(mem.PageSize)
	return a.mem[off : off+int(mem.PageSize)]
}

// FrameAddress returns the address of frame fn as a uintptr, suitable for
// passing to mem.Memset.
func (a *Arena) FrameAddress(fn uint32) uintptr {
	return a.Base() + uintptr(fn)*uintptr(mem.PageSize)
}
