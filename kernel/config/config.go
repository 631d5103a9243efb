// Package config holds the compile-time-ish parameters the spec fixes as
// constants (PAGE_SIZE, BLOCKS_PER_PAGE) alongside the ones a real kernel
// would derive from the multiboot memory map and a swap-partition size —
// here supplied by whoever wires the subsystem together (cmd/pagingsim or a
// test), bundled into a single validated Params struct rather than scattered
// as package-level globals.
package config

import (
	"fmt"

	"swapkernel/kernel/mem"
)

// BlocksPerPage is the number of BLOCK_SIZE-sized device blocks that make up
// one PAGE_SIZE transfer unit for swap I/O.
const BlocksPerPage = mem.PageSize / 512

// Params bundles the sizing knobs threaded through every component
// constructor: NFRAMES/PHYS_TOP derive the frame descriptor table and
// free-list range (§3), SwapMax/BlocksPerPage derive SWAP_SLOTS (§3's swap
// bitmap sizing), and MaxRetry bounds alloc_frame's reclaim-retry loop (§4.B).
type Params struct {
	// PhysTop is the top of usable physical memory in bytes; NFrames is
	// derived from it.
	PhysTop uint64

	// KernelReservedFrames is the count of frames at the low end of the
	// arena that are never placed on the free-list (page-table pages,
	// kernel stacks, the bitmap itself, etc. — §3's "kernel-owned"
	// state). FreeRange is expected to start at this frame.
	KernelReservedFrames uint32

	// SwapMax is the total swap area size in bytes; SWAP_SLOTS is
	// SwapMax / (BlocksPerPage * BLOCK_SIZE) = SwapMax / PageSize.
	SwapMax uint64

	// MaxRetry bounds the number of free-list checks alloc_frame may
	// perform (with at most one reclaim between them) before giving up
	// (§4.B).
	MaxRetry int
}

// NFrames returns PHYS_TOP / PAGE_SIZE.
func (p Params) NFrames() uint32 {
	return uint32(p.PhysTop / uint64(mem.PageSize))
}

// SwapSlots returns SWAP_MAX / PAGE_SIZE (since BlocksPerPage is defined in
// terms of PAGE_SIZE, this is equivalent to SWAP_MAX / BLOCKS_PER_PAGE over
// BLOCK_SIZE-sized blocks).
func (p Params) SwapSlots() uint32 {
	return uint32(p.SwapMax / uint64(mem.PageSize))
}

// Validate checks internal consistency before any component is constructed
// from these params.
func (p Params) Validate() error {
	if p.PhysTop == 0 || p.PhysTop%uint64(mem.PageSize) != 0 {
		return fmt.Errorf("config: PhysTop %d is not a positive multiple of PAGE_SIZE %d", p.PhysTop, mem.PageSize)
	}
	if p.KernelReservedFrames >= p.NFrames() {
		return fmt.Errorf("config: KernelReservedFrames %d leaves no usable frames (NFRAMES=%d)", p.KernelReservedFrames, p.NFrames())
	}
	if p.SwapMax == 0 || p.SwapMax%uint64(mem.PageSize) != 0 {
		return fmt.Errorf("config: SwapMax %d is not a positive multiple of PAGE_SIZE %d", p.SwapMax, mem.PageSize)
	}
	if p.MaxRetry <= 0 {
		return fmt.Errorf("config: MaxRetry must be positive, got %d", p.MaxRetry)
	}
	return nil
}

// Default returns a small but workable parameter set, suitable for tests and
// the CLI demo: 256 frames (1 MiB), 4 frames reserved for the kernel, and a
// swap area sized for 64 slots.
func Default() Params {
	return Params{
		PhysTop:              256 * uint64(mem.PageSize),
		KernelReservedFrames: 4,
		SwapMax:              64 * uint64(mem.PageSize),
		MaxRetry:             4,
	}
}
