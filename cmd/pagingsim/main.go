// Command pagingsim wires the frame allocator, LRU tracker, victim
// selector, swap-slot bitmap and block device together against a software
// page table, then scripts the first three end-to-end scenarios from the
// paging subsystem's test suite (allocate/free, exhaust+reclaim, swap-in) as
// a runnable demonstration.
package main

import (
	"os"

	"swapkernel/kernel/blockio"
	"swapkernel/kernel/config"
	"swapkernel/kernel/kfmt/early"
	"swapkernel/kernel/mem"
	"swapkernel/kernel/mem/hostarena"
	"swapkernel/kernel/pmm"
	"swapkernel/kernel/ptable"
	"swapkernel/kernel/ptable/simpte"
	"swapkernel/kernel/swap"
)

func main() {
	early.SetOutput(os.Stdout)

	// Sized to match the spec's own worked examples: NFRAMES_usable=4,
	// SWAP_SLOTS=8, so the four Maps use every frame and the fifth
	// allocation forces the demo into reclaim.
	cfg := config.Params{
		PhysTop:              4 * uint64(mem.PageSize),
		KernelReservedFrames: 0,
		SwapMax:              8 * uint64(mem.PageSize),
		MaxRetry:             4,
	}
	if err := cfg.Validate(); err != nil {
		early.Printf("pagingsim: invalid config: %s\n", err.Error())
		os.Exit(1)
	}

	arena, err := hostarena.New(int(cfg.NFrames()))
	if err != nil {
		early.Printf("pagingsim: hostarena.New: %s\n", err.Error())
		os.Exit(1)
	}
	defer arena.Close()

	frames := pmm.New(arena, pmm.Frame(cfg.KernelReservedFrames))
	frames.FreeRange(pmm.Frame(cfg.KernelReservedFrames), pmm.Frame(cfg.NFrames()))
	frames.SetMaxRetry(cfg.MaxRetry)

	slots := pmm.NewSlotBitmap(cfg.SwapSlots())
	dev := blockio.NewMemDevice(int64(cfg.SwapSlots()) * int64(mem.PageSize))
	tbl := simpte.New(1)

	sys := swap.New(frames, slots, dev, tbl, tbl)

	printStats(frames, sys)

	early.Printf("\n-- scenario 1: simple allocate/free --\n")
	scenarioAllocFree(frames)

	early.Printf("\n-- scenario 2: exhaust + reclaim --\n")
	pages := scenarioMapFour(sys, frames, tbl)

	early.Printf("\n-- scenario 3: swap-in round trip --\n")
	scenarioSwapIn(sys, tbl, pages[0])

	printStats(frames, sys)

	// Enable locking exactly once, as the last step before the demo
	// pretends other CPUs could now reach the allocator.
	frames.EnableLocking()
	slots.EnableLocking()
	early.Printf("\nlocking enabled; pagingsim demo complete\n")
}

func printStats(frames *pmm.Allocator, sys *swap.Subsystem) {
	free, lru := sys.Stat()
	early.Printf("[pagingsim] page stats: free=%d lru=%d nframes=%d\n", free, lru, frames.NFrames())
}

func scenarioAllocFree(frames *pmm.Allocator) {
	a, err := frames.AllocFrame()
	if err != nil {
		early.Printf("alloc_frame failed: %s\n", err.Message)
		return
	}
	frames.FreeFrame(a)
	b, err := frames.AllocFrame()
	if err != nil {
		early.Printf("alloc_frame failed: %s\n", err.Message)
		return
	}
	early.Printf("alloc_frame -> %d, free, alloc_frame -> %d (reused=%t)\n", a, b, a == b)
	frames.FreeFrame(b)
}

func scenarioMapFour(sys *swap.Subsystem, frames *pmm.Allocator, tbl *simpte.Table) []uintptr {
	pages := []uintptr{0x1000, 0x2000, 0x3000, 0x4000}
	for i, va := range pages {
		if err, _ := sys.Map(1, va, true); err != nil {
			early.Printf("Map page %d failed: %s\n", i, err.Message)
		}
	}
	for _, va := range pages {
		tbl.Walk(1, va, false).SetFlags(ptable.FlagAccessed)
	}
	tbl.Walk(1, pages[0], false).ClearFlags(ptable.FlagAccessed)

	// Force a fifth allocation to drive reclaim.
	fn, err := frames.AllocFrame()
	if err != nil {
		early.Printf("forcing reclaim failed: %s\n", err.Message)
		return pages
	}
	early.Printf("reclaim evicted a victim to make frame %d available\n", fn)
	return pages
}

func scenarioSwapIn(sys *swap.Subsystem, tbl *simpte.Table, va uintptr) {
	pte := tbl.Walk(1, va, false)
	if !pte.HasFlags(ptable.FlagSwapped) {
		early.Printf("page at 0x%x was not swapped out, nothing to demonstrate\n", va)
		return
	}
	sys.PageFault(va)
	early.Printf("page fault on 0x%x restored residency (frame=%d)\n", va, pte.Frame())
}
