// Package swap is the glue named in §4.F and §4.G: reclaim (victim
// selection, slot allocation, block write, PTE rewrite, frame free) and the
// page-fault entry point (slot extraction, frame allocation, block read,
// PTE rewrite, LRU re-insertion). It is the only caller of pmm.Allocator's
// reclaim hooks and the only owner of the swap-slot bitmap and the block
// device.
package swap

import (
	"swapkernel/kernel"
	"swapkernel/kernel/blockio"
	"swapkernel/kernel/kfmt/early"
	"swapkernel/kernel/mem"
	"swapkernel/kernel/pmm"
	"swapkernel/kernel/ptable"
)

var (
	errFaultNotSwapped = &kernel.Error{Module: "swap", Message: "page fault on a PTE that is not PRESENT=0,SWAPPED=1"}
	panicFn            = kernel.Panic
)

// Subsystem wires together the frame allocator (A/B/D/E, package pmm), the
// swap-slot bitmap (C), the page-table walker, and the block device into
// the two end-to-end operations the spec names: reclaim (swap-out) and
// page_fault (swap-in).
type Subsystem struct {
	frames *pmm.Allocator
	slots  *pmm.SlotBitmap
	dev    blockio.Device
	walker ptable.Walker
	asp    ptable.AddressSpace
}

// New builds a Subsystem and registers its Reclaim method as frames'
// out-of-memory hook, exactly as §2's data flow describes: alloc_frame, on
// empty, invokes reclaim, which calls the victim selector then the bitmap.
func New(frames *pmm.Allocator, slots *pmm.SlotBitmap, dev blockio.Device, walker ptable.Walker, asp ptable.AddressSpace) *Subsystem {
	s := &Subsystem{frames: frames, slots: slots, dev: dev, walker: walker, asp: asp}
	frames.SetReclaimFunc(s.Reclaim)
	return s
}

// Reclaim implements §4.F. It is registered with pmm.Allocator and invoked
// automatically from AllocFrame when the free list is empty; it can also be
// called directly (e.g. by a background "keep some frames free" task, which
// this subsystem does not implement — see Non-goals).
func (s *Subsystem) Reclaim() *kernel.Error {
	fn, pgdir, va, slot, err := s.frames.Reclaim(s.walker, s.slots.SlotAlloc)
	if err == pmm.ErrNoVictim || err == pmm.ErrSlotExhausted {
		early.Printf("[swap] reclaim: %s\n", err.Message)
		return err
	}
	if err != nil {
		return err
	}

	// Step 5: write the frame contents to the swap slot. No lock is held
	// here — the victim is already unlinked from the LRU list (step 4
	// ran under the lock, which Reclaim has already released).
	if writeErr := blockio.WritePage(s.dev, s.frames.FrameBytes(fn), slot); writeErr != nil {
		panicFn(&kernel.Error{Module: "swap", Message: "swap_write failed: " + writeErr.Error()})
		return nil
	}

	// Step 7 before step 6 (rewrite the PTE before freeing the frame),
	// per §4.F's recommended ordering: a racing allocator must never see
	// a PTE that claims PRESENT=1 over a frame that is already back on
	// the free list.
	pte := s.walker.Walk(pgdir, va, false)
	if pte == nil {
		panicFn(&kernel.Error{Module: "swap", Message: "victim PTE vanished between selection and rewrite"})
		return nil
	}
	pte.MakeSwapped(slot)

	// Step 6: free the frame.
	s.frames.FreeFrame(fn)

	return nil
}

// PageFault implements §4.G. Preconditions: the PTE for va in the current
// address space has PRESENT=0, SWAPPED=1 (checked here and treated as fatal
// otherwise, since a fault on any other PTE state is a bug in the caller —
// the process/address-space module — not a recoverable condition).
func (s *Subsystem) PageFault(va uintptr) {
	pgdir := s.asp.CurrentPgdir()
	pte := s.walker.Walk(pgdir, va, false)
	if pte == nil || pte.HasFlags(ptable.FlagPresent) || !pte.HasFlags(ptable.FlagSwapped) {
		panicFn(errFaultNotSwapped)
		return
	}

	slot := pte.Slot()

	// Step 2: free the bitmap bit before the read — the slot's content
	// will be copied out and is no longer needed, and this lets a
	// concurrent swap-out reuse the slot as soon as our read starts
	// (§3's Lifecycle note; I/O is treated as idempotent here since the
	// in-memory/O_DIRECT devices never overlap a read with the very
	// write that populated the same slot).
	s.slots.SlotFree(slot)

	// Step 3: allocate a fresh frame. AllocFrame already attempts reclaim
	// internally, so failure here is fatal — a swap-in that cannot make
	// progress after reclaim was already tried has no other recourse.
	fn, err := s.frames.AllocFrame()
	if err != nil {
		panicFn(&kernel.Error{Module: "swap", Message: "page_fault: alloc_frame failed after reclaim: " + err.Message})
		return
	}

	// Step 4: load the page contents.
	if readErr := blockio.ReadPage(s.dev, s.frames.FrameBytes(fn), slot); readErr != nil {
		panicFn(&kernel.Error{Module: "swap", Message: "swap_read failed: " + readErr.Error()})
		return
	}

	// Step 5: rewrite the PTE to point at the fresh frame.
	pte.MakeResident(uint32(fn))

	// Step 6: re-enter the LRU list.
	s.frames.LRUInsert(fn, pgdir, va)
}

// Map installs a brand-new user mapping at va backed by a freshly allocated,
// zeroed frame, and enters it into the LRU list. This is the ordinary
// (non-fault) path by which a page becomes user-resident in the first
// place; the spec's §3 Lifecycle describes it only in passing ("enter LRU
// on successful mapping"), so it is supplied here as the natural counterpart
// to PageFault.
func (s *Subsystem) Map(pgdir ptable.PgDir, va uintptr, writable bool) (*kernel.Error, *ptable.PTE) {
	fn, err := s.frames.AllocFrame()
	if err != nil {
		return err, nil
	}

	mem.Memset(s.frames.FrameAddress(fn), 0, mem.PageSize)

	pte := s.walker.Walk(pgdir, va, true)
	pte.MakeResident(uint32(fn))
	pte.SetFlags(ptable.FlagUser)
	if writable {
		pte.SetFlags(ptable.FlagWritable)
	}

	s.frames.LRUInsert(fn, pgdir, va)
	return nil, pte
}

// Unmap tears down a user mapping: if resident, it is removed from LRU and
// its frame freed; if swapped, its slot is released. Mirrors §6's process
// teardown requirement (lru_remove on resident pages, slot_free on swapped
// ones before releasing page tables).
func (s *Subsystem) Unmap(pgdir ptable.PgDir, va uintptr) {
	pte := s.walker.Walk(pgdir, va, false)
	if pte == nil {
		return
	}

	switch {
	case pte.HasFlags(ptable.FlagPresent):
		fn := pmm.Frame(pte.Frame())
		s.frames.LRURemove(fn)
		s.frames.FreeFrame(fn)
	case pte.HasFlags(ptable.FlagSwapped):
		s.slots.SlotFree(pte.Slot())
	}

	*pte = 0
}

// Stat implements swap_stat: the two counters read by tests (and, in the
// original kernel, by user-space diagnostic tools).
func (s *Subsystem) Stat() (freeFrames, lruFrames int) {
	return s.frames.FreeCount(), s.frames.NumLRUPages()
}
