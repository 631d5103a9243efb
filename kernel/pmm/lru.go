package pmm

import "swapkernel/kernel/ptable"

// LRUInsert links the descriptor for fn at the head of the LRU list (MRU),
// records (pgdir, va) on it, and increments the live counter. §9's Design
// Notes resolve the source's head-vs-tail ambiguity in favor of
// insert-at-head; the victim scan then demotes survivors toward the tail, so
// the tail is always the oldest resident.
//
// Two calls to LRUInsert for the same frame must be serialized by the
// caller — normally the owning address-space lock — exactly as §5 requires.
func (a *Allocator) LRUInsert(fn Frame, pgdir ptable.PgDir, va uintptr) {
	d := &a.descriptors[fn]

	a.lruMu.Lock()
	defer a.lruMu.Unlock()

	if d.onList {
		// Re-inserting an already-linked node would corrupt the list;
		// the caller is responsible for removing stale mappings first.
		panicFn(errCorruptLRU)
		return
	}

	d.OwnerPgdir = pgdir
	d.Vaddr = va
	a.linkAtHead(d)
	a.numLRUPages++
}

// linkAtHead splices d in immediately after the sentinel.
func (a *Allocator) linkAtHead(d *Descriptor) {
	head := a.lruSentinel.next
	d.prev = &a.lruSentinel
	d.next = head
	head.prev = d
	a.lruSentinel.next = d
	d.onList = true
}

// unlink removes d from wherever it currently sits in the list. Caller must
// hold lruMu.
func (a *Allocator) unlink(d *Descriptor) {
	d.prev.next = d.next
	d.next.prev = d.prev
	d.prev, d.next = nil, nil
	d.onList = false
}

// LRURemove unlinks the descriptor for fn, clears its (pgdir, va), and
// decrements the counter. A no-op if the descriptor is not currently on the
// list, matching the spec's idempotence rule for lru_remove.
func (a *Allocator) LRURemove(fn Frame) {
	d := &a.descriptors[fn]

	a.lruMu.Lock()
	defer a.lruMu.Unlock()

	if !d.onList {
		return
	}

	a.unlink(d)
	d.OwnerPgdir = 0
	d.Vaddr = 0
	a.numLRUPages--
}

// moveToTail rotates d to just before the sentinel, used by the victim
// selector to give a recently-accessed page a second chance. Caller must
// hold lruMu.
func (a *Allocator) moveToTail(d *Descriptor) {
	a.unlink(d)
	tailPrev := a.lruSentinel.prev
	d.prev = tailPrev
	d.next = &a.lruSentinel
	tailPrev.next = d
	a.lruSentinel.prev = d
	d.onList = true
}

// NumLRUPages returns the number of frames currently tracked in the LRU
// list — the second half of the pair read by swap_stat.
func (a *Allocator) NumLRUPages() int {
	a.lruMu.Lock()
	defer a.lruMu.Unlock()
	return a.numLRUPages
}
