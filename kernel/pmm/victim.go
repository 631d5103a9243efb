package pmm

import (
	"swapkernel/kernel"
	"swapkernel/kernel/ptable"
)

// ErrNoVictim is returned by Reclaim when the LRU list is empty or every
// resident page survived a full second-chance revolution — the bounded
// anti-livelock case in §4.E's Direction Note.
var ErrNoVictim = &kernel.Error{Module: "pmm", Message: "no reclaimable victim"}

// ErrSlotExhausted is returned by Reclaim when a victim was found but the
// caller-supplied allocSlot callback could not reserve a swap slot. The
// victim is left untouched and still linked, per §4.F step 3.
var ErrSlotExhausted = &kernel.Error{Module: "pmm", Message: "swap slot allocator exhausted"}

// Reclaim implements §4.F's steps 1-4: it runs the second-chance scan under
// the LRU lock, allocates a swap slot for the chosen victim (still under the
// lock, so a racing reclaim cannot pick the same victim), then unlinks the
// victim and clears its descriptor before releasing the lock. The actual
// block write, PTE rewrite and FreeFrame (steps 5-7, which may sleep) happen
// in the caller — package swap — strictly after this call returns, with the
// LRU lock already dropped.
//
// allocSlot must not block; it is called with the LRU lock held.
func (a *Allocator) Reclaim(walker ptable.Walker, allocSlot func() (slot uint32, ok bool)) (fn Frame, pgdir ptable.PgDir, va uintptr, slot uint32, err *kernel.Error) {
	a.lruMu.Lock()

	victim, selErr := a.selectVictimLocked(walker)
	if selErr != nil {
		a.lruMu.Unlock()
		return 0, 0, 0, 0, selErr
	}

	s, ok := allocSlot()
	if !ok {
		a.lruMu.Unlock()
		return 0, 0, 0, 0, ErrSlotExhausted
	}

	fn, pgdir, va = victim.frame, victim.OwnerPgdir, victim.Vaddr
	a.unlink(victim)
	victim.OwnerPgdir = 0
	victim.Vaddr = 0
	a.numLRUPages--

	a.lruMu.Unlock()
	return fn, pgdir, va, s, nil
}

// selectVictimLocked runs the second-chance scan. Caller must hold lruMu.
// The returned descriptor is still linked into the list; stale nodes
// encountered along the way are unlinked and dropped in place (§7's
// "silent self-heal").
func (a *Allocator) selectVictimLocked(walker ptable.Walker) (*Descriptor, *kernel.Error) {
	if a.lruSentinel.next == &a.lruSentinel {
		return nil, ErrNoVictim
	}

	// Bound the scan at 2x the number of resident pages so that a
	// pathological workload where every ACCESSED bit is reset between
	// visits cannot spin forever (§4.E's Direction Note).
	budget := 2 * a.numLRUPages
	if budget == 0 {
		budget = 2
	}

	cur := a.lruSentinel.next
	for steps := 0; steps < budget; steps++ {
		if cur == &a.lruSentinel {
			// Wrapped around; nothing left to inspect this
			// revolution other than what we already passed over.
			if a.lruSentinel.next == &a.lruSentinel {
				return nil, ErrNoVictim
			}
			cur = a.lruSentinel.next
			continue
		}

		next := cur.next
		pte := walker.Walk(cur.OwnerPgdir, cur.Vaddr, false)

		if pte == nil || !pte.HasFlags(ptable.FlagUser) {
			// Stale: the mapping is gone or no longer user-visible.
			stale := cur
			cur = next
			a.unlink(stale)
			stale.OwnerPgdir = 0
			stale.Vaddr = 0
			a.numLRUPages--
			continue
		}

		if !pte.HasFlags(ptable.FlagAccessed) {
			return cur, nil
		}

		pte.ClearFlags(ptable.FlagAccessed)
		a.moveToTail(cur)
		cur = next
	}

	return nil, ErrNoVictim
}
