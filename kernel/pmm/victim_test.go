package pmm

import (
	"testing"

	"swapkernel/kernel/ptable"
)

// fakeWalker resolves PTEs from an in-memory table keyed by (pgdir, va),
// standing in for the spec's out-of-scope page-table walker.
type fakeWalker struct {
	ptes map[ptable.PgDir]map[uintptr]*ptable.PTE
}

func newFakeWalker() *fakeWalker {
	return &fakeWalker{ptes: map[ptable.PgDir]map[uintptr]*ptable.PTE{}}
}

func (w *fakeWalker) set(pgdir ptable.PgDir, va uintptr, pte *ptable.PTE) {
	m, ok := w.ptes[pgdir]
	if !ok {
		m = map[uintptr]*ptable.PTE{}
		w.ptes[pgdir] = m
	}
	m[va] = pte
}

func (w *fakeWalker) unset(pgdir ptable.PgDir, va uintptr) {
	delete(w.ptes[pgdir], va)
}

func (w *fakeWalker) Walk(pgdir ptable.PgDir, va uintptr, _ bool) *ptable.PTE {
	m, ok := w.ptes[pgdir]
	if !ok {
		return nil
	}
	return m[va]
}

func allocSlot(next *uint32, max uint32) func() (uint32, bool) {
	return func() (uint32, bool) {
		if *next >= max {
			return 0, false
		}
		s := *next
		*next++
		return s, true
	}
}

func TestReclaimOnEmptyLRUReturnsNoVictim(t *testing.T) {
	a := newTestAllocator(t, 4)
	walker := newFakeWalker()

	var next uint32
	_, _, _, _, err := a.Reclaim(walker, allocSlot(&next, 8))
	if err != ErrNoVictim {
		t.Fatalf("Reclaim() err = %v, want ErrNoVictim", err)
	}
}

func TestReclaimPicksUnaccessedVictim(t *testing.T) {
	a := newTestAllocator(t, 4)
	walker := newFakeWalker()

	type entry struct {
		fn  Frame
		pte *ptable.PTE
	}
	var entries []entry
	for i := 0; i < 4; i++ {
		fn, err := a.AllocFrame()
		if err != nil {
			t.Fatalf("AllocFrame: %v", err)
		}
		pte := &ptable.PTE{}
		pte.MakeResident(uint32(fn))
		pte.SetFlags(ptable.FlagUser | ptable.FlagAccessed)
		va := uintptr(i) * 0x1000
		walker.set(1, va, pte)
		a.LRUInsert(fn, 1, va)
		entries = append(entries, entry{fn, pte})
	}

	// Clear ACCESSED only on entries[0] (the first inserted, so it starts
	// as the tail / oldest resident).
	entries[0].pte.ClearFlags(ptable.FlagAccessed)

	var next uint32
	victimFn, pgdir, va, slot, err := a.Reclaim(walker, allocSlot(&next, 8))
	if err != nil {
		t.Fatalf("Reclaim: %v", err)
	}
	if victimFn != entries[0].fn {
		t.Fatalf("victim frame = %d, want %d", victimFn, entries[0].fn)
	}
	if pgdir != 1 {
		t.Fatalf("pgdir = %d, want 1", pgdir)
	}
	if va != 0 {
		t.Fatalf("va = %#x, want 0 (entries[0]'s address)", va)
	}
	if slot != 0 {
		t.Fatalf("slot = %d, want 0 (first allocated)", slot)
	}

	if got := a.NumLRUPages(); got != 3 {
		t.Fatalf("NumLRUPages() = %d, want 3", got)
	}
}

func TestReclaimSkipsStaleNodes(t *testing.T) {
	a := newTestAllocator(t, 4)
	walker := newFakeWalker()

	// The live node is inserted first so it sits at the tail; the stale node
	// inserted after it sits at the head, where the scan looks first.
	liveFn, err := a.AllocFrame()
	if err != nil {
		t.Fatalf("AllocFrame: %v", err)
	}
	pte := &ptable.PTE{}
	pte.MakeResident(uint32(liveFn))
	pte.SetFlags(ptable.FlagUser)
	walker.set(1, 0x2000, pte)
	a.LRUInsert(liveFn, 1, 0x2000)

	staleFn, err := a.AllocFrame()
	if err != nil {
		t.Fatalf("AllocFrame: %v", err)
	}
	a.LRUInsert(staleFn, 1, 0x1000)
	// No PTE registered for this mapping at all -> Walk returns nil -> stale.

	var next uint32
	victimFn, _, _, _, err := a.Reclaim(walker, allocSlot(&next, 8))
	if err != nil {
		t.Fatalf("Reclaim: %v", err)
	}
	if victimFn != liveFn {
		t.Fatalf("victim frame = %d, want %d (live)", victimFn, liveFn)
	}
	// Stale node must have been dropped, live node evicted: counter back to 0.
	if got := a.NumLRUPages(); got != 0 {
		t.Fatalf("NumLRUPages() = %d, want 0", got)
	}
}

func TestReclaimReturnsErrSlotExhaustedLeavingVictimLinked(t *testing.T) {
	a := newTestAllocator(t, 4)
	walker := newFakeWalker()

	fn, err := a.AllocFrame()
	if err != nil {
		t.Fatalf("AllocFrame: %v", err)
	}
	pte := &ptable.PTE{}
	pte.MakeResident(uint32(fn))
	pte.SetFlags(ptable.FlagUser)
	walker.set(1, 0x3000, pte)
	a.LRUInsert(fn, 1, 0x3000)

	noSlots := func() (uint32, bool) { return 0, false }

	_, _, _, _, err = a.Reclaim(walker, noSlots)
	if err != ErrSlotExhausted {
		t.Fatalf("Reclaim() err = %v, want ErrSlotExhausted", err)
	}
	if got := a.NumLRUPages(); got != 1 {
		t.Fatalf("NumLRUPages() = %d, want 1 (victim must remain linked)", got)
	}
}
