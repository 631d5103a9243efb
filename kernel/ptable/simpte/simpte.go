// Package simpte provides a software page-table fake: a map-based Walker
// used by tests and the cmd/pagingsim demo in place of real x86 page-table
// walking (the spec's out-of-scope page-table walker collaborator).
package simpte

import (
	"sync"

	"swapkernel/kernel/ptable"
)

type pageKey struct {
	pgdir ptable.PgDir
	va    uintptr
}

// Table is an in-memory stand-in for a hierarchy of x86 page tables. It
// satisfies ptable.Walker and ptable.AddressSpace so pmm/swap code can drive
// it exactly as it would a real one.
type Table struct {
	mu      sync.Mutex
	entries map[pageKey]*ptable.PTE
	current ptable.PgDir
}

// New returns an empty table whose current address space is pgdir.
func New(pgdir ptable.PgDir) *Table {
	return &Table{
		entries: make(map[pageKey]*ptable.PTE),
		current: pgdir,
	}
}

// Walk implements ptable.Walker. When alloc is true and no entry exists yet,
// a fresh zero-valued PTE is installed and returned, mirroring a real walker
// allocating intermediate page-table pages on demand.
func (t *Table) Walk(pgdir ptable.PgDir, va uintptr, alloc bool) *ptable.PTE {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := pageKey{pgdir, va}
	pte, ok := t.entries[key]
	if !ok {
		if !alloc {
			return nil
		}
		pte = new(ptable.PTE)
		t.entries[key] = pte
	}
	return pte
}

// Unmap removes the mapping entirely, as if the page-table walker tore down
// the leaf entry — used to simulate process teardown / explicit unmap.
func (t *Table) Unmap(pgdir ptable.PgDir, va uintptr) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, pageKey{pgdir, va})
}

// CurrentPgdir implements ptable.AddressSpace.
func (t *Table) CurrentPgdir() ptable.PgDir {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// SwitchTo changes the current address space, as a context switch would.
func (t *Table) SwitchTo(pgdir ptable.PgDir) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = pgdir
}
