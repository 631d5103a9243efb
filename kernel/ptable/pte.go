// Package ptable defines the page-table-entry bit layout shared by the
// frame allocator, the victim selector and the page-fault handler, along
// with the Walker and AddressSpace interfaces the spec names as external
// collaborators (the page-table walker and the process/address-space
// module). Nothing in this package owns an actual x86 page table; real
// page-table code implements Walker, and kernel/ptable/simpte provides a
// software stand-in used by the tests and the cmd/pagingsim demo.
package ptable

// PTE is a page-table entry. Bits 0-11 hold flags, bits 12-31 hold either a
// physical frame number (resident page) or a swap slot index (swapped
// page), mirroring the spec's §6 encoding.
type PTE uint64

// Flag is a single bit (or group of bits) within a PTE.
type Flag uint64

const (
	// FlagPresent marks the entry as backed by a physical frame.
	FlagPresent Flag = 1 << 0

	// FlagWritable marks the page as writable.
	FlagWritable Flag = 1 << 1

	// FlagUser marks the page as accessible from user mode. The spec
	// treats USER=0 as the signal that a PTE is no longer user-accessible
	// (stale LRU entry, e.g. because the region was unmapped).
	FlagUser Flag = 1 << 2

	// FlagAccessed is the hardware-maintained bit the second-chance
	// victim selector inspects and clears.
	FlagAccessed Flag = 1 << 5

	// FlagSwapped is the software bit recording that this PTE's address
	// field holds a swap slot index rather than a frame number. Slot 0 is
	// reserved by the bitmap allocator and never handed out, so a swapped
	// PTE whose slot reads 0 is always a bug, never a legitimate target.
	FlagSwapped Flag = 1 << 9

	// addrShift is the bit offset of the frame-number / slot-index field.
	addrShift = 12

	// addrMask covers the 20 address bits above the flags.
	addrMask PTE = 0xFFFFF << addrShift

	flagMask PTE = (1 << addrShift) - 1
)

// HasFlags reports whether every bit in flags is set.
func (p PTE) HasFlags(flags Flag) bool {
	return PTE(flags)&p == PTE(flags)
}

// SetFlags sets the given bits, leaving the address field untouched.
func (p *PTE) SetFlags(flags Flag) {
	*p |= PTE(flags)
}

// ClearFlags clears the given bits, leaving the address field untouched.
func (p *PTE) ClearFlags(flags Flag) {
	*p &^= PTE(flags)
}

// Frame returns the physical frame number encoded in the address field. It
// is only meaningful when FlagPresent is set.
func (p PTE) Frame() uint32 {
	return uint32((p & addrMask) >> addrShift)
}

// SetFrame rewrites the address field to frame fn, preserving every flag bit.
func (p *PTE) SetFrame(fn uint32) {
	*p = (*p &^ addrMask) | (PTE(fn)<<addrShift)&addrMask
}

// Slot returns the swap slot index encoded in the address field. It is only
// meaningful when FlagSwapped is set.
func (p PTE) Slot() uint32 {
	return uint32((p & addrMask) >> addrShift)
}

// SetSlot rewrites the address field to swap slot index idx, preserving
// every flag bit.
func (p *PTE) SetSlot(idx uint32) {
	*p = (*p &^ addrMask) | (PTE(idx)<<addrShift)&addrMask
}

// MakeResident rewrites p in place to describe a page resident in frame fn,
// preserving permission bits (writable/user) and clearing FlagSwapped.
func (p *PTE) MakeResident(fn uint32) {
	p.SetFrame(fn)
	p.SetFlags(FlagPresent)
	p.ClearFlags(FlagSwapped)
}

// MakeSwapped rewrites p in place to describe a page evicted to swap slot
// idx, preserving permission bits and clearing FlagPresent.
func (p *PTE) MakeSwapped(idx uint32) {
	p.SetSlot(idx)
	p.ClearFlags(FlagPresent)
	p.SetFlags(FlagSwapped)
}

// PgDir identifies an address space / page directory. Its concrete meaning
// (a pointer, a physical frame, an index) is owned by the process module;
// the paging subsystem only ever compares it for equality and passes it back
// to Walker.
type PgDir uintptr

// Walker resolves the page-table entry that maps a virtual address within a
// given address space. It is the spec's "page-table walker" external
// collaborator: given a page directory and a virtual address, return a
// pointer to the PTE (installing intermediate tables if alloc is true) or
// nil if no mapping (and alloc is false).
type Walker interface {
	Walk(pgdir PgDir, va uintptr, alloc bool) *PTE
}

// AddressSpace is the spec's "process/address-space module" external
// collaborator: it tells the paging subsystem which address space is
// current, so page_fault can resolve a fault without the caller threading
// a PgDir through every call.
type AddressSpace interface {
	CurrentPgdir() PgDir
}
