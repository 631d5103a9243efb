// Package pmm implements the physical frame allocator: the frame descriptor
// table (§4.A), the free-frame list (§4.B), the LRU tracker (§4.D) and the
// second-chance victim selector (§4.E). Swap-out itself (writing a victim to
// a slot and rewriting its PTE) lives in package swap, which is the only
// caller of reclaim hooks registered here — pmm never imports swap.
package pmm

import (
	"math"
	"sync"

	"swapkernel/kernel"
	"swapkernel/kernel/kfmt/early"
	"swapkernel/kernel/mem"
	"swapkernel/kernel/mem/hostarena"
	"swapkernel/kernel/ptable"
)

// Frame is a physical page frame number; fn = phys_addr / PAGE_SIZE.
type Frame uint32

// InvalidFrame is returned by AllocFrame on out-of-memory.
const InvalidFrame = Frame(math.MaxUint32)

// MaxRetry bounds the number of times AllocFrame checks the free list before
// surfacing failure, per the spec's fixed retry protocol: at most one
// reclaim attempt per call, plus bounded looping if another CPU raced us for
// the frame reclaim freed.
const MaxRetry = 4

var (
	errDoubleFree  = &kernel.Error{Module: "pmm", Message: "double free or corrupt frame free"}
	errBadFrame    = &kernel.Error{Module: "pmm", Message: "free of misaligned or out-of-range frame"}
	errOutOfMemory = &kernel.Error{Module: "pmm", Message: "out of memory"}
	errCorruptLRU  = &kernel.Error{Module: "pmm", Message: "corrupt LRU link"}
	panicFn        = kernel.Panic
)

// Descriptor is the per-frame bookkeeping record named in §3: one per frame,
// indexed by frame number, never allocated or freed. OwnerPgdir/Vaddr are
// only meaningful for user-resident frames (state 3); prev/next link the
// descriptor into the LRU list.
type Descriptor struct {
	OwnerPgdir ptable.PgDir
	Vaddr      uintptr

	prev, next *Descriptor
	frame      Frame
	onList     bool
}

// state reports whether this descriptor currently sits in the LRU list.
func (d *Descriptor) state() bool { return d.onList }

// Allocator owns the frame descriptor table, the free-frame list and the LRU
// tracker — the three pieces of state that all key off the same frame
// number space. Reclaim (package swap) drives it through the hook registered
// with SetReclaimFunc.
type Allocator struct {
	arena       *hostarena.Arena
	descriptors []Descriptor
	startFrame  Frame // first frame available for allocation (past kernel_end)

	freeMu   sync.Mutex
	useLock  bool
	freeHead Frame
	freeLen  int

	lruMu        sync.Mutex
	lruSentinel  Descriptor
	numLRUPages  int

	// reclaimFn is invoked by AllocFrame when the free list is empty. It
	// is registered by package swap via SetReclaimFunc; pmm has no
	// knowledge of swap slots or block I/O.
	reclaimFn func() *kernel.Error

	maxRetry int
}

// New creates an Allocator over the frames backed by arena. startFrame marks
// the first frame available for allocation (frames below it — the
// permanently reserved, pre-kernel_end region — are never linked onto the
// free list).
func New(arena *hostarena.Arena, startFrame Frame) *Allocator {
	a := &Allocator{
		arena:      arena,
		startFrame: startFrame,
		freeHead:   InvalidFrame,
		maxRetry:   MaxRetry,
	}
	a.descriptors = make([]Descriptor, arena.NFrames())
	for i := range a.descriptors {
		a.descriptors[i].frame = Frame(i)
	}
	a.lruSentinel.prev = &a.lruSentinel
	a.lruSentinel.next = &a.lruSentinel
	return a
}

// SetReclaimFunc registers the function AllocFrame calls when the free list
// is exhausted. Mirrors vmm.SetFrameAllocator's indirection: pmm only knows
// how to call it, not what it does.
func (a *Allocator) SetReclaimFunc(fn func() *kernel.Error) {
	a.reclaimFn = fn
}

// EnableLocking transitions the allocator from the single-CPU, lock-free
// early-boot phase into the locked, multi-CPU Running phase. This is a
// one-way transition; the boot code must call it exactly once, after every
// non-boot CPU is capable of reaching the allocator (§5's "enable-locking
// transition").
func (a *Allocator) EnableLocking() {
	a.useLock = true
}

// SetMaxRetry overrides the reclaim-retry bound (default MaxRetry), letting
// a deployment's config.Params.MaxRetry take effect instead of the package
// default.
func (a *Allocator) SetMaxRetry(n int) {
	if n > 0 {
		a.maxRetry = n
	}
}

// NFrames returns the total number of frames backing this allocator.
func (a *Allocator) NFrames() int { return len(a.descriptors) }

// FreeRange pushes every frame in [start, end) onto the free list. Used at
// boot to seed the allocator, mirroring kinit1/kinit2's freerange calls.
func (a *Allocator) FreeRange(start, end Frame) {
	for fn := start; fn < end; fn++ {
		a.pushFree(fn)
	}
}

func (a *Allocator) lock() {
	if a.useLock {
		a.freeMu.Lock()
	}
}

func (a *Allocator) unlock() {
	if a.useLock {
		a.freeMu.Unlock()
	}
}

// pushFree writes the poison byte across the frame and links it as the new
// free-list head. The intrusive "next" pointer lives in the frame's own
// first machine word, never in the Descriptor — per the spec's design note,
// the free page must be treated as opaque storage.
func (a *Allocator) pushFree(fn Frame) {
	mem.Memset(a.arena.FrameAddress(uint32(fn)), 0x01, mem.PageSize)

	a.lock()
	a.writeNext(fn, a.freeHead)
	a.freeHead = fn
	a.freeLen++
	a.unlock()
}

// writeNext stores next into the first 4 bytes of frame fn's backing page.
func (a *Allocator) writeNext(fn Frame, next Frame) {
	buf := a.arena.FrameBytes(uint32(fn))
	putU32(buf, uint32(next))
}

func (a *Allocator) readNext(fn Frame) Frame {
	buf := a.arena.FrameBytes(uint32(fn))
	return Frame(getU32(buf))
}

func putU32(buf []byte, v uint32) {
	buf[0] = byte(v)
	buf[1] = byte(v >> 8)
	buf[2] = byte(v >> 16)
	buf[3] = byte(v >> 24)
}

func getU32(buf []byte) uint32 {
	return uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
}

// FreeFrame returns frame fn to the free list. Preconditions: fn must be
// page-aligned by construction (it is always a frame number, never a raw
// address) and must fall within [startFrame, NFrames). Double-free and
// out-of-range frees are fatal, matching kfree's panic("kfree").
func (a *Allocator) FreeFrame(fn Frame) {
	if fn < a.startFrame || int(fn) >= len(a.descriptors) {
		panicFn(errBadFrame)
		return
	}

	a.lock()
	// Walk the free list looking for fn already present. This mirrors the
	// spirit of the reference kernel's double-free protection, which
	// relies on catching reuse via the poison byte; here we make the
	// check explicit since we can afford the scan at this scale.
	for cur := a.freeHead; cur != InvalidFrame; cur = a.readNext(cur) {
		if cur == fn {
			a.unlock()
			panicFn(errDoubleFree)
			return
		}
	}
	a.unlock()

	a.pushFree(fn)
}

// AllocFrame pops the head of the free list. If the list is empty it
// releases the lock, invokes reclaim exactly once, and retries; repeated
// races with other CPUs are bounded by MaxRetry to avoid livelock, after
// which AllocFrame gives up and returns InvalidFrame.
func (a *Allocator) AllocFrame() (Frame, *kernel.Error) {
	reclaimed := false
	for attempt := 0; attempt < a.maxRetry; attempt++ {
		a.lock()
		if a.freeHead != InvalidFrame {
			fn := a.freeHead
			a.freeHead = a.readNext(fn)
			a.freeLen--
			a.unlock()
			return fn, nil
		}
		a.unlock()

		if reclaimed {
			// Reclaim already ran for this call and another CPU took
			// the frame it freed; only re-check the list.
			continue
		}

		if a.reclaimFn == nil {
			early.Printf("[pmm] alloc_frame: out of memory, no reclaim function registered\n")
			return InvalidFrame, errOutOfMemory
		}

		if err := a.reclaimFn(); err != nil {
			early.Printf("[pmm] alloc_frame: reclaim failed, out of memory\n")
			return InvalidFrame, errOutOfMemory
		}
		reclaimed = true
		// reclaim succeeded; loop to retry, bounded by MaxRetry in case
		// another CPU grabbed the freed frame first.
	}

	early.Printf("[pmm] alloc_frame: exceeded retry budget, out of memory\n")
	return InvalidFrame, errOutOfMemory
}

// FreeCount reports the number of frames currently on the free list — half
// of the pair read by swap_stat.
func (a *Allocator) FreeCount() int {
	a.lock()
	defer a.unlock()
	return a.freeLen
}

// Descriptor returns the frame descriptor for fn. Used by callers (and
// tests) that need to inspect OwnerPgdir/Vaddr directly.
func (a *Allocator) Descriptor(fn Frame) *Descriptor {
	return &a.descriptors[fn]
}

// FrameBytes exposes the raw backing bytes of frame fn, e.g. for block I/O
// to read/write during swap-out/swap-in.
func (a *Allocator) FrameBytes(fn Frame) []byte {
	return a.arena.FrameBytes(uint32(fn))
}

// FrameAddress returns the address of frame fn suitable for mem.Memset.
func (a *Allocator) FrameAddress(fn Frame) uintptr {
	return a.arena.FrameAddress(uint32(fn))
}
