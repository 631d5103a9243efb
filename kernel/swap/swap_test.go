package swap

import (
	"bytes"
	"testing"

	"swapkernel/kernel/blockio"
	"swapkernel/kernel/mem"
	"swapkernel/kernel/mem/hostarena"
	"swapkernel/kernel/pmm"
	"swapkernel/kernel/ptable"
	"swapkernel/kernel/ptable/simpte"
)

func newTestSubsystem(t *testing.T, nframes int, nslots uint32) (*Subsystem, *pmm.Allocator, *simpte.Table) {
	t.Helper()

	arena, err := hostarena.New(nframes)
	if err != nil {
		t.Fatalf("hostarena.New: %v", err)
	}
	t.Cleanup(func() { _ = arena.Close() })

	frames := pmm.New(arena, 0)
	frames.FreeRange(0, pmm.Frame(nframes))

	slots := pmm.NewSlotBitmap(nslots)
	dev := blockio.NewMemDevice(int64(nslots) * int64(mem.PageSize))
	tbl := simpte.New(1)

	return New(frames, slots, dev, tbl, tbl), frames, tbl
}

func TestMapThenPageFaultNeverTriggersWithoutSwapOut(t *testing.T) {
	s, _, _ := newTestSubsystem(t, 4, 8)

	err, pte := s.Map(1, 0x1000, true)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if !pte.HasFlags(ptable.FlagPresent | ptable.FlagUser | ptable.FlagWritable) {
		t.Fatalf("unexpected PTE flags: %v", pte)
	}

	free, lru := s.Stat()
	if lru != 1 {
		t.Fatalf("lru frames = %d, want 1", lru)
	}
	if free != 3 {
		t.Fatalf("free frames = %d, want 3", free)
	}
}

func TestReclaimSwapsOutLRUVictimAndFreesFrame(t *testing.T) {
	s, frames, _ := newTestSubsystem(t, 2, 8)

	// Fill every frame with a distinct, recognizable mapping.
	for i := 0; i < 2; i++ {
		if err, _ := s.Map(1, uintptr(i)*0x1000, true); err != nil {
			t.Fatalf("Map %d: %v", i, err)
		}
	}
	if got := frames.FreeCount(); got != 0 {
		t.Fatalf("FreeCount() = %d, want 0 before forcing reclaim", got)
	}

	// The next Map call must reclaim before it can succeed.
	if err, _ := s.Map(1, 0x2000, true); err != nil {
		t.Fatalf("Map triggering reclaim: %v", err)
	}

	free, lru := s.Stat()
	if free != 0 {
		t.Fatalf("FreeCount() = %d, want 0 (freed victim was immediately reused)", free)
	}
	if lru != 2 {
		t.Fatalf("lru frames = %d, want 2", lru)
	}
}

func TestPageFaultRestoresSwappedOutPage(t *testing.T) {
	s, frames, tbl := newTestSubsystem(t, 1, 8)

	if err, _ := s.Map(1, 0x1000, true); err != nil {
		t.Fatalf("Map: %v", err)
	}
	want := bytes.Repeat([]byte{0x99}, int(mem.PageSize))
	copy(frames.FrameBytes(0), want)

	if err := s.Reclaim(); err != nil {
		t.Fatalf("Reclaim: %v", err)
	}

	pte := tbl.Walk(1, 0x1000, false)
	if pte == nil || !pte.HasFlags(ptable.FlagSwapped) || pte.HasFlags(ptable.FlagPresent) {
		t.Fatalf("expected PTE to be swapped out, got %v", pte)
	}

	s.PageFault(0x1000)

	pte = tbl.Walk(1, 0x1000, false)
	if !pte.HasFlags(ptable.FlagPresent) || pte.HasFlags(ptable.FlagSwapped) {
		t.Fatalf("expected PTE to be resident after page fault, got %v", pte)
	}
	if !pte.HasFlags(ptable.FlagWritable) {
		t.Fatal("expected writable permission bit to survive the swap round trip")
	}

	gotFrame := pte.Frame()
	if !bytes.Equal(frames.FrameBytes(gotFrame), want) {
		t.Fatal("page contents did not survive the swap-out/swap-in round trip")
	}

	if _, lru := s.Stat(); lru != 1 {
		t.Fatalf("lru frames after swap-in = %d, want 1", lru)
	}
}

func TestReclaimReturnsErrNoVictimWhenNothingIsMapped(t *testing.T) {
	s, _, _ := newTestSubsystem(t, 2, 8)

	if err := s.Reclaim(); err != pmm.ErrNoVictim {
		t.Fatalf("Reclaim() = %v, want ErrNoVictim", err)
	}
}

func TestReclaimFailsWithErrSlotExhaustedAndLeavesVictimMapped(t *testing.T) {
	// A single slot is reserved (slot 0), so with nslots=1 there are no
	// allocatable slots at all.
	s, _, tbl := newTestSubsystem(t, 2, 1)

	if err, _ := s.Map(1, 0x1000, true); err != nil {
		t.Fatalf("Map: %v", err)
	}

	if err := s.Reclaim(); err != pmm.ErrSlotExhausted {
		t.Fatalf("Reclaim() = %v, want ErrSlotExhausted", err)
	}

	pte := tbl.Walk(1, 0x1000, false)
	if !pte.HasFlags(ptable.FlagPresent) {
		t.Fatal("victim PTE must remain resident when slot allocation fails")
	}
	if _, lru := s.Stat(); lru != 1 {
		t.Fatal("victim must remain in the LRU list when slot allocation fails")
	}
}

func TestUnmapResidentPageFreesFrameAndRemovesFromLRU(t *testing.T) {
	s, frames, tbl := newTestSubsystem(t, 2, 8)

	if err, _ := s.Map(1, 0x1000, true); err != nil {
		t.Fatalf("Map: %v", err)
	}
	s.Unmap(1, 0x1000)

	if got := frames.FreeCount(); got != 2 {
		t.Fatalf("FreeCount() = %d, want 2 after unmap", got)
	}
	if _, lru := s.Stat(); lru != 0 {
		t.Fatalf("lru frames after unmap = %d, want 0", lru)
	}
	if pte := tbl.Walk(1, 0x1000, false); *pte != 0 {
		t.Fatal("expected PTE to be zeroed after Unmap")
	}
}

func TestUnmapSwappedPageFreesSlot(t *testing.T) {
	s, _, tbl := newTestSubsystem(t, 1, 8)

	if err, _ := s.Map(1, 0x1000, true); err != nil {
		t.Fatalf("Map: %v", err)
	}
	if err := s.Reclaim(); err != nil {
		t.Fatalf("Reclaim: %v", err)
	}

	pte := tbl.Walk(1, 0x1000, false)
	if !pte.HasFlags(ptable.FlagSwapped) {
		t.Fatal("expected the page to be swapped before Unmap")
	}
	freedSlot := pte.Slot()

	s.Unmap(1, 0x1000)

	if *pte != 0 {
		t.Fatal("expected PTE to be zeroed after Unmap")
	}

	// The slot must be free again: the bitmap hands the same slot out on
	// the next allocation.
	if got, ok := s.slots.SlotAlloc(); !ok || got != freedSlot {
		t.Fatalf("SlotAlloc() = %d, %t; want freed slot %d", got, ok, freedSlot)
	}
}
