package ptable

import "testing"

func TestMakeResidentPreservesPermissionBits(t *testing.T) {
	var pte PTE
	pte.SetFlags(FlagUser | FlagWritable)

	pte.MakeResident(7)

	if !pte.HasFlags(FlagPresent) {
		t.Fatal("expected FlagPresent to be set")
	}
	if pte.HasFlags(FlagSwapped) {
		t.Fatal("expected FlagSwapped to be cleared")
	}
	if !pte.HasFlags(FlagUser | FlagWritable) {
		t.Fatal("expected permission bits to survive the transition")
	}
	if got := pte.Frame(); got != 7 {
		t.Fatalf("Frame() = %d, want 7", got)
	}
}

func TestMakeSwappedPreservesPermissionBitsAndEncodesSlot(t *testing.T) {
	var pte PTE
	pte.MakeResident(3)
	pte.SetFlags(FlagUser | FlagWritable | FlagAccessed)

	pte.MakeSwapped(42)

	if pte.HasFlags(FlagPresent) {
		t.Fatal("expected FlagPresent to be cleared")
	}
	if !pte.HasFlags(FlagSwapped) {
		t.Fatal("expected FlagSwapped to be set")
	}
	if !pte.HasFlags(FlagUser | FlagWritable | FlagAccessed) {
		t.Fatal("expected permission and accessed bits to survive the transition")
	}
	if got := pte.Slot(); got != 42 {
		t.Fatalf("Slot() = %d, want 42", got)
	}
}

func TestSetFrameDoesNotDisturbFlags(t *testing.T) {
	var pte PTE
	pte.SetFlags(FlagPresent | FlagUser)
	pte.SetFrame(0xABCDE)

	if got := pte.Frame(); got != 0xABCDE {
		t.Fatalf("Frame() = %#x, want %#x", got, 0xABCDE)
	}
	if !pte.HasFlags(FlagPresent | FlagUser) {
		t.Fatal("SetFrame must not clear unrelated flags")
	}
}

func TestClearFlags(t *testing.T) {
	var pte PTE
	pte.SetFlags(FlagAccessed | FlagUser)
	pte.ClearFlags(FlagAccessed)

	if pte.HasFlags(FlagAccessed) {
		t.Fatal("expected FlagAccessed to be cleared")
	}
	if !pte.HasFlags(FlagUser) {
		t.Fatal("expected FlagUser to remain set")
	}
}
