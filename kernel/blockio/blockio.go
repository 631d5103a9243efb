// Package blockio implements the block-I/O collaborator the spec leaves
// out of scope: swap_write(page, slot) / swap_read(page, slot), transferring
// PAGE_SIZE bytes between a frame and a swap slot.
package blockio

import (
	"fmt"
	"io"

	"swapkernel/kernel/mem"
)

// Device is the minimal swap_write/swap_read contract. slot addressing and
// block-size accounting are the caller's (package swap's) responsibility;
// a Device only knows how to move bytes at a given byte offset.
type Device interface {
	WriteAt(p []byte, off int64) (n int, err error)
	ReadAt(p []byte, off int64) (n int, err error)
}

// SlotOffset converts a swap slot index to its byte offset on the device.
func SlotOffset(slot uint32) int64 {
	return int64(slot) * int64(mem.PageSize)
}

// WritePage writes exactly one page from buf (len(buf) must equal
// mem.PageSize) to the given slot.
func WritePage(dev Device, buf []byte, slot uint32) error {
	if mem.Size(len(buf)) != mem.PageSize {
		return fmt.Errorf("blockio: WritePage buffer size %d != page size %d", len(buf), mem.PageSize)
	}
	n, err := dev.WriteAt(buf, SlotOffset(slot))
	if err != nil {
		return err
	}
	if mem.Size(n) != mem.PageSize {
		return io.ErrShortWrite
	}
	return nil
}

// ReadPage reads exactly one page from the given slot into buf (len(buf)
// must equal mem.PageSize).
func ReadPage(dev Device, buf []byte, slot uint32) error {
	if mem.Size(len(buf)) != mem.PageSize {
		return fmt.Errorf("blockio: ReadPage buffer size %d != page size %d", len(buf), mem.PageSize)
	}
	n, err := dev.ReadAt(buf, SlotOffset(slot))
	if err != nil && err != io.EOF {
		return err
	}
	if mem.Size(n) != mem.PageSize {
		return io.ErrUnexpectedEOF
	}
	return nil
}
