package blockio

import "github.com/dsnet/golib/memfile"

// MemDevice is an in-memory swap device backed by memfile.File, used by
// tests in place of a real block device so swap_write/swap_read round-trips
// can be exercised without touching disk.
type MemDevice struct {
	f *memfile.File
}

// NewMemDevice allocates an in-memory device of the given byte size.
func NewMemDevice(size int64) *MemDevice {
	return &MemDevice{f: memfile.New(make([]byte, size))}
}

func (d *MemDevice) WriteAt(p []byte, off int64) (int, error) {
	return d.f.WriteAt(p, off)
}

func (d *MemDevice) ReadAt(p []byte, off int64) (int, error) {
	return d.f.ReadAt(p, off)
}

// Bytes exposes the backing buffer, mainly so tests can assert on swapped
// page contents directly.
func (d *MemDevice) Bytes() []byte {
	return d.f.Bytes()
}
