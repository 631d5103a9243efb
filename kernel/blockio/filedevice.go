package blockio

import (
	"os"

	"github.com/ncw/directio"
)

// FileDevice backs the swap area with a real file opened O_DIRECT, bypassing
// the host page cache so swap I/O behaves like the raw block device the
// spec assumes. Reads and writes must use directio.AlignedBlock-sized,
// aligned buffers; WritePage/ReadPage's mem.PageSize transfers satisfy that
// as long as the caller allocates buffers with directio.AlignedBlock.
type FileDevice struct {
	f *os.File
}

// OpenFileDevice opens (creating if necessary) the swap area backing file at
// path for O_DIRECT access.
func OpenFileDevice(path string, size int64) (*FileDevice, error) {
	f, err := directio.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, err
	}
	return &FileDevice{f: f}, nil
}

// AlignedBuffer returns a direct-I/O aligned buffer of n bytes, suitable for
// passing to WriteAt/ReadAt.
func AlignedBuffer(n int) []byte {
	return directio.AlignedBlock(n)
}

func (d *FileDevice) WriteAt(p []byte, off int64) (int, error) {
	return d.f.WriteAt(p, off)
}

func (d *FileDevice) ReadAt(p []byte, off int64) (int, error) {
	return d.f.ReadAt(p, off)
}

// Close releases the underlying file handle.
func (d *FileDevice) Close() error {
	return d.f.Close()
}
