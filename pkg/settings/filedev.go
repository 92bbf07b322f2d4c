package settings

import (
	"bytes"
	"fmt"
	"os"
	"sync"

	"tinygo.org/x/tinyfs"
)

// EEPROM-like geometry of a FileDevice
const (
	DefaultDeviceSize = 512
	fileEraseBlock    = 64
)

// FileDevice is a tinyfs.BlockDevice backed by a regular file, standing in
// for the board's EEPROM. Erased bytes read as 0xFF.
type FileDevice struct {
	file  *os.File
	size  int64
	mutex sync.Mutex
}

var _ tinyfs.BlockDevice = (*FileDevice)(nil)

// OpenFileDevice opens or creates path as a device of size bytes. A new or
// short file is extended with erased bytes.
func OpenFileDevice(path string, size int64) (*FileDevice, error) {
	if size <= 0 {
		size = DefaultDeviceSize
	}
	if size%fileEraseBlock != 0 {
		return nil, fmt.Errorf("device size %d is not a multiple of %d", size, fileEraseBlock)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open settings device: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat settings device: %w", err)
	}
	if have := info.Size(); have < size {
		if _, err := f.WriteAt(bytes.Repeat([]byte{0xFF}, int(size-have)), have); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to extend settings device: %w", err)
		}
	}

	return &FileDevice{file: f, size: size}, nil
}

// Close closes the backing file
func (d *FileDevice) Close() error {
	return d.file.Close()
}

func (d *FileDevice) bounds(n int, off int64) error {
	if off < 0 || off+int64(n) > d.size {
		return fmt.Errorf("access of %d bytes at %d outside %d byte device", n, off, d.size)
	}
	return nil
}

// ReadAt implements io.ReaderAt
func (d *FileDevice) ReadAt(p []byte, off int64) (int, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if err := d.bounds(len(p), off); err != nil {
		return 0, err
	}
	return d.file.ReadAt(p, off)
}

// WriteAt implements io.WriterAt and syncs the file
func (d *FileDevice) WriteAt(p []byte, off int64) (int, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if err := d.bounds(len(p), off); err != nil {
		return 0, err
	}
	n, err := d.file.WriteAt(p, off)
	if err != nil {
		return n, err
	}
	return n, d.file.Sync()
}

// Size returns the device size in bytes
func (d *FileDevice) Size() int64 {
	return d.size
}

// WriteBlockSize is one byte, EEPROM cells are individually writable
func (d *FileDevice) WriteBlockSize() int64 {
	return 1
}

// EraseBlockSize returns the erase granularity
func (d *FileDevice) EraseBlockSize() int64 {
	return fileEraseBlock
}

// EraseBlocks resets count blocks starting at block start to 0xFF
func (d *FileDevice) EraseBlocks(start, count int64) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	off := start * fileEraseBlock
	n := count * fileEraseBlock
	if err := d.bounds(int(n), off); err != nil {
		return err
	}
	_, err := d.file.WriteAt(bytes.Repeat([]byte{0xFF}, int(n)), off)
	return err
}
