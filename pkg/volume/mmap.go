package volume

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/ssargent/pagestore/internal/sys"
)

// MmapVolume maps a file into memory. Reads and writes are plain copies,
// Sync issues msync.
type MmapVolume struct {
	file     *os.File
	path     string
	readOnly bool
	mu       sync.RWMutex
	data     []byte
	closed   bool
}

// MmapSupported reports whether OpenMmap works on this platform.
func MmapSupported() bool {
	return sys.Supported()
}

// OpenMmap opens path and maps its current contents.
func OpenMmap(path string, readOnly bool) (*MmapVolume, error) {
	if !MmapSupported() {
		return nil, ErrUnsupported
	}

	flags := os.O_RDWR | os.O_CREATE
	if readOnly {
		flags = os.O_RDONLY
	} else if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(path, flags, 0600)
	if err != nil {
		return nil, err
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}

	m := &MmapVolume{file: file, path: path, readOnly: readOnly}
	if stat.Size() > 0 {
		m.data, err = sys.MMap(file, stat.Size(), !readOnly)
		if err != nil {
			file.Close()
			return nil, err
		}
	}
	return m, nil
}

// Path returns the mapped file path.
func (m *MmapVolume) Path() string {
	return m.path
}

// ReadAt copies from the mapping.
func (m *MmapVolume) ReadAt(p []byte, off int64) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrClosed
	}
	if err := checkRange(off, len(p), int64(len(m.data))); err != nil {
		return err
	}
	copy(p, m.data[off:])
	return nil
}

// WriteAt copies into the mapping.
func (m *MmapVolume) WriteAt(p []byte, off int64) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrClosed
	}
	if m.readOnly {
		return ErrReadOnly
	}
	if err := checkRange(off, len(p), int64(len(m.data))); err != nil {
		return err
	}
	copy(m.data[off:], p)
	return nil
}

// EnsureCapacity extends the file and remaps it.
func (m *MmapVolume) EnsureCapacity(size int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if size <= int64(len(m.data)) {
		return nil
	}
	if m.readOnly {
		return ErrReadOnly
	}
	return m.remap(growSize(int64(len(m.data)), size))
}

// Truncate sets the file length and remaps it.
func (m *MmapVolume) Truncate(size int64) error {
	if size < 0 {
		return errNegativeSize
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.readOnly {
		return ErrReadOnly
	}
	return m.remap(size)
}

// remap must be called with the write lock held.
func (m *MmapVolume) remap(size int64) error {
	if err := sys.MSync(m.data); err != nil {
		return err
	}
	if err := sys.MUnmap(m.data); err != nil {
		return err
	}
	m.data = nil
	if err := m.file.Truncate(size); err != nil {
		return err
	}
	if size == 0 {
		return nil
	}
	data, err := sys.MMap(m.file, size, true)
	if err != nil {
		return err
	}
	m.data = data
	return nil
}

// Size returns the mapped length.
func (m *MmapVolume) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.data))
}

// Sync flushes the mapping and the file.
func (m *MmapVolume) Sync() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrClosed
	}
	if m.readOnly {
		return nil
	}
	if err := sys.MSync(m.data); err != nil {
		return err
	}
	return m.file.Sync()
}

// Close unmaps and closes the file.
func (m *MmapVolume) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	var firstErr error
	if !m.readOnly {
		firstErr = sys.MSync(m.data)
	}
	if err := sys.MUnmap(m.data); err != nil && firstErr == nil {
		firstErr = err
	}
	m.data = nil
	if err := m.file.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
