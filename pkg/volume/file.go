package volume

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// FileVolume stores the volume in a regular file.
type FileVolume struct {
	file     *os.File
	path     string
	readOnly bool
	mu       sync.RWMutex
	size     int64
}

// OpenFile opens (or creates, unless readOnly) the file at path.
func OpenFile(path string, readOnly bool) (*FileVolume, error) {
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

	return &FileVolume{
		file:     file,
		path:     path,
		readOnly: readOnly,
		size:     stat.Size(),
	}, nil
}

// Path returns the backing file path.
func (f *FileVolume) Path() string {
	return f.path
}

// ReadAt reads len(p) bytes at off.
func (f *FileVolume) ReadAt(p []byte, off int64) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.file == nil {
		return ErrClosed
	}
	if err := checkRange(off, len(p), f.size); err != nil {
		return err
	}
	n, err := f.file.ReadAt(p, off)
	if errors.Is(err, io.EOF) && n == len(p) {
		err = nil
	}
	if err != nil {
		return err
	}
	if n != len(p) {
		return fmt.Errorf("short read at %d: %d of %d bytes", off, n, len(p))
	}
	return nil
}

// WriteAt writes p at off.
func (f *FileVolume) WriteAt(p []byte, off int64) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.file == nil {
		return ErrClosed
	}
	if f.readOnly {
		return ErrReadOnly
	}
	if err := checkRange(off, len(p), f.size); err != nil {
		return err
	}
	n, err := f.file.WriteAt(p, off)
	if err != nil {
		return err
	}
	if n != len(p) {
		return fmt.Errorf("short write at %d: %d of %d bytes", off, n, len(p))
	}
	return nil
}

// EnsureCapacity extends the file so that it holds at least size bytes.
func (f *FileVolume) EnsureCapacity(size int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file == nil {
		return ErrClosed
	}
	if size <= f.size {
		return nil
	}
	if f.readOnly {
		return ErrReadOnly
	}
	next := growSize(f.size, size)
	if err := f.file.Truncate(next); err != nil {
		return err
	}
	f.size = next
	return nil
}

// Truncate sets the file length to size.
func (f *FileVolume) Truncate(size int64) error {
	if size < 0 {
		return errNegativeSize
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file == nil {
		return ErrClosed
	}
	if f.readOnly {
		return ErrReadOnly
	}
	if err := f.file.Truncate(size); err != nil {
		return err
	}
	f.size = size
	return nil
}

// Size returns the file length.
func (f *FileVolume) Size() int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.size
}

// Sync fsyncs the file.
func (f *FileVolume) Sync() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.file == nil {
		return ErrClosed
	}
	if f.readOnly {
		return nil
	}
	return f.file.Sync()
}

// Close closes the file. Closing twice is a no-op.
func (f *FileVolume) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	return err
}
