package volume

import "sync"

// MemoryVolume keeps the whole volume in a heap buffer.
type MemoryVolume struct {
	mu     sync.RWMutex
	buf    []byte
	closed bool
}

// NewMemoryVolume creates an in-heap volume with the given initial size.
func NewMemoryVolume(initialSize int64) *MemoryVolume {
	if initialSize < 0 {
		initialSize = 0
	}
	return &MemoryVolume{buf: make([]byte, initialSize)}
}

// ReadAt copies len(p) bytes at off into p.
func (m *MemoryVolume) ReadAt(p []byte, off int64) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrClosed
	}
	if err := checkRange(off, len(p), int64(len(m.buf))); err != nil {
		return err
	}
	copy(p, m.buf[off:])
	return nil
}

// WriteAt copies p into the buffer at off.
//
// Writers only take the read lock: concurrent writes target disjoint ranges,
// the write lock is reserved for resizing the buffer.
func (m *MemoryVolume) WriteAt(p []byte, off int64) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrClosed
	}
	if err := checkRange(off, len(p), int64(len(m.buf))); err != nil {
		return err
	}
	copy(m.buf[off:], p)
	return nil
}

// EnsureCapacity grows the buffer to at least size bytes.
func (m *MemoryVolume) EnsureCapacity(size int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.resize(size)
	return nil
}

// Truncate resizes the buffer to exactly size bytes.
func (m *MemoryVolume) Truncate(size int64) error {
	if size < 0 {
		return errNegativeSize
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if size < int64(len(m.buf)) {
		// zero the tail so a later regrow reads zeros
		clear(m.buf[size:])
		m.buf = m.buf[:size]
		return nil
	}
	m.resize(size)
	return nil
}

func (m *MemoryVolume) resize(size int64) {
	if size <= int64(len(m.buf)) {
		return
	}
	if size <= int64(cap(m.buf)) {
		m.buf = m.buf[:size]
		return
	}
	next := make([]byte, size, growSize(int64(cap(m.buf)), size))
	copy(next, m.buf)
	m.buf = next
}

// Size returns the buffer length.
func (m *MemoryVolume) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.buf))
}

// Sync is a no-op for memory volumes.
func (m *MemoryVolume) Sync() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrClosed
	}
	return nil
}

// Close drops the buffer.
func (m *MemoryVolume) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.buf = nil
	return nil
}
