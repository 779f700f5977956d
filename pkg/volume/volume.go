// Package volume provides the byte-addressable backing storage used by the
// page store engine.
//
// A Volume is a flat, growable byte space. The engine never writes past the
// capacity it previously requested through EnsureCapacity, and it never lets two
// writers touch the same byte range at the same time, so implementations only
// need to serialize growth against in-flight reads and writes.
//
// Three implementations are provided:
//
//   - MemoryVolume: an in-heap buffer, lost when the process exits.
//   - FileVolume: a regular file accessed with ReadAt/WriteAt.
//   - MmapVolume: a memory-mapped file (unix only).
//
// ChaosVolume wraps any Volume and injects failures, which is how commit
// failure and crash behavior are exercised in tests.
package volume

import "errors"

// Volume is the storage capability consumed by the engine.
type Volume interface {
	// ReadAt fills p with the bytes starting at off.
	ReadAt(p []byte, off int64) error
	// WriteAt writes p starting at off. The range must lie within Size().
	WriteAt(p []byte, off int64) error
	// EnsureCapacity grows the volume so that Size() >= size.
	EnsureCapacity(size int64) error
	// Truncate sets the volume size, discarding bytes past size.
	Truncate(size int64) error
	// Size returns the current addressable size in bytes.
	Size() int64
	// Sync makes previous writes durable.
	Sync() error
	// Close releases the underlying resources.
	Close() error
}

var (
	ErrClosed       = errors.New("volume is closed")
	ErrOutOfBounds  = errors.New("access past end of volume")
	ErrReadOnly     = errors.New("volume is read-only")
	ErrInjected     = errors.New("injected volume failure")
	ErrUnsupported  = errors.New("volume type not supported on this platform")
	errNegativeSize = errors.New("negative volume size")
)

const (
	gib = 1 << 30
)

// growSize returns the next capacity for a volume that must hold at least want
// bytes. Below 1GB the capacity doubles, above it grows 1GB at a time.
func growSize(current, want int64) int64 {
	next := current * 2
	if current > gib {
		next = current + gib
	}
	if next < want {
		next = want
	}
	return next
}

func checkRange(off int64, n int, size int64) error {
	if off < 0 || off+int64(n) > size {
		return ErrOutOfBounds
	}
	return nil
}
