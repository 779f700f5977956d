package volume

import (
	"fmt"
	"sync/atomic"
)

// ChaosVolume wraps a Volume and fails selected operations on demand.
//
// The zero configuration passes everything through. Failures are switched on
// with the Fail* setters and stay on until switched off again. FailWritesAfter
// and FailSyncAfter let n more calls succeed and then fail every following one.
type ChaosVolume struct {
	Volume

	failReads  atomic.Bool
	failWrites atomic.Bool
	failSync   atomic.Bool
	failGrow   atomic.Bool
	// writesLeft < 0 disables the countdown
	writesLeft atomic.Int64
	syncsLeft  atomic.Int64

	writes atomic.Int64
	syncs  atomic.Int64
}

// NewChaosVolume wraps inner.
func NewChaosVolume(inner Volume) *ChaosVolume {
	c := &ChaosVolume{Volume: inner}
	c.writesLeft.Store(-1)
	c.syncsLeft.Store(-1)
	return c
}

// FailReads toggles read failures.
func (c *ChaosVolume) FailReads(on bool) { c.failReads.Store(on) }

// FailWrites toggles write failures.
func (c *ChaosVolume) FailWrites(on bool) { c.failWrites.Store(on) }

// FailSync toggles sync failures.
func (c *ChaosVolume) FailSync(on bool) { c.failSync.Store(on) }

// FailGrow toggles EnsureCapacity failures.
func (c *ChaosVolume) FailGrow(on bool) { c.failGrow.Store(on) }

// FailWritesAfter lets n writes through and fails the rest. n < 0 disables it.
func (c *ChaosVolume) FailWritesAfter(n int64) { c.writesLeft.Store(n) }

// FailSyncAfter lets n syncs through and fails the rest. n < 0 disables it.
func (c *ChaosVolume) FailSyncAfter(n int64) { c.syncsLeft.Store(n) }

// Reset switches every failure off.
func (c *ChaosVolume) Reset() {
	c.failReads.Store(false)
	c.failWrites.Store(false)
	c.failSync.Store(false)
	c.failGrow.Store(false)
	c.writesLeft.Store(-1)
	c.syncsLeft.Store(-1)
}

// Writes returns how many writes reached the inner volume.
func (c *ChaosVolume) Writes() int64 { return c.writes.Load() }

// Syncs returns how many syncs reached the inner volume.
func (c *ChaosVolume) Syncs() int64 { return c.syncs.Load() }

func (c *ChaosVolume) ReadAt(p []byte, off int64) error {
	if c.failReads.Load() {
		return fmt.Errorf("%w: read at %d", ErrInjected, off)
	}
	return c.Volume.ReadAt(p, off)
}

func (c *ChaosVolume) WriteAt(p []byte, off int64) error {
	if c.failWrites.Load() {
		return fmt.Errorf("%w: write at %d", ErrInjected, off)
	}
	if left := c.writesLeft.Load(); left >= 0 {
		if left == 0 {
			return fmt.Errorf("%w: write at %d", ErrInjected, off)
		}
		c.writesLeft.Add(-1)
	}
	if err := c.Volume.WriteAt(p, off); err != nil {
		return err
	}
	c.writes.Add(1)
	return nil
}

func (c *ChaosVolume) EnsureCapacity(size int64) error {
	if c.failGrow.Load() && size > c.Volume.Size() {
		return fmt.Errorf("%w: grow to %d", ErrInjected, size)
	}
	return c.Volume.EnsureCapacity(size)
}

func (c *ChaosVolume) Sync() error {
	if c.failSync.Load() {
		return fmt.Errorf("%w: sync", ErrInjected)
	}
	if left := c.syncsLeft.Load(); left >= 0 {
		if left == 0 {
			return fmt.Errorf("%w: sync", ErrInjected)
		}
		c.syncsLeft.Add(-1)
	}
	if err := c.Volume.Sync(); err != nil {
		return err
	}
	c.syncs.Add(1)
	return nil
}
