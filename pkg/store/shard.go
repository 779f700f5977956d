package store

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ssargent/pagestore/pkg/codec"
)

// location is where a record currently lives.
type location struct {
	kind   codec.EntryKind
	offset int64  // slot offset, or first page for chains
	size   uint32 // payload bytes
	class  int
	pages  uint32
	// epoch is the commit generation the bytes were written in. Slots of the
	// current epoch are not referenced by any durable head.
	epoch uint64
}

type pendingSlot struct {
	offset int64
	class  int
}

// lockStats instruments a shard lock.
type lockStats struct {
	acquisitions atomic.Uint64
	contended    atomic.Uint64
	holdNanos    atomic.Int64
}

// ShardLockStats is a snapshot of one shard's lock instrumentation.
type ShardLockStats struct {
	Acquisitions uint64        `json:"acquisitions"`
	Contended    uint64        `json:"contended"`
	HoldTime     time.Duration `json:"hold_time_ns"`
}

// shard is an independently locked partition of the id space with its own
// pages, free index and directory.
type shard struct {
	index int

	mu       sync.RWMutex
	stats    lockStats
	lockedAt time.Time

	nextSeq   uint64
	pages     []uint64
	current   uint64 // codec.NoPage when no page is open
	highWater uint32
	free      *freeIndex
	dir       map[RecordID]location

	// released by mutations since the last commit; reusable once a new head
	// no longer references them
	pendingSlots []pendingSlot
	pendingPages []uint64

	dirty bool
}

func newShard(index int) *shard {
	return &shard{
		index:   index,
		nextSeq: 1,
		current: codec.NoPage,
		free:    newFreeIndex(),
		dir:     make(map[RecordID]location),
	}
}

func (s *shard) lock() {
	if !s.mu.TryLock() {
		s.stats.contended.Add(1)
		s.mu.Lock()
	}
	s.acquired()
}

func (s *shard) tryLock() bool {
	if !s.mu.TryLock() {
		return false
	}
	s.acquired()
	return true
}

func (s *shard) acquired() {
	s.stats.acquisitions.Add(1)
	s.lockedAt = time.Now()
}

func (s *shard) unlock() {
	s.stats.holdNanos.Add(int64(time.Since(s.lockedAt)))
	s.mu.Unlock()
}

func (s *shard) lockStats() ShardLockStats {
	return ShardLockStats{
		Acquisitions: s.stats.acquisitions.Load(),
		Contended:    s.stats.contended.Load(),
		HoldTime:     time.Duration(s.stats.holdNanos.Load()),
	}
}

func (s *shard) nextID(shift uint) RecordID {
	id := makeRecordID(s.nextSeq, s.index, shift)
	s.nextSeq++
	return id
}

// resolve looks up id. The shard lock must be held.
func (s *shard) resolve(id RecordID) (location, error) {
	loc, ok := s.dir[id]
	if !ok {
		return location{}, ErrUnknownRecord
	}
	return loc, nil
}

func (s *shard) insert(id RecordID, loc location) {
	s.dir[id] = loc
	s.dirty = true
}

func (s *shard) update(id RecordID, loc location) {
	s.dir[id] = loc
	s.dirty = true
}

func (s *shard) remove(id RecordID) {
	delete(s.dir, id)
	s.dirty = true
}

// ownsPage reports whether page is one of the shard's slot pages.
func (s *shard) ownsPage(page uint64) bool {
	for _, p := range s.pages {
		if p == page {
			return true
		}
	}
	return false
}
