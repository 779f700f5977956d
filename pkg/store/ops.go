package store

import (
	"bytes"
	"time"

	"github.com/ssargent/pagestore/pkg/codec"
)

// PutBytes stores data as a new record and returns its id.
func (e *Engine) PutBytes(data []byte) (id RecordID, err error) {
	start := time.Now()
	defer func() { e.metrics.recordOperation("put", start, err) }()

	release, err := e.acquire(true)
	if err != nil {
		return 0, err
	}
	defer release()

	s := e.pickShard()
	defer s.unlock()

	id = s.nextID(e.shift)
	s.dirty = true
	loc, err := e.writeRecord(s, id, data)
	if err != nil {
		return 0, err
	}
	s.insert(id, loc)
	e.metrics.liveRecords.Inc()
	return id, nil
}

// GetBytes returns the payload of id. The returned slice is owned by the
// caller.
func (e *Engine) GetBytes(id RecordID) (data []byte, err error) {
	start := time.Now()
	defer func() { e.metrics.recordOperation("get", start, err) }()

	release, err := e.acquire(false)
	if err != nil {
		return nil, err
	}
	defer release()

	s, err := e.shardOf(id)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	loc, err := s.resolve(id)
	if err != nil {
		return nil, err
	}
	if loc.kind == codec.KindNull {
		return nil, ErrNullRecord
	}
	return e.readRecord(id, loc)
}

// UpdateBytes replaces the payload of id. The new payload is written to a new
// slot before the old one is released.
func (e *Engine) UpdateBytes(id RecordID, data []byte) (err error) {
	start := time.Now()
	defer func() { e.metrics.recordOperation("update", start, err) }()

	release, err := e.acquire(true)
	if err != nil {
		return err
	}
	defer release()

	s, err := e.shardOf(id)
	if err != nil {
		return err
	}
	s.lock()
	defer s.unlock()

	old, err := s.resolve(id)
	if err != nil {
		return err
	}
	loc, err := e.writeRecord(s, id, data)
	if err != nil {
		return err
	}
	s.update(id, loc)
	e.release(s, id, old)
	return nil
}

// Delete removes id. Its space becomes reusable once no durable head
// references it.
func (e *Engine) Delete(id RecordID) (err error) {
	start := time.Now()
	defer func() { e.metrics.recordOperation("delete", start, err) }()

	release, err := e.acquire(true)
	if err != nil {
		return err
	}
	defer release()

	s, err := e.shardOf(id)
	if err != nil {
		return err
	}
	s.lock()
	defer s.unlock()

	loc, err := s.resolve(id)
	if err != nil {
		return err
	}
	s.remove(id)
	e.release(s, id, loc)
	e.metrics.liveRecords.Dec()
	return nil
}

// Preallocate reserves an id holding a null record. Get returns ErrNullRecord
// until the record is updated.
func (e *Engine) Preallocate() (id RecordID, err error) {
	start := time.Now()
	defer func() { e.metrics.recordOperation("preallocate", start, err) }()

	release, err := e.acquire(true)
	if err != nil {
		return 0, err
	}
	defer release()

	s := e.pickShard()
	defer s.unlock()

	id = s.nextID(e.shift)
	s.insert(id, location{kind: codec.KindNull, epoch: e.epoch})
	e.metrics.liveRecords.Inc()
	return id, nil
}

// CompareAndSwapBytes replaces the payload of id with replacement if it
// currently equals expected. A nil slice stands for the null record, so a
// swap to nil leaves a null record behind rather than deleting it.
func (e *Engine) CompareAndSwapBytes(id RecordID, expected, replacement []byte) (swapped bool, err error) {
	start := time.Now()
	defer func() { e.metrics.recordOperation("cas", start, err) }()

	release, err := e.acquire(true)
	if err != nil {
		return false, err
	}
	defer release()

	s, err := e.shardOf(id)
	if err != nil {
		return false, err
	}
	s.lock()
	defer s.unlock()

	old, err := s.resolve(id)
	if err != nil {
		return false, err
	}

	if old.kind == codec.KindNull {
		if expected != nil {
			return false, nil
		}
	} else {
		if expected == nil {
			return false, nil
		}
		current, err := e.readRecord(id, old)
		if err != nil {
			return false, err
		}
		if !bytes.Equal(current, expected) {
			return false, nil
		}
	}

	loc := location{kind: codec.KindNull, epoch: e.epoch}
	if replacement != nil {
		if loc, err = e.writeRecord(s, id, replacement); err != nil {
			return false, err
		}
	}
	s.update(id, loc)
	e.release(s, id, old)
	return true, nil
}
