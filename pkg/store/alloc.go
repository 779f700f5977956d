package store

import (
	"fmt"
	"math"

	"github.com/ssargent/pagestore/pkg/codec"
)

// allocSlot reserves a slot of class in s. Freed slots are reused before the
// current page grows; a page that cannot take the slot is sealed and a fresh
// one is taken from the pool. s must be locked.
func (e *Engine) allocSlot(s *shard, class int) (int64, error) {
	if off, ok := s.free.acquire(class); ok {
		return off, nil
	}

	size := e.classes.size(class)
	if s.current == codec.NoPage || int(s.highWater)+size > e.config.PageSize {
		page, err := e.pool.alloc()
		if err != nil {
			return 0, err
		}
		if s.current != codec.NoPage {
			e.seal(s)
		}
		s.pages = append(s.pages, page)
		s.current = page
		s.highWater = 0
		s.dirty = true
	}

	off := e.pool.offset(s.current) + int64(s.highWater)
	s.highWater += uint32(size)
	return off, nil
}

// seal carves the unused tail of the current page into the largest fitting
// slots and puts them on the free index.
func (e *Engine) seal(s *shard) {
	tail := e.config.PageSize - int(s.highWater)
	off := e.pool.offset(s.current) + int64(s.highWater)
	for {
		class, ok := e.classes.largestFitting(tail)
		if !ok {
			break
		}
		size := e.classes.size(class)
		s.free.release(off, class)
		off += int64(size)
		tail -= size
	}
	s.highWater = uint32(e.config.PageSize)
}

// writeRecord stores data for id in s and returns its new location. s must be
// locked.
func (e *Engine) writeRecord(s *shard, id RecordID, data []byte) (location, error) {
	if uint64(len(data)) > math.MaxUint32-codec.SlotHeaderSize {
		return location{}, fmt.Errorf("%w: %d bytes", ErrRecordTooLarge, len(data))
	}

	h := codec.NewSlotHeader(uint64(id), data, e.config.Checksum)
	class, ok := e.classes.classFor(slotSize(len(data)))
	if !ok {
		return e.writeChain(id, h, data)
	}

	off, err := e.allocSlot(s, class)
	if err != nil {
		return location{}, err
	}
	if err := e.vol.WriteAt(codec.EncodeSlot(h, data), off); err != nil {
		s.free.release(off, class)
		return location{}, fmt.Errorf("%w: write record %d: %w", ErrVolumeIO, id, err)
	}
	return location{
		kind:   codec.KindInline,
		offset: off,
		size:   uint32(len(data)),
		class:  class,
		epoch:  e.epoch,
	}, nil
}

// writeChain spreads a record over whole pages linked by next pointers.
func (e *Engine) writeChain(id RecordID, h codec.SlotHeader, data []byte) (location, error) {
	h.Flags |= codec.FlagChained
	n := chainPages(len(data), e.config.PageSize)

	pages := make([]uint64, 0, n)
	e.pool.mu.Lock()
	for i := 0; i < n; i++ {
		page, err := e.pool.allocLocked()
		if err != nil {
			e.pool.releaseLocked(pages...)
			e.pool.mu.Unlock()
			return location{}, err
		}
		pages = append(pages, page)
	}
	e.pool.mu.Unlock()

	stream := codec.EncodeSlot(h, data)
	chunk := e.config.PageSize - codec.ChainHeaderSize
	buf := make([]byte, e.config.PageSize)
	for i, page := range pages {
		part := stream[i*chunk : min((i+1)*chunk, len(stream))]
		next := codec.NoPage
		if i+1 < len(pages) {
			next = pages[i+1]
		}
		codec.ChainHeader{Next: next, Length: uint32(len(part))}.Put(buf)
		copy(buf[codec.ChainHeaderSize:], part)
		if err := e.vol.WriteAt(buf[:codec.ChainHeaderSize+len(part)], e.pool.offset(page)); err != nil {
			e.pool.release(pages...)
			return location{}, fmt.Errorf("%w: write record %d: %w", ErrVolumeIO, id, err)
		}
	}

	return location{
		kind:   codec.KindChained,
		offset: int64(pages[0]),
		size:   uint32(len(data)),
		pages:  uint32(n),
		epoch:  e.epoch,
	}, nil
}

// readRecord returns the payload stored at loc after checking that the slot
// belongs to id.
func (e *Engine) readRecord(id RecordID, loc location) ([]byte, error) {
	var buf []byte
	switch loc.kind {
	case codec.KindInline:
		buf = make([]byte, slotSize(int(loc.size)))
		if err := e.vol.ReadAt(buf, loc.offset); err != nil {
			return nil, fmt.Errorf("%w: read record %d: %w", ErrVolumeIO, id, err)
		}
	case codec.KindChained:
		var err error
		if buf, err = e.readChain(loc); err != nil {
			return nil, fmt.Errorf("record %d: %w", id, err)
		}
	default:
		return nil, fmt.Errorf("%w: record %d has kind %s", ErrCorruption, id, loc.kind)
	}

	h, err := codec.DecodeSlotHeader(buf)
	if err != nil {
		return nil, fmt.Errorf("%w: record %d: %w", ErrCorruption, id, err)
	}
	chained := h.Flags&codec.FlagChained != 0
	if h.RecordID != uint64(id) || h.Size != loc.size || chained != (loc.kind == codec.KindChained) {
		return nil, fmt.Errorf("%w: record %d: slot holds record %d of %d bytes", ErrCorruption, id, h.RecordID, h.Size)
	}
	payload := buf[codec.SlotHeaderSize:]
	if err := h.Verify(payload); err != nil {
		return nil, fmt.Errorf("%w: record %d: %w", ErrCorruption, id, err)
	}
	return payload, nil
}

func (e *Engine) readChain(loc location) ([]byte, error) {
	stream := make([]byte, 0, slotSize(int(loc.size)))
	hdr := make([]byte, codec.ChainHeaderSize)
	page := uint64(loc.offset)
	count := e.pool.pageCount()
	for i := uint32(0); i < loc.pages; i++ {
		if page == codec.NoPage || page >= count {
			return nil, fmt.Errorf("%w: chain ends early at page %d of %d", ErrCorruption, i, loc.pages)
		}
		off := e.pool.offset(page)
		if err := e.vol.ReadAt(hdr, off); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrVolumeIO, err)
		}
		c, err := codec.DecodeChainHeader(hdr, e.config.PageSize-codec.ChainHeaderSize)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorruption, err)
		}
		if len(stream)+int(c.Length) > cap(stream) {
			return nil, fmt.Errorf("%w: chain longer than %d bytes", ErrCorruption, cap(stream))
		}
		chunk := stream[len(stream) : len(stream)+int(c.Length)]
		if err := e.vol.ReadAt(chunk, off+codec.ChainHeaderSize); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrVolumeIO, err)
		}
		stream = stream[:len(stream)+int(c.Length)]
		page = c.Next
	}
	if page != codec.NoPage || len(stream) != cap(stream) {
		return nil, fmt.Errorf("%w: chain of %d pages is inconsistent", ErrCorruption, loc.pages)
	}
	return stream, nil
}

// chainPagesOf walks the chain headers of loc.
func (e *Engine) chainPagesOf(loc location) ([]uint64, error) {
	pages := make([]uint64, 0, loc.pages)
	hdr := make([]byte, codec.ChainHeaderSize)
	page := uint64(loc.offset)
	count := e.pool.pageCount()
	for i := uint32(0); i < loc.pages; i++ {
		if page == codec.NoPage || page >= count {
			return pages, fmt.Errorf("%w: chain ends early at page %d of %d", ErrCorruption, i, loc.pages)
		}
		if err := e.vol.ReadAt(hdr, e.pool.offset(page)); err != nil {
			return pages, fmt.Errorf("%w: %w", ErrVolumeIO, err)
		}
		c, err := codec.DecodeChainHeader(hdr, e.config.PageSize-codec.ChainHeaderSize)
		if err != nil {
			return pages, fmt.Errorf("%w: %w", ErrCorruption, err)
		}
		pages = append(pages, page)
		page = c.Next
	}
	return pages, nil
}

// release returns the space of a replaced or deleted record. Space written in
// the current epoch is reusable at once; anything older is still referenced by
// the durable head and waits for the next commit. s must be locked.
func (e *Engine) release(s *shard, id RecordID, loc location) {
	switch loc.kind {
	case codec.KindInline:
		if loc.epoch == e.epoch {
			s.free.release(loc.offset, loc.class)
		} else {
			s.pendingSlots = append(s.pendingSlots, pendingSlot{offset: loc.offset, class: loc.class})
		}
	case codec.KindChained:
		pages, err := e.chainPagesOf(loc)
		if err != nil {
			e.logger.Error("leaking overflow pages", "record", id, "error", err)
			return
		}
		if loc.epoch == e.epoch {
			e.pool.release(pages...)
		} else {
			s.pendingPages = append(s.pendingPages, pages...)
		}
	}
}
