package store

import (
	"fmt"

	"github.com/segmentio/ksuid"

	"github.com/ssargent/pagestore/pkg/codec"
)

func (e *Engine) superblockOffset(slot int) int64 {
	return e.config.StartOffset + int64(slot)*codec.SuperblockStride
}

// recover loads the newest valid head or formats an empty volume.
func (e *Engine) recover() error {
	var (
		heads   [2]*codec.Superblock
		nonZero bool
	)
	for slot := range heads {
		off := e.superblockOffset(slot)
		if e.vol.Size() < off+codec.SuperblockSize {
			continue
		}
		buf := make([]byte, codec.SuperblockSize)
		if err := e.vol.ReadAt(buf, off); err != nil {
			return fmt.Errorf("%w: read superblock %d: %w", ErrVolumeIO, slot, err)
		}
		if codec.IsZero(buf) {
			continue
		}
		nonZero = true
		sb, err := codec.DecodeSuperblock(buf)
		if err != nil {
			e.logger.Warn("ignoring invalid superblock", "slot", slot, "error", err)
			continue
		}
		heads[slot] = sb
	}

	head := heads[0]
	if heads[1] != nil && (head == nil || heads[1].Version > head.Version) {
		head = heads[1]
	}
	if head == nil {
		if nonZero {
			return fmt.Errorf("%w: no valid superblock", ErrCorruption)
		}
		return e.format()
	}

	if int(head.PageSize) != e.config.PageSize {
		return fmt.Errorf("%w: store has page size %d, configured %d", ErrInvalidConfig, head.PageSize, e.config.PageSize)
	}
	if uint(head.ConcurrencyShift) != e.shift {
		return fmt.Errorf("%w: store has concurrency shift %d, configured %d", ErrInvalidConfig, head.ConcurrencyShift, e.shift)
	}

	e.head = *head
	e.epoch = 1

	// Trailing free pages may have been truncated on close.
	count := head.PageCount
	if avail := (e.vol.Size() - e.pool.base) / e.pool.pageSize; avail >= 0 && uint64(avail) < count {
		count = uint64(avail)
	}
	e.pool.count = count

	if !head.HasCatalog() {
		return nil
	}
	if head.CatalogPage+head.CatalogPages > count {
		return fmt.Errorf("%w: catalog pages %d+%d beyond volume", ErrCorruption, head.CatalogPage, head.CatalogPages)
	}
	if head.CatalogLength > head.CatalogPages*uint64(e.pool.pageSize) {
		return fmt.Errorf("%w: catalog length %d exceeds its pages", ErrCorruption, head.CatalogLength)
	}

	buf := make([]byte, head.CatalogLength)
	if err := e.vol.ReadAt(buf, e.pool.offset(head.CatalogPage)); err != nil {
		return fmt.Errorf("%w: read catalog: %w", ErrVolumeIO, err)
	}
	if sum := codec.Checksum(buf); sum != head.CatalogChecksum {
		return fmt.Errorf("%w: catalog checksum mismatch", ErrCorruption)
	}
	cat, err := codec.DecodeCatalog(buf)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCorruption, err)
	}
	if err := e.load(cat, count); err != nil {
		return err
	}
	e.catalogRun = pageRun{start: head.CatalogPage, n: head.CatalogPages}
	return nil
}

// load rebuilds shards and the page pool from a committed catalog.
func (e *Engine) load(cat *codec.Catalog, count uint64) error {
	if len(cat.Shards) != len(e.shards) {
		return fmt.Errorf("%w: catalog has %d shards, expected %d", ErrCorruption, len(cat.Shards), len(e.shards))
	}

	free := make([]uint64, 0, len(cat.FreePages))
	for _, p := range cat.FreePages {
		if p < count {
			free = append(free, p)
		}
	}
	e.pool.releaseLocked(free...)

	for i, st := range cat.Shards {
		s := e.shards[i]
		s.nextSeq = st.NextSeq
		s.pages = st.Pages
		s.current = st.CurrentPage
		s.highWater = st.HighWater
		for _, fl := range st.Free {
			if int(fl.Class) >= len(e.classes) {
				return fmt.Errorf("%w: shard %d free list has class %d", ErrCorruption, i, fl.Class)
			}
			for _, off := range fl.Offsets {
				s.free.release(off, int(fl.Class))
			}
		}
		for _, ent := range st.Entries {
			id := RecordID(ent.ID)
			if id.shard(e.shift) != i || id.seq(e.shift) == 0 || id.seq(e.shift) >= s.nextSeq {
				return fmt.Errorf("%w: record %d does not belong to shard %d", ErrCorruption, id, i)
			}
			if ent.Kind == codec.KindInline && int(ent.Class) >= len(e.classes) {
				return fmt.Errorf("%w: record %d has class %d", ErrCorruption, id, ent.Class)
			}
			s.dir[id] = location{
				kind:   ent.Kind,
				offset: ent.Offset,
				size:   ent.Size,
				class:  int(ent.Class),
				pages:  ent.Pages,
			}
		}
	}
	return nil
}

// format writes version 0 of the head to an empty volume.
func (e *Engine) format() error {
	if e.config.ReadOnly {
		return fmt.Errorf("%w: cannot format an empty volume", ErrReadOnly)
	}

	size := e.pool.base
	if e.config.StartSize > size {
		size = e.config.StartSize
	}
	if err := e.vol.EnsureCapacity(size); err != nil {
		return fmt.Errorf("%w: %w", ErrVolumeIO, err)
	}

	e.head = codec.Superblock{
		Format:           codec.FormatVersion,
		Version:          0,
		PageSize:         uint32(e.config.PageSize),
		ConcurrencyShift: uint32(e.shift),
	}
	if e.config.Checksum {
		e.head.Flags |= codec.SuperFlagChecksum
	}
	copy(e.head.StoreID[:], ksuid.New().Bytes())
	e.epoch = 1

	if err := e.vol.WriteAt(e.head.Encode(), e.superblockOffset(e.head.Slot())); err != nil {
		return fmt.Errorf("%w: write superblock: %w", ErrVolumeIO, err)
	}
	if err := e.vol.Sync(); err != nil {
		return fmt.Errorf("%w: %w", ErrVolumeIO, err)
	}
	e.logger.Info("formatted new store", "page_size", e.config.PageSize, "shards", len(e.shards))
	return nil
}
