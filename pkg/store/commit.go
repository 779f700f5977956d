package store

import (
	"fmt"
	"sort"
	"time"

	"github.com/ssargent/pagestore/pkg/codec"
)

const statusNoop = "noop"

// Commit makes every change since the previous commit durable. A commit with
// nothing to write leaves the head untouched. When it fails the previous head
// stays valid and the engine stays usable.
func (e *Engine) Commit() error {
	release, err := e.acquire(false)
	if err != nil {
		return err
	}
	defer release()
	return e.commit()
}

func (e *Engine) commit() error {
	e.commitMu.Lock()
	defer e.commitMu.Unlock()

	start := time.Now()
	e.lockAll()
	status, err := e.commitLocked()
	e.unlockAll()

	e.metrics.recordCommit(start, status)
	if status == statusNoop {
		return nil
	}
	e.updateGauges()
	if err != nil {
		e.logger.Error("commit failed", "head", e.head.Version, "error", err)
		return err
	}
	e.logger.Debug("committed",
		"head", e.head.Version,
		"catalog_pages", e.catalogRun.n,
		"duration", time.Since(start))
	return nil
}

// commitLocked runs with commitMu and every shard lock held.
func (e *Engine) commitLocked() (string, error) {
	if !e.dirty() {
		return statusNoop, nil
	}

	p := e.pool
	p.mu.Lock()
	defer p.mu.Unlock()

	pageSize := uint64(e.config.PageSize)
	n := (uint64(len(e.catalog().Encode())) + pageSize - 1) / pageSize
	start, err := p.allocRunLocked(n)
	if err != nil {
		return statusError, fmt.Errorf("%w: %w", ErrCommitFailed, err)
	}
	// The run left the free list, so this encoding is never longer.
	data := e.catalog().Encode()

	if err := e.writeCatalog(start, data); err != nil {
		p.releaseRunLocked(start, n)
		return statusError, fmt.Errorf("%w: %w", ErrCommitFailed, err)
	}

	head := e.head
	head.Version++
	head.PageCount = p.count
	head.CatalogPage = start
	head.CatalogPages = n
	head.CatalogLength = uint64(len(data))
	head.CatalogChecksum = codec.Checksum(data)

	if err := e.writeSuperblock(&head); err != nil {
		// The new head may have reached the volume, so neither its catalog
		// nor anything written so far may be reused before the next commit.
		e.orphans = append(e.orphans, pageRun{start: start, n: n})
		e.epoch++
		return statusError, fmt.Errorf("%w: %w", ErrCommitFailed, err)
	}

	if e.catalogRun.n > 0 {
		p.releaseRunLocked(e.catalogRun.start, e.catalogRun.n)
	}
	for _, r := range e.orphans {
		p.releaseRunLocked(r.start, r.n)
	}
	e.orphans = nil

	for _, s := range e.shards {
		for _, ps := range s.pendingSlots {
			s.free.release(ps.offset, ps.class)
		}
		p.releaseLocked(s.pendingPages...)
		s.pendingSlots = nil
		s.pendingPages = nil
		s.dirty = false
	}

	e.head = head
	e.catalogRun = pageRun{start: start, n: n}
	e.epoch++
	return statusSuccess, nil
}

func (e *Engine) dirty() bool {
	for _, s := range e.shards {
		if s.dirty {
			return true
		}
	}
	return false
}

func (e *Engine) writeCatalog(page uint64, data []byte) error {
	if err := e.vol.WriteAt(data, e.pool.offset(page)); err != nil {
		return fmt.Errorf("%w: write catalog: %w", ErrVolumeIO, err)
	}
	if err := e.vol.Sync(); err != nil {
		return fmt.Errorf("%w: sync catalog: %w", ErrVolumeIO, err)
	}
	return nil
}

func (e *Engine) writeSuperblock(head *codec.Superblock) error {
	if err := e.vol.WriteAt(head.Encode(), e.superblockOffset(head.Slot())); err != nil {
		return fmt.Errorf("%w: write superblock: %w", ErrVolumeIO, err)
	}
	if err := e.vol.Sync(); err != nil {
		return fmt.Errorf("%w: sync superblock: %w", ErrVolumeIO, err)
	}
	return nil
}

// catalog snapshots the state the next head will describe: released space is
// already counted as free. Callers hold every shard lock and the pool lock.
func (e *Engine) catalog() *codec.Catalog {
	free := append([]uint64(nil), e.pool.free...)
	for i := uint64(0); i < e.catalogRun.n; i++ {
		free = append(free, e.catalogRun.start+i)
	}
	for _, r := range e.orphans {
		for i := uint64(0); i < r.n; i++ {
			free = append(free, r.start+i)
		}
	}

	cat := &codec.Catalog{Shards: make([]codec.ShardState, len(e.shards))}
	for i, s := range e.shards {
		free = append(free, s.pendingPages...)
		cat.Shards[i] = e.shardState(s)
	}
	sort.Slice(free, func(i, j int) bool { return free[i] < free[j] })
	cat.FreePages = free
	return cat
}

func (e *Engine) shardState(s *shard) codec.ShardState {
	st := codec.ShardState{
		NextSeq:     s.nextSeq,
		CurrentPage: s.current,
		HighWater:   s.highWater,
		Pages:       s.pages,
	}

	lists := make(map[int][]int64)
	for class, offs := range s.free.stacks {
		lists[class] = append(lists[class], offs...)
	}
	for _, ps := range s.pendingSlots {
		lists[ps.class] = append(lists[ps.class], ps.offset)
	}
	classes := make([]int, 0, len(lists))
	for class := range lists {
		classes = append(classes, class)
	}
	sort.Ints(classes)
	for _, class := range classes {
		st.Free = append(st.Free, codec.FreeList{Class: uint16(class), Offsets: lists[class]})
	}

	st.Entries = make([]codec.Entry, 0, len(s.dir))
	for id, loc := range s.dir {
		st.Entries = append(st.Entries, codec.Entry{
			ID:     uint64(id),
			Kind:   loc.kind,
			Offset: loc.offset,
			Size:   loc.size,
			Class:  uint16(loc.class),
			Pages:  loc.pages,
		})
	}
	sort.Slice(st.Entries, func(i, j int) bool { return st.Entries[i].ID < st.Entries[j].ID })
	return st
}
