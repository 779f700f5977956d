// Package store implements a paged record store with stable record ids.
//
// Records are opaque byte payloads. Small records live in size-classed slots
// carved from fixed-size pages, records larger than a page are written as a
// chain of whole pages. The id space is split into 1<<ConcurrencyShift shards,
// each with its own lock, pages, free index and directory, so writers to
// different shards never wait on each other. Commit takes every shard lock in
// order, writes a catalog of all shards into fresh pages and then flips the
// durable head in one of two alternating superblocks.
//
// Lock order: Engine.state, Engine.commitMu, shard locks by index, page pool.
package store

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/segmentio/ksuid"

	"github.com/ssargent/pagestore/pkg/codec"
	"github.com/ssargent/pagestore/pkg/volume"
)

// Engine is a page store instance. All methods are safe for concurrent use.
type Engine struct {
	config  Config
	logger  *slog.Logger
	metrics *metrics

	storeID    string
	vol        volume.Volume
	ownsVolume bool
	classes    sizeClasses
	shift      uint
	pool       *pagePool
	shards     []*shard
	rr         atomic.Uint64

	// state guards closed; operations hold the read side
	state  sync.RWMutex
	closed bool

	// commitMu serializes commits; the fields below change only while it and
	// every shard lock are held
	commitMu   sync.Mutex
	head       codec.Superblock
	epoch      uint64
	catalogRun pageRun
	orphans    []pageRun
}

type pageRun struct {
	start uint64
	n     uint64
}

// Open opens or formats the store described by cfg.
func Open(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	vol, owned, err := cfg.openVolume()
	if err != nil {
		return nil, err
	}

	e := &Engine{
		config:     cfg,
		logger:     cfg.Logger.With("component", "pagestore"),
		vol:        vol,
		ownsVolume: owned,
		classes:    newSizeClasses(cfg.PageSize),
		shift:      cfg.ConcurrencyShift,
		pool:       newPagePool(vol, cfg.StartOffset+codec.SuperblockArea, cfg.PageSize),
	}
	for i := 0; i < cfg.shards(); i++ {
		e.shards = append(e.shards, newShard(i))
	}

	if err := e.recover(); err != nil {
		if owned {
			vol.Close()
		}
		return nil, err
	}

	if id, err := ksuid.FromBytes(e.head.StoreID[:]); err == nil {
		e.storeID = id.String()
	}
	e.metrics = newMetrics(cfg.Registerer, e.storeID)
	e.updateGauges()

	e.logger.Info("store opened",
		"store_id", e.storeID,
		"head", e.head.Version,
		"pages", e.pool.count,
		"shards", len(e.shards),
		"read_only", cfg.ReadOnly)
	return e, nil
}

// StoreID returns the identity written into the superblock when the store was
// formatted.
func (e *Engine) StoreID() string {
	return e.storeID
}

// Close commits pending changes and releases the volume. Closing twice is a
// no-op.
func (e *Engine) Close() error {
	e.state.Lock()
	defer e.state.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	var errs []error
	if !e.config.ReadOnly {
		if err := e.commit(); err != nil {
			errs = append(errs, err)
		} else if e.config.CompactOnClose {
			if err := e.compact(); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if e.ownsVolume {
		if err := e.vol.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", ErrVolumeIO, err))
		}
	}
	if e.config.DeleteFilesAfterClose {
		if err := os.Remove(e.config.Path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}

	e.logger.Info("store closed", "head", e.head.Version)
	return errors.Join(errs...)
}

// compact truncates the free pages at the end of the volume. A catalog sitting
// at the tail is first moved into the lowest free run by one more commit.
func (e *Engine) compact() error {
	if e.catalogAtTail() {
		e.shards[0].dirty = true
		if err := e.commit(); err != nil {
			return err
		}
	}

	e.pool.mu.Lock()
	defer e.pool.mu.Unlock()

	before := e.pool.count
	count := e.pool.trimTailLocked()
	if count == before {
		return nil
	}
	if err := e.vol.Truncate(e.pool.offset(count)); err != nil {
		return fmt.Errorf("%w: compact: %w", ErrVolumeIO, err)
	}
	e.logger.Info("volume compacted", "pages_before", before, "pages_after", count)
	return nil
}

func (e *Engine) catalogAtTail() bool {
	e.pool.mu.Lock()
	defer e.pool.mu.Unlock()

	run := e.catalogRun
	return run.n > 0 && run.start+run.n == e.pool.count &&
		len(e.pool.free) >= int(run.n) && e.pool.free[0] < run.start
}

// acquire takes the state read lock for an operation.
func (e *Engine) acquire(write bool) (func(), error) {
	e.state.RLock()
	if e.closed {
		e.state.RUnlock()
		return nil, ErrEngineClosed
	}
	if write && e.config.ReadOnly {
		e.state.RUnlock()
		return nil, ErrReadOnly
	}
	return e.state.RUnlock, nil
}

// pickShard returns a locked shard for a new record. Starting from a
// round-robin position it takes the first shard whose lock is free and only
// blocks when all of them are busy.
func (e *Engine) pickShard() *shard {
	mask := uint64(len(e.shards) - 1)
	start := (e.rr.Add(1) - 1) & mask
	for i := uint64(0); i <= mask; i++ {
		s := e.shards[(start+i)&mask]
		if s.tryLock() {
			if i > 0 {
				e.metrics.shardContended.WithLabelValues(fmt.Sprint(start)).Inc()
			}
			return s
		}
	}
	s := e.shards[start]
	s.lock()
	return s
}

func (e *Engine) shardOf(id RecordID) (*shard, error) {
	if id.seq(e.shift) == 0 {
		return nil, ErrUnknownRecord
	}
	return e.shards[id.shard(e.shift)], nil
}

func (e *Engine) lockAll() {
	for _, s := range e.shards {
		s.lock()
	}
}

func (e *Engine) unlockAll() {
	for i := len(e.shards) - 1; i >= 0; i-- {
		e.shards[i].unlock()
	}
}

func (e *Engine) updateGauges() {
	live := 0
	for _, s := range e.shards {
		s.mu.RLock()
		live += len(s.dir)
		s.mu.RUnlock()
	}
	e.pool.mu.Lock()
	pages := e.pool.count
	e.pool.mu.Unlock()

	e.metrics.liveRecords.Set(float64(live))
	e.metrics.pagesTotal.Set(float64(pages))
	e.metrics.volumeSizeBytes.Set(float64(e.vol.Size()))
	e.metrics.headVersion.Set(float64(e.head.Version))
}
