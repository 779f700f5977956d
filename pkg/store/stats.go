package store

import "github.com/ssargent/pagestore/pkg/codec"

// Stats describes the engine at one point in time.
type Stats struct {
	StoreID     string       `json:"store_id"`
	HeadVersion uint64       `json:"head_version"`
	Records     int          `json:"records"`
	NullRecords int          `json:"null_records"`
	Pages       uint64       `json:"pages"`
	FreePages   int          `json:"free_pages"`
	PageSize    int          `json:"page_size"`
	VolumeSize  int64        `json:"volume_size"`
	ReadOnly    bool         `json:"read_only"`
	Shards      []ShardStats `json:"shards"`
}

// ShardStats describes one shard.
type ShardStats struct {
	Index        int            `json:"index"`
	Records      int            `json:"records"`
	Pages        int            `json:"pages"`
	FreeSlots    int            `json:"free_slots"`
	PendingSlots int            `json:"pending_slots"`
	NextSeq      uint64         `json:"next_seq"`
	Lock         ShardLockStats `json:"lock"`
}

// Stats returns a snapshot of the engine. Shards are read one at a time, so
// the totals are not an atomic view under concurrent writes.
func (e *Engine) Stats() (*Stats, error) {
	release, err := e.acquire(false)
	if err != nil {
		return nil, err
	}
	defer release()

	e.commitMu.Lock()
	head := e.head.Version
	e.commitMu.Unlock()

	st := &Stats{
		StoreID:     e.StoreID(),
		HeadVersion: head,
		PageSize:    e.config.PageSize,
		VolumeSize:  e.vol.Size(),
		ReadOnly:    e.config.ReadOnly,
	}

	for _, s := range e.shards {
		s.mu.RLock()
		ss := ShardStats{
			Index:        s.index,
			Records:      len(s.dir),
			Pages:        len(s.pages),
			FreeSlots:    s.free.len(),
			PendingSlots: len(s.pendingSlots),
			NextSeq:      s.nextSeq,
		}
		for _, loc := range s.dir {
			if loc.kind == codec.KindNull {
				st.NullRecords++
			}
		}
		s.mu.RUnlock()

		ss.Lock = s.lockStats()
		st.Records += ss.Records
		st.Shards = append(st.Shards, ss)
	}

	e.pool.mu.Lock()
	st.Pages = e.pool.count
	st.FreePages = len(e.pool.free)
	e.pool.mu.Unlock()

	return st, nil
}
