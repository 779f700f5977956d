package store

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ssargent/pagestore/pkg/codec"
)

const maxVerifyProblems = 32

type verifier struct {
	e        *Engine
	count    uint64
	owner    map[uint64]string
	problems []error
}

func (v *verifier) fail(format string, args ...any) {
	if len(v.problems) < maxVerifyProblems {
		v.problems = append(v.problems, fmt.Errorf("%w: "+format, append([]any{ErrCorruption}, args...)...))
	}
}

func (v *verifier) claim(page uint64, who string) {
	if page >= v.count {
		v.fail("%s uses page %d beyond page count %d", who, page, v.count)
		return
	}
	if prev, ok := v.owner[page]; ok {
		v.fail("page %d claimed by %s and %s", page, prev, who)
		return
	}
	v.owner[page] = who
}

type slotRange struct {
	start, end int64
	who        string
}

// Verify checks the structural invariants of every shard and reads back each
// record, verifying checksums when they are enabled. It blocks all writers
// while it runs.
func (e *Engine) Verify() error {
	release, err := e.acquire(false)
	if err != nil {
		return err
	}
	defer release()

	e.commitMu.Lock()
	defer e.commitMu.Unlock()
	e.lockAll()
	defer e.unlockAll()

	e.pool.mu.Lock()
	v := &verifier{e: e, count: e.pool.count, owner: make(map[uint64]string)}
	for _, p := range e.pool.free {
		v.claim(p, "free list")
	}
	e.pool.mu.Unlock()

	for i := uint64(0); i < e.catalogRun.n; i++ {
		v.claim(e.catalogRun.start+i, "catalog")
	}
	for _, r := range e.orphans {
		for i := uint64(0); i < r.n; i++ {
			v.claim(r.start+i, "orphaned catalog")
		}
	}

	for _, s := range e.shards {
		e.verifyShard(v, s)
	}

	for p := uint64(0); p < v.count; p++ {
		if _, ok := v.owner[p]; !ok {
			v.fail("page %d is not accounted for", p)
		}
	}

	if len(v.problems) > 0 {
		e.logger.Warn("verify found problems", "count", len(v.problems))
	}
	return errors.Join(v.problems...)
}

func (e *Engine) verifyShard(v *verifier, s *shard) {
	name := fmt.Sprintf("shard %d", s.index)
	for _, p := range s.pages {
		v.claim(p, name)
	}
	for _, p := range s.pendingPages {
		v.claim(p, name+" pending")
	}
	if s.current != codec.NoPage && !s.ownsPage(s.current) {
		v.fail("%s current page %d is not owned", name, s.current)
	}
	if int(s.highWater) > e.config.PageSize {
		v.fail("%s high water %d exceeds page size", name, s.highWater)
	}

	var ranges []slotRange
	addSlot := func(off int64, class int, who string) {
		if class < 0 || class >= len(e.classes) {
			v.fail("%s has class %d", who, class)
			return
		}
		end := off + int64(e.classes.size(class))
		page := e.pool.pageOf(off)
		pageEnd := e.pool.offset(page) + int64(e.config.PageSize)
		if page == s.current {
			pageEnd = e.pool.offset(page) + int64(s.highWater)
		}
		switch {
		case off < e.pool.base || !s.ownsPage(page):
			v.fail("%s at offset %d is outside %s pages", who, off, name)
		case end > pageEnd:
			v.fail("%s at offset %d runs past its page", who, off)
		default:
			ranges = append(ranges, slotRange{start: off, end: end, who: who})
		}
	}

	s.free.each(func(off int64, class int) {
		addSlot(off, class, name+" free slot")
	})
	for _, ps := range s.pendingSlots {
		addSlot(ps.offset, ps.class, name+" pending slot")
	}

	for id, loc := range s.dir {
		who := fmt.Sprintf("record %d", id)
		if id.shard(e.shift) != s.index || id.seq(e.shift) >= s.nextSeq {
			v.fail("%s does not belong to %s", who, name)
		}
		switch loc.kind {
		case codec.KindNull:
			continue
		case codec.KindInline:
			if slotSize(int(loc.size)) > e.classes.size(loc.class) {
				v.fail("%s of %d bytes does not fit class %d", who, loc.size, loc.class)
				continue
			}
			addSlot(loc.offset, loc.class, who)
		case codec.KindChained:
			pages, err := e.chainPagesOf(loc)
			if err != nil {
				v.fail("%s: %v", who, err)
				continue
			}
			for _, p := range pages {
				v.claim(p, who)
			}
		}
		if _, err := e.readRecord(id, loc); err != nil {
			if len(v.problems) < maxVerifyProblems {
				v.problems = append(v.problems, err)
			}
		}
	}

	sort.Slice(ranges, func(i, j int) bool { return ranges[i].start < ranges[j].start })
	for i := 1; i < len(ranges); i++ {
		if ranges[i].start < ranges[i-1].end {
			v.fail("%s overlaps %s at offset %d", ranges[i].who, ranges[i-1].who, ranges[i].start)
		}
	}
}
