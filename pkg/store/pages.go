package store

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ssargent/pagestore/pkg/codec"
	"github.com/ssargent/pagestore/pkg/volume"
)

// pagePool hands out whole pages. Freed pages are reused lowest first before
// the volume is grown.
type pagePool struct {
	mu       sync.Mutex
	vol      volume.Volume
	base     int64
	pageSize int64

	count uint64   // pages addressable in the volume
	free  []uint64 // ascending
}

func newPagePool(vol volume.Volume, base int64, pageSize int) *pagePool {
	return &pagePool{vol: vol, base: base, pageSize: int64(pageSize)}
}

func (p *pagePool) offset(page uint64) int64 {
	return p.base + int64(page)*p.pageSize
}

// pageOf returns the page holding offset.
func (p *pagePool) pageOf(offset int64) uint64 {
	return uint64((offset - p.base) / p.pageSize)
}

func (p *pagePool) pageCount() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

func (p *pagePool) alloc() (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allocLocked()
}

func (p *pagePool) allocLocked() (uint64, error) {
	if len(p.free) > 0 {
		page := p.free[0]
		p.free = p.free[1:]
		return page, nil
	}
	if err := p.growLocked(p.count + 1); err != nil {
		return 0, err
	}
	page := p.count
	p.count++
	return page, nil
}

// allocRunLocked returns the first page of n contiguous pages.
func (p *pagePool) allocRunLocked(n uint64) (uint64, error) {
	if n == 0 {
		return codec.NoPage, nil
	}
	for i := 0; i+int(n) <= len(p.free); i++ {
		if p.free[i+int(n)-1]-p.free[i] == n-1 {
			start := p.free[i]
			p.free = append(p.free[:i], p.free[i+int(n):]...)
			return start, nil
		}
	}

	// A free tail run adjacent to the end of the volume is extended.
	start := p.count
	tail := len(p.free)
	for tail > 0 && p.free[tail-1] == start-1 {
		tail--
		start--
	}
	need := start + n
	if need > p.count {
		if err := p.growLocked(need); err != nil {
			return 0, err
		}
		p.count = need
	}
	p.free = p.free[:tail]
	return start, nil
}

func (p *pagePool) growLocked(pages uint64) error {
	if err := p.vol.EnsureCapacity(p.offset(pages)); err != nil {
		return fmt.Errorf("%w: grow to %d pages: %w", ErrVolumeIO, pages, err)
	}
	return nil
}

func (p *pagePool) release(pages ...uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.releaseLocked(pages...)
}

func (p *pagePool) releaseLocked(pages ...uint64) {
	if len(pages) == 0 {
		return
	}
	p.free = append(p.free, pages...)
	sort.Slice(p.free, func(i, j int) bool { return p.free[i] < p.free[j] })
}

func (p *pagePool) releaseRunLocked(start, n uint64) {
	pages := make([]uint64, n)
	for i := range pages {
		pages[i] = start + uint64(i)
	}
	p.releaseLocked(pages...)
}

// trimTailLocked drops free pages at the end of the volume and returns the
// new page count.
func (p *pagePool) trimTailLocked() uint64 {
	for len(p.free) > 0 && p.free[len(p.free)-1] == p.count-1 {
		p.free = p.free[:len(p.free)-1]
		p.count--
	}
	return p.count
}
