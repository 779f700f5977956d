package codec

import (
	"encoding/binary"
	"fmt"
)

var catalogMagic = [4]byte{'C', 'T', 'L', 'G'}

// EntryKind tells how a directory entry stores its record.
type EntryKind uint8

const (
	KindInline EntryKind = iota + 1
	KindChained
	KindNull
)

func (k EntryKind) String() string {
	switch k {
	case KindInline:
		return "inline"
	case KindChained:
		return "chained"
	case KindNull:
		return "null"
	default:
		return fmt.Sprintf("EntryKind(%d)", uint8(k))
	}
}

// Entry is one live record in a shard directory.
type Entry struct {
	ID     uint64
	Kind   EntryKind
	Offset int64  // slot offset for inline records, first page for chains
	Size   uint32 // payload size
	Class  uint16 // size class index for inline records
	Pages  uint32 // page count for chains
}

// FreeList holds released slot offsets of one size class.
type FreeList struct {
	Class   uint16
	Offsets []int64
}

// ShardState is the persisted state of one concurrency shard.
type ShardState struct {
	NextSeq     uint64
	CurrentPage uint64 // NoPage when the shard has no open page
	HighWater   uint32
	Pages       []uint64
	Free        []FreeList
	Entries     []Entry
}

// Catalog is the snapshot committed with every new head.
type Catalog struct {
	FreePages []uint64
	Shards    []ShardState
}

const (
	entrySize = 8 + 1 + 8 + 4 + 2 + 4
)

type writer struct {
	buf []byte
}

func (w *writer) u8(v uint8)   { w.buf = append(w.buf, v) }
func (w *writer) u16(v uint16) { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }
func (w *writer) u32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }
func (w *writer) u64(v uint64) { w.buf = binary.LittleEndian.AppendUint64(w.buf, v) }

// Encode serializes the catalog.
func (c *Catalog) Encode() []byte {
	w := &writer{buf: make([]byte, 0, c.sizeHint())}
	w.buf = append(w.buf, catalogMagic[:]...)
	w.u32(FormatVersion)

	w.u32(uint32(len(c.FreePages)))
	for _, p := range c.FreePages {
		w.u64(p)
	}

	w.u32(uint32(len(c.Shards)))
	for i := range c.Shards {
		s := &c.Shards[i]
		w.u64(s.NextSeq)
		w.u64(s.CurrentPage)
		w.u32(s.HighWater)

		w.u32(uint32(len(s.Pages)))
		for _, p := range s.Pages {
			w.u64(p)
		}

		w.u32(uint32(len(s.Free)))
		for _, fl := range s.Free {
			w.u16(fl.Class)
			w.u32(uint32(len(fl.Offsets)))
			for _, off := range fl.Offsets {
				w.u64(uint64(off))
			}
		}

		w.u32(uint32(len(s.Entries)))
		for _, e := range s.Entries {
			w.u64(e.ID)
			w.u8(uint8(e.Kind))
			w.u64(uint64(e.Offset))
			w.u32(e.Size)
			w.u16(e.Class)
			w.u32(e.Pages)
		}
	}
	return w.buf
}

func (c *Catalog) sizeHint() int {
	n := 16 + 8*len(c.FreePages)
	for i := range c.Shards {
		s := &c.Shards[i]
		n += 32 + 8*len(s.Pages) + entrySize*len(s.Entries)
		for _, fl := range s.Free {
			n += 6 + 8*len(fl.Offsets)
		}
	}
	return n
}

type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.buf)-r.off < n {
		r.err = fmt.Errorf("%w: catalog truncated at offset %d", ErrCorrupt, r.off)
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) u8() uint8 {
	if b := r.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (r *reader) u16() uint16 {
	if b := r.take(2); b != nil {
		return binary.LittleEndian.Uint16(b)
	}
	return 0
}

func (r *reader) u32() uint32 {
	if b := r.take(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (r *reader) u64() uint64 {
	if b := r.take(8); b != nil {
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}

// count reads a length prefix and rejects it when the remaining input cannot
// hold that many elements of elemSize bytes.
func (r *reader) count(elemSize int) int {
	n := int(r.u32())
	if r.err != nil {
		return 0
	}
	if n > (len(r.buf)-r.off)/elemSize {
		r.err = fmt.Errorf("%w: catalog count %d exceeds remaining %d bytes", ErrCorrupt, n, len(r.buf)-r.off)
		return 0
	}
	return n
}

// DecodeCatalog parses an encoded catalog.
func DecodeCatalog(buf []byte) (*Catalog, error) {
	r := &reader{buf: buf}
	if magic := r.take(4); magic == nil || [4]byte(magic) != catalogMagic {
		return nil, fmt.Errorf("%w: bad catalog magic", ErrCorrupt)
	}
	if v := r.u32(); v != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported catalog version %d", ErrCorrupt, v)
	}

	c := &Catalog{}
	if n := r.count(8); n > 0 {
		c.FreePages = make([]uint64, n)
		for i := range c.FreePages {
			c.FreePages[i] = r.u64()
		}
	}

	shards := r.count(24)
	c.Shards = make([]ShardState, shards)
	for i := 0; i < shards && r.err == nil; i++ {
		s := &c.Shards[i]
		s.NextSeq = r.u64()
		s.CurrentPage = r.u64()
		s.HighWater = r.u32()

		if n := r.count(8); n > 0 {
			s.Pages = make([]uint64, n)
			for j := range s.Pages {
				s.Pages[j] = r.u64()
			}
		}

		if n := r.count(6); n > 0 {
			s.Free = make([]FreeList, n)
			for j := 0; j < n && r.err == nil; j++ {
				s.Free[j].Class = r.u16()
				m := r.count(8)
				if m == 0 {
					continue
				}
				s.Free[j].Offsets = make([]int64, m)
				for k := range s.Free[j].Offsets {
					s.Free[j].Offsets[k] = int64(r.u64())
				}
			}
		}

		if n := r.count(entrySize); n > 0 {
			s.Entries = make([]Entry, n)
			for j := range s.Entries {
				e := &s.Entries[j]
				e.ID = r.u64()
				e.Kind = EntryKind(r.u8())
				e.Offset = int64(r.u64())
				e.Size = r.u32()
				e.Class = r.u16()
				e.Pages = r.u32()
				if r.err == nil && (e.Kind < KindInline || e.Kind > KindNull) {
					r.err = fmt.Errorf("%w: entry %d has unknown kind %d", ErrCorrupt, e.ID, e.Kind)
				}
			}
		}
	}

	if r.err != nil {
		return nil, r.err
	}
	if r.off != len(buf) {
		return nil, fmt.Errorf("%w: %d trailing catalog bytes", ErrCorrupt, len(buf)-r.off)
	}
	return c, nil
}
