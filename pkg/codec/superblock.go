package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

const (
	// SuperblockSize is the encoded size of one superblock copy.
	SuperblockSize = 128
	// SuperblockStride is the distance between the two copies.
	SuperblockStride = 4096
	// SuperblockArea is the space reserved for both copies in front of page 0.
	SuperblockArea = 2 * SuperblockStride

	// FormatVersion is bumped on incompatible layout changes.
	FormatVersion uint32 = 1
)

// Superblock flags.
const (
	SuperFlagChecksum uint32 = 1 << iota
)

var superMagic = [4]byte{'p', 'g', 's', 't'}

// Superblock is the durable head of a volume.
type Superblock struct {
	Format           uint32
	Flags            uint32
	Version          uint64
	PageSize         uint32
	ConcurrencyShift uint32
	StoreID          [20]byte
	PageCount        uint64
	CatalogPage      uint64
	CatalogPages     uint64
	CatalogLength    uint64
	CatalogChecksum  uint64
}

// Slot returns which of the two superblock copies holds this version.
func (s *Superblock) Slot() int {
	return int(s.Version % 2)
}

// HasCatalog reports whether a catalog was written with this head.
func (s *Superblock) HasCatalog() bool {
	return s.CatalogPages > 0
}

// Encode serializes the superblock including its CRC.
func (s *Superblock) Encode() []byte {
	buf := make([]byte, SuperblockSize)
	copy(buf[0:4], superMagic[:])
	binary.LittleEndian.PutUint32(buf[8:], s.Format)
	binary.LittleEndian.PutUint32(buf[12:], s.Flags)
	binary.LittleEndian.PutUint64(buf[16:], s.Version)
	binary.LittleEndian.PutUint32(buf[24:], s.PageSize)
	binary.LittleEndian.PutUint32(buf[28:], s.ConcurrencyShift)
	copy(buf[32:52], s.StoreID[:])
	binary.LittleEndian.PutUint64(buf[52:], s.PageCount)
	binary.LittleEndian.PutUint64(buf[60:], s.CatalogPage)
	binary.LittleEndian.PutUint64(buf[68:], s.CatalogPages)
	binary.LittleEndian.PutUint64(buf[76:], s.CatalogLength)
	binary.LittleEndian.PutUint64(buf[84:], s.CatalogChecksum)
	binary.LittleEndian.PutUint32(buf[4:], crc32.ChecksumIEEE(buf[8:]))
	return buf
}

// IsZero reports whether buf was never written.
func IsZero(buf []byte) bool {
	return len(bytes.TrimLeft(buf, "\x00")) == 0
}

// DecodeSuperblock parses and validates one superblock copy.
func DecodeSuperblock(buf []byte) (*Superblock, error) {
	if len(buf) < SuperblockSize {
		return nil, fmt.Errorf("%w: superblock needs %d bytes, got %d", ErrCorrupt, SuperblockSize, len(buf))
	}
	buf = buf[:SuperblockSize]
	if !bytes.Equal(buf[0:4], superMagic[:]) {
		return nil, fmt.Errorf("%w: bad superblock magic %q", ErrCorrupt, buf[0:4])
	}
	if sum, want := crc32.ChecksumIEEE(buf[8:]), binary.LittleEndian.Uint32(buf[4:]); sum != want {
		return nil, fmt.Errorf("%w: superblock CRC32 mismatch: %d != %d", ErrCorrupt, sum, want)
	}

	s := &Superblock{
		Format:           binary.LittleEndian.Uint32(buf[8:]),
		Flags:            binary.LittleEndian.Uint32(buf[12:]),
		Version:          binary.LittleEndian.Uint64(buf[16:]),
		PageSize:         binary.LittleEndian.Uint32(buf[24:]),
		ConcurrencyShift: binary.LittleEndian.Uint32(buf[28:]),
		PageCount:        binary.LittleEndian.Uint64(buf[52:]),
		CatalogPage:      binary.LittleEndian.Uint64(buf[60:]),
		CatalogPages:     binary.LittleEndian.Uint64(buf[68:]),
		CatalogLength:    binary.LittleEndian.Uint64(buf[76:]),
		CatalogChecksum:  binary.LittleEndian.Uint64(buf[84:]),
	}
	copy(s.StoreID[:], buf[32:52])

	if s.Format != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d", ErrCorrupt, s.Format)
	}
	return s, nil
}
