package codec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

const (
	// SlotHeaderSize is the fixed header in front of every record payload.
	SlotHeaderSize = 24
	// ChainHeaderSize is the header at the start of every overflow page.
	ChainHeaderSize = 16

	// NoPage terminates an overflow chain.
	NoPage = ^uint64(0)

	chainMagic uint32 = 0x4e494843 // "CHIN"
)

// Slot header flags.
const (
	FlagChecksum uint32 = 1 << iota
	FlagChained
)

// ErrCorrupt is wrapped by every decoding failure.
var ErrCorrupt = errors.New("corrupt data")

// SlotHeader describes the record stored in a slot or chain.
type SlotHeader struct {
	RecordID uint64
	Size     uint32
	Flags    uint32
	Checksum uint64
}

// NewSlotHeader builds the header for payload. When checksum is false the
// checksum field stays zero.
func NewSlotHeader(id uint64, payload []byte, checksum bool) SlotHeader {
	h := SlotHeader{RecordID: id, Size: uint32(len(payload))}
	if checksum {
		h.Flags |= FlagChecksum
		h.Checksum = Checksum(payload)
	}
	return h
}

// Checksum hashes a payload.
func Checksum(payload []byte) uint64 {
	return xxhash.Sum64(payload)
}

// Put writes the header into buf, which must hold SlotHeaderSize bytes.
func (h SlotHeader) Put(buf []byte) {
	binary.LittleEndian.PutUint64(buf[0:], h.RecordID)
	binary.LittleEndian.PutUint32(buf[8:], h.Size)
	binary.LittleEndian.PutUint32(buf[12:], h.Flags)
	binary.LittleEndian.PutUint64(buf[16:], h.Checksum)
}

// EncodeSlot returns header and payload in one buffer.
func EncodeSlot(h SlotHeader, payload []byte) []byte {
	buf := make([]byte, SlotHeaderSize+len(payload))
	h.Put(buf)
	copy(buf[SlotHeaderSize:], payload)
	return buf
}

// DecodeSlotHeader parses the first SlotHeaderSize bytes of buf.
func DecodeSlotHeader(buf []byte) (SlotHeader, error) {
	if len(buf) < SlotHeaderSize {
		return SlotHeader{}, fmt.Errorf("%w: slot header needs %d bytes, got %d", ErrCorrupt, SlotHeaderSize, len(buf))
	}
	h := SlotHeader{
		RecordID: binary.LittleEndian.Uint64(buf[0:]),
		Size:     binary.LittleEndian.Uint32(buf[8:]),
		Flags:    binary.LittleEndian.Uint32(buf[12:]),
		Checksum: binary.LittleEndian.Uint64(buf[16:]),
	}
	if h.Flags&^(FlagChecksum|FlagChained) != 0 {
		return SlotHeader{}, fmt.Errorf("%w: unknown slot flags %#x", ErrCorrupt, h.Flags)
	}
	return h, nil
}

// Verify checks payload against the header.
func (h SlotHeader) Verify(payload []byte) error {
	if uint32(len(payload)) != h.Size {
		return fmt.Errorf("%w: payload is %d bytes, header says %d", ErrCorrupt, len(payload), h.Size)
	}
	if h.Flags&FlagChecksum == 0 {
		return nil
	}
	if sum := Checksum(payload); sum != h.Checksum {
		return fmt.Errorf("%w: checksum mismatch: %#x != %#x", ErrCorrupt, sum, h.Checksum)
	}
	return nil
}

// ChainHeader links the pages of an overflow record.
type ChainHeader struct {
	Next   uint64
	Length uint32
}

// Put writes the chain header into buf.
func (c ChainHeader) Put(buf []byte) {
	binary.LittleEndian.PutUint64(buf[0:], c.Next)
	binary.LittleEndian.PutUint32(buf[8:], c.Length)
	binary.LittleEndian.PutUint32(buf[12:], chainMagic)
}

// DecodeChainHeader parses a chain page header. maxLength is the usable chunk
// size of a page.
func DecodeChainHeader(buf []byte, maxLength int) (ChainHeader, error) {
	if len(buf) < ChainHeaderSize {
		return ChainHeader{}, fmt.Errorf("%w: chain header needs %d bytes, got %d", ErrCorrupt, ChainHeaderSize, len(buf))
	}
	if magic := binary.LittleEndian.Uint32(buf[12:]); magic != chainMagic {
		return ChainHeader{}, fmt.Errorf("%w: bad chain magic %#x", ErrCorrupt, magic)
	}
	c := ChainHeader{
		Next:   binary.LittleEndian.Uint64(buf[0:]),
		Length: binary.LittleEndian.Uint32(buf[8:]),
	}
	if int(c.Length) > maxLength {
		return ChainHeader{}, fmt.Errorf("%w: chain chunk of %d bytes exceeds page capacity %d", ErrCorrupt, c.Length, maxLength)
	}
	return c, nil
}
