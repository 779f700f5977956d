package codec

import (
	"errors"
	"testing"
)

func testSuperblock() *Superblock {
	s := &Superblock{
		Format:           FormatVersion,
		Flags:            SuperFlagChecksum,
		Version:          7,
		PageSize:         1 << 20,
		ConcurrencyShift: 3,
		PageCount:        12,
		CatalogPage:      10,
		CatalogPages:     2,
		CatalogLength:    1500000,
		CatalogChecksum:  0xdeadbeef,
	}
	copy(s.StoreID[:], "2ZDQ5ixxg0EkzdSt9qJm")
	return s
}

func TestSuperblock_RoundTrip(t *testing.T) {
	s := testSuperblock()
	buf := s.Encode()
	if len(buf) != SuperblockSize {
		t.Fatalf("encoded length = %d, want %d", len(buf), SuperblockSize)
	}

	got, err := DecodeSuperblock(buf)
	if err != nil {
		t.Fatalf("DecodeSuperblock failed: %v", err)
	}
	if *got != *s {
		t.Errorf("superblock = %+v, want %+v", got, s)
	}
	if got.Slot() != 1 {
		t.Errorf("version 7 should live in slot 1, got %d", got.Slot())
	}
	if !got.HasCatalog() {
		t.Error("expected catalog")
	}
}

func TestSuperblock_DetectsCorruption(t *testing.T) {
	buf := testSuperblock().Encode()

	for _, pos := range []int{0, 5, 16, 40, 90, SuperblockSize - 1} {
		bad := append([]byte(nil), buf...)
		bad[pos] ^= 0x40
		if _, err := DecodeSuperblock(bad); !errors.Is(err, ErrCorrupt) {
			t.Errorf("flip at %d: expected ErrCorrupt, got %v", pos, err)
		}
	}

	if _, err := DecodeSuperblock(buf[:64]); !errors.Is(err, ErrCorrupt) {
		t.Errorf("expected ErrCorrupt for short buffer, got %v", err)
	}
}

func TestSuperblock_RejectsFormat(t *testing.T) {
	s := testSuperblock()
	s.Format = FormatVersion + 1
	if _, err := DecodeSuperblock(s.Encode()); !errors.Is(err, ErrCorrupt) {
		t.Errorf("expected ErrCorrupt for future format, got %v", err)
	}
}

func TestIsZero(t *testing.T) {
	if !IsZero(make([]byte, SuperblockSize)) {
		t.Error("zeroed buffer should be zero")
	}
	if !IsZero(nil) {
		t.Error("nil buffer should be zero")
	}
	if IsZero(testSuperblock().Encode()) {
		t.Error("encoded superblock should not be zero")
	}
}
