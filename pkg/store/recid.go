package store

import (
	"fmt"
	"strconv"
)

// RecordID identifies a record for its whole lifetime. The low
// ConcurrencyShift bits hold the shard index, the rest a per-shard sequence
// that starts at 1, so the zero RecordID is never issued.
type RecordID uint64

func makeRecordID(seq uint64, shard int, shift uint) RecordID {
	return RecordID(seq<<shift | uint64(shard))
}

func (id RecordID) shard(shift uint) int {
	return int(uint64(id) & (1<<shift - 1))
}

func (id RecordID) seq(shift uint) uint64 {
	return uint64(id) >> shift
}

func (id RecordID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseRecordID parses the decimal form produced by String.
func ParseRecordID(s string) (RecordID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("%w: invalid record id %q", ErrUnknownRecord, s)
	}
	return RecordID(v), nil
}
