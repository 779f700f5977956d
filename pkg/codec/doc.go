// Package codec defines the on-volume binary layout of the page store.
//
// Every integer is little-endian. The volume is laid out as:
//
//	[StartOffset bytes owned by the caller]
//	[superblock slot 0 (4 KiB)][superblock slot 1 (4 KiB)]
//	[page 0][page 1]...[page N-1]
//
// # Slots
//
// Records that fit in a page are stored inline in a slot. A slot starts with a
// 24 byte header followed by the payload; the slot itself is rounded up to a
// size class by the engine:
//
//	[RecordID(8)][Size(4)][Flags(4)][Checksum(8)][payload]
//
// Checksum is the xxhash64 of the payload when FlagChecksum is set, otherwise
// zero. The record id is kept in the header so that a slot can be matched
// against the directory entry pointing at it.
//
// # Overflow chains
//
// Records larger than a page are split over whole pages. Each chain page
// begins with a 16 byte header:
//
//	[Next(8)][Length(4)][Magic(4)]
//
// Next is the index of the following page or NoPage on the last page. The
// concatenation of all chunks is a slot header (with FlagChained) followed by
// the payload.
//
// # Superblock
//
// The durable head. Two copies are kept in alternating slots; a commit writes
// version v+1 into the slot not holding v, so a torn write never destroys the
// last good head:
//
//	[Magic(4)][CRC32(4)][Format(4)][Flags(4)][Version(8)]
//	[PageSize(4)][Shift(4)][StoreID(20)][PageCount(8)]
//	[CatalogPage(8)][CatalogPages(8)][CatalogLength(8)][CatalogChecksum(8)]
//
// The CRC32 covers every byte after the CRC field.
//
// # Catalog
//
// The catalog is the snapshot written on every commit: free whole pages, and
// per shard its id sequence, owned pages, allocation cursor, free slot lists
// and directory entries. It is stored in a contiguous run of pages and
// protected by the xxhash64 checksum recorded in the superblock.
//
// # Error Handling
//
// Decoders never trust lengths read from the volume: every count is checked
// against the remaining input before anything is allocated, and all failures
// wrap ErrCorrupt.
package codec
