package codec_test

import (
	"fmt"
	"log"

	"github.com/ssargent/pagestore/pkg/codec"
)

// ExampleEncodeSlot shows how a record is framed inside a slot.
func ExampleEncodeSlot() {
	payload := []byte("john@example.com")
	h := codec.NewSlotHeader(1<<3|2, payload, true)
	buf := codec.EncodeSlot(h, payload)

	got, err := codec.DecodeSlotHeader(buf)
	if err != nil {
		log.Fatal(err)
	}
	if err := got.Verify(buf[codec.SlotHeaderSize:]); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Encoded %d bytes\n", len(buf))
	fmt.Printf("Record: %d\n", got.RecordID)
	fmt.Printf("Payload: %s\n", buf[codec.SlotHeaderSize:])

	// Output:
	// Encoded 40 bytes
	// Record: 10
	// Payload: john@example.com
}

// ExampleDecodeCatalog demonstrates a catalog snapshot round trip.
func ExampleDecodeCatalog() {
	c := &codec.Catalog{
		FreePages: []uint64{4},
		Shards: []codec.ShardState{{
			NextSeq:     2,
			CurrentPage: 0,
			Pages:       []uint64{0},
			Entries:     []codec.Entry{{ID: 8, Kind: codec.KindNull}},
		}},
	}

	got, err := codec.DecodeCatalog(c.Encode())
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Free pages: %v\n", got.FreePages)
	fmt.Printf("Entry %d is %s\n", got.Shards[0].Entries[0].ID, got.Shards[0].Entries[0].Kind)

	// Output:
	// Free pages: [4]
	// Entry 8 is null
}
