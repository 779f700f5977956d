package store

import (
	"sort"

	"github.com/ssargent/pagestore/pkg/codec"
)

const (
	minSlot       = 32
	smallSlotStep = 16
	smallSlotMax  = 128
	// stepsPerDouble splits every power of two above smallSlotMax, bounding
	// internal waste to 12.5%.
	stepsPerDouble = 8
)

// sizeClasses is the ascending ladder of slot sizes for one page size. The
// last class is the page size itself.
type sizeClasses []int

func newSizeClasses(pageSize int) sizeClasses {
	var c sizeClasses
	for s := minSlot; s <= smallSlotMax && s <= pageSize; s += smallSlotStep {
		c = append(c, s)
	}
	for base := smallSlotMax; base < pageSize; base *= 2 {
		step := base / stepsPerDouble
		for s := base + step; s <= 2*base && s <= pageSize; s += step {
			c = append(c, s)
		}
	}
	return c
}

// classFor returns the smallest class holding a slot of n bytes, or false when
// n exceeds a page.
func (c sizeClasses) classFor(n int) (int, bool) {
	i := sort.SearchInts(c, n)
	if i == len(c) {
		return 0, false
	}
	return i, true
}

// largestFitting returns the largest class not above n.
func (c sizeClasses) largestFitting(n int) (int, bool) {
	i := sort.SearchInts(c, n+1) - 1
	if i < 0 {
		return 0, false
	}
	return i, true
}

func (c sizeClasses) size(class int) int {
	return c[class]
}

// slotSize is the number of bytes a payload of n bytes occupies in a slot.
func slotSize(n int) int {
	return codec.SlotHeaderSize + n
}

// chainPages returns how many whole pages an overflow record of n payload
// bytes needs.
func chainPages(n, pageSize int) int {
	chunk := pageSize - codec.ChainHeaderSize
	return (slotSize(n) + chunk - 1) / chunk
}
