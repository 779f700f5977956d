package store

// freeIndex keeps released slot offsets per size class. It has no locking of
// its own; callers hold the owning shard lock.
type freeIndex struct {
	stacks map[int][]int64
	count  int
}

func newFreeIndex() *freeIndex {
	return &freeIndex{stacks: make(map[int][]int64)}
}

// release pushes offset on the stack of class.
func (f *freeIndex) release(offset int64, class int) {
	f.stacks[class] = append(f.stacks[class], offset)
	f.count++
}

// acquire pops the most recently released offset of class.
func (f *freeIndex) acquire(class int) (int64, bool) {
	s := f.stacks[class]
	if len(s) == 0 {
		return 0, false
	}
	off := s[len(s)-1]
	if len(s) == 1 {
		delete(f.stacks, class)
	} else {
		f.stacks[class] = s[:len(s)-1]
	}
	f.count--
	return off, true
}

func (f *freeIndex) len() int {
	return f.count
}

// each calls fn for every free offset.
func (f *freeIndex) each(fn func(offset int64, class int)) {
	for class, s := range f.stacks {
		for _, off := range s {
			fn(off, class)
		}
	}
}
