package aasym

// Allocator hands out symbol indices for one compilation. Indices are never
// reused; independent compilations use independent allocators.
type Allocator struct {
	next int
}

// NewAllocator returns an allocator whose first symbol is 0.
func NewAllocator() *Allocator { return &Allocator{} }

// Next returns the index the next Fresh call will produce.
func (a *Allocator) Next() int { return a.next }

// Max returns the largest index handed out so far, or -1.
func (a *Allocator) Max() int { return a.next - 1 }

// Fresh returns a new symbol index.
func (a *Allocator) Fresh() int {
	idx := a.next
	a.next++
	return idx
}

// FreshSet returns a set of n new symbols.
func (a *Allocator) FreshSet(n int) IndexSet {
	var s IndexSet
	for range n {
		s.Add(a.Fresh())
	}
	return s
}

// FreshSyms returns a tuple of size elements holding perElem new symbols each.
func (a *Allocator) FreshSyms(size, perElem int) Syms {
	out := NewSyms(size)
	for i := range out {
		out[i] = a.FreshSet(perElem)
	}
	return out
}

// Reserve makes sure later symbols are larger than every index in syms,
// so caller-supplied tuples never collide with fresh ones.
func (a *Allocator) Reserve(syms Syms) {
	for i := range syms {
		if last := syms[i].Last(); last >= a.next {
			a.next = last + 1
		}
	}
}
