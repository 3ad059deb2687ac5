package aasym

import "strings"

// Syms holds one index set per tuple element.
type Syms []IndexSet

// NewSyms returns a tuple of size empty sets.
func NewSyms(size int) Syms {
	return make(Syms, size)
}

// Size returns the number of tuple elements.
func (s Syms) Size() int { return len(s) }

// Clone returns an independent copy.
func (s Syms) Clone() Syms {
	out := make(Syms, len(s))
	for i := range s {
		out[i] = s[i].Clone()
	}
	return out
}

func (s Syms) checkSize(other Syms, op string) {
	if len(s) != len(other) {
		ICE("symbol tuple %s: size %d vs %d", op, len(s), len(other))
	}
}

// Union returns the elementwise union.
func (s Syms) Union(other Syms) Syms {
	s.checkSize(other, "union")
	out := make(Syms, len(s))
	for i := range s {
		out[i] = s[i].Union(other[i])
	}
	return out
}

// Intersect returns the elementwise intersection.
func (s Syms) Intersect(other Syms) Syms {
	s.checkSize(other, "intersect")
	out := make(Syms, len(s))
	for i := range s {
		out[i] = s[i].Intersect(other[i])
	}
	return out
}

// Difference returns the elementwise difference.
func (s Syms) Difference(other Syms) Syms {
	s.checkSize(other, "difference")
	out := make(Syms, len(s))
	for i := range s {
		out[i] = s[i].Difference(other[i])
	}
	return out
}

// UnionWith grows s in place and reports whether any element changed.
func (s Syms) UnionWith(other Syms) bool {
	s.checkSize(other, "union")
	changed := false
	for i := range s {
		if s[i].UnionWith(other[i]) {
			changed = true
		}
	}
	return changed
}

// All returns the union of every element.
func (s Syms) All() IndexSet {
	var out IndexSet
	for i := range s {
		out.UnionWith(s[i])
	}
	return out
}

// Last returns, per element, the singleton of its most recent symbol
// (empty for empty elements).
func (s Syms) Last() Syms {
	out := make(Syms, len(s))
	for i := range s {
		if last := s[i].Last(); last >= 0 {
			out[i] = NewIndexSet(last)
		}
	}
	return out
}

// First returns, per element, the singleton of its smallest symbol.
func (s Syms) First() Syms {
	out := make(Syms, len(s))
	for i := range s {
		if first := s[i].First(); first >= 0 {
			out[i] = NewIndexSet(first)
		}
	}
	return out
}

// IsSingles reports whether every element holds exactly one symbol.
func (s Syms) IsSingles() bool {
	for i := range s {
		if s[i].Len() != 1 {
			return false
		}
	}
	return true
}

// Empty reports whether no element holds a symbol.
func (s Syms) Empty() bool {
	for i := range s {
		if !s[i].Empty() {
			return false
		}
	}
	return true
}

// Equal reports elementwise equality.
func (s Syms) Equal(other Syms) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if !s[i].Equal(other[i]) {
			return false
		}
	}
	return true
}

// SubsetOf reports whether every element of s is a subset of the matching
// element of other.
func (s Syms) SubsetOf(other Syms) bool {
	s.checkSize(other, "subset")
	for i := range s {
		if !s[i].SubsetOf(other[i]) {
			return false
		}
	}
	return true
}

// Swizzle returns the tuple read through swiz: result[i] = s[swiz[i]].
func (s Syms) Swizzle(swiz []int) Syms {
	out := make(Syms, len(swiz))
	for i, idx := range swiz {
		if idx < 0 || idx >= len(s) {
			ICE("swizzle index %d out of range for %d elements", idx, len(s))
		}
		out[i] = s[idx].Clone()
	}
	return out
}

// Merge returns s with result[i] |= other[swiz[i]].
func (s Syms) Merge(swiz []int, other Syms) Syms {
	if len(swiz) != len(s) {
		ICE("merge swizzle size %d for %d elements", len(swiz), len(s))
	}
	out := s.Clone()
	for i, idx := range swiz {
		if idx < 0 || idx >= len(other) {
			ICE("merge index %d out of range for %d elements", idx, len(other))
		}
		out[i].UnionWith(other[idx])
	}
	return out
}

// MaskMerge returns s with result[swiz[i]] |= other[i]. Positions of s
// named twice by swiz receive the union of both sources.
func (s Syms) MaskMerge(swiz []int, other Syms) Syms {
	out := s.Clone()
	out.MaskMergeWith(swiz, other)
	return out
}

// MaskMergeWith is the in-place form of MaskMerge; it reports growth.
func (s Syms) MaskMergeWith(swiz []int, other Syms) bool {
	if len(swiz) != len(other) {
		ICE("mask merge swizzle size %d for %d source elements", len(swiz), len(other))
	}
	changed := false
	for i, idx := range swiz {
		if idx < 0 || idx >= len(s) {
			ICE("mask merge index %d out of range for %d elements", idx, len(s))
		}
		if s[idx].UnionWith(other[i]) {
			changed = true
		}
	}
	return changed
}

func (s Syms) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i := range s {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(s[i].String())
	}
	sb.WriteByte(']')
	return sb.String()
}
