package aasym

import (
	"strconv"
	"strings"

	"golang.org/x/tools/container/intsets"
)

// IndexSet is a set of noise symbol indices.
//
// The algebra methods (Union, Intersect, Difference) never alias their
// receivers or arguments. The zero value is an empty set. Copying an
// IndexSet value shares storage with the original; use Clone before
// mutating a copy.
type IndexSet struct {
	bits *intsets.Sparse
}

// NewIndexSet returns a set holding the given indices.
func NewIndexSet(idx ...int) IndexSet {
	var s IndexSet
	for _, i := range idx {
		s.Add(i)
	}
	return s
}

func (s *IndexSet) ensure() *intsets.Sparse {
	if s.bits == nil {
		s.bits = new(intsets.Sparse)
	}
	return s.bits
}

// Add inserts idx and reports whether the set grew.
func (s *IndexSet) Add(idx int) bool {
	if idx < 0 {
		ICE("negative symbol index %d", idx)
	}
	return s.ensure().Insert(idx)
}

// Remove deletes idx and reports whether it was present.
func (s *IndexSet) Remove(idx int) bool {
	if s.bits == nil {
		return false
	}
	return s.bits.Remove(idx)
}

// UnionWith adds every member of other and reports whether the set grew.
func (s *IndexSet) UnionWith(other IndexSet) bool {
	if other.bits == nil || other.bits.IsEmpty() {
		return false
	}
	return s.ensure().UnionWith(other.bits)
}

// Clear removes every member.
func (s *IndexSet) Clear() {
	if s.bits != nil {
		s.bits.Clear()
	}
}

// Clone returns an independent copy.
func (s IndexSet) Clone() IndexSet {
	if s.bits == nil {
		return IndexSet{}
	}
	out := new(intsets.Sparse)
	out.Copy(s.bits)
	return IndexSet{bits: out}
}

// Len returns the number of members.
func (s IndexSet) Len() int {
	if s.bits == nil {
		return 0
	}
	return s.bits.Len()
}

// Empty reports whether the set has no members.
func (s IndexSet) Empty() bool {
	return s.bits == nil || s.bits.IsEmpty()
}

// Has reports whether idx is a member.
func (s IndexSet) Has(idx int) bool {
	return s.bits != nil && s.bits.Has(idx)
}

// Union returns s ∪ other.
func (s IndexSet) Union(other IndexSet) IndexSet {
	out := new(intsets.Sparse)
	switch {
	case s.bits != nil && other.bits != nil:
		out.Union(s.bits, other.bits)
	case s.bits != nil:
		out.Copy(s.bits)
	case other.bits != nil:
		out.Copy(other.bits)
	}
	return IndexSet{bits: out}
}

// Intersect returns s ∩ other.
func (s IndexSet) Intersect(other IndexSet) IndexSet {
	out := new(intsets.Sparse)
	if s.bits != nil && other.bits != nil {
		out.Intersection(s.bits, other.bits)
	}
	return IndexSet{bits: out}
}

// Difference returns s − other.
func (s IndexSet) Difference(other IndexSet) IndexSet {
	out := new(intsets.Sparse)
	switch {
	case s.bits != nil && other.bits != nil:
		out.Difference(s.bits, other.bits)
	case s.bits != nil:
		out.Copy(s.bits)
	}
	return IndexSet{bits: out}
}

// Intersects reports whether s ∩ other is non-empty.
func (s IndexSet) Intersects(other IndexSet) bool {
	if s.bits == nil || other.bits == nil {
		return false
	}
	return s.bits.Intersects(other.bits)
}

// SubsetOf reports whether every member of s is in other.
func (s IndexSet) SubsetOf(other IndexSet) bool {
	if s.Empty() {
		return true
	}
	if other.bits == nil {
		return false
	}
	return s.bits.SubsetOf(other.bits)
}

// Equal reports whether both sets hold the same members.
func (s IndexSet) Equal(other IndexSet) bool {
	if s.Empty() || other.Empty() {
		return s.Empty() && other.Empty()
	}
	return s.bits.Equals(other.bits)
}

// First returns the smallest member, or -1 when empty.
func (s IndexSet) First() int {
	if s.Empty() {
		return -1
	}
	return s.bits.Min()
}

// Last returns the most recently introduced (largest) member, or -1 when empty.
func (s IndexSet) Last() int {
	if s.Empty() {
		return -1
	}
	return s.bits.Max()
}

// Slice returns the members in increasing order.
func (s IndexSet) Slice() []int {
	if s.bits == nil {
		return nil
	}
	return s.bits.AppendTo(nil)
}

// Nth returns the n-th smallest member.
func (s IndexSet) Nth(n int) int {
	members := s.Slice()
	if n < 0 || n >= len(members) {
		ICE("symbol %d requested from a set of %d", n, len(members))
	}
	return members[n]
}

// Pos returns the rank of idx among the members, or -1 if absent.
func (s IndexSet) Pos(idx int) int {
	if !s.Has(idx) {
		return -1
	}
	pos := 0
	for _, m := range s.Slice() {
		if m == idx {
			return pos
		}
		pos++
	}
	return -1
}

func (s IndexSet) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, idx := range s.Slice() {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(idx))
	}
	sb.WriteByte('}')
	return sb.String()
}
