package aasym

import (
	"fmt"
	"sort"
	"strings"

	"shade/internal/shir"
)

// StmtSyms is the symbol record of one affine statement.
type StmtSyms struct {
	// Level is the lexical nesting depth of the statement.
	Level int

	Unique    Syms // symbols coalesced away on each destination element
	MergeRep  Syms // representative replacing Unique (at most one per element)
	NewDest   Syms // symbols introduced by the statement itself
	Dest      Syms // symbols reaching the destination
	MergeDest Syms // Dest with Unique replaced by MergeRep
	Src       []Syms
}

// NewStmtSyms sizes a record for a destination of size elements and the
// given operand sizes.
func NewStmtSyms(level, size int, srcSizes []int) *StmtSyms {
	ss := &StmtSyms{
		Level:     level,
		Unique:    NewSyms(size),
		MergeRep:  NewSyms(size),
		NewDest:   NewSyms(size),
		Dest:      NewSyms(size),
		MergeDest: NewSyms(size),
		Src:       make([]Syms, len(srcSizes)),
	}
	for k, n := range srcSizes {
		ss.Src[k] = NewSyms(n)
	}
	return ss
}

// Size returns the destination size.
func (ss *StmtSyms) Size() int { return len(ss.Dest) }

// MergeElem recomputes MergeDest[i] from Dest[i]. The merge only applies
// while the representative is still part of Dest[i] and the unique set
// still meets it; otherwise MergeDest[i] is Dest[i].
func (ss *StmtSyms) MergeElem(i int) IndexSet {
	dest := ss.Dest[i]
	rep := ss.MergeRep[i]
	if rep.Empty() || !rep.SubsetOf(dest) || !ss.Unique[i].Intersects(dest) {
		return dest.Clone()
	}
	return dest.Difference(ss.Unique[i]).Union(rep)
}

func (ss *StmtSyms) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<level=%d newdest=%s dest=%s", ss.Level, ss.NewDest, ss.Dest)
	if !ss.Unique.Empty() {
		fmt.Fprintf(&sb, " unique=%s rep=%s mergedest=%s", ss.Unique, ss.MergeRep, ss.MergeDest)
	}
	for k, src := range ss.Src {
		fmt.Fprintf(&sb, " src%d=%s", k, src)
	}
	sb.WriteByte('>')
	return sb.String()
}

// ProgramSyms is the final symbol table of a program.
type ProgramSyms struct {
	Inputs  map[shir.VarID]Syms
	Vars    map[shir.VarID]Syms
	Outputs map[shir.VarID]Syms
	Stmts   map[shir.StmtID]Syms // newdest per statement
	MaxSym  int
}

// NewProgramSyms returns an empty table.
func NewProgramSyms() *ProgramSyms {
	return &ProgramSyms{
		Inputs:  make(map[shir.VarID]Syms),
		Vars:    make(map[shir.VarID]Syms),
		Outputs: make(map[shir.VarID]Syms),
		Stmts:   make(map[shir.StmtID]Syms),
		MaxSym:  -1,
	}
}

// Lookup returns the storage symbols of v: Vars first, then Inputs.
func (ps *ProgramSyms) Lookup(v shir.VarID) (Syms, bool) {
	if s, ok := ps.Vars[v]; ok {
		return s, true
	}
	s, ok := ps.Inputs[v]
	return s, ok
}

// SortedVars returns the keys of m in increasing order.
func SortedVars(m map[shir.VarID]Syms) []shir.VarID {
	keys := make([]shir.VarID, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Dump writes a readable form of the table using p for variable names.
func (ps *ProgramSyms) Dump(p *shir.Program) string {
	var sb strings.Builder
	section := func(title string, m map[shir.VarID]Syms) {
		fmt.Fprintf(&sb, "%s:\n", title)
		for _, v := range SortedVars(m) {
			fmt.Fprintf(&sb, "  %s %s\n", p.VarName(v), m[v])
		}
	}
	section("inputs", ps.Inputs)
	section("vars", ps.Vars)
	section("outputs", ps.Outputs)
	fmt.Fprintf(&sb, "maxsym: %d\n", ps.MaxSym)
	return sb.String()
}
