package aaplace

import (
	"shade/internal/aasym"
	"shade/internal/nest"
	"shade/internal/shir"
	"shade/internal/trace"
	"shade/internal/valtrack"
)

// placer is the state of one placement run.
type placer struct {
	p      *shir.Program
	tree   *nest.Tree
	chains *valtrack.Chains
	alloc  *aasym.Allocator
	tr     trace.Tracer

	stmts map[shir.StmtID]*shir.Stmt
	order []shir.StmtID // statements in node order
	recs  map[shir.StmtID]*aasym.StmtSyms

	inputs map[shir.VarID]aasym.Syms
	// levelSyms[l] holds every symbol introduced at nesting level l.
	levelSyms []aasym.IndexSet
	// special symbols are never coalesced.
	special aasym.IndexSet

	work worklist
	grew bool

	stats Stats
}

func newPlacer(p *shir.Program, tree *nest.Tree, chains *valtrack.Chains, alloc *aasym.Allocator, tr trace.Tracer) *placer {
	pl := &placer{
		p:         p,
		tree:      tree,
		chains:    chains,
		alloc:     alloc,
		tr:        tr,
		stmts:     make(map[shir.StmtID]*shir.Stmt),
		recs:      make(map[shir.StmtID]*aasym.StmtSyms),
		inputs:    make(map[shir.VarID]aasym.Syms),
		levelSyms: make([]aasym.IndexSet, tree.MaxDepth()+1),
		work:      newWorklist(),
	}
	p.Walk(func(_ *shir.Node, _ int, s *shir.Stmt) {
		pl.stmts[s.ID] = s
		pl.order = append(pl.order, s.ID)
	})
	return pl
}

func (pl *placer) destAffine(s *shir.Stmt) bool {
	return s.HasDest() && pl.p.IsAffine(s.Dest)
}

func (pl *placer) touchesAffine(s *shir.Stmt) bool {
	if pl.destAffine(s) {
		return true
	}
	for _, src := range s.Src {
		if pl.p.IsAffine(src) {
			return true
		}
	}
	return false
}

// newdestLevel is the level a statement's own symbols belong to. Escape
// joins introduce their symbol in the enclosing section.
func (pl *placer) newdestLevel(s *shir.Stmt, rec *aasym.StmtSyms) int {
	if s.Op == shir.OpEscJoin && rec.Level > 0 {
		return rec.Level - 1
	}
	return rec.Level
}

// allocate creates input tuples and one record per affine statement.
func (pl *placer) allocate(supplied map[shir.VarID]aasym.Syms) {
	affineInputs := pl.p.VarsBy(func(v *shir.Var) bool { return v.Binding.IsInput() && v.Affine() })

	for _, v := range affineInputs {
		s, ok := supplied[v]
		if !ok {
			continue
		}
		if s.Size() != pl.p.Var(v).Size {
			aasym.ICE("input %s: supplied %d symbol sets for %d elements", pl.p.VarName(v), s.Size(), pl.p.Var(v).Size)
		}
		pl.alloc.Reserve(s)
		pl.inputs[v] = s.Clone()
	}
	for _, v := range affineInputs {
		if _, ok := pl.inputs[v]; !ok {
			pl.inputs[v] = pl.alloc.FreshSyms(pl.p.Var(v).Size, 1)
		}
		all := pl.inputs[v].All()
		pl.levelSyms[0].UnionWith(all)
		pl.special.UnionWith(all)
	}

	for _, id := range pl.order {
		s := pl.stmts[id]
		if !pl.touchesAffine(s) {
			continue
		}
		if !pl.chains.Has(id) {
			aasym.ICE("s%d %s: no def-use chain", id, s.Op)
		}
		info, ok := shir.Info(s.Op)
		if !ok {
			aasym.ICE("s%d: operation %d has no combination policy", id, s.Op)
		}
		srcSizes := make([]int, len(s.Src))
		for k, src := range s.Src {
			srcSizes[k] = pl.p.Size(src)
		}
		size := 0
		if s.HasDest() {
			size = pl.p.Size(s.Dest)
		}
		rec := aasym.NewStmtSyms(pl.tree.Depth(id), size, srcSizes)
		if pl.destAffine(s) {
			rec.NewDest = pl.alloc.FreshSyms(size, info.Fresh)
			pl.levelSyms[pl.newdestLevel(s, rec)].UnionWith(rec.NewDest.All())
		}
		pl.recs[id] = rec
	}
}

func (pl *placer) symbolCount() int {
	var all aasym.IndexSet
	for _, l := range pl.levelSyms {
		all.UnionWith(l)
	}
	return all.Len()
}

// seed computes every destination once and queues all affine definitions.
func (pl *placer) seed() {
	pl.pushInputs()
	for _, id := range pl.order {
		if rec, ok := pl.recs[id]; ok && pl.destAffine(pl.stmts[id]) {
			pl.updateDest(pl.stmts[id], rec)
			pl.pushStmt(id)
		}
	}
}

func (pl *placer) pushInputs() {
	for _, v := range aasym.SortedVars(pl.inputs) {
		for _, d := range pl.chains.InputDefs[v] {
			pl.work.push(d)
		}
	}
}

func (pl *placer) pushStmt(id shir.StmtID) {
	for _, d := range pl.chains.StmtDefs[id] {
		pl.work.push(d)
	}
}

// srcElem reads element i of an operand tuple, broadcasting scalars.
func srcElem(s aasym.Syms, i int) aasym.IndexSet {
	if s.Size() == 1 {
		return s[0]
	}
	if i >= s.Size() {
		aasym.ICE("operand element %d of %d", i, s.Size())
	}
	return s[i]
}

// updateDest recomputes Dest and MergeDest of s from its sources and
// queues its definitions when MergeDest changed.
func (pl *placer) updateDest(s *shir.Stmt, rec *aasym.StmtSyms) {
	info, ok := shir.Info(s.Op)
	if !ok {
		aasym.ICE("s%d: operation %d has no combination policy", s.ID, s.Op)
	}
	changed := false
	for i := range rec.Dest {
		d := rec.NewDest[i].Clone()
		switch s.Op {
		case shir.OpErrFrom:
			d.UnionWith(srcElem(rec.Src[0], i).Intersect(rec.Src[1].All()))
		case shir.OpEscJoin:
			d.UnionWith(srcElem(rec.Src[0], i).Difference(pl.levelSyms[rec.Level]))
		default:
			switch info.ResolvedPolicy() {
			case shir.PolicyIgnore:
			case shir.PolicyLinear:
				for k := range rec.Src {
					if s.Op == shir.OpCond && k == 0 {
						continue
					}
					d.UnionWith(srcElem(rec.Src[k], i))
				}
			case shir.PolicyAll:
				for k := range rec.Src {
					d.UnionWith(rec.Src[k].All())
				}
			default:
				aasym.ICE("s%d %s: unhandled combination policy %s", s.ID, s.Op, info.Policy)
			}
		}
		rec.Dest[i] = d

		// A representative that left dest cannot stand for anything.
		if rep := rec.MergeRep[i]; !rep.Empty() && !rep.SubsetOf(d) {
			rec.MergeRep[i] = aasym.IndexSet{}
			rec.Unique[i] = aasym.IndexSet{}
		}
		if md := rec.MergeElem(i); !md.Equal(rec.MergeDest[i]) {
			rec.MergeDest[i] = md
			changed = true
		}
	}
	if changed {
		pl.grew = true
		pl.pushStmt(s.ID)
	}
}

// defSyms returns the symbols a definition carries.
func (pl *placer) defSyms(id valtrack.DefID) aasym.IndexSet {
	d := pl.chains.Defs[id]
	if d.Kind == valtrack.DefInput {
		if s, ok := pl.inputs[d.Var]; ok {
			return s[d.Elem]
		}
		return aasym.IndexSet{}
	}
	rec, ok := pl.recs[d.Stmt]
	if !ok {
		if pl.p.Var(d.Var).Affine() {
			aasym.ICE("s%d: affine definition without symbol record", d.Stmt)
		}
		return aasym.IndexSet{}
	}
	if d.Index >= rec.MergeDest.Size() {
		aasym.ICE("s%d: definition %d outside destination of %d", d.Stmt, d.Index, rec.MergeDest.Size())
	}
	return rec.MergeDest[d.Index]
}

// propagate drains the worklist. Forward mode grows operand sets by the
// symbols of the changed definition; backward mode recomputes them from
// every reaching definition.
func (pl *placer) propagate(forward bool) {
	for {
		id, ok := pl.work.pop()
		if !ok {
			return
		}
		syms := pl.defSyms(id)
		for _, u := range pl.chains.DefUse[id] {
			if u.Kind != valtrack.UseStmt {
				continue
			}
			rec, ok := pl.recs[u.Stmt]
			if !ok {
				aasym.ICE("s%d: use of affine %s without symbol record", u.Stmt, pl.p.VarName(u.Var))
			}
			if u.Source >= len(rec.Src) || u.Index >= rec.Src[u.Source].Size() {
				aasym.ICE("s%d: use src%d[%d] outside record", u.Stmt, u.Source, u.Index)
			}
			slot := &rec.Src[u.Source][u.Index]
			changed := false
			if forward {
				changed = slot.UnionWith(syms)
			} else {
				var fresh aasym.IndexSet
				for _, d := range pl.chains.SourceDefs(u.Stmt, u.Source, u.Index) {
					fresh.UnionWith(pl.defSyms(d))
				}
				if !fresh.Equal(*slot) {
					*slot = fresh
					changed = true
				}
			}
			if !changed {
				continue
			}
			if forward {
				pl.grew = true
			}
			if s := pl.stmts[u.Stmt]; pl.destAffine(s) {
				pl.updateDest(s, rec)
			}
		}
	}
}
