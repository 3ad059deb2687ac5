package aaplace

import (
	"strconv"

	"shade/internal/aasym"
	"shade/internal/shir"
	"shade/internal/trace"
	"shade/internal/valtrack"
)

// symCount tracks how many live definitions reference each symbol. The
// symbols counted for a definition are remembered so they can be taken
// back exactly.
type symCount struct {
	n    map[int]int
	held map[valtrack.DefID]aasym.IndexSet
}

func newSymCount() *symCount {
	return &symCount{n: make(map[int]int), held: make(map[valtrack.DefID]aasym.IndexSet)}
}

func (c *symCount) inc(d valtrack.DefID, syms aasym.IndexSet) {
	if _, ok := c.held[d]; ok {
		return
	}
	c.held[d] = syms.Clone()
	for _, sym := range syms.Slice() {
		c.n[sym]++
	}
}

func (c *symCount) dec(d valtrack.DefID) {
	syms, ok := c.held[d]
	if !ok {
		return
	}
	delete(c.held, d)
	for _, sym := range syms.Slice() {
		if c.n[sym]--; c.n[sym] <= 0 {
			delete(c.n, sym)
		}
	}
}

// resync recounts every held definition from its current symbols.
func (c *symCount) resync(cur func(valtrack.DefID) aasym.IndexSet) {
	defs := make([]valtrack.DefID, 0, len(c.held))
	for d := range c.held {
		defs = append(defs, d)
	}
	for _, d := range defs {
		c.dec(d)
		c.inc(d, cur(d))
	}
}

// unique returns the symbols held by exactly one live definition.
func (c *symCount) unique(special aasym.IndexSet) aasym.IndexSet {
	var out aasym.IndexSet
	for sym, k := range c.n {
		if k == 1 && !special.Has(sym) {
			out.Add(sym)
		}
	}
	return out
}

// specialSyms are never coalesced: inputs keep their identity for the
// caller, and ERRFROM/LASTERR select terms by symbol.
func (pl *placer) specialSyms() aasym.IndexSet {
	out := pl.special.Clone()
	for id, rec := range pl.recs {
		switch pl.stmts[id].Op {
		case shir.OpErrFrom, shir.OpLastErr:
			out.UnionWith(rec.Src[1].All())
		}
	}
	return out
}

// mergeLoop alternates liveness and merge passes until a pass changes
// nothing or limit passes ran. It returns the number of passes.
func (pl *placer) mergeLoop(limit int) int {
	for pass := 1; pass <= limit; pass++ {
		live := pl.computeLiveness()
		pl.stats.MaxLive = 0
		for _, ld := range live {
			pl.stats.MaxLive = max(pl.stats.MaxLive, ld.In.Len())
		}
		changed := pl.mergePass(live)
		pl.checkMerged()
		trace.Point(pl.tr, trace.ScopeProgram, "merge", pl.p.Name,
			"pass", pass, "changed", strconv.FormatBool(changed), "max_live", pl.stats.MaxLive)
		if !changed {
			return pass
		}
	}
	trace.Point(pl.tr, trace.ScopeProgram, "merge-cap", pl.p.Name, "passes", limit)
	return limit
}

// mergePass scans each block once. It reports whether any statement
// gained unique symbols.
func (pl *placer) mergePass(live Liveness) bool {
	special := pl.specialSyms()
	changed := false
	for _, n := range pl.p.Reachable() {
		node := pl.p.Node(n)
		if len(node.Stmts) == 0 {
			continue
		}
		cnt := newSymCount()
		for _, d := range live[node.Stmts[0].ID].In.AppendTo(nil) {
			cnt.inc(valtrack.DefID(d), pl.defSyms(valtrack.DefID(d)))
		}
		for _, s := range node.Stmts {
			ld := live[s.ID]
			for _, d := range ld.Def.AppendTo(nil) {
				cnt.inc(valtrack.DefID(d), pl.defSyms(valtrack.DefID(d)))
			}
			for _, d := range ld.Dead.AppendTo(nil) {
				cnt.dec(valtrack.DefID(d))
			}
			rec, ok := pl.recs[s.ID]
			if !ok || !pl.destAffine(s) {
				continue
			}
			if !mergeStmt(rec, cnt.unique(special)) {
				continue
			}
			changed = true
			pl.updateDest(s, rec)
			pl.propagate(false)
			cnt.resync(pl.defSyms)
		}
	}
	return changed
}

// mergeStmt records unique symbols per destination element. An element
// needs at least two of them for a merge to shrink anything.
func mergeStmt(rec *aasym.StmtSyms, unique aasym.IndexSet) bool {
	changed := false
	for i := range rec.MergeDest {
		iu := unique.Intersect(rec.MergeDest[i])
		if iu.Len() < 2 {
			continue
		}
		// the representative itself must still be unique to absorb more
		rep := rec.MergeRep[i]
		if !rep.Empty() && !rep.SubsetOf(iu) {
			continue
		}
		if rec.Unique[i].UnionWith(iu) {
			changed = true
		}
		if rep.Empty() {
			rec.MergeRep[i] = aasym.NewIndexSet(iu.First())
		}
	}
	return changed
}

func (pl *placer) checkMerged() {
	for id, rec := range pl.recs {
		for i := range rec.MergeDest {
			if !rec.MergeDest[i].SubsetOf(rec.Dest[i]) {
				aasym.ICE("s%d[%d]: merged symbols %s outside dest %s", id, i, rec.MergeDest[i], rec.Dest[i])
			}
			if !rec.MergeRep[i].SubsetOf(rec.Unique[i]) {
				aasym.ICE("s%d[%d]: representative %s not among %s", id, i, rec.MergeRep[i], rec.Unique[i])
			}
		}
	}
}
