package aaplace

import (
	"fmt"

	"shade/internal/aasym"
	"shade/internal/shir"
	"shade/internal/trace"
)

// gather folds the statement records into the program symbol table.
func (pl *placer) gather() *aasym.ProgramSyms {
	ps := aasym.NewProgramSyms()
	for v, s := range pl.inputs {
		ps.Inputs[v] = s.Clone()
		ps.Vars[v] = s.Clone()
	}

	for _, id := range pl.order {
		s := pl.stmts[id]
		rec, ok := pl.recs[id]
		if !ok || !pl.destAffine(s) {
			continue
		}
		v := s.Dest.Var
		vs, ok := ps.Vars[v]
		if !ok {
			vs = aasym.NewSyms(pl.p.Var(v).Size)
			ps.Vars[v] = vs
		}
		vs.MaskMergeWith(pl.p.Indices(s.Dest), rec.MergeDest)
		ps.Stmts[id] = rec.NewDest.Clone()
		for i := range rec.MergeRep {
			if !rec.MergeRep[i].Empty() {
				pl.stats.Merged++
			}
		}
	}

	for i := range pl.p.Vars {
		v := &pl.p.Vars[i]
		if !v.Affine() {
			continue
		}
		if _, ok := ps.Vars[v.ID]; !ok {
			ps.Vars[v.ID] = aasym.NewSyms(v.Size)
		}
		if !v.Binding.IsOutput() {
			continue
		}
		out := aasym.NewSyms(v.Size)
		unassigned := 0
		defs := pl.chains.OutputDefs[v.ID]
		for e := range v.Size {
			if e >= len(defs) || len(defs[e]) == 0 {
				unassigned++
				continue
			}
			for _, d := range defs[e] {
				out[e].UnionWith(pl.defSyms(d))
			}
		}
		if unassigned > 0 {
			trace.Point(pl.tr, trace.ScopeProgram, "degraded", fmt.Sprintf("output %s never assigned", v.Name),
				"program", pl.p.Name, "elements", unassigned)
		}
		ps.Outputs[v.ID] = out
	}
	ps.MaxSym = pl.alloc.Max()
	return ps
}

// traceRecords reports every statement record at debug level.
func (pl *placer) traceRecords() {
	if !pl.tr.Enabled() || !pl.tr.Level().ShouldEmit(trace.ScopeStmt) {
		return
	}
	for _, id := range pl.order {
		rec, ok := pl.recs[id]
		if !ok {
			continue
		}
		s := pl.stmts[id]
		trace.Point(pl.tr, trace.ScopeStmt, "syms", pl.p.FormatStmt(s),
			"stmt", id, "level", rec.Level, "dest", rec.MergeDest.All().Len(), "rec", rec.String())
	}
}

// Affected reports whether placement would touch anything in p.
func Affected(p *shir.Program) bool {
	for i := range p.Vars {
		if p.Vars[i].Affine() {
			return true
		}
	}
	return false
}
