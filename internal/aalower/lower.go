// Package aalower rewrites a placed program so it computes affine forms
// with regular operations only. Every affine variable keeps its center in
// place and gains error storage holding one coefficient per symbol.
package aalower

import (
	"context"
	"strconv"

	"shade/internal/aaplace"
	"shade/internal/aasym"
	"shade/internal/shir"
	"shade/internal/trace"
)

// Stats summarizes a lowering run.
type Stats struct {
	Lowered int // statements replaced
	Emitted int // regular statements emitted for them
	Storage int // error storage variables declared
}

// Lower consumes res and rewrites p in place. changed is false when p has
// no affine variables. The per-statement records of res are released
// whether or not lowering succeeds.
func Lower(ctx context.Context, p *shir.Program, res *aaplace.Result) (changed bool, layout Layout, err error) {
	var stats Stats
	return LowerStats(ctx, p, res, &stats)
}

// LowerStats is Lower with the run summary written to stats.
func LowerStats(ctx context.Context, p *shir.Program, res *aaplace.Result, stats *Stats) (changed bool, layout Layout, err error) {
	defer res.Release()

	tr := trace.FromContext(ctx)
	span := trace.Begin(tr, trace.ScopePass, "lower", trace.ParentSpan(ctx))
	*stats = Stats{}
	defer func() {
		detail := "ok"
		if err != nil {
			detail = "error"
		}
		span.WithExtra("lowered", strconv.Itoa(stats.Lowered)).
			WithExtra("emitted", strconv.Itoa(stats.Emitted)).
			WithExtra("storage", strconv.Itoa(stats.Storage))
		span.End(detail)
	}()
	defer aasym.RecoverICE("aalower", &err)

	if !aaplace.Affected(p) {
		return false, nil, nil
	}
	if res == nil || res.Syms == nil || res.Stmt == nil {
		aasym.ICE("program %s has affine values but no placement", p.Name)
	}

	l := newLowerer(p, res)
	before := len(p.Vars)
	l.allocStorage()
	stats.Storage = len(p.Vars) - before

	for i := range p.Nodes {
		n := &p.Nodes[i]
		if len(n.Stmts) == 0 {
			continue
		}
		out := make([]*shir.Stmt, 0, len(n.Stmts))
		for _, s := range n.Stmts {
			rec, ok := l.recs[s.ID]
			if !ok {
				if touchesAffine(p, s) {
					aasym.ICE("s%d %s touches affine values but has no symbol record", s.ID, s.Op)
				}
				out = append(out, s)
				continue
			}
			l.lowerStmt(s, rec)
			emitted := l.flush()
			if len(emitted) > 0 {
				emitted[0].Comment = p.FormatStmt(s)
			}
			out = append(out, emitted...)
			stats.Lowered++
			stats.Emitted += len(emitted)
		}
		n.Stmts = out
	}

	l.prologue()
	l.epilogue()
	for id := range l.layout {
		p.Var(id).Value = shir.ValueRegular
	}
	trace.Point(tr, trace.ScopeProgram, "lowered", p.Name,
		"stmts", stats.Lowered, "storage", stats.Storage)
	return true, l.layout, nil
}

func touchesAffine(p *shir.Program, s *shir.Stmt) bool {
	if p.IsAffine(s.Dest) {
		return true
	}
	for _, src := range s.Src {
		if p.IsAffine(src) {
			return true
		}
	}
	return false
}
