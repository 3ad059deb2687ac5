// Package aaplace assigns noise symbols to every affine value of a program.
//
// Placement runs in stages over one program:
//
//  1. escape joins are inserted where affine values leave a lexical section
//  2. fresh symbols are allocated per statement and propagated forward
//     along def-use chains to a fixpoint
//  3. symbols referenced by a single live definition are coalesced and the
//     change is propagated backward, repeated until stable
//  4. the per-statement records are folded into a program symbol table
//
// The allocator and every intermediate record are owned by the caller's
// compilation; nothing here is shared between programs.
package aaplace

import (
	"context"
	"fmt"
	"strconv"

	"shade/internal/aasym"
	"shade/internal/nest"
	"shade/internal/shir"
	"shade/internal/trace"
	"shade/internal/valtrack"
)

// DefaultMaxMergePasses bounds the merge loop when Options leave it unset.
const DefaultMaxMergePasses = 64

// Options control placement.
type Options struct {
	// Hierarchical inserts escape joins at section boundaries.
	Hierarchical bool
	// Merge enables unique-symbol coalescing.
	Merge bool
	// MaxMergePasses caps the merge loop; <= 0 means DefaultMaxMergePasses.
	MaxMergePasses int
	// InputSyms supplies symbol tuples for affine inputs. Inputs not listed
	// get one fresh symbol per element.
	InputSyms map[shir.VarID]aasym.Syms
}

// DefaultOptions enables every stage.
func DefaultOptions() Options {
	return Options{Hierarchical: true, Merge: true, MaxMergePasses: DefaultMaxMergePasses}
}

// Stats summarizes a placement run.
type Stats struct {
	Records     int // statements carrying a symbol record
	Symbols     int // symbols allocated, inputs included
	MaxLive     int // largest live-in set seen by the last merge pass
	Merged      int // destination elements holding a merge
	MergePasses int
	Joins       int // escape joins inserted
}

// Result is the outcome of Place. Lowering consumes it once.
type Result struct {
	Syms   *aasym.ProgramSyms
	Stmt   map[shir.StmtID]*aasym.StmtSyms
	Tree   *nest.Tree
	Chains *valtrack.Chains
	Stats  Stats
}

// Release drops the per-statement records.
func (r *Result) Release() {
	if r == nil {
		return
	}
	r.Stmt = nil
	r.Chains = nil
	r.Tree = nil
}

// Place analyses p, which must have passed shir.Validate. changed reports
// whether statements were inserted. Contract violations abort with an
// error wrapping aasym.ErrICE.
func Place(ctx context.Context, p *shir.Program, alloc *aasym.Allocator, opts Options) (res *Result, changed bool, err error) {
	tr := trace.FromContext(ctx)
	span := trace.Begin(tr, trace.ScopePass, "place", trace.ParentSpan(ctx))
	defer func() {
		detail := "ok"
		if err != nil {
			detail = "error"
		}
		if res != nil {
			span.WithExtra("records", strconv.Itoa(res.Stats.Records)).
				WithExtra("syms", strconv.Itoa(res.Stats.Symbols)).
				WithExtra("merge_passes", strconv.Itoa(res.Stats.MergePasses))
		}
		span.End(detail)
	}()
	defer aasym.RecoverICE("aaplace", &err)

	if opts.MaxMergePasses <= 0 {
		opts.MaxMergePasses = DefaultMaxMergePasses
	}
	if alloc == nil {
		alloc = aasym.NewAllocator()
	}

	tree, err := nest.Build(p)
	if err != nil {
		return nil, false, fmt.Errorf("aaplace: %w", err)
	}
	joins := 0
	if opts.Hierarchical {
		chains := valtrack.Compute(p)
		joins = insertJoins(p, tree, chains)
		if joins > 0 {
			if tree, err = nest.Build(p); err != nil {
				return nil, false, fmt.Errorf("aaplace: after joins: %w", err)
			}
		}
		trace.Point(tr, trace.ScopeProgram, "joins", p.Name, "count", joins)
	}

	pl := newPlacer(p, tree, valtrack.Compute(p), alloc, tr)
	pl.allocate(opts.InputSyms)
	pl.seed()
	pl.propagate(true)

	passes := 0
	if opts.Merge {
		passes = pl.mergeLoop(opts.MaxMergePasses)
	}

	res = &Result{
		Syms:   pl.gather(),
		Stmt:   pl.recs,
		Tree:   tree,
		Chains: pl.chains,
	}
	res.Stats = pl.stats
	res.Stats.Records = len(pl.recs)
	res.Stats.Symbols = pl.symbolCount()
	res.Stats.MergePasses = passes
	res.Stats.Joins = joins
	pl.traceRecords()
	return res, joins > 0, nil
}

// Repropagate re-runs forward propagation over an already placed result
// and reports whether any symbol set grew. A fixpoint reports false.
func Repropagate(ctx context.Context, p *shir.Program, res *Result) (changed bool, err error) {
	defer aasym.RecoverICE("aaplace", &err)
	pl := newPlacer(p, res.Tree, res.Chains, aasym.NewAllocator(), trace.FromContext(ctx))
	pl.recs = res.Stmt
	pl.inputs = res.Syms.Inputs
	for _, s := range pl.inputs {
		pl.levelSyms[0].UnionWith(s.All())
	}
	for id, rec := range pl.recs {
		pl.levelSyms[pl.newdestLevel(pl.stmts[id], rec)].UnionWith(rec.NewDest.All())
	}
	pl.pushInputs()
	for _, id := range pl.order {
		if _, ok := pl.recs[id]; ok && pl.destAffine(pl.stmts[id]) {
			pl.pushStmt(id)
		}
	}
	pl.propagate(true)
	return pl.grew, nil
}
