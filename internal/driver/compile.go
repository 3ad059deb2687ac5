// Package driver runs the affine pipeline over whole programs: value
// inference, validation, symbol placement and lowering, one program at a
// time or several concurrently.
package driver

import (
	"context"
	"fmt"

	"shade/internal/aalower"
	"shade/internal/aaplace"
	"shade/internal/aasym"
	"shade/internal/observ"
	"shade/internal/shir"
	"shade/internal/symdump"
	"shade/internal/trace"
)

// Options configures one compilation.
type Options struct {
	Place aaplace.Options
	// Inputs seeds affine inputs from a table saved by an earlier program.
	Inputs *symdump.Table
	// PlaceOnly stops after placement and leaves the program affine.
	PlaceOnly bool
	// Write stores a compiled batch item. Compile itself never calls it.
	Write func(name string, res *Result) error
}

// DefaultOptions enables every placement stage.
func DefaultOptions() Options {
	return Options{Place: aaplace.DefaultOptions()}
}

// Result describes one compiled program. Program is rewritten in place.
type Result struct {
	Program  *shir.Program
	Promoted []shir.VarID
	Syms     *aasym.ProgramSyms
	// Table is Syms keyed by variable name, captured before lowering.
	Table *symdump.Table
	// Origins names the input element or statement behind each symbol,
	// captured before lowering.
	Origins map[int]aaplace.Origin
	Place   aaplace.Stats
	Lower   aalower.Stats
	Layout  aalower.Layout
	Lowered bool
	Timings observ.Report
}

// Compile runs the pipeline on p with a fresh symbol allocator.
func Compile(ctx context.Context, p *shir.Program, opts Options) (*Result, error) {
	return compile(ctx, p, aasym.NewAllocator(), opts, nil)
}

type stageHook func(stage string)

func compile(ctx context.Context, p *shir.Program, alloc *aasym.Allocator, opts Options, hook stageHook) (res *Result, err error) {
	tr := trace.FromContext(ctx)
	span := trace.Begin(tr, trace.ScopeDriver, "compile", trace.ParentSpan(ctx)).WithExtra("program", p.Name)
	defer func() {
		detail := "ok"
		if err != nil {
			detail = "error"
		}
		span.End(detail)
	}()
	ctx = trace.WithSpan(ctx, span)
	if hook == nil {
		hook = func(string) {}
	}

	timer := observ.NewTimer()
	res = &Result{Program: p}
	defer func() { res.Timings = timer.Report() }()

	hook("place")
	err = timer.Time("validate", func() (string, error) {
		res.Promoted = shir.InferValues(p)
		if err := shir.Validate(p); err != nil {
			return "", err
		}
		return fmt.Sprintf("%d promoted", len(res.Promoted)), nil
	})
	if err != nil {
		return res, fmt.Errorf("%s: %w", p.Name, err)
	}

	placeOpts := opts.Place
	if opts.Inputs != nil {
		in, err := opts.Inputs.InputSyms(p)
		if err != nil {
			return res, fmt.Errorf("%s: input symbols: %w", p.Name, err)
		}
		placeOpts.InputSyms = in
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	var placed *aaplace.Result
	err = timer.Time("place", func() (string, error) {
		r, _, err := aaplace.Place(ctx, p, alloc, placeOpts)
		if err != nil {
			return "", err
		}
		placed = r
		return fmt.Sprintf("%d syms, %d records", r.Stats.Symbols, r.Stats.Records), nil
	})
	if err != nil {
		return res, fmt.Errorf("%s: %w", p.Name, err)
	}
	res.Syms = placed.Syms
	res.Place = placed.Stats
	res.Table = symdump.FromProgram(p, placed.Syms)
	res.Origins = aaplace.Origins(p, placed.Syms)
	if opts.PlaceOnly {
		placed.Release()
		return res, nil
	}
	if err := ctx.Err(); err != nil {
		placed.Release()
		return res, err
	}

	hook("lower")
	err = timer.Time("lower", func() (string, error) {
		changed, layout, err := aalower.LowerStats(ctx, p, placed, &res.Lower)
		if err != nil {
			return "", err
		}
		res.Lowered, res.Layout = changed, layout
		if !changed {
			return "regular", nil
		}
		return fmt.Sprintf("%d stmts, %d storage", res.Lower.Lowered, res.Lower.Storage), nil
	})
	if err != nil {
		return res, fmt.Errorf("%s: %w", p.Name, err)
	}
	if res.Lowered {
		if err := shir.Validate(p); err != nil {
			return res, fmt.Errorf("%s: lowered program: %w", p.Name, err)
		}
	}
	return res, nil
}
