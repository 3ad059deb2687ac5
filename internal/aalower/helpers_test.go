package aalower_test

import (
	"context"
	"math"
	"testing"

	"shade/internal/aalower"
	"shade/internal/aaplace"
	"shade/internal/aasym"
	"shade/internal/eval"
	"shade/internal/shir"
)

// lower runs inference, placement and lowering on p.
func lower(t *testing.T, p *shir.Program, opts aaplace.Options) aalower.Layout {
	t.Helper()
	shir.InferValues(p)
	if err := shir.Validate(p); err != nil {
		t.Fatalf("validate: %v", err)
	}
	ctx := context.Background()
	res, _, err := aaplace.Place(ctx, p, aasym.NewAllocator(), opts)
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	changed, layout, err := aalower.Lower(ctx, p, res)
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	if !changed {
		t.Fatalf("Lower reported no change")
	}
	if err := shir.Validate(p); err != nil {
		t.Fatalf("lowered program invalid: %v", err)
	}
	return layout
}

// affineInput is the concrete form of one input: centers and, per element,
// coefficients in symbol order.
type affineInput struct {
	center []float64
	errs   [][]float64
}

// bind writes the inputs into the variables the layout gave them.
func bind(t *testing.T, p *shir.Program, layout aalower.Layout, in map[string]affineInput) map[string][]float64 {
	t.Helper()
	vals := make(map[string][]float64)
	for name, ai := range in {
		st, ok := layout.Lookup(name)
		if !ok {
			t.Fatalf("no storage for %s", name)
		}
		vals[name] = ai.center
		for e, coeffs := range ai.errs {
			syms := st.In.Syms[e].Slice()
			if len(syms) != len(coeffs) {
				t.Fatalf("%s[%d]: %d coefficients for symbols %v", name, e, len(coeffs), syms)
			}
			for k, sym := range syms {
				slot, _ := st.In.Slot(e, sym)
				vname := p.VarName(slot.Var)
				if vals[vname] == nil {
					vals[vname] = make([]float64, p.Var(slot.Var).Size)
				}
				vals[vname][slot.Swiz[0]] = coeffs[k]
			}
		}
	}
	return vals
}

// outForm reads element e of an affine output back as its center and
// coefficients by symbol.
func outForm(t *testing.T, p *shir.Program, layout aalower.Layout, res *eval.Result, name string, e int) (float64, map[int]float64) {
	t.Helper()
	st, ok := layout.Lookup(name)
	if !ok || st.Out == nil {
		t.Fatalf("%s has no output storage", name)
	}
	center := res.Get(name)[e]
	errs := make(map[int]float64)
	for _, sym := range st.Out.Syms[e].Slice() {
		slot, _ := st.Out.Slot(e, sym)
		errs[sym] = res.Get(p.VarName(slot.Var))[slot.Swiz[0]]
	}
	return center, errs
}

func radius(errs map[int]float64) float64 {
	r := 0.0
	for _, e := range errs {
		r += math.Abs(e)
	}
	return r
}

func near(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*(1+math.Abs(a)+math.Abs(b))
}
