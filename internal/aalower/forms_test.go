package aalower_test

import (
	"context"
	"strings"
	"testing"

	"shade/internal/aalower"
	"shade/internal/aaplace"
	"shade/internal/aasym"
	"shade/internal/eval"
	"shade/internal/shir"
)

func TestForms_IntervalRoundTrip(t *testing.T) {
	b := shir.NewBuilder("sub")
	x := b.Input("x", shir.ValueAffine, 1)
	y := b.Input("y", shir.ValueAffine, 1)
	out := b.Output("out", shir.ValueAffine, 1)
	y.Neg = true
	b.Emit(shir.OpAdd, out, x, y)
	p := b.Program()
	layout := lower(t, p, aaplace.DefaultOptions())

	in := make(map[string][]aalower.Form)
	for name, c := range map[string]float64{"x": 3, "y": 1} {
		st, ok := layout.Lookup(name)
		if !ok {
			t.Fatalf("no storage for %s", name)
		}
		forms, err := st.IntervalForms([]float64{c}, []float64{-0.5})
		if err != nil {
			t.Fatalf("IntervalForms %s: %v", name, err)
		}
		in[name] = forms
	}
	values := make(map[string][]float64)
	if err := layout.BindInputs(p, in, values); err != nil {
		t.Fatalf("BindInputs: %v", err)
	}
	res, err := eval.Run(p, values, eval.Options{})
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	forms, err := layout.ReadForms(p, "out", res.Values)
	if err != nil {
		t.Fatalf("ReadForms: %v", err)
	}
	lo, hi := forms[0].Bounds()
	if forms[0].Center != 2 || lo != 1 || hi != 3 {
		t.Errorf("out = %v in [%v, %v], want 2 in [1, 3]", forms[0].Center, lo, hi)
	}
}

func TestForms_RejectsMisuse(t *testing.T) {
	p := binaryProgram("add", shir.OpAdd)
	layout := lower(t, p, aaplace.DefaultOptions())
	st, _ := layout.Lookup("x")
	if _, err := st.IntervalForms([]float64{1, 2}, []float64{0, 0}); err == nil {
		t.Errorf("accepted two elements for a scalar")
	}
	err := layout.BindInputs(p, map[string][]aalower.Form{"out": {{}}}, map[string][]float64{})
	if err == nil || !strings.Contains(err.Error(), "not an affine input") {
		t.Errorf("bound an output: %v", err)
	}
	if _, err := layout.ReadForms(p, "x", map[string][]float64{}); err == nil {
		t.Errorf("read an input back as output")
	}
}

func TestForms_AttributeSplitsRadiusBySource(t *testing.T) {
	p := binaryProgram("mul", shir.OpMul)
	shir.InferValues(p)
	ctx := context.Background()
	placed, _, err := aaplace.Place(ctx, p, aasym.NewAllocator(), aaplace.DefaultOptions())
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	origins := aaplace.Origins(p, placed.Syms)
	_, layout, err := aalower.Lower(ctx, p, placed)
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}

	res, err := eval.Run(p, bind(t, p, layout, scalarInputs(2, 0.1, 3, 0.2)), eval.Options{})
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	forms, err := layout.ReadForms(p, "out", res.Values)
	if err != nil {
		t.Fatalf("ReadForms: %v", err)
	}
	shares := forms[0].Attribute(origins)
	if len(shares) != 3 {
		t.Fatalf("shares = %+v, want x, y and the product remainder", shares)
	}
	want := []struct {
		source string
		radius float64
	}{
		{"input y[0]", 0.4},
		{"input x[0]", 0.3},
		{"mul x, y", 0.02},
	}
	total := 0.0
	for i, w := range want {
		if !strings.Contains(shares[i].Origin.String(), w.source) || !near(shares[i].Radius, w.radius) {
			t.Errorf("share %d = %s %v, want %s %v", i, shares[i].Origin, shares[i].Radius, w.source, w.radius)
		}
		total += shares[i].Radius
	}
	if !near(total, forms[0].Radius()) {
		t.Errorf("shares sum to %v, radius is %v", total, forms[0].Radius())
	}
}

func TestForms_AttributeGroupsUnknownSymbols(t *testing.T) {
	f := aalower.Form{Center: 1, Coeffs: map[int]float64{4: -0.5, 9: 0.25, 11: 0}}
	shares := f.Attribute(nil)
	if len(shares) != 1 || !near(shares[0].Radius, 0.75) || len(shares[0].Syms) != 2 {
		t.Errorf("shares = %+v", shares)
	}
	if shares[0].Origin.Stmt != shir.NoStmtID || shares[0].Origin.Input != "" {
		t.Errorf("unknown symbols attributed to %+v", shares[0].Origin)
	}
}
