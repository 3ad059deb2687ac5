package aalower_test

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"shade/internal/aalower"
	"shade/internal/aaplace"
	"shade/internal/aasym"
	"shade/internal/eval"
	"shade/internal/shir"
)

func scalarInputs(cx, rx, cy, ry float64) map[string]affineInput {
	return map[string]affineInput{
		"x": {center: []float64{cx}, errs: [][]float64{{rx}}},
		"y": {center: []float64{cy}, errs: [][]float64{{ry}}},
	}
}

func binaryProgram(name string, op shir.Op) *shir.Program {
	b := shir.NewBuilder(name)
	x := b.Input("x", shir.ValueAffine, 1)
	y := b.Input("y", shir.ValueAffine, 1)
	out := b.Output("out", shir.ValueAffine, 1)
	b.Emit(op, out, x, y)
	return b.Program()
}

func TestLower_AddIsExact(t *testing.T) {
	p := binaryProgram("add", shir.OpAdd)
	layout := lower(t, p, aaplace.DefaultOptions())

	res, err := eval.Run(p, bind(t, p, layout, scalarInputs(1.5, 0.25, -4, -0.5)), eval.Options{})
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	center, errs := outForm(t, p, layout, res, "out", 0)
	if center != -2.5 {
		t.Errorf("center = %v, want -2.5", center)
	}
	if r := radius(errs); r != 0.75 {
		t.Errorf("radius = %v, want exactly 0.75 (terms %v)", r, errs)
	}
	if len(errs) != 2 {
		t.Errorf("output carries %d symbols, want the two input symbols", len(errs))
	}
}

func rangesProgram() *shir.Program {
	b := shir.NewBuilder("ranges")
	x := b.Temp("xr", shir.ValueRegular, 1)
	y := b.Temp("yr", shir.ValueRegular, 1)
	out := b.Output("out", shir.ValueAffine, 1)
	b.Emit(shir.OpIval, x, b.Const(-2), b.Const(-1))
	b.Emit(shir.OpIval, y, b.Const(1), b.Const(2))
	b.Emit(shir.OpAdd, out, x, y)
	return b.Program()
}

func TestLower_DeclaredRanges(t *testing.T) {
	for _, opts := range []aaplace.Options{{}, aaplace.DefaultOptions()} {
		p := rangesProgram()
		layout := lower(t, p, opts)
		res, err := eval.Run(p, nil, eval.Options{})
		if err != nil {
			t.Fatalf("eval: %v", err)
		}
		center, errs := outForm(t, p, layout, res, "out", 0)
		if !near(center, 0) || !near(radius(errs), 1) {
			t.Errorf("merge=%v: out = %v +- %v, want 0 +- 1", opts.Merge, center, radius(errs))
		}
	}
}

func TestLower_MultiplyRemainder(t *testing.T) {
	p := binaryProgram("mul", shir.OpMul)
	layout := lower(t, p, aaplace.DefaultOptions())
	xs, _ := layout.Lookup("x")
	ys, _ := layout.Lookup("y")
	xSym := xs.In.Syms[0].First()
	ySym := ys.In.Syms[0].First()

	res, err := eval.Run(p, bind(t, p, layout, scalarInputs(2, 0.1, 3, 0.2)), eval.Options{})
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	center, errs := outForm(t, p, layout, res, "out", 0)
	if !near(center, 6) {
		t.Errorf("center = %v, want 6", center)
	}
	if !near(errs[xSym], 0.3) || !near(errs[ySym], 0.4) {
		t.Errorf("linear terms = %v, want x:0.3 y:0.4", errs)
	}
	if len(errs) != 3 {
		t.Fatalf("want one remainder symbol, got %v", errs)
	}
	for sym, e := range errs {
		if sym != xSym && sym != ySym && math.Abs(e) > 0.02+1e-12 {
			t.Errorf("remainder %v exceeds 0.02", e)
		}
	}
}

func chainProgram() *shir.Program {
	b := shir.NewBuilder("chain")
	x := b.Input("x", shir.ValueAffine, 1)
	y := b.Input("y", shir.ValueAffine, 1)
	out := b.Output("out", shir.ValueAffine, 2)
	sq := b.Temp("sq", shir.ValueAffine, 1)
	q := b.Temp("q", shir.ValueAffine, 1)
	r := b.Temp("r", shir.ValueAffine, 1)
	b.Emit(shir.OpMul, sq, x, x)
	b.Emit(shir.OpMul, q, sq, sq)
	b.Emit(shir.OpMad, q, q, y, sq)
	b.Emit(shir.OpSqrt, r, q)
	b.Section("tail", func() {
		b.Emit(shir.OpAdd, out.Swizzle(0), q, r)
		b.Emit(shir.OpRcp, out.Swizzle(1), r)
	})
	return b.Program()
}

func TestLower_MergeKeepsNumbers(t *testing.T) {
	in := scalarInputs(1.5, 0.2, 0.8, 0.1)
	type form struct {
		center, radius [2]float64
	}
	run := func(opts aaplace.Options) form {
		p := chainProgram()
		layout := lower(t, p, opts)
		res, err := eval.Run(p, bind(t, p, layout, in), eval.Options{})
		if err != nil {
			t.Fatalf("eval: %v", err)
		}
		var f form
		for e := range 2 {
			c, errs := outForm(t, p, layout, res, "out", e)
			f.center[e], f.radius[e] = c, radius(errs)
		}
		return f
	}
	merged := run(aaplace.DefaultOptions())
	plain := run(aaplace.Options{Hierarchical: true})
	for e := range 2 {
		if !near(merged.center[e], plain.center[e]) || !near(merged.radius[e], plain.radius[e]) {
			t.Errorf("out[%d]: merged %v +- %v, unmerged %v +- %v",
				e, merged.center[e], merged.radius[e], plain.center[e], plain.radius[e])
		}
	}
}

func TestLower_ProducesRegularProgram(t *testing.T) {
	p := chainProgram()
	layout := lower(t, p, aaplace.DefaultOptions())
	for i := range p.Vars {
		if p.Vars[i].Affine() {
			t.Errorf("%s is still affine", p.Vars[i].Name)
		}
	}
	p.Walk(func(_ *shir.Node, _ int, s *shir.Stmt) {
		if info, _ := shir.Info(s.Op); info.Has(shir.FlagAffineOnly) {
			t.Errorf("affine-only op survived: %s", p.FormatStmt(s))
		}
	})
	for _, name := range []string{"x", "y", "out", "sq", "q", "r"} {
		if _, ok := layout.Lookup(name); !ok {
			t.Errorf("layout lacks %s", name)
		}
	}
	out, _ := layout.Lookup("out")
	if out.Out == nil || out.Internal == out.Out {
		t.Errorf("output needs separate caller-visible storage")
	}
	x, _ := layout.Lookup("x")
	if x.In != x.Internal || !x.In.Packed {
		t.Errorf("scalar input should read its packed storage directly")
	}
	if n := p.Node(p.Node(p.Entry).Follower); n.Name != "aa.prologue" {
		t.Errorf("entry falls through to %s, want the prologue", n.Name)
	}
}

func TestLower_RegularProgramUntouched(t *testing.T) {
	b := shir.NewBuilder("plain")
	x := b.Input("x", shir.ValueRegular, 1)
	y := b.Output("y", shir.ValueRegular, 1)
	b.Emit(shir.OpSqrt, y, x)
	p := b.Program()
	changed, layout, err := aalower.Lower(context.Background(), p, nil)
	if err != nil || changed || layout != nil {
		t.Fatalf("Lower = %v, %v, %v", changed, layout, err)
	}
}

func TestLower_MissingRecordIsICE(t *testing.T) {
	p := binaryProgram("norec", shir.OpAdd)
	res, _, err := aaplace.Place(context.Background(), p, aasym.NewAllocator(), aaplace.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	for id := range res.Stmt {
		delete(res.Stmt, id)
	}
	_, _, err = aalower.Lower(context.Background(), p, res)
	if !errors.Is(err, aasym.ErrICE) {
		t.Fatalf("expected ICE, got %v", err)
	}
	if res.Stmt != nil {
		t.Errorf("records must be released even on failure")
	}
}

type enclosureCase struct {
	name           string
	cx, rx, cy, ry float64
	build          func(b *shir.Builder, x, y, out shir.Operand)
	f              func(x, y float64) float64
}

func unary(op shir.Op) func(b *shir.Builder, x, y, out shir.Operand) {
	return func(b *shir.Builder, x, _, out shir.Operand) { b.Emit(op, out, x) }
}

func binary(op shir.Op) func(b *shir.Builder, x, y, out shir.Operand) {
	return func(b *shir.Builder, x, y, out shir.Operand) { b.Emit(op, out, x, y) }
}

func b2f(v bool) float64 {
	if v {
		return 1
	}
	return 0
}

var enclosureCases = []enclosureCase{
	{"mul", 2, 0.5, -1, 0.3, binary(shir.OpMul), func(x, y float64) float64 { return x * y }},
	{"div", 1.5, 0.5, 0.75, 0.25, binary(shir.OpDiv), func(x, y float64) float64 { return x / y }},
	{"pow", 1.5, 0.5, 0.75, 0.25, binary(shir.OpPow), math.Pow},
	{"mad", 1, 0.5, -2, 0.5, func(b *shir.Builder, x, y, out shir.Operand) {
		b.Emit(shir.OpMad, out, x, y, x)
	}, func(x, y float64) float64 { return x*y + x }},
	{"lrp", 1, 0.5, 0.5, 0.5, func(b *shir.Builder, x, y, out shir.Operand) {
		b.Emit(shir.OpLrp, out, y, x, b.Const(0.5))
	}, func(x, y float64) float64 { return y*(x-0.5) + 0.5 }},
	{"rcp+", 1.5, 0.5, 0, 0, unary(shir.OpRcp), func(x, _ float64) float64 { return 1 / x }},
	{"rcp-", -1.5, 0.5, 0, 0, unary(shir.OpRcp), func(x, _ float64) float64 { return 1 / x }},
	{"rcp0", 0.2, 1, 0, 0, unary(shir.OpRcp), func(x, _ float64) float64 { return 1 / x }},
	{"rsq", 1.5, 0.5, 0, 0, unary(shir.OpRsq), func(x, _ float64) float64 { return 1 / math.Sqrt(x) }},
	{"sqrt0", 0.5, 0.5, 0, 0, unary(shir.OpSqrt), func(x, _ float64) float64 { return math.Sqrt(x) }},
	{"sqrt", 2.5, 1.5, 0, 0, unary(shir.OpSqrt), func(x, _ float64) float64 { return math.Sqrt(x) }},
	{"exp", 0, 1, 0, 0, unary(shir.OpExp), func(x, _ float64) float64 { return math.Exp(x) }},
	{"exp2", 0, 1, 0, 0, unary(shir.OpExp2), func(x, _ float64) float64 { return math.Exp2(x) }},
	{"exp10", 0, 0.5, 0, 0, unary(shir.OpExp10), func(x, _ float64) float64 { return math.Pow(10, x) }},
	{"log", 1.5, 0.5, 0, 0, unary(shir.OpLog), func(x, _ float64) float64 { return math.Log(x) }},
	{"log2", 2.25, 1.75, 0, 0, unary(shir.OpLog2), func(x, _ float64) float64 { return math.Log2(x) }},
	{"log10", 5.5, 4.5, 0, 0, unary(shir.OpLog10), func(x, _ float64) float64 { return math.Log10(x) }},
	{"flr", 1.5, 0.5, 0, 0, unary(shir.OpFlr), func(x, _ float64) float64 { return math.Floor(x) }},
	{"flr-exact", 1.5, 0.3, 0, 0, unary(shir.OpFlr), func(x, _ float64) float64 { return math.Floor(x) }},
	{"frac-exact", 1.5, 0.3, 0, 0, unary(shir.OpFrac), func(x, _ float64) float64 { return x - math.Floor(x) }},
	{"frac", 1.5, 1, 0, 0, unary(shir.OpFrac), func(x, _ float64) float64 { return x - math.Floor(x) }},
	{"abs", 0.5, 1.5, 0, 0, unary(shir.OpAbs), func(x, _ float64) float64 { return math.Abs(x) }},
	{"abs-", -1.5, 0.5, 0, 0, unary(shir.OpAbs), func(x, _ float64) float64 { return math.Abs(x) }},
	{"pos", 0.5, 1.5, 0, 0, unary(shir.OpPos), func(x, _ float64) float64 { return math.Max(x, 0) }},
	{"min", 1, 0.5, 1.2, 0.5, binary(shir.OpMin), math.Min},
	{"max", 3, 0.5, 1, 0.5, binary(shir.OpMax), math.Max},
	{"slt", 1, 0.5, 1.2, 0.5, binary(shir.OpSlt), func(x, y float64) float64 { return b2f(x < y) }},
	{"sge", 3, 0.5, 1, 0.5, binary(shir.OpSge), func(x, y float64) float64 { return b2f(x >= y) }},
	{"escape", 2, 0.5, 1, 0.25, func(b *shir.Builder, x, y, out shir.Operand) {
		t := b.Temp("t", shir.ValueAffine, 1)
		b.Section("inner", func() {
			b.Emit(shir.OpMul, t, x, y)
			b.Emit(shir.OpSqrt, t, t)
		})
		b.Emit(shir.OpAdd, out, t, x)
	}, func(x, y float64) float64 { return math.Sqrt(x*y) + x }},
}

func TestLower_EnclosesConcreteValues(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, tc := range enclosureCases {
		t.Run(tc.name, func(t *testing.T) {
			b := shir.NewBuilder(tc.name)
			x := b.Input("x", shir.ValueAffine, 1)
			y := b.Input("y", shir.ValueAffine, 1)
			out := b.Output("out", shir.ValueAffine, 1)
			tc.build(b, x, y, out)
			p := b.Program()
			layout := lower(t, p, aaplace.DefaultOptions())

			res, err := eval.Run(p, bind(t, p, layout, scalarInputs(tc.cx, tc.rx, tc.cy, tc.ry)), eval.Options{})
			if err != nil {
				t.Fatalf("eval: %v", err)
			}
			center, errs := outForm(t, p, layout, res, "out", 0)
			r := radius(errs)
			if math.IsNaN(center) || math.IsNaN(r) {
				t.Fatalf("out = %v +- %v", center, r)
			}

			noise := []float64{-1, -0.5, 0, 0.5, 1}
			for range 20 {
				noise = append(noise, 2*rng.Float64()-1)
			}
			for _, ex := range noise {
				for _, ey := range noise {
					v := tc.f(tc.cx+tc.rx*ex, tc.cy+tc.ry*ey)
					tol := 1e-9 * (1 + math.Abs(v) + r)
					if v < center-r-tol || v > center+r+tol {
						t.Fatalf("f(%v, %v) = %v outside %v +- %v",
							tc.cx+tc.rx*ex, tc.cy+tc.ry*ey, v, center, r)
					}
				}
			}
		})
	}
}
