package driver_test

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"

	"shade/internal/buildpipeline"
	"shade/internal/driver"
	"shade/internal/eval"
	"shade/internal/shir"
	"shade/internal/symdump"
)

func shade(name string) *shir.Program {
	b := shir.NewBuilder(name)
	x := b.Input("x", shir.ValueAffine, 2)
	c := b.Input("c", shir.ValueRegular, 1)
	out := b.Output("out", shir.ValueAffine, 2)
	t := b.Temp("t", shir.ValueRegular, 2)
	b.Emit(shir.OpMul, t, x, x.Swizzle(1, 0))
	b.If(c, func() {
		b.Emit(shir.OpRcp, t.Swizzle(0), t.Swizzle(1))
	}, nil)
	b.Section("tail", func() {
		b.Emit(shir.OpAdd, out, t, b.Const(0.5))
	})
	return b.Program()
}

func broken(name string) *shir.Program {
	b := shir.NewBuilder(name)
	x := b.Input("x", shir.ValueAffine, 1)
	out := b.Output("out", shir.ValueAffine, 1)
	b.If(x, func() { b.Emit(shir.OpAsn, out, x) }, nil)
	return b.Program()
}

func TestCompile_LowersToRegularProgram(t *testing.T) {
	p := shade("shade")
	res, err := driver.Compile(context.Background(), p, driver.DefaultOptions())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !res.Lowered || res.Layout == nil {
		t.Fatalf("program was not lowered")
	}
	if len(res.Promoted) != 1 || p.VarName(res.Promoted[0]) != "t" {
		t.Errorf("promoted = %v, want [t]", res.Promoted)
	}
	for i := range p.Vars {
		if p.Vars[i].Affine() {
			t.Errorf("%s is still affine", p.Vars[i].Name)
		}
	}
	if _, ok := res.Table.Outputs["out"]; !ok {
		t.Errorf("symbol table lacks out: %+v", res.Table.Outputs)
	}
	xID, _ := p.LookupVar("x")
	for _, sym := range res.Syms.Inputs[xID].All().Slice() {
		if o := res.Origins[sym]; o.Input != "x" {
			t.Errorf("symbol %d of x attributed to %v", sym, o)
		}
	}
	if res.Place.Symbols == 0 || res.Lower.Lowered == 0 {
		t.Errorf("stats = %+v / %+v", res.Place, res.Lower)
	}
	var names []string
	for _, ph := range res.Timings.Phases {
		names = append(names, ph.Name)
	}
	if strings.Join(names, ",") != "validate,place,lower" {
		t.Errorf("phases = %v", names)
	}
	if _, err := eval.Run(p, nil, eval.Options{}); err != nil {
		t.Errorf("lowered program does not run: %v", err)
	}
}

func TestCompile_PlaceOnlyKeepsAffineProgram(t *testing.T) {
	p := shade("placed")
	opts := driver.DefaultOptions()
	opts.PlaceOnly = true
	res, err := driver.Compile(context.Background(), p, opts)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if res.Lowered || res.Syms == nil {
		t.Fatalf("lowered = %v, syms = %v", res.Lowered, res.Syms)
	}
	if x, _ := p.LookupVar("x"); !p.Var(x).Affine() {
		t.Errorf("x lost its affine type")
	}
}

func TestCompile_ReportsInvalidProgram(t *testing.T) {
	_, err := driver.Compile(context.Background(), broken("broken"), driver.DefaultOptions())
	if err == nil || !strings.Contains(err.Error(), "edge condition must be a regular scalar") {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCompile_ChainsInputSymbols(t *testing.T) {
	prod, err := driver.Compile(context.Background(), shade("producer"), driver.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}

	b := shir.NewBuilder("consumer")
	in := b.Input("out", shir.ValueAffine, 2)
	res := b.Output("res", shir.ValueAffine, 2)
	b.Emit(shir.OpAdd, res, in, in)
	opts := driver.DefaultOptions()
	opts.Inputs = prod.Table
	opts.PlaceOnly = true
	cons, err := driver.Compile(context.Background(), b.Program(), opts)
	if err != nil {
		t.Fatalf("Compile consumer: %v", err)
	}
	if !reflect.DeepEqual(cons.Table.Inputs["out"], prod.Table.Outputs["out"]) {
		t.Errorf("consumer inputs %v, producer outputs %v", cons.Table.Inputs["out"], prod.Table.Outputs["out"])
	}
}

func TestCompile_RejectsCorruptInputTable(t *testing.T) {
	opts := driver.DefaultOptions()
	opts.Inputs = &symdump.Table{
		Version: symdump.Version,
		Program: "producer",
		MaxSym:  0,
		Outputs: map[string][][]int{"x": {{-1}, {0}}},
	}
	_, err := driver.Compile(context.Background(), shade("shade"), opts)
	if !errors.Is(err, symdump.ErrSymbol) {
		t.Fatalf("err = %v, want symdump.ErrSymbol", err)
	}
}

func TestCompileBatch_IndependentCompilationsAgree(t *testing.T) {
	const n = 8
	programs := make([]*shir.Program, n)
	for i := range programs {
		programs[i] = shade("shade")
	}
	var rec buildpipeline.Recorder
	items, err := driver.CompileBatch(context.Background(), programs, driver.DefaultOptions(), 3, &rec)
	if err != nil {
		t.Fatalf("CompileBatch: %v", err)
	}
	for i, item := range items {
		if item.Err != nil {
			t.Fatalf("item %d: %v", i, item.Err)
		}
		if !reflect.DeepEqual(item.Result.Table, items[0].Result.Table) {
			t.Errorf("item %d table differs from item 0", i)
		}
		if !item.Timings.Has(buildpipeline.StagePlace) || !item.Timings.Has(buildpipeline.StageLower) {
			t.Errorf("item %d timings incomplete", i)
		}
	}
	for name, status := range rec.Final() {
		if status != buildpipeline.StatusDone {
			t.Errorf("%s ended %s", name, status)
		}
	}
}

func TestCompileBatch_KeepsGoingAfterFailure(t *testing.T) {
	programs := []*shir.Program{shade("a"), broken("b"), shade("c")}
	var rec buildpipeline.Recorder
	items, err := driver.CompileBatch(context.Background(), programs, driver.DefaultOptions(), 2, &rec)
	if err != nil {
		t.Fatalf("CompileBatch: %v", err)
	}
	if items[0].Err != nil || items[2].Err != nil {
		t.Errorf("healthy programs failed: %v, %v", items[0].Err, items[2].Err)
	}
	if items[1].Err == nil {
		t.Errorf("broken program compiled")
	}
	final := rec.Final()
	if final["b"] != buildpipeline.StatusError || final["a"] != buildpipeline.StatusDone {
		t.Errorf("final = %v", final)
	}
}

func TestCompileBatch_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := driver.CompileBatch(ctx, []*shir.Program{shade("a"), shade("b")}, driver.DefaultOptions(), 1, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestCompileFiles_LoadsAndReportsMissing(t *testing.T) {
	paths := []string{"../progfile/testdata/blend.toml", "testdata/missing.toml"}
	items, err := driver.CompileFiles(context.Background(), paths, driver.DefaultOptions(), 2, nil)
	if err != nil {
		t.Fatalf("CompileFiles: %v", err)
	}
	if items[0].Err != nil || !items[0].Result.Lowered {
		t.Errorf("blend: %v", items[0].Err)
	}
	if items[1].Err == nil || items[1].Result != nil {
		t.Errorf("missing file compiled")
	}

	var buf bytes.Buffer
	if err := driver.WriteTimings(&buf, items, true); err != nil {
		t.Fatal(err)
	}
	if out := buf.String(); strings.Count(out, "\n") != 1 || !strings.Contains(out, `"kind":"program"`) {
		t.Errorf("timings:\n%s", out)
	}
}

func TestCompileBatch_WritesEachProgram(t *testing.T) {
	opts := driver.DefaultOptions()
	var mu sync.Mutex
	written := make(map[string]bool)
	opts.Write = func(name string, res *driver.Result) error {
		if name == "c" {
			return errors.New("disk full")
		}
		mu.Lock()
		written[name] = res.Lowered
		mu.Unlock()
		return nil
	}
	var rec buildpipeline.Recorder
	items, err := driver.CompileBatch(context.Background(), []*shir.Program{shade("a"), shade("b"), shade("c")}, opts, 0, &rec)
	if err != nil {
		t.Fatalf("CompileBatch: %v", err)
	}
	if !written["a"] || !written["b"] || len(written) != 2 {
		t.Errorf("written = %v", written)
	}
	if items[2].Err == nil || !items[2].Timings.Has(buildpipeline.StageWrite) {
		t.Errorf("write failure not reported: %+v", items[2])
	}
	for _, ev := range rec.Events() {
		if ev.File == "c" && ev.Status == buildpipeline.StatusError && ev.Stage != buildpipeline.StageWrite {
			t.Errorf("c failed in %s, want write", ev.Stage)
		}
	}
}
