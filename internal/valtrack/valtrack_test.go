package valtrack_test

import (
	"testing"

	"shade/internal/shir"
	"shade/internal/valtrack"
)

func TestCompute_DiamondMergesDefinitions(t *testing.T) {
	b := shir.NewBuilder("diamond")
	x := b.Input("x", shir.ValueRegular, 2)
	c := b.Input("c", shir.ValueRegular, 1)
	y := b.Temp("y", shir.ValueRegular, 2)
	out := b.Output("out", shir.ValueRegular, 2)

	var thenDef, elseDef *shir.Stmt
	b.If(c, func() {
		thenDef = b.Assign(y, x)
	}, func() {
		elseDef = b.Emit(shir.OpAdd, y.Swizzle(1), x.Swizzle(0), x.Swizzle(1))
	})
	use := b.Assign(out, y)
	p := b.Program()

	ch := valtrack.Compute(p)

	// element 0 of y only comes from the then branch (the else branch writes y.y)
	defs0 := ch.SourceDefs(use.ID, 0, 0)
	if len(defs0) != 1 || ch.Defs[defs0[0]].Stmt != thenDef.ID {
		t.Errorf("y[0] defs = %v, want one def from s%d", defs0, thenDef.ID)
	}
	defs1 := ch.SourceDefs(use.ID, 0, 1)
	if len(defs1) != 2 {
		t.Fatalf("y[1] defs = %v, want 2", defs1)
	}
	seen := map[shir.StmtID]bool{}
	for _, d := range defs1 {
		seen[ch.Defs[d].Stmt] = true
	}
	if !seen[thenDef.ID] || !seen[elseDef.ID] {
		t.Errorf("y[1] defs come from %v", seen)
	}

	// inputs reach the branches
	xDefs := ch.SourceDefs(elseDef.ID, 1, 0)
	if len(xDefs) != 1 || ch.Defs[xDefs[0]].Kind != valtrack.DefInput || ch.Defs[xDefs[0]].Elem != 1 {
		t.Errorf("x.y in else reached by %v", xDefs)
	}

	outDefs := ch.OutputDefs[out.Var]
	if len(outDefs) != 2 || len(outDefs[0]) != 1 || len(outDefs[1]) != 1 {
		t.Fatalf("output defs = %v", outDefs)
	}
	if !ch.HasOutputUse(outDefs[0][0]) {
		t.Errorf("output def lacks its output use")
	}
	if ch.HasOutputUse(ch.StmtDefs[thenDef.ID][0]) {
		t.Errorf("temp definition must not have an output use")
	}
}

func TestCompute_LoopCarriesDefinitionsAround(t *testing.T) {
	b := shir.NewBuilder("loop")
	x := b.Input("x", shir.ValueRegular, 1)
	c := b.Input("c", shir.ValueRegular, 1)
	acc := b.Temp("acc", shir.ValueRegular, 1)
	out := b.Output("out", shir.ValueRegular, 1)

	init := b.Assign(acc, x)
	var step *shir.Stmt
	b.While(c, func() {
		step = b.Emit(shir.OpAdd, acc, acc, x)
	})
	b.Assign(out, acc)
	p := b.Program()

	ch := valtrack.Compute(p)
	defs := ch.SourceDefs(step.ID, 0, 0)
	if len(defs) != 2 {
		t.Fatalf("loop use reached by %d defs, want 2", len(defs))
	}
	got := map[shir.StmtID]bool{}
	for _, d := range defs {
		got[ch.Defs[d].Stmt] = true
	}
	if !got[init.ID] || !got[step.ID] {
		t.Errorf("loop use reached by %v", got)
	}
	if !ch.Has(step.ID) {
		t.Errorf("step statement missing from chains")
	}
}
