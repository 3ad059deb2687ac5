package aaplace

import (
	"errors"
	"testing"

	"shade/internal/aasym"
	"shade/internal/nest"
	"shade/internal/shir"
	"shade/internal/trace"
	"shade/internal/valtrack"
)

func TestWorklist_FIFOWithoutDuplicates(t *testing.T) {
	w := newWorklist()
	for _, d := range []valtrack.DefID{3, 1, 3, 2, 1} {
		w.push(d)
	}
	var got []valtrack.DefID
	for {
		d, ok := w.pop()
		if !ok {
			break
		}
		got = append(got, d)
		if d == 3 && len(got) == 1 {
			w.push(3) // popped items may be queued again
		}
	}
	want := []valtrack.DefID{3, 1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestAllocate_StatementMissingFromChainsIsICE(t *testing.T) {
	b := shir.NewBuilder("late")
	x := b.Input("x", shir.ValueAffine, 1)
	y := b.Output("y", shir.ValueAffine, 1)
	b.Assign(y, x)
	p := b.Program()
	chains := valtrack.Compute(p)

	body := p.Node(p.Node(p.Entry).Follower)
	body.Insert(0, p.NewStmt(shir.OpNeg, y, x))
	tree, err := nest.Build(p)
	if err != nil {
		t.Fatal(err)
	}
	pl := newPlacer(p, tree, chains, aasym.NewAllocator(), trace.Nop)

	err = func() (err error) {
		defer aasym.RecoverICE("aaplace", &err)
		pl.allocate(nil)
		return nil
	}()
	if !errors.Is(err, aasym.ErrICE) {
		t.Fatalf("err = %v, want ICE", err)
	}

	_, err = func() (live Liveness, err error) {
		defer aasym.RecoverICE("aaplace", &err)
		return pl.computeLiveness(), nil
	}()
	if !errors.Is(err, aasym.ErrICE) {
		t.Fatalf("liveness err = %v, want ICE", err)
	}
}

func TestSymCount_DecrementsWhatWasCounted(t *testing.T) {
	c := newSymCount()
	c.inc(1, aasym.NewIndexSet(4, 5))
	c.inc(2, aasym.NewIndexSet(5, 6))
	if got := c.unique(aasym.NewIndexSet(6)); !got.Equal(aasym.NewIndexSet(4)) {
		t.Errorf("unique = %s, want {4}", got)
	}
	c.dec(2)
	c.dec(2)
	if got := c.unique(aasym.IndexSet{}); !got.Equal(aasym.NewIndexSet(4, 5)) {
		t.Errorf("after dec unique = %s, want {4,5}", got)
	}
	c.resync(func(valtrack.DefID) aasym.IndexSet { return aasym.NewIndexSet(9) })
	if got := c.unique(aasym.IndexSet{}); !got.Equal(aasym.NewIndexSet(9)) {
		t.Errorf("after resync unique = %s", got)
	}
}
