package aaplace

import (
	"golang.org/x/tools/container/intsets"

	"shade/internal/aasym"
	"shade/internal/nest"
	"shade/internal/shir"
	"shade/internal/trace"
	"shade/internal/valtrack"
)

// LiveDef is the liveness record of one statement. Sets hold the IDs of
// affine definitions.
type LiveDef struct {
	In, Use, Def, Out, Dead intsets.Sparse
	// Pred and Succ are the neighbouring statements across empty nodes.
	// NoStmtID stands for the program entry or exit.
	Pred, Succ []shir.StmtID
}

// Liveness maps each statement of a reachable node to its record.
type Liveness map[shir.StmtID]*LiveDef

// neighbours computes statement-level predecessor and successor lists.
func neighbours(p *shir.Program) (pred, succ map[shir.StmtID][]shir.StmtID) {
	pred = make(map[shir.StmtID][]shir.StmtID)
	succ = make(map[shir.StmtID][]shir.StmtID)

	// tails(n) is the set of statements that last executed when control
	// leaves n, looking through empty nodes.
	var tails, heads func(n shir.NodeID, seen map[shir.NodeID]bool) []shir.StmtID
	tails = func(n shir.NodeID, seen map[shir.NodeID]bool) []shir.StmtID {
		if seen[n] {
			return nil
		}
		seen[n] = true
		node := p.Node(n)
		if len(node.Stmts) > 0 {
			return []shir.StmtID{node.Stmts[len(node.Stmts)-1].ID}
		}
		if n == p.Entry {
			return []shir.StmtID{shir.NoStmtID}
		}
		var out []shir.StmtID
		for _, pr := range node.Preds {
			out = appendUnique(out, tails(pr, seen)...)
		}
		return out
	}
	heads = func(n shir.NodeID, seen map[shir.NodeID]bool) []shir.StmtID {
		if seen[n] {
			return nil
		}
		seen[n] = true
		node := p.Node(n)
		if len(node.Stmts) > 0 {
			return []shir.StmtID{node.Stmts[0].ID}
		}
		if n == p.Exit {
			return []shir.StmtID{shir.NoStmtID}
		}
		var out []shir.StmtID
		for _, s := range node.Succs() {
			out = appendUnique(out, heads(s, seen)...)
		}
		return out
	}

	for _, n := range p.Reachable() {
		node := p.Node(n)
		for i, s := range node.Stmts {
			if i > 0 {
				pred[s.ID] = []shir.StmtID{node.Stmts[i-1].ID}
			} else {
				var ps []shir.StmtID
				for _, pr := range node.Preds {
					ps = appendUnique(ps, tails(pr, map[shir.NodeID]bool{})...)
				}
				pred[s.ID] = ps
			}
			if i < len(node.Stmts)-1 {
				succ[s.ID] = []shir.StmtID{node.Stmts[i+1].ID}
			} else {
				var ss []shir.StmtID
				for _, sc := range node.Succs() {
					ss = appendUnique(ss, heads(sc, map[shir.NodeID]bool{})...)
				}
				succ[s.ID] = ss
			}
		}
	}
	return pred, succ
}

func appendUnique(dst []shir.StmtID, ids ...shir.StmtID) []shir.StmtID {
	for _, id := range ids {
		dup := false
		for _, have := range dst {
			if have == id {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, id)
		}
	}
	return dst
}

// computeLiveness runs the backward live-definition fixpoint.
func (pl *placer) computeLiveness() Liveness {
	pred, succ := neighbours(pl.p)
	live := make(Liveness, len(pred))
	owner := make(map[shir.StmtID]shir.NodeID, len(pred))
	last := make(map[shir.StmtID]bool)

	var exitDefs intsets.Sparse
	for _, v := range pl.p.VarsBy(func(v *shir.Var) bool { return v.Affine() && v.Binding.IsOutput() }) {
		for _, defs := range pl.chains.OutputDefs[v] {
			for _, d := range defs {
				exitDefs.Insert(int(d))
			}
		}
	}

	var order []shir.StmtID
	for _, n := range pl.p.Reachable() {
		node := pl.p.Node(n)
		for i, s := range node.Stmts {
			ld := &LiveDef{Pred: pred[s.ID], Succ: succ[s.ID]}
			owner[s.ID] = n
			last[s.ID] = i == len(node.Stmts)-1
			if pl.touchesAffine(s) {
				if !pl.chains.Has(s.ID) {
					aasym.ICE("s%d %s: no def-use chain", s.ID, s.Op)
				}
				for k, src := range s.Src {
					if !pl.p.IsAffine(src) {
						continue
					}
					for i := range pl.p.Size(src) {
						for _, d := range pl.chains.SourceDefs(s.ID, k, i) {
							ld.Use.Insert(int(d))
						}
					}
				}
				if pl.destAffine(s) {
					for _, d := range pl.chains.StmtDefs[s.ID] {
						ld.Def.Insert(int(d))
					}
				}
			}
			live[s.ID] = ld
			order = append(order, s.ID)
		}
	}

	// Seed in reverse so the first sweep already moves backward.
	work := make([]shir.StmtID, 0, len(order))
	queued := make(map[shir.StmtID]bool, len(order))
	for i := len(order) - 1; i >= 0; i-- {
		work = append(work, order[i])
		queued[order[i]] = true
	}
	for len(work) > 0 {
		id := work[0]
		work = work[1:]
		queued[id] = false
		ld := live[id]

		var out intsets.Sparse
		toExit := false
		for _, sc := range ld.Succ {
			if sc == shir.NoStmtID {
				toExit = true
				continue
			}
			if next, ok := live[sc]; ok {
				out.UnionWith(&next.In)
			}
		}
		if last[id] {
			reach := pl.chains.ReachOut(owner[id])
			if toExit {
				var outputs intsets.Sparse
				outputs.Intersection(&exitDefs, reach)
				out.UnionWith(&outputs)
			}
			out.IntersectionWith(reach)
		}

		var in intsets.Sparse
		in.Difference(&out, &ld.Def)
		in.UnionWith(&ld.Use)

		ld.Out.Copy(&out)
		if in.Equals(&ld.In) {
			continue
		}
		ld.In.Copy(&in)
		for _, pr := range ld.Pred {
			if pr == shir.NoStmtID || queued[pr] {
				continue
			}
			if _, ok := live[pr]; ok {
				queued[pr] = true
				work = append(work, pr)
			}
		}
	}

	for _, ld := range live {
		var gone intsets.Sparse
		gone.Difference(&ld.In, &ld.Out)
		ld.Dead.Difference(&ld.Def, &ld.Out)
		ld.Dead.UnionWith(&gone)
	}
	return live
}

// Live computes the liveness records of p on its own, without placing
// symbols.
func Live(p *shir.Program) (live Liveness, err error) {
	defer aasym.RecoverICE("aaplace", &err)
	tree, err := nest.Build(p)
	if err != nil {
		return nil, err
	}
	pl := newPlacer(p, tree, valtrack.Compute(p), aasym.NewAllocator(), trace.Nop)
	return pl.computeLiveness(), nil
}
