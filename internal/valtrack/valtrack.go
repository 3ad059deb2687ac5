// Package valtrack computes reaching definitions and def-use chains per
// variable element.
package valtrack

import (
	"fmt"

	"golang.org/x/tools/container/intsets"

	"shade/internal/shir"
)

// DefID identifies a definition of one variable element.
type DefID int32

// DefKind distinguishes statement definitions from program inputs.
type DefKind uint8

const (
	// DefStmt is written by a statement.
	DefStmt DefKind = iota
	// DefInput is the value an input variable holds on entry.
	DefInput
)

// Def is one definition.
type Def struct {
	Kind DefKind
	Stmt shir.StmtID // NoStmtID for inputs
	Var  shir.VarID
	// Index is the position within the destination swizzle (stmt defs) or
	// the element (input defs).
	Index int
	// Elem is the absolute element of Var.
	Elem int
}

// UseKind distinguishes operand reads from output observation.
type UseKind uint8

const (
	// UseStmt is a statement operand element.
	UseStmt UseKind = iota
	// UseOutput is an output element observed at the exit.
	UseOutput
)

// Use is one read of a definition.
type Use struct {
	Kind   UseKind
	Stmt   shir.StmtID
	Source int // operand index
	Index  int // position within the operand swizzle
	Var    shir.VarID
	Elem   int
}

type elemKey struct {
	v    shir.VarID
	elem int
}

// Chains holds def-use information for one program snapshot.
type Chains struct {
	Defs      []Def
	StmtDefs  map[shir.StmtID][]DefID
	InputDefs map[shir.VarID][]DefID
	// UseDef[stmt][src][i] lists the definitions reaching element i of
	// operand src.
	UseDef map[shir.StmtID][][][]DefID
	DefUse [][]Use
	// OutputDefs[v][elem] lists the definitions of an output element
	// reaching the exit.
	OutputDefs map[shir.VarID][][]DefID

	reachIn  map[shir.NodeID]*intsets.Sparse
	reachOut map[shir.NodeID]*intsets.Sparse
}

// Compute builds chains for p. Predecessors must be current.
func Compute(p *shir.Program) *Chains {
	c := &Chains{
		StmtDefs:   make(map[shir.StmtID][]DefID),
		InputDefs:  make(map[shir.VarID][]DefID),
		UseDef:     make(map[shir.StmtID][][][]DefID),
		OutputDefs: make(map[shir.VarID][][]DefID),
		reachIn:    make(map[shir.NodeID]*intsets.Sparse),
		reachOut:   make(map[shir.NodeID]*intsets.Sparse),
	}
	keyDefs := make(map[elemKey][]DefID)
	addDef := func(d Def) DefID {
		id := DefID(len(c.Defs))
		c.Defs = append(c.Defs, d)
		k := elemKey{d.Var, d.Elem}
		keyDefs[k] = append(keyDefs[k], id)
		return id
	}

	for i := range p.Vars {
		v := &p.Vars[i]
		if !v.Binding.IsInput() {
			continue
		}
		ids := make([]DefID, v.Size)
		for e := range v.Size {
			ids[e] = addDef(Def{Kind: DefInput, Stmt: shir.NoStmtID, Var: v.ID, Index: e, Elem: e})
		}
		c.InputDefs[v.ID] = ids
	}
	p.Walk(func(_ *shir.Node, _ int, s *shir.Stmt) {
		if !s.HasDest() {
			return
		}
		idx := p.Indices(s.Dest)
		ids := make([]DefID, len(idx))
		for i, e := range idx {
			ids[i] = addDef(Def{Kind: DefStmt, Stmt: s.ID, Var: s.Dest.Var, Index: i, Elem: e})
		}
		c.StmtDefs[s.ID] = ids
	})
	c.DefUse = make([][]Use, len(c.Defs))

	c.solve(p, keyDefs)
	c.link(p, keyDefs)
	return c
}

// gen and kill sets of a node.
func (c *Chains) transfer(p *shir.Program, n *shir.Node, keyDefs map[elemKey][]DefID) (gen, kill *intsets.Sparse) {
	gen, kill = new(intsets.Sparse), new(intsets.Sparse)
	for _, s := range n.Stmts {
		for _, id := range c.StmtDefs[s.ID] {
			d := c.Defs[id]
			for _, other := range keyDefs[elemKey{d.Var, d.Elem}] {
				gen.Remove(int(other))
				kill.Insert(int(other))
			}
			gen.Insert(int(id))
		}
	}
	kill.DifferenceWith(gen)
	return gen, kill
}

func (c *Chains) solve(p *shir.Program, keyDefs map[elemKey][]DefID) {
	gens := make(map[shir.NodeID]*intsets.Sparse, len(p.Nodes))
	kills := make(map[shir.NodeID]*intsets.Sparse, len(p.Nodes))
	for i := range p.Nodes {
		n := &p.Nodes[i]
		gens[n.ID], kills[n.ID] = c.transfer(p, n, keyDefs)
		c.reachIn[n.ID] = new(intsets.Sparse)
		c.reachOut[n.ID] = new(intsets.Sparse)
	}
	entryIn := c.reachIn[p.Entry]
	for _, ids := range c.InputDefs {
		for _, id := range ids {
			entryIn.Insert(int(id))
		}
	}

	work := make([]shir.NodeID, 0, len(p.Nodes))
	queued := make([]bool, len(p.Nodes))
	for i := range p.Nodes {
		work = append(work, p.Nodes[i].ID)
		queued[i] = true
	}
	for len(work) > 0 {
		id := work[0]
		work = work[1:]
		queued[id] = false
		n := p.Node(id)

		in := c.reachIn[id]
		for _, pred := range n.Preds {
			in.UnionWith(c.reachOut[pred])
		}
		out := new(intsets.Sparse)
		out.Difference(in, kills[id])
		out.UnionWith(gens[id])
		if out.Equals(c.reachOut[id]) {
			continue
		}
		c.reachOut[id] = out
		for _, succ := range n.Succs() {
			if !queued[succ] {
				queued[succ] = true
				work = append(work, succ)
			}
		}
	}
}

func (c *Chains) link(p *shir.Program, keyDefs map[elemKey][]DefID) {
	for i := range p.Nodes {
		n := &p.Nodes[i]
		cur := make(map[elemKey][]DefID)
		for _, m := range c.reachIn[n.ID].AppendTo(nil) {
			d := c.Defs[m]
			k := elemKey{d.Var, d.Elem}
			cur[k] = append(cur[k], DefID(m))
		}
		for _, s := range n.Stmts {
			srcDefs := make([][][]DefID, len(s.Src))
			for k, src := range s.Src {
				idx := p.Indices(src)
				srcDefs[k] = make([][]DefID, len(idx))
				for i, e := range idx {
					defs := append([]DefID(nil), cur[elemKey{src.Var, e}]...)
					srcDefs[k][i] = defs
					for _, d := range defs {
						c.DefUse[d] = append(c.DefUse[d], Use{
							Kind: UseStmt, Stmt: s.ID, Source: k, Index: i, Var: src.Var, Elem: e,
						})
					}
				}
			}
			c.UseDef[s.ID] = srcDefs
			for _, id := range c.StmtDefs[s.ID] {
				d := c.Defs[id]
				cur[elemKey{d.Var, d.Elem}] = []DefID{id}
			}
		}
	}

	exitIn := c.reachIn[p.Exit]
	for i := range p.Vars {
		v := &p.Vars[i]
		if !v.Binding.IsOutput() {
			continue
		}
		perElem := make([][]DefID, v.Size)
		for e := range v.Size {
			for _, id := range keyDefs[elemKey{v.ID, e}] {
				if !exitIn.Has(int(id)) {
					continue
				}
				perElem[e] = append(perElem[e], id)
				c.DefUse[id] = append(c.DefUse[id], Use{
					Kind: UseOutput, Stmt: shir.NoStmtID, Source: -1, Index: e, Var: v.ID, Elem: e,
				})
			}
		}
		c.OutputDefs[v.ID] = perElem
	}
}

// ReachOut returns the definitions reaching the end of node n. The caller
// must not modify the result.
func (c *Chains) ReachOut(n shir.NodeID) *intsets.Sparse {
	if s, ok := c.reachOut[n]; ok {
		return s
	}
	return new(intsets.Sparse)
}

// ReachIn returns the definitions reaching the start of node n.
func (c *Chains) ReachIn(n shir.NodeID) *intsets.Sparse {
	if s, ok := c.reachIn[n]; ok {
		return s
	}
	return new(intsets.Sparse)
}

// Has reports whether the statement was known when the chains were built.
func (c *Chains) Has(s shir.StmtID) bool {
	_, ok := c.UseDef[s]
	return ok
}

// SourceDefs returns the definitions reaching element i of operand src of
// statement s.
func (c *Chains) SourceDefs(s shir.StmtID, src, i int) []DefID {
	ud, ok := c.UseDef[s]
	if !ok || src >= len(ud) || i >= len(ud[src]) {
		panic(fmt.Errorf("valtrack: no chain for s%d src%d[%d]", s, src, i))
	}
	return ud[src][i]
}

// HasOutputUse reports whether an output observes the definition.
func (c *Chains) HasOutputUse(id DefID) bool {
	for _, u := range c.DefUse[id] {
		if u.Kind == UseOutput {
			return true
		}
	}
	return false
}
