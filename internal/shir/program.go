package shir

import (
	"fmt"

	"fortio.org/safecast"
)

// VarID identifies a variable within a Program.
type VarID int32

// NodeID identifies a CFG node within a Program.
type NodeID int32

// StmtID identifies a statement within a Program. IDs are stable across
// insertions and never reused.
type StmtID int32

const (
	// NoVarID marks an absent variable.
	NoVarID VarID = -1
	// NoNodeID marks an absent node.
	NoNodeID NodeID = -1
	// NoStmtID marks an absent statement (and the entry/exit markers).
	NoStmtID StmtID = -1
)

// Binding describes how a variable is bound to the outside world.
type Binding uint8

const (
	// BindTemp is a local temporary.
	BindTemp Binding = iota
	// BindInput is read-only program input.
	BindInput
	// BindOutput is write-only program output.
	BindOutput
	// BindInOut is read as input and written as output.
	BindInOut
	// BindConst holds compile-time data.
	BindConst
	// BindTexture is a read-only texel table.
	BindTexture
)

func (b Binding) String() string {
	switch b {
	case BindTemp:
		return "temp"
	case BindInput:
		return "input"
	case BindOutput:
		return "output"
	case BindInOut:
		return "inout"
	case BindConst:
		return "const"
	case BindTexture:
		return "texture"
	default:
		return "binding?"
	}
}

// IsInput reports whether values flow in through this binding.
func (b Binding) IsInput() bool { return b == BindInput || b == BindInOut }

// IsOutput reports whether values flow out through this binding.
func (b Binding) IsOutput() bool { return b == BindOutput || b == BindInOut }

// ValueKind is the value representation of a variable.
type ValueKind uint8

const (
	// ValueRegular is a plain float tuple.
	ValueRegular ValueKind = iota
	// ValueAffine is a center tuple plus noise-symbol error terms.
	ValueAffine
)

func (k ValueKind) String() string {
	if k == ValueAffine {
		return "affine"
	}
	return "regular"
}

// Var is a tuple variable.
type Var struct {
	ID      VarID
	Name    string
	Binding Binding
	Value   ValueKind
	Size    int
	// Data holds constant values, or texels for textures (Size floats per texel).
	Data []float64
	// Lo and Hi bound each texture channel.
	Lo, Hi []float64
}

// Affine reports whether the variable carries error terms.
func (v *Var) Affine() bool { return v.Value == ValueAffine }

// Operand references a variable through an optional swizzle.
type Operand struct {
	Var  VarID
	Swiz []int // nil reads every element in order
	Neg  bool
}

// NoOperand is the absent operand.
var NoOperand = Operand{Var: NoVarID}

// Valid reports whether the operand names a variable.
func (o Operand) Valid() bool { return o.Var != NoVarID }

// Negate returns the operand with its negation flag flipped.
func (o Operand) Negate() Operand {
	o.Neg = !o.Neg
	return o
}

// Swizzle composes idx with the operand's own swizzle.
func (o Operand) Swizzle(idx ...int) Operand {
	out := Operand{Var: o.Var, Neg: o.Neg, Swiz: make([]int, len(idx))}
	for i, k := range idx {
		if o.Swiz != nil {
			if k < 0 || k >= len(o.Swiz) {
				panic(fmt.Errorf("shir: swizzle %d out of range for %d elements", k, len(o.Swiz)))
			}
			out.Swiz[i] = o.Swiz[k]
			continue
		}
		out.Swiz[i] = k
	}
	return out
}

// Stmt is one operation.
type Stmt struct {
	ID      StmtID
	Op      Op
	Dest    Operand
	Src     []Operand
	Comment string
}

// HasDest reports whether the statement writes a variable.
func (s *Stmt) HasDest() bool { return s.Dest.Valid() }

// Edge is a conditional CFG edge taken when Cond's first element is positive.
type Edge struct {
	Cond Operand
	To   NodeID
}

// Node is a basic block. Edges are tried in order; Follower is taken when
// none fires.
type Node struct {
	ID       NodeID
	Name     string
	Stmts    []*Stmt
	Edges    []Edge
	Follower NodeID
	Preds    []NodeID
}

// Succs returns the distinct successors in edge order, follower last.
func (n *Node) Succs() []NodeID {
	out := make([]NodeID, 0, len(n.Edges)+1)
	seen := make(map[NodeID]bool, len(n.Edges)+1)
	add := func(id NodeID) {
		if id == NoNodeID || seen[id] {
			return
		}
		seen[id] = true
		out = append(out, id)
	}
	for _, e := range n.Edges {
		add(e.To)
	}
	add(n.Follower)
	return out
}

// Insert places stmts before position idx.
func (n *Node) Insert(idx int, stmts ...*Stmt) {
	if idx < 0 || idx > len(n.Stmts) {
		panic(fmt.Errorf("shir: insert position %d out of range in %s", idx, n.Name))
	}
	tail := append([]*Stmt(nil), n.Stmts[idx:]...)
	n.Stmts = append(append(n.Stmts[:idx], stmts...), tail...)
}

// Program is an arena of variables and CFG nodes.
type Program struct {
	Name  string
	Vars  []Var
	Nodes []Node
	Entry NodeID
	Exit  NodeID

	nextStmt StmtID
}

// NewProgram returns a program with empty entry and exit nodes, the entry
// falling through to the exit.
func NewProgram(name string) *Program {
	p := &Program{Name: name}
	p.Entry = p.AddNode("entry")
	p.Exit = p.AddNode("exit")
	p.Node(p.Entry).Follower = p.Exit
	return p
}

func toID(n int, what string) int32 {
	id, err := safecast.Conv[int32](n)
	if err != nil {
		panic(fmt.Errorf("shir: %s id overflow: %w", what, err))
	}
	return id
}

// AddVar appends v, assigning its ID.
func (p *Program) AddVar(v Var) VarID {
	v.ID = VarID(toID(len(p.Vars), "var"))
	p.Vars = append(p.Vars, v)
	return v.ID
}

// AddNode appends an empty node with no follower.
func (p *Program) AddNode(name string) NodeID {
	id := NodeID(toID(len(p.Nodes), "node"))
	p.Nodes = append(p.Nodes, Node{ID: id, Name: name, Follower: NoNodeID})
	return id
}

// NewStmt creates a statement with a fresh ID. It is not placed in any node.
func (p *Program) NewStmt(op Op, dest Operand, src ...Operand) *Stmt {
	s := &Stmt{ID: p.nextStmt, Op: op, Dest: dest, Src: src}
	p.nextStmt++
	return s
}

// StmtLimit returns one past the largest statement ID handed out.
func (p *Program) StmtLimit() int { return int(p.nextStmt) }

// Var returns the variable with the given ID.
func (p *Program) Var(id VarID) *Var {
	if id < 0 || int(id) >= len(p.Vars) {
		panic(fmt.Errorf("shir: unknown var %d", id))
	}
	return &p.Vars[id]
}

// Node returns the node with the given ID.
func (p *Program) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(p.Nodes) {
		panic(fmt.Errorf("shir: unknown node %d", id))
	}
	return &p.Nodes[id]
}

// VarName returns the name of id, or a placeholder for unknown IDs.
func (p *Program) VarName(id VarID) string {
	if id < 0 || int(id) >= len(p.Vars) {
		return fmt.Sprintf("v%d?", id)
	}
	return p.Vars[id].Name
}

// LookupVar finds a variable by name.
func (p *Program) LookupVar(name string) (VarID, bool) {
	for i := range p.Vars {
		if p.Vars[i].Name == name {
			return p.Vars[i].ID, true
		}
	}
	return NoVarID, false
}

// Indices returns the explicit element indices an operand reads or writes.
func (p *Program) Indices(o Operand) []int {
	if o.Swiz != nil {
		return o.Swiz
	}
	n := p.Var(o.Var).Size
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// Size returns the number of elements an operand reads or writes.
func (p *Program) Size(o Operand) int {
	if o.Swiz != nil {
		return len(o.Swiz)
	}
	return p.Var(o.Var).Size
}

// IsAffine reports whether an operand refers to an affine variable.
func (p *Program) IsAffine(o Operand) bool {
	return o.Valid() && p.Var(o.Var).Affine()
}

// Walk visits every statement in node order.
func (p *Program) Walk(fn func(n *Node, idx int, s *Stmt)) {
	for i := range p.Nodes {
		n := &p.Nodes[i]
		for idx, s := range n.Stmts {
			fn(n, idx, s)
		}
	}
}

// Stmts returns an index of every placed statement by ID.
func (p *Program) Stmts() map[StmtID]*Stmt {
	out := make(map[StmtID]*Stmt, p.nextStmt)
	p.Walk(func(_ *Node, _ int, s *Stmt) { out[s.ID] = s })
	return out
}

// Locate returns the node and position of each placed statement.
func (p *Program) Locate() map[StmtID]StmtPos {
	out := make(map[StmtID]StmtPos, p.nextStmt)
	p.Walk(func(n *Node, idx int, s *Stmt) { out[s.ID] = StmtPos{Node: n.ID, Index: idx} })
	return out
}

// StmtPos locates a statement.
type StmtPos struct {
	Node  NodeID
	Index int
}

// VarsBy returns the variables with the given binding in declaration order.
func (p *Program) VarsBy(pred func(*Var) bool) []VarID {
	var out []VarID
	for i := range p.Vars {
		if pred(&p.Vars[i]) {
			out = append(out, p.Vars[i].ID)
		}
	}
	return out
}
