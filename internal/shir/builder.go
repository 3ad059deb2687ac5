package shir

import "fmt"

// Builder assembles a structured program. Control flow helpers create
// nodes as needed; statements go to the current node.
type Builder struct {
	p      *Program
	cur    NodeID
	consts int
}

// NewBuilder starts a program whose body node follows the entry.
func NewBuilder(name string) *Builder {
	p := NewProgram(name)
	body := p.AddNode("body")
	p.Node(p.Entry).Follower = body
	return &Builder{p: p, cur: body}
}

// Program closes the current node onto the exit and returns the program
// with predecessors computed.
func (b *Builder) Program() *Program {
	b.p.Node(b.cur).Follower = b.p.Exit
	b.p.ComputePreds()
	return b.p
}

// Lookup finds a declared variable by name.
func (b *Builder) Lookup(name string) (Operand, bool) {
	id, ok := b.p.LookupVar(name)
	if !ok {
		return NoOperand, false
	}
	return Operand{Var: id}, true
}

// Current returns the node statements are appended to.
func (b *Builder) Current() NodeID { return b.cur }

func (b *Builder) newVar(name string, bind Binding, value ValueKind, size int) Operand {
	id := b.p.AddVar(Var{Name: name, Binding: bind, Value: value, Size: size})
	return Operand{Var: id}
}

// Input declares an input variable.
func (b *Builder) Input(name string, value ValueKind, size int) Operand {
	return b.newVar(name, BindInput, value, size)
}

// Output declares an output variable.
func (b *Builder) Output(name string, value ValueKind, size int) Operand {
	return b.newVar(name, BindOutput, value, size)
}

// InOut declares a variable read as input and written as output.
func (b *Builder) InOut(name string, value ValueKind, size int) Operand {
	return b.newVar(name, BindInOut, value, size)
}

// Temp declares a temporary.
func (b *Builder) Temp(name string, value ValueKind, size int) Operand {
	return b.newVar(name, BindTemp, value, size)
}

// Const declares a constant tuple.
func (b *Builder) Const(vals ...float64) Operand {
	b.consts++
	id := b.p.AddVar(Var{
		Name:    fmt.Sprintf("k%d", b.consts),
		Binding: BindConst,
		Size:    len(vals),
		Data:    append([]float64(nil), vals...),
	})
	return Operand{Var: id}
}

// NamedConst declares a constant tuple under a caller-chosen name.
func (b *Builder) NamedConst(name string, vals ...float64) Operand {
	id := b.p.AddVar(Var{
		Name:    name,
		Binding: BindConst,
		Size:    len(vals),
		Data:    append([]float64(nil), vals...),
	})
	return Operand{Var: id}
}

// Texture declares a texel table with channels values per texel and the
// given per-channel bounds.
func (b *Builder) Texture(name string, channels int, texels, lo, hi []float64) Operand {
	id := b.p.AddVar(Var{
		Name:    name,
		Binding: BindTexture,
		Size:    channels,
		Data:    append([]float64(nil), texels...),
		Lo:      append([]float64(nil), lo...),
		Hi:      append([]float64(nil), hi...),
	})
	return Operand{Var: id}
}

// Emit appends a statement to the current node.
func (b *Builder) Emit(op Op, dest Operand, src ...Operand) *Stmt {
	s := b.p.NewStmt(op, dest, src...)
	n := b.p.Node(b.cur)
	n.Stmts = append(n.Stmts, s)
	return s
}

// Assign appends dest = src.
func (b *Builder) Assign(dest, src Operand) *Stmt {
	return b.Emit(OpAsn, dest, src)
}

// Section wraps body in section markers.
func (b *Builder) Section(name string, body func()) {
	b.Emit(OpStartSec, NoOperand).Comment = name
	body()
	b.Emit(OpEndSec, NoOperand).Comment = name
}

// If branches on cond. els may be nil.
func (b *Builder) If(cond Operand, then, els func()) {
	head := b.cur
	join := b.p.AddNode("join")

	thenN := b.p.AddNode("then")
	b.p.Node(head).Edges = append(b.p.Node(head).Edges, Edge{Cond: cond, To: thenN})
	b.cur = thenN
	then()
	b.p.Node(b.cur).Follower = join

	if els != nil {
		elseN := b.p.AddNode("else")
		b.p.Node(head).Follower = elseN
		b.cur = elseN
		els()
		b.p.Node(b.cur).Follower = join
	} else {
		b.p.Node(head).Follower = join
	}
	b.cur = join
}

// While loops on body while cond's first element is positive. The
// condition is tested in an empty header node.
func (b *Builder) While(cond Operand, body func()) {
	header := b.p.AddNode("header")
	b.p.Node(b.cur).Follower = header
	bodyN := b.p.AddNode("loop")
	after := b.p.AddNode("after")
	h := b.p.Node(header)
	h.Edges = []Edge{{Cond: cond, To: bodyN}}
	h.Follower = after

	b.cur = bodyN
	body()
	b.p.Node(b.cur).Follower = header
	b.cur = after
}
