package aalower

import (
	"fmt"

	"shade/internal/aasym"
	"shade/internal/shir"
)

// ErrStorage holds the error terms of one variable: a single tuple with
// one slot per element when every element has exactly one symbol, else
// one tuple per element with one slot per symbol.
type ErrStorage struct {
	Packed bool
	Vars   []shir.VarID // NoVarID for elements without symbols
	Syms   aasym.Syms
}

// Slot returns the scalar operand holding the coefficient of sym in
// element elem.
func (es *ErrStorage) Slot(elem, sym int) (shir.Operand, bool) {
	if es == nil || elem >= es.Syms.Size() || !es.Syms[elem].Has(sym) {
		return shir.NoOperand, false
	}
	if es.Packed {
		return shir.Operand{Var: es.Vars[0], Swiz: []int{elem}}, true
	}
	return shir.Operand{Var: es.Vars[elem], Swiz: []int{es.Syms[elem].Pos(sym)}}, true
}

// Slots returns every slot of element elem in symbol order.
func (es *ErrStorage) Slots(elem int) []shir.Operand {
	if es == nil || elem >= es.Syms.Size() {
		return nil
	}
	out := make([]shir.Operand, 0, es.Syms[elem].Len())
	for _, sym := range es.Syms[elem].Slice() {
		op, _ := es.Slot(elem, sym)
		out = append(out, op)
	}
	return out
}

func (es *ErrStorage) vars() []shir.VarID {
	if es == nil {
		return nil
	}
	out := make([]shir.VarID, 0, len(es.Vars))
	for _, v := range es.Vars {
		if v != shir.NoVarID {
			out = append(out, v)
		}
	}
	return out
}

// Storage is the flattened form of one affine variable. The variable
// itself keeps the center. In and Out are the caller-visible error
// tuples of inputs and outputs; for plain inputs In is Internal.
type Storage struct {
	Var      shir.VarID
	Name     string
	Center   shir.VarID
	Internal *ErrStorage
	In       *ErrStorage
	Out      *ErrStorage
}

// Layout maps each formerly affine variable to its storage.
type Layout map[shir.VarID]*Storage

// Lookup finds the storage of a variable by its name.
func (l Layout) Lookup(name string) (*Storage, bool) {
	for _, st := range l {
		if st.Name == name {
			return st, true
		}
	}
	return nil, false
}

// newErrStorage declares the variables for syms. Names are base for a
// packed tuple and base<elem> otherwise.
func newErrStorage(p *shir.Program, base string, bind shir.Binding, syms aasym.Syms) *ErrStorage {
	es := &ErrStorage{Packed: syms.IsSingles(), Syms: syms.Clone()}
	if es.Packed {
		id := p.AddVar(shir.Var{Name: base, Binding: bind, Value: shir.ValueRegular, Size: syms.Size()})
		es.Vars = []shir.VarID{id}
		return es
	}
	es.Vars = make([]shir.VarID, syms.Size())
	for e := range syms {
		if syms[e].Empty() {
			es.Vars[e] = shir.NoVarID
			continue
		}
		es.Vars[e] = p.AddVar(shir.Var{
			Name:    fmt.Sprintf("%s%d", base, e),
			Binding: bind,
			Value:   shir.ValueRegular,
			Size:    syms[e].Len(),
		})
	}
	return es
}

// allocStorage declares error storage for every affine variable.
func (l *lowerer) allocStorage() {
	affine := l.p.VarsBy(func(v *shir.Var) bool { return v.Affine() })
	for _, id := range affine {
		v := *l.p.Var(id)
		vars, ok := l.ps.Vars[id]
		if !ok {
			aasym.ICE("affine %s has no symbol table entry", v.Name)
		}
		st := &Storage{Var: id, Name: v.Name, Center: id}
		switch v.Binding {
		case shir.BindInput:
			st.Internal = newErrStorage(l.p, v.Name+".e", shir.BindInput, vars)
			st.In = st.Internal
		case shir.BindInOut:
			st.Internal = newErrStorage(l.p, v.Name+".e", shir.BindTemp, vars)
			st.In = newErrStorage(l.p, v.Name+".ei", shir.BindInput, l.ps.Inputs[id])
			st.Out = newErrStorage(l.p, v.Name+".eo", shir.BindOutput, l.outputSyms(id, v.Size))
		case shir.BindOutput:
			st.Internal = newErrStorage(l.p, v.Name+".e", shir.BindTemp, vars)
			st.Out = newErrStorage(l.p, v.Name+".eo", shir.BindOutput, l.outputSyms(id, v.Size))
		default:
			st.Internal = newErrStorage(l.p, v.Name+".e", shir.BindTemp, vars)
		}
		l.layout[id] = st
		l.storageOf[id] = id
		for _, ev := range st.Internal.vars() {
			l.storageOf[ev] = id
		}
	}
}

func (l *lowerer) outputSyms(v shir.VarID, size int) aasym.Syms {
	if s, ok := l.ps.Outputs[v]; ok {
		return s
	}
	return aasym.NewSyms(size)
}

// prologue zeroes internal error storage and copies inout error terms in.
func (l *lowerer) prologue() {
	var stmts []*shir.Stmt
	for _, id := range aasym.SortedVars(l.ps.Vars) {
		st, ok := l.layout[id]
		if !ok || st.Internal == st.In {
			continue
		}
		for _, ev := range st.Internal.vars() {
			stmts = append(stmts, l.p.NewStmt(shir.OpAsn, shir.Operand{Var: ev}, l.konst(0)))
		}
		if st.In == nil {
			continue
		}
		for e := range st.In.Syms {
			for _, sym := range st.In.Syms[e].Slice() {
				dst, ok := st.Internal.Slot(e, sym)
				if !ok {
					aasym.ICE("%s: input symbol %d has no internal slot", st.Name, sym)
				}
				src, _ := st.In.Slot(e, sym)
				stmts = append(stmts, l.p.NewStmt(shir.OpAsn, dst, src))
			}
		}
	}
	if len(stmts) == 0 {
		return
	}
	stmts[0].Comment = "affine storage"
	n := l.p.InsertAfterEntry("aa.prologue")
	l.p.Node(n).Stmts = stmts
}

// epilogue copies output error terms out, restricted to output symbols.
func (l *lowerer) epilogue() {
	var stmts []*shir.Stmt
	for _, id := range aasym.SortedVars(l.ps.Vars) {
		st, ok := l.layout[id]
		if !ok || st.Out == nil {
			continue
		}
		for e := range st.Out.Syms {
			for _, sym := range st.Out.Syms[e].Slice() {
				src, ok := st.Internal.Slot(e, sym)
				if !ok {
					aasym.ICE("%s: output symbol %d has no internal slot", st.Name, sym)
				}
				dst, _ := st.Out.Slot(e, sym)
				stmts = append(stmts, l.p.NewStmt(shir.OpAsn, dst, src))
			}
		}
	}
	if len(stmts) == 0 {
		return
	}
	stmts[0].Comment = "affine outputs"
	n := l.p.InsertBeforeExit("aa.epilogue")
	l.p.Node(n).Stmts = stmts
}
