package aalower

import (
	"fmt"
	"math"

	"shade/internal/aaplace"
	"shade/internal/aasym"
	"shade/internal/shir"
)

// lowerer rewrites one program. Statements are emitted into buf and
// replace the original statement afterwards.
type lowerer struct {
	p      *shir.Program
	ps     *aasym.ProgramSyms
	recs   map[shir.StmtID]*aasym.StmtSyms
	layout Layout
	// storageOf maps center and internal error variables to the affine
	// variable they belong to.
	storageOf map[shir.VarID]shir.VarID

	pool     shir.VarID
	poolIdx  map[uint64]int
	temps    []shir.VarID
	nextTemp int

	buf []*shir.Stmt
}

func newLowerer(p *shir.Program, res *aaplace.Result) *lowerer {
	return &lowerer{
		p:         p,
		ps:        res.Syms,
		recs:      res.Stmt,
		layout:    make(Layout),
		storageOf: make(map[shir.VarID]shir.VarID),
		pool:      shir.NoVarID,
		poolIdx:   make(map[uint64]int),
	}
}

// konst returns a scalar read of a constant. Constants share one pooled
// variable.
func (l *lowerer) konst(v float64) shir.Operand {
	if l.pool == shir.NoVarID {
		l.pool = l.p.AddVar(shir.Var{Name: "%k", Binding: shir.BindConst, Value: shir.ValueRegular})
	}
	key := math.Float64bits(v)
	idx, ok := l.poolIdx[key]
	if !ok {
		pv := l.p.Var(l.pool)
		idx = len(pv.Data)
		pv.Data = append(pv.Data, v)
		pv.Size = len(pv.Data)
		l.poolIdx[key] = idx
	}
	return shir.Operand{Var: l.pool, Swiz: []int{idx}}
}

// temp hands out a scalar temporary. Temporaries are reused across
// statements since no value outlives the statement that computed it.
func (l *lowerer) temp() shir.Operand {
	if l.nextTemp == len(l.temps) {
		id := l.p.AddVar(shir.Var{
			Name:    fmt.Sprintf("%%t%d", len(l.temps)),
			Binding: shir.BindTemp,
			Value:   shir.ValueRegular,
			Size:    1,
		})
		l.temps = append(l.temps, id)
	}
	t := shir.Operand{Var: l.temps[l.nextTemp]}
	l.nextTemp++
	return t
}

// op emits t = op src... into a fresh temporary and returns t.
func (l *lowerer) op(op shir.Op, src ...shir.Operand) shir.Operand {
	t := l.temp()
	l.buf = append(l.buf, l.p.NewStmt(op, t, src...))
	return t
}

func (l *lowerer) assign(dst, src shir.Operand) {
	l.buf = append(l.buf, l.p.NewStmt(shir.OpAsn, dst, src))
}

func (l *lowerer) add(a, b shir.Operand) shir.Operand    { return l.op(shir.OpAdd, a, b) }
func (l *lowerer) sub(a, b shir.Operand) shir.Operand    { return l.op(shir.OpAdd, a, b.Negate()) }
func (l *lowerer) mul(a, b shir.Operand) shir.Operand    { return l.op(shir.OpMul, a, b) }
func (l *lowerer) mad(a, b, c shir.Operand) shir.Operand { return l.op(shir.OpMad, a, b, c) }
func (l *lowerer) abs(a shir.Operand) shir.Operand       { return l.op(shir.OpAbs, a) }
func (l *lowerer) half(a shir.Operand) shir.Operand      { return l.mul(l.konst(0.5), a) }

func (l *lowerer) cond(c, a, b shir.Operand) shir.Operand {
	return l.op(shir.OpCond, c, a, b)
}

// sum adds the operands; an empty sum is zero.
func (l *lowerer) sum(ops []shir.Operand) shir.Operand {
	if len(ops) == 0 {
		return l.konst(0)
	}
	acc := ops[0]
	for _, o := range ops[1:] {
		acc = l.add(acc, o)
	}
	return acc
}

// flush returns the emitted statements and resets the buffer and the
// temporaries.
func (l *lowerer) flush() []*shir.Stmt {
	out := l.buf
	l.buf = nil
	l.nextTemp = 0
	return out
}
