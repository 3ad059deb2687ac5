package aalower

import (
	"shade/internal/aasym"
	"shade/internal/shir"
)

// fresh returns the n-th new symbol of destination element i.
func fresh(s *shir.Stmt, rec *aasym.StmtSyms, i, n int) int {
	if i >= rec.NewDest.Size() || n >= rec.NewDest[i].Len() {
		aasym.ICE("s%d %s: element %d lacks new symbol %d (have %s)", s.ID, s.Op, i, n, rec.NewDest)
	}
	return rec.NewDest[i].Nth(n)
}

// lowerStmt computes the results of one statement that touches affine
// values and stores them.
func (l *lowerer) lowerStmt(s *shir.Stmt, rec *aasym.StmtSyms) {
	n := l.p.Size(s.Dest)
	out := make([]form, n)
	ld := func(k, i int) form { return l.load(s, rec, k, i) }

	switch s.Op {
	case shir.OpAsn:
		for i := range out {
			out[i] = ld(0, i)
		}
	case shir.OpNeg:
		for i := range out {
			out[i] = l.neg(ld(0, i))
		}
	case shir.OpAdd:
		for i := range out {
			out[i] = l.addForms(ld(0, i), ld(1, i))
		}
	case shir.OpMul:
		for i := range out {
			out[i] = l.mulForms(ld(0, i), ld(1, i), fresh(s, rec, i, 0))
		}
	case shir.OpMad:
		for i := range out {
			prod := l.mulForms(ld(0, i), ld(1, i), fresh(s, rec, i, 0))
			out[i] = l.addForms(prod, ld(2, i))
		}
	case shir.OpLrp:
		for i := range out {
			c := ld(2, i)
			diff := l.addForms(ld(1, i), l.neg(c))
			out[i] = l.addForms(l.mulForms(ld(0, i), diff, fresh(s, rec, i, 0)), c)
		}
	case shir.OpDiv:
		for i := range out {
			inv := l.rcp(ld(1, i), fresh(s, rec, i, 0))
			out[i] = l.mulForms(ld(0, i), inv, fresh(s, rec, i, 1))
		}
	case shir.OpPow:
		for i := range out {
			lg := l.convex(ld(0, i), curveLog, fresh(s, rec, i, 0))
			e := l.mulForms(lg, ld(1, i), fresh(s, rec, i, 1))
			out[i] = l.convex(e, curveExp, fresh(s, rec, i, 2))
		}
	case shir.OpDot:
		m := l.p.Size(s.Src[0])
		var acc form
		var rems []shir.Operand
		for k := range m {
			prod, rem, ok := l.mulParts(l.load(s, rec, 0, k), l.load(s, rec, 1, k))
			if ok {
				rems = append(rems, rem)
			}
			if k == 0 {
				acc = prod
			} else {
				acc = l.addForms(acc, prod)
			}
		}
		if len(rems) > 0 {
			acc.errs[fresh(s, rec, 0, 0)] = l.sum(rems)
		}
		out[0] = acc
	case shir.OpCsum:
		m := l.p.Size(s.Src[0])
		acc := l.load(s, rec, 0, 0)
		for k := 1; k < m; k++ {
			acc = l.addForms(acc, l.load(s, rec, 0, k))
		}
		out[0] = acc
	case shir.OpRcp:
		for i := range out {
			out[i] = l.rcp(ld(0, i), fresh(s, rec, i, 0))
		}
	case shir.OpRsq, shir.OpSqrt, shir.OpExp, shir.OpExp2, shir.OpExp10,
		shir.OpLog, shir.OpLog2, shir.OpLog10:
		c := curves[s.Op]
		for i := range out {
			out[i] = l.convex(ld(0, i), c, fresh(s, rec, i, 0))
		}
	case shir.OpFlr:
		for i := range out {
			out[i] = l.floor(ld(0, i), fresh(s, rec, i, 0))
		}
	case shir.OpFrac:
		for i := range out {
			out[i] = l.frac(ld(0, i), fresh(s, rec, i, 0))
		}
	case shir.OpAbs:
		for i := range out {
			out[i] = l.absForm(ld(0, i), fresh(s, rec, i, 0))
		}
	case shir.OpPos:
		for i := range out {
			out[i] = l.pos(ld(0, i), fresh(s, rec, i, 0))
		}
	case shir.OpMin, shir.OpMax:
		for i := range out {
			out[i] = l.minMax(s.Op == shir.OpMax, ld(0, i), ld(1, i), fresh(s, rec, i, 0))
		}
	case shir.OpSlt, shir.OpSle, shir.OpSgt, shir.OpSge, shir.OpSeq, shir.OpSne:
		for i := range out {
			out[i] = l.compare(s.Op, ld(0, i), ld(1, i), fresh(s, rec, i, 0))
		}
	case shir.OpCond:
		for i := range out {
			c := ld(0, i)
			out[i] = l.condForms(c.center, ld(1, i), ld(2, i))
		}
	case shir.OpTex:
		tex := l.p.Var(s.Src[0].Var)
		for i := range out {
			if i >= len(tex.Lo) || i >= len(tex.Hi) {
				aasym.ICE("s%d: texture %s has no bounds for channel %d", s.ID, tex.Name, i)
			}
			lo, hi := tex.Lo[i], tex.Hi[i]
			f := newForm(l.konst((lo + hi) / 2))
			f.errs[fresh(s, rec, i, 0)] = l.konst((hi - lo) / 2)
			out[i] = f
		}
	case shir.OpIval:
		for i := range out {
			out[i] = l.interval(ld(0, i).center, ld(1, i).center, fresh(s, rec, i, 0))
		}
	case shir.OpLo, shir.OpHi, shir.OpWidth, shir.OpRadius, shir.OpCenter:
		for i := range out {
			out[i] = newForm(l.accessor(s.Op, ld(0, i)))
		}
	case shir.OpErrFrom:
		for i := range out {
			a := ld(0, i)
			f := l.zero()
			for sym, e := range a.errs {
				if rec.Dest[i].Has(sym) {
					f.errs[sym] = e
				}
			}
			out[i] = f
		}
	case shir.OpLastErr:
		last := rec.Src[1].All().Last()
		for i := range out {
			a := ld(0, i)
			if e, ok := a.errs[last]; ok && last >= 0 {
				out[i] = newForm(e)
			} else {
				out[i] = l.zero()
			}
		}
	case shir.OpEscJoin:
		for i := range out {
			a := ld(0, i)
			f := newForm(a.center)
			var collapsed []shir.Operand
			for _, sym := range a.syms() {
				if rec.Dest[i].Has(sym) {
					f.errs[sym] = a.errs[sym]
					continue
				}
				collapsed = append(collapsed, l.abs(a.errs[sym]))
			}
			f.errs[fresh(s, rec, i, 0)] = l.sum(collapsed)
			out[i] = f
		}
	default:
		aasym.ICE("s%d: no affine lowering for %s", s.ID, s.Op)
	}
	l.store(s, rec, out)
}

func (l *lowerer) accessor(op shir.Op, f form) shir.Operand {
	switch op {
	case shir.OpCenter:
		return f.center
	case shir.OpRadius:
		return l.radius(f)
	case shir.OpWidth:
		return l.mul(l.konst(2), l.radius(f))
	case shir.OpLo:
		return l.sub(f.center, l.radius(f))
	default:
		return l.add(f.center, l.radius(f))
	}
}
