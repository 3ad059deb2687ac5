package aalower

import (
	"sort"

	"shade/internal/aasym"
	"shade/internal/shir"
)

// form is one affine element under construction: a scalar center and one
// scalar coefficient per symbol. Regular values have no coefficients.
type form struct {
	center shir.Operand
	errs   map[int]shir.Operand
}

func newForm(center shir.Operand) form {
	return form{center: center, errs: make(map[int]shir.Operand)}
}

// syms returns the symbols of f in increasing order.
func (f form) syms() []int {
	out := make([]int, 0, len(f.errs))
	for s := range f.errs {
		out = append(out, s)
	}
	sort.Ints(out)
	return out
}

func unionSyms(a, b form) []int {
	seen := make(map[int]bool, len(a.errs)+len(b.errs))
	out := make([]int, 0, len(a.errs)+len(b.errs))
	for _, f := range []form{a, b} {
		for s := range f.errs {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	sort.Ints(out)
	return out
}

// load reads element i of operand k of s. Scalars broadcast. Affine
// operands expose only the symbols that can reach this use.
func (l *lowerer) load(s *shir.Stmt, rec *aasym.StmtSyms, k, i int) form {
	src := s.Src[k]
	idx := l.p.Indices(src)
	pos := i
	if len(idx) == 1 {
		pos = 0
	}
	if pos >= len(idx) {
		aasym.ICE("s%d: src%d has no element %d", s.ID, k, i)
	}
	elem := idx[pos]
	f := newForm(shir.Operand{Var: src.Var, Swiz: []int{elem}, Neg: src.Neg})
	st, ok := l.layout[src.Var]
	if !ok {
		return f
	}
	if rec == nil || k >= len(rec.Src) {
		aasym.ICE("s%d: affine operand src%d without symbol record", s.ID, k)
	}
	use := rec.Src[k][pos].Intersect(st.Internal.Syms[elem])
	for _, sym := range use.Slice() {
		slot, _ := st.Internal.Slot(elem, sym)
		slot.Neg = src.Neg
		f.errs[sym] = slot
	}
	return f
}

// loadAll loads operand k for every destination position.
func (l *lowerer) loadAll(s *shir.Stmt, rec *aasym.StmtSyms, k, n int) []form {
	out := make([]form, n)
	for i := range out {
		out[i] = l.load(s, rec, k, i)
	}
	return out
}

func (l *lowerer) zero() form { return newForm(l.konst(0)) }

func (l *lowerer) neg(f form) form {
	out := newForm(f.center.Negate())
	for s, e := range f.errs {
		out.errs[s] = e.Negate()
	}
	return out
}

// addForms is exact: shared symbols add, the rest pass through.
func (l *lowerer) addForms(a, b form) form {
	out := newForm(l.add(a.center, b.center))
	for _, s := range unionSyms(a, b) {
		ea, inA := a.errs[s]
		eb, inB := b.errs[s]
		switch {
		case inA && inB:
			out.errs[s] = l.add(ea, eb)
		case inA:
			out.errs[s] = ea
		default:
			out.errs[s] = eb
		}
	}
	return out
}

// radius is the sum of the absolute coefficients.
func (l *lowerer) radius(f form) shir.Operand {
	syms := f.syms()
	terms := make([]shir.Operand, len(syms))
	for i, s := range syms {
		terms[i] = l.abs(f.errs[s])
	}
	return l.sum(terms)
}

// bounds returns center-radius and center+radius.
func (l *lowerer) bounds(f form) (lo, hi shir.Operand) {
	if len(f.errs) == 0 {
		return f.center, f.center
	}
	r := l.radius(f)
	return l.sub(f.center, r), l.add(f.center, r)
}

// mulParts is the affine product without its remainder term, which is
// returned separately as rad(a)*rad(b).
func (l *lowerer) mulParts(a, b form) (form, shir.Operand, bool) {
	out := newForm(l.mul(a.center, b.center))
	for _, s := range unionSyms(a, b) {
		ea, inA := a.errs[s]
		eb, inB := b.errs[s]
		switch {
		case inA && inB:
			out.errs[s] = l.mad(a.center, eb, l.mul(b.center, ea))
		case inA:
			out.errs[s] = l.mul(b.center, ea)
		default:
			out.errs[s] = l.mul(a.center, eb)
		}
	}
	if len(a.errs) == 0 || len(b.errs) == 0 {
		return out, shir.NoOperand, false
	}
	return out, l.mul(l.radius(a), l.radius(b)), true
}

// mulForms multiplies and bounds the second-order part with sym.
func (l *lowerer) mulForms(a, b form, sym int) form {
	out, rem, ok := l.mulParts(a, b)
	if ok {
		out.errs[sym] = rem
	}
	return out
}

// scaleShift returns alpha*f + beta with delta on sym.
func (l *lowerer) scaleShift(f form, alpha, beta, delta shir.Operand, sym int) form {
	out := newForm(l.mad(alpha, f.center, beta))
	for _, s := range f.syms() {
		out.errs[s] = l.mul(alpha, f.errs[s])
	}
	out.errs[sym] = delta
	return out
}

// interval is the affine form of [lo, hi] on a single symbol.
func (l *lowerer) interval(lo, hi shir.Operand, sym int) form {
	out := newForm(l.half(l.add(lo, hi)))
	out.errs[sym] = l.half(l.abs(l.sub(hi, lo)))
	return out
}

// condForms selects a where c > 0, else b, term by term.
func (l *lowerer) condForms(c shir.Operand, a, b form) form {
	out := newForm(l.cond(c, a.center, b.center))
	for _, s := range unionSyms(a, b) {
		ea, ok := a.errs[s]
		if !ok {
			ea = l.konst(0)
		}
		eb, ok := b.errs[s]
		if !ok {
			eb = l.konst(0)
		}
		out.errs[s] = l.cond(c, ea, eb)
	}
	return out
}

// store writes results into the destination of s. Error slots the
// statement does not produce are zeroed. Merged elements keep their
// pass-through symbols and give the representative the total magnitude
// of the symbols it replaces.
func (l *lowerer) store(s *shir.Stmt, rec *aasym.StmtSyms, results []form) {
	idx := l.p.Indices(s.Dest)
	if len(results) != len(idx) {
		aasym.ICE("s%d: %d results for %d destination elements", s.ID, len(results), len(idx))
	}
	results = l.detach(s, results)

	st, affine := l.layout[s.Dest.Var]
	for i, elem := range idx {
		f := results[i]
		l.assign(shir.Operand{Var: s.Dest.Var, Swiz: []int{elem}}, f.center)
		if !affine {
			continue
		}
		for sym := range f.errs {
			if !rec.Dest[i].Has(sym) {
				aasym.ICE("s%d[%d]: produced symbol %d outside dest %s", s.ID, i, sym, rec.Dest[i])
			}
		}
		rep := -1
		if !rec.MergeRep[i].Empty() && !rec.MergeDest[i].Equal(rec.Dest[i]) {
			rep = rec.MergeRep[i].First()
		}
		for _, sym := range st.Internal.Syms[elem].Slice() {
			slot, _ := st.Internal.Slot(elem, sym)
			switch {
			case sym == rep:
				var terms []shir.Operand
				for _, u := range rec.Unique[i].Intersect(rec.Dest[i]).Slice() {
					if e, ok := f.errs[u]; ok {
						terms = append(terms, l.abs(e))
					}
				}
				l.assign(slot, l.sum(terms))
			case rec.MergeDest[i].Has(sym):
				if e, ok := f.errs[sym]; ok {
					l.assign(slot, e)
				} else {
					l.assign(slot, l.konst(0))
				}
			default:
				l.assign(slot, l.konst(0))
			}
		}
		if rep >= 0 && !st.Internal.Syms[elem].Has(rep) {
			aasym.ICE("s%d[%d]: representative %d has no slot", s.ID, i, rep)
		}
	}
}

// detach copies result operands that read the destination's own storage
// into temporaries, so storing one element cannot clobber another.
func (l *lowerer) detach(s *shir.Stmt, results []form) []form {
	owner, ok := l.storageOf[s.Dest.Var]
	if !ok {
		owner = s.Dest.Var
	}
	clobbered := func(o shir.Operand) bool {
		if o.Var == s.Dest.Var {
			return true
		}
		v, ok := l.storageOf[o.Var]
		return ok && v == owner
	}
	fix := func(o shir.Operand) shir.Operand {
		if !clobbered(o) {
			return o
		}
		return l.op(shir.OpAsn, o)
	}
	out := make([]form, len(results))
	for i, f := range results {
		g := newForm(fix(f.center))
		for _, sym := range f.syms() {
			g.errs[sym] = fix(f.errs[sym])
		}
		out[i] = g
	}
	return out
}
