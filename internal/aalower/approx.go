package aalower

import (
	"math"

	"shade/internal/shir"
)

// rangeEps widens degenerate ranges so the secant slope stays finite.
// Approximating over a wider range is still an enclosure.
const rangeEps = 1e-9

// zeroSpanErr is the error reported for a reciprocal whose range
// contains zero.
const zeroSpanErr = 1e30

// curve describes a function that is convex or concave over every
// range the lowering applies it to. tangent returns the point of [lo,hi]
// where f' equals alpha; domain is the smallest argument f accepts.
type curve struct {
	f       shir.Op
	domain  float64
	tangent func(l *lowerer, alpha, hi shir.Operand) shir.Operand
}

// smallestPositive keeps log and rsq away from zero.
const smallestPositive = math.SmallestNonzeroFloat32

// Tangent points: rcp has f' = -1/x^2 and takes the sign of the side of
// zero the range is on; rsq has f' = -x^(-3/2)/2; sqrt has
// f' = 1/(2 sqrt x); exp2 and exp10 carry a ln factor in f', as do the
// matching logarithms.
var (
	curveRcp = curve{
		f:      shir.OpRcp,
		domain: math.Inf(-1),
		tangent: func(l *lowerer, alpha, hi shir.Operand) shir.Operand {
			xi := l.op(shir.OpRcp, l.op(shir.OpSqrt, alpha.Negate()))
			return l.cond(l.op(shir.OpSgt, xi, hi), xi.Negate(), xi)
		},
	}
	curveRsq = curve{
		f:      shir.OpRsq,
		domain: smallestPositive,
		tangent: func(l *lowerer, alpha, _ shir.Operand) shir.Operand {
			return l.op(shir.OpPow, l.mul(l.konst(-2), alpha), l.konst(-2.0/3.0))
		},
	}
	curveSqrt = curve{
		f:      shir.OpSqrt,
		domain: 0,
		tangent: func(l *lowerer, alpha, _ shir.Operand) shir.Operand {
			return l.op(shir.OpRcp, l.mul(l.konst(4), l.mul(alpha, alpha)))
		},
	}
	curveExp = curve{
		f:      shir.OpExp,
		domain: math.Inf(-1),
		tangent: func(l *lowerer, alpha, _ shir.Operand) shir.Operand {
			return l.op(shir.OpLog, alpha)
		},
	}
	curveExp2 = curve{
		f:      shir.OpExp2,
		domain: math.Inf(-1),
		tangent: func(l *lowerer, alpha, _ shir.Operand) shir.Operand {
			return l.op(shir.OpLog2, l.mul(alpha, l.konst(1/math.Ln2)))
		},
	}
	curveExp10 = curve{
		f:      shir.OpExp10,
		domain: math.Inf(-1),
		tangent: func(l *lowerer, alpha, _ shir.Operand) shir.Operand {
			return l.op(shir.OpLog10, l.mul(alpha, l.konst(1/math.Ln10)))
		},
	}
	curveLog = curve{
		f:      shir.OpLog,
		domain: smallestPositive,
		tangent: func(l *lowerer, alpha, _ shir.Operand) shir.Operand {
			return l.op(shir.OpRcp, alpha)
		},
	}
	curveLog2 = curve{
		f:      shir.OpLog2,
		domain: smallestPositive,
		tangent: func(l *lowerer, alpha, _ shir.Operand) shir.Operand {
			return l.op(shir.OpRcp, l.mul(alpha, l.konst(math.Ln2)))
		},
	}
	curveLog10 = curve{
		f:      shir.OpLog10,
		domain: smallestPositive,
		tangent: func(l *lowerer, alpha, _ shir.Operand) shir.Operand {
			return l.op(shir.OpRcp, l.mul(alpha, l.konst(math.Ln10)))
		},
	}
)

var curves = map[shir.Op]curve{
	shir.OpRsq:   curveRsq,
	shir.OpSqrt:  curveSqrt,
	shir.OpExp:   curveExp,
	shir.OpExp2:  curveExp2,
	shir.OpExp10: curveExp10,
	shir.OpLog:   curveLog,
	shir.OpLog2:  curveLog2,
	shir.OpLog10: curveLog10,
}

// approx is the min-range linearization of c over the range of x.
type approx struct {
	alpha, beta, delta shir.Operand
	lo, hi             shir.Operand
}

// minRange computes slope alpha from the secant over [lo,hi], the
// intercept halfway between the secant and the parallel tangent, and
// delta, half the gap between them.
func (l *lowerer) minRange(x form, c curve) approx {
	lo, hi := l.bounds(x)
	if !math.IsInf(c.domain, -1) {
		lo = l.op(shir.OpMax, lo, l.konst(c.domain))
		hi = l.op(shir.OpMax, hi, lo)
	}
	hi = l.op(shir.OpMax, hi, l.add(lo, l.konst(rangeEps)))

	flo := l.op(c.f, lo)
	fhi := l.op(c.f, hi)
	alpha := l.op(shir.OpDiv, l.sub(fhi, flo), l.sub(hi, lo))
	xi := c.tangent(l, alpha, hi)
	fxi := l.op(c.f, xi)

	secant := l.sub(flo, l.mul(alpha, lo))
	tangent := l.sub(fxi, l.mul(alpha, xi))
	return approx{
		alpha: alpha,
		beta:  l.half(l.add(secant, tangent)),
		delta: l.half(l.abs(l.sub(secant, tangent))),
		lo:    lo,
		hi:    hi,
	}
}

// convex lowers a curve with its error bound on sym.
func (l *lowerer) convex(x form, c curve, sym int) form {
	a := l.minRange(x, c)
	return l.scaleShift(x, a.alpha, a.beta, a.delta, sym)
}

// rcp falls back to center 0 and a huge error when the range contains
// zero.
func (l *lowerer) rcp(x form, sym int) form {
	a := l.minRange(x, curveRcp)
	r := l.scaleShift(x, a.alpha, a.beta, a.delta, sym)
	lo, hi := l.bounds(x)
	spans := l.op(shir.OpSle, l.mul(lo, hi), l.konst(0))
	bad := l.zero()
	bad.errs[sym] = l.konst(zeroSpanErr)
	return l.condForms(spans, bad, r)
}

// floor is exact when the range stays within one integer step, else the
// interval between the floors of the bounds.
func (l *lowerer) floor(x form, sym int) form {
	lo, hi := l.bounds(x)
	return l.interval(l.op(shir.OpFlr, lo), l.op(shir.OpFlr, hi), sym)
}

// frac keeps x's terms while x stays within one integer step, else
// covers [0,1].
func (l *lowerer) frac(x form, sym int) form {
	lo, hi := l.bounds(x)
	flo := l.op(shir.OpFlr, lo)
	same := l.op(shir.OpSeq, flo, l.op(shir.OpFlr, hi))
	exact := newForm(l.sub(x.center, flo))
	for s, e := range x.errs {
		exact.errs[s] = e
	}
	exact.errs[sym] = l.konst(0)
	return l.condForms(same, exact, l.interval(l.konst(0), l.konst(1), sym))
}

func (l *lowerer) absForm(x form, sym int) form {
	lo, hi := l.bounds(x)
	pos := l.op(shir.OpSge, lo, l.konst(0))
	neg := l.op(shir.OpSle, hi, l.konst(0))
	span := l.interval(l.konst(0), l.op(shir.OpMax, lo.Negate(), hi), sym)
	return l.condForms(pos, x, l.condForms(neg, l.neg(x), span))
}

func (l *lowerer) pos(x form, sym int) form {
	lo, hi := l.bounds(x)
	pos := l.op(shir.OpSge, lo, l.konst(0))
	neg := l.op(shir.OpSle, hi, l.konst(0))
	span := l.interval(l.konst(0), hi, sym)
	return l.condForms(pos, x, l.condForms(neg, l.zero(), span))
}

// minMax picks an operand when the ranges decide the comparison, else the
// interval of possible results.
func (l *lowerer) minMax(isMax bool, a, b form, sym int) form {
	dlo, dhi := l.bounds(l.addForms(a, l.neg(b)))
	alo, ahi := l.bounds(a)
	blo, bhi := l.bounds(b)
	aBelow := l.op(shir.OpSle, dhi, l.konst(0))
	bBelow := l.op(shir.OpSge, dlo, l.konst(0))
	pick := shir.OpMin
	if isMax {
		pick = shir.OpMax
	}
	span := l.interval(l.op(pick, alo, blo), l.op(pick, ahi, bhi), sym)
	first, second := a, b
	if isMax {
		first, second = b, a
	}
	// aBelow means a <= b everywhere on the range
	return l.condForms(aBelow, first, l.condForms(bBelow, second, span))
}

// compare yields 1 or 0 when the ranges decide the comparison and
// 0.5 +- 0.5 otherwise. Operand terms do not survive.
func (l *lowerer) compare(op shir.Op, a, b form, sym int) form {
	d := l.addForms(a, l.neg(b))
	dlo, dhi := l.bounds(d)
	zero := l.konst(0)
	var def1, def0 shir.Operand
	switch op {
	case shir.OpSlt:
		def1, def0 = l.op(shir.OpSlt, dhi, zero), l.op(shir.OpSge, dlo, zero)
	case shir.OpSle:
		def1, def0 = l.op(shir.OpSle, dhi, zero), l.op(shir.OpSgt, dlo, zero)
	case shir.OpSgt:
		def1, def0 = l.op(shir.OpSgt, dlo, zero), l.op(shir.OpSle, dhi, zero)
	case shir.OpSge:
		def1, def0 = l.op(shir.OpSge, dlo, zero), l.op(shir.OpSlt, dhi, zero)
	case shir.OpSeq, shir.OpSne:
		point := l.mul(l.op(shir.OpSeq, dlo, zero), l.op(shir.OpSeq, dhi, zero))
		apart := l.add(l.op(shir.OpSgt, dlo, zero), l.op(shir.OpSlt, dhi, zero))
		def1, def0 = point, apart
		if op == shir.OpSne {
			def1, def0 = apart, point
		}
	}
	maybe := l.sub(l.sub(l.konst(1), def1), def0)
	f := newForm(l.mad(l.konst(0.5), maybe, def1))
	f.errs[sym] = l.half(maybe)
	return f
}
