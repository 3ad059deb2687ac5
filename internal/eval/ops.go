package eval

import (
	"math"

	"shade/internal/shir"
)

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

var unary = map[shir.Op]func(x float64) float64{
	shir.OpAsn:   func(x float64) float64 { return x },
	shir.OpNeg:   func(x float64) float64 { return -x },
	shir.OpRcp:   func(x float64) float64 { return 1 / x },
	shir.OpRsq:   func(x float64) float64 { return 1 / math.Sqrt(x) },
	shir.OpSqrt:  math.Sqrt,
	shir.OpExp:   math.Exp,
	shir.OpExp2:  math.Exp2,
	shir.OpExp10: func(x float64) float64 { return math.Pow(10, x) },
	shir.OpLog:   math.Log,
	shir.OpLog2:  math.Log2,
	shir.OpLog10: math.Log10,
	shir.OpFlr:   math.Floor,
	shir.OpFrac:  func(x float64) float64 { return x - math.Floor(x) },
	shir.OpAbs:   math.Abs,
	shir.OpPos:   func(x float64) float64 { return math.Max(x, 0) },
}

var binary = map[shir.Op]func(a, b float64) float64{
	shir.OpAdd: func(a, b float64) float64 { return a + b },
	shir.OpMul: func(a, b float64) float64 { return a * b },
	shir.OpDiv: func(a, b float64) float64 { return a / b },
	shir.OpPow: math.Pow,
	shir.OpMin: math.Min,
	shir.OpMax: math.Max,
	shir.OpSlt: func(a, b float64) float64 { return b2f(a < b) },
	shir.OpSle: func(a, b float64) float64 { return b2f(a <= b) },
	shir.OpSgt: func(a, b float64) float64 { return b2f(a > b) },
	shir.OpSge: func(a, b float64) float64 { return b2f(a >= b) },
	shir.OpSeq: func(a, b float64) float64 { return b2f(a == b) },
	shir.OpSne: func(a, b float64) float64 { return b2f(a != b) },
}

var ternary = map[shir.Op]func(a, b, c float64) float64{
	shir.OpMad: func(a, b, c float64) float64 { return a*b + c },
	shir.OpLrp: func(a, b, c float64) float64 { return a*(b-c) + c },
	shir.OpCond: func(a, b, c float64) float64 {
		if a > 0 {
			return b
		}
		return c
	},
}

// exec computes every destination element before writing any, so a
// statement may read the elements it overwrites.
func (m *machine) exec(s *shir.Stmt) error {
	n := m.p.Size(s.Dest)
	res := make([]float64, n)
	switch {
	case unary[s.Op] != nil:
		f := unary[s.Op]
		for i := range res {
			res[i] = f(m.read(s.Src[0], i))
		}
	case binary[s.Op] != nil:
		f := binary[s.Op]
		for i := range res {
			res[i] = f(m.read(s.Src[0], i), m.read(s.Src[1], i))
		}
	case ternary[s.Op] != nil:
		f := ternary[s.Op]
		for i := range res {
			res[i] = f(m.read(s.Src[0], i), m.read(s.Src[1], i), m.read(s.Src[2], i))
		}
	case s.Op == shir.OpDot:
		for k := range m.p.Size(s.Src[0]) {
			res[0] += m.read(s.Src[0], k) * m.read(s.Src[1], k)
		}
	case s.Op == shir.OpCsum:
		for k := range m.p.Size(s.Src[0]) {
			res[0] += m.read(s.Src[0], k)
		}
	case s.Op == shir.OpTex:
		if err := m.sample(s.Src[0].Var, m.read(s.Src[1], 0), res); err != nil {
			return err
		}
	default:
		return &Error{Code: CodeUnsupported, Message: "no regular meaning for " + s.Op.String()}
	}
	for i, e := range m.p.Indices(s.Dest) {
		m.vals[s.Dest.Var][e] = res[i]
	}
	return nil
}

// sample is a nearest lookup of a one-dimensional texture at u in [0,1].
func (m *machine) sample(tex shir.VarID, u float64, out []float64) error {
	v := m.p.Var(tex)
	texels := len(v.Data) / v.Size
	if texels == 0 {
		return &Error{Code: CodeBadTexture, Message: "texture " + v.Name + " has no texels"}
	}
	idx := int(math.Floor(u * float64(texels)))
	idx = min(max(idx, 0), texels-1)
	copy(out, v.Data[idx*v.Size:(idx+1)*v.Size])
	return nil
}
