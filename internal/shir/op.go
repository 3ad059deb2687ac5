package shir

// Op enumerates statement operations.
type Op uint8

const (
	// OpAsn copies its operand.
	OpAsn Op = iota
	// OpNeg negates its operand.
	OpNeg
	// OpAdd adds two operands elementwise.
	OpAdd
	// OpMul multiplies two operands elementwise.
	OpMul
	// OpDiv divides two operands elementwise.
	OpDiv
	// OpMad computes a*b+c.
	OpMad
	// OpLrp computes a*(b-c)+c.
	OpLrp
	// OpDot computes the dot product of two tuples.
	OpDot
	// OpCsum sums the elements of a tuple.
	OpCsum
	// OpRcp computes the reciprocal.
	OpRcp
	// OpRsq computes the reciprocal square root.
	OpRsq
	// OpSqrt computes the square root.
	OpSqrt
	// OpExp computes e^x.
	OpExp
	// OpExp2 computes 2^x.
	OpExp2
	// OpExp10 computes 10^x.
	OpExp10
	// OpLog computes ln x.
	OpLog
	// OpLog2 computes log2 x.
	OpLog2
	// OpLog10 computes log10 x.
	OpLog10
	// OpPow computes a^b.
	OpPow
	// OpFlr rounds down.
	OpFlr
	// OpFrac keeps the fractional part.
	OpFrac
	// OpAbs computes |x|.
	OpAbs
	// OpPos computes max(x, 0).
	OpPos
	// OpMin computes the elementwise minimum.
	OpMin
	// OpMax computes the elementwise maximum.
	OpMax
	// OpSlt sets 1 where a < b.
	OpSlt
	// OpSle sets 1 where a <= b.
	OpSle
	// OpSgt sets 1 where a > b.
	OpSgt
	// OpSge sets 1 where a >= b.
	OpSge
	// OpSeq sets 1 where a == b.
	OpSeq
	// OpSne sets 1 where a != b.
	OpSne
	// OpCond selects b where a > 0, else c.
	OpCond
	// OpTex reads a texture at a coordinate.
	OpTex
	// OpIval builds an affine value from interval bounds lo, hi.
	OpIval
	// OpLo extracts the lower bound of an affine value.
	OpLo
	// OpHi extracts the upper bound of an affine value.
	OpHi
	// OpWidth extracts hi-lo of an affine value.
	OpWidth
	// OpRadius extracts the total error radius of an affine value.
	OpRadius
	// OpCenter extracts the center of an affine value.
	OpCenter
	// OpErrFrom keeps only the error terms of a that appear in b.
	OpErrFrom
	// OpLastErr extracts the coefficient of b's most recent symbol in a.
	OpLastErr
	// OpEscJoin collapses symbols leaving a lexical section.
	OpEscJoin
	// OpStartSec opens a lexical section.
	OpStartSec
	// OpEndSec closes a lexical section.
	OpEndSec

	opCount
)

// Policy is the way an operation combines the symbols of its operands into
// its destination.
type Policy uint8

const (
	// PolicyIgnore contributes no operand symbols.
	PolicyIgnore Policy = iota
	// PolicyLinear gives destination element i the symbols of operand element i.
	PolicyLinear
	// PolicyAll gives every destination element every operand symbol.
	PolicyAll
	// PolicyExternal is operation specific; it resolves to PolicyAll.
	PolicyExternal
	// PolicySpecial is computed by the placement pass itself.
	PolicySpecial
)

func (p Policy) String() string {
	switch p {
	case PolicyIgnore:
		return "ignore"
	case PolicyLinear:
		return "linear"
	case PolicyAll:
		return "all"
	case PolicyExternal:
		return "external"
	case PolicySpecial:
		return "special"
	default:
		return "unknown"
	}
}

// OpFlags carry structural facts about an operation.
type OpFlags uint8

const (
	// FlagMarker marks section delimiters; they have no destination.
	FlagMarker OpFlags = 1 << iota
	// FlagRegularDest marks affine readers with a regular result.
	FlagRegularDest
	// FlagMakesAffine marks operations whose result is affine even from regular operands.
	FlagMakesAffine
	// FlagAffineOnly marks operations with no regular form.
	FlagAffineOnly
	// FlagReduce marks operations with a single-element result.
	FlagReduce
)

// OpInfo describes an operation.
type OpInfo struct {
	Name   string
	Arity  int
	Policy Policy
	// Fresh is the number of new symbols each destination element needs
	// when the operation is lowered on affine values.
	Fresh int
	Flags OpFlags
}

// Has reports whether all of f is set.
func (i OpInfo) Has(f OpFlags) bool { return i.Flags&f == f }

var opTable = [opCount]OpInfo{
	OpAsn:      {Name: "asn", Arity: 1, Policy: PolicyLinear},
	OpNeg:      {Name: "neg", Arity: 1, Policy: PolicyLinear},
	OpAdd:      {Name: "add", Arity: 2, Policy: PolicyLinear},
	OpMul:      {Name: "mul", Arity: 2, Policy: PolicyAll, Fresh: 1},
	OpDiv:      {Name: "div", Arity: 2, Policy: PolicyAll, Fresh: 2},
	OpMad:      {Name: "mad", Arity: 3, Policy: PolicyAll, Fresh: 1},
	OpLrp:      {Name: "lrp", Arity: 3, Policy: PolicyAll, Fresh: 1},
	OpDot:      {Name: "dot", Arity: 2, Policy: PolicyAll, Fresh: 1, Flags: FlagReduce},
	OpCsum:     {Name: "csum", Arity: 1, Policy: PolicyAll, Flags: FlagReduce},
	OpRcp:      {Name: "rcp", Arity: 1, Policy: PolicyLinear, Fresh: 1},
	OpRsq:      {Name: "rsq", Arity: 1, Policy: PolicyLinear, Fresh: 1},
	OpSqrt:     {Name: "sqrt", Arity: 1, Policy: PolicyLinear, Fresh: 1},
	OpExp:      {Name: "exp", Arity: 1, Policy: PolicyLinear, Fresh: 1},
	OpExp2:     {Name: "exp2", Arity: 1, Policy: PolicyLinear, Fresh: 1},
	OpExp10:    {Name: "exp10", Arity: 1, Policy: PolicyLinear, Fresh: 1},
	OpLog:      {Name: "log", Arity: 1, Policy: PolicyLinear, Fresh: 1},
	OpLog2:     {Name: "log2", Arity: 1, Policy: PolicyLinear, Fresh: 1},
	OpLog10:    {Name: "log10", Arity: 1, Policy: PolicyLinear, Fresh: 1},
	OpPow:      {Name: "pow", Arity: 2, Policy: PolicyLinear, Fresh: 3},
	OpFlr:      {Name: "flr", Arity: 1, Policy: PolicyLinear, Fresh: 1},
	OpFrac:     {Name: "frac", Arity: 1, Policy: PolicyLinear, Fresh: 1},
	OpAbs:      {Name: "abs", Arity: 1, Policy: PolicyLinear, Fresh: 1},
	OpPos:      {Name: "pos", Arity: 1, Policy: PolicyLinear, Fresh: 1},
	OpMin:      {Name: "min", Arity: 2, Policy: PolicyLinear, Fresh: 1},
	OpMax:      {Name: "max", Arity: 2, Policy: PolicyLinear, Fresh: 1},
	OpSlt:      {Name: "slt", Arity: 2, Policy: PolicyIgnore, Fresh: 1},
	OpSle:      {Name: "sle", Arity: 2, Policy: PolicyIgnore, Fresh: 1},
	OpSgt:      {Name: "sgt", Arity: 2, Policy: PolicyIgnore, Fresh: 1},
	OpSge:      {Name: "sge", Arity: 2, Policy: PolicyIgnore, Fresh: 1},
	OpSeq:      {Name: "seq", Arity: 2, Policy: PolicyIgnore, Fresh: 1},
	OpSne:      {Name: "sne", Arity: 2, Policy: PolicyIgnore, Fresh: 1},
	OpCond:     {Name: "cond", Arity: 3, Policy: PolicyLinear},
	OpTex:      {Name: "tex", Arity: 2, Policy: PolicyExternal, Fresh: 1},
	OpIval:     {Name: "ival", Arity: 2, Policy: PolicyIgnore, Fresh: 1, Flags: FlagMakesAffine | FlagAffineOnly},
	OpLo:       {Name: "lo", Arity: 1, Policy: PolicyIgnore, Flags: FlagRegularDest | FlagAffineOnly},
	OpHi:       {Name: "hi", Arity: 1, Policy: PolicyIgnore, Flags: FlagRegularDest | FlagAffineOnly},
	OpWidth:    {Name: "width", Arity: 1, Policy: PolicyIgnore, Flags: FlagRegularDest | FlagAffineOnly},
	OpRadius:   {Name: "radius", Arity: 1, Policy: PolicyIgnore, Flags: FlagRegularDest | FlagAffineOnly},
	OpCenter:   {Name: "center", Arity: 1, Policy: PolicyIgnore, Flags: FlagRegularDest | FlagAffineOnly},
	OpErrFrom:  {Name: "errfrom", Arity: 2, Policy: PolicySpecial, Flags: FlagAffineOnly},
	OpLastErr:  {Name: "lasterr", Arity: 2, Policy: PolicyIgnore, Flags: FlagRegularDest | FlagAffineOnly},
	OpEscJoin:  {Name: "escjoin", Arity: 1, Policy: PolicySpecial, Fresh: 1, Flags: FlagAffineOnly},
	OpStartSec: {Name: "startsec", Flags: FlagMarker},
	OpEndSec:   {Name: "endsec", Flags: FlagMarker},
}

// Info returns the description of op. ok is false for values outside the
// closed set of operations.
func Info(op Op) (info OpInfo, ok bool) {
	if op >= opCount {
		return OpInfo{}, false
	}
	info = opTable[op]
	return info, info.Name != ""
}

// Ops returns every defined operation in declaration order.
func Ops() []Op {
	out := make([]Op, 0, opCount)
	for op := Op(0); op < opCount; op++ {
		out = append(out, op)
	}
	return out
}

// LookupOp finds an operation by name.
func LookupOp(name string) (Op, bool) {
	for op := Op(0); op < opCount; op++ {
		if opTable[op].Name == name {
			return op, true
		}
	}
	return 0, false
}

func (op Op) String() string {
	if info, ok := Info(op); ok {
		return info.Name
	}
	return "op?"
}

// ResolvedPolicy maps PolicyExternal to the policy the placement pass uses.
func (i OpInfo) ResolvedPolicy() Policy {
	if i.Policy == PolicyExternal {
		return PolicyAll
	}
	return i.Policy
}
