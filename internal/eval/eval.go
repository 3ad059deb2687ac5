// Package eval interprets regular programs: the output of lowering, or
// programs that never had affine values.
package eval

import (
	"errors"
	"fmt"
	"sort"

	"shade/internal/shir"
)

// DefaultMaxSteps bounds execution when Options leave it unset.
const DefaultMaxSteps = 1 << 20

// Options control a run.
type Options struct {
	// MaxSteps counts executed statements and visited nodes; <= 0 means
	// DefaultMaxSteps.
	MaxSteps int
}

// Result holds the final values of every output variable.
type Result struct {
	Values map[string][]float64
	Steps  int
}

// Get returns the values of an output, or nil.
func (r *Result) Get(name string) []float64 {
	if r == nil {
		return nil
	}
	return r.Values[name]
}

// Names returns the output names in sorted order.
func (r *Result) Names() []string {
	out := make([]string, 0, len(r.Values))
	for name := range r.Values {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

type machine struct {
	p    *shir.Program
	vals [][]float64
}

// read returns element i of o. Single-element operands broadcast.
func (m *machine) read(o shir.Operand, i int) float64 {
	idx := m.p.Indices(o)
	if len(idx) == 1 {
		i = 0
	}
	v := m.vals[o.Var][idx[i]]
	if o.Neg {
		v = -v
	}
	return v
}

// Run executes p from its entry. Inputs missing from inputs start at
// zero, as do temporaries and outputs.
func Run(p *shir.Program, inputs map[string][]float64, opts Options) (*Result, error) {
	if err := check(p); err != nil {
		return nil, err
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	m := &machine{p: p, vals: make([][]float64, len(p.Vars))}
	for i := range p.Vars {
		v := &p.Vars[i]
		m.vals[i] = make([]float64, v.Size)
		if v.Binding == shir.BindConst {
			copy(m.vals[i], v.Data)
		}
	}
	for name, vals := range inputs {
		id, ok := p.LookupVar(name)
		if !ok || !p.Var(id).Binding.IsInput() {
			return nil, &Error{Code: CodeBadInput, Message: fmt.Sprintf("%q is not an input", name)}
		}
		if len(vals) != p.Var(id).Size {
			return nil, &Error{Code: CodeBadInput, Message: fmt.Sprintf("%s takes %d values, got %d", name, p.Var(id).Size, len(vals))}
		}
		copy(m.vals[id], vals)
	}

	steps := 0
	cur := p.Entry
	for {
		n := p.Node(cur)
		steps++
		for _, s := range n.Stmts {
			if info, _ := shir.Info(s.Op); info.Has(shir.FlagMarker) {
				continue
			}
			steps++
			if steps > opts.MaxSteps {
				return nil, &Error{Code: CodeStepLimit, Message: fmt.Sprintf("more than %d steps", opts.MaxSteps), Node: n.Name, Stmt: p.FormatStmt(s)}
			}
			if err := m.exec(s); err != nil {
				var e *Error
				if errors.As(err, &e) && e.Stmt == "" {
					e.Node, e.Stmt = n.Name, p.FormatStmt(s)
				}
				return nil, err
			}
		}
		if cur == p.Exit || steps > opts.MaxSteps {
			break
		}
		next := n.Follower
		for _, e := range n.Edges {
			if m.read(e.Cond, 0) > 0 {
				next = e.To
				break
			}
		}
		if next == shir.NoNodeID {
			break
		}
		cur = next
	}
	if steps > opts.MaxSteps {
		return nil, &Error{Code: CodeStepLimit, Message: fmt.Sprintf("more than %d steps", opts.MaxSteps)}
	}

	res := &Result{Values: make(map[string][]float64), Steps: steps}
	for i := range p.Vars {
		if p.Vars[i].Binding.IsOutput() {
			res.Values[p.Vars[i].Name] = m.vals[i]
		}
	}
	return res, nil
}

// check rejects programs that still carry affine values.
func check(p *shir.Program) error {
	for i := range p.Vars {
		if p.Vars[i].Affine() {
			return &Error{Code: CodeAffine, Message: "variable " + p.Vars[i].Name + " is affine"}
		}
	}
	var bad *shir.Stmt
	p.Walk(func(_ *shir.Node, _ int, s *shir.Stmt) {
		info, ok := shir.Info(s.Op)
		if bad == nil && (!ok || info.Has(shir.FlagAffineOnly)) {
			bad = s
		}
	})
	if bad != nil {
		return &Error{Code: CodeAffine, Message: "affine-only operation", Stmt: p.FormatStmt(bad)}
	}
	return nil
}
