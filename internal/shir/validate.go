package shir

import (
	"errors"
	"fmt"
)

// Validate checks the structural contracts the affine passes rely on.
// All violations are reported together.
func Validate(p *Program) error {
	if p == nil {
		return nil
	}
	var errs []error
	if err := validateNodes(p); err != nil {
		errs = append(errs, err)
	}
	p.Walk(func(n *Node, _ int, s *Stmt) {
		if err := validateStmt(p, s); err != nil {
			errs = append(errs, fmt.Errorf("n%d: s%d %s: %w", n.ID, s.ID, s.Op, err))
		}
	})
	if err := validateVars(p); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func validateNodes(p *Program) error {
	var errs []error
	check := func(from NodeID, to NodeID) {
		if to < 0 || int(to) >= len(p.Nodes) {
			errs = append(errs, fmt.Errorf("n%d: edge to unknown node %d", from, to))
		}
	}
	for i := range p.Nodes {
		n := &p.Nodes[i]
		for _, e := range n.Edges {
			check(n.ID, e.To)
			if err := validateOperand(p, e.Cond); err != nil {
				errs = append(errs, fmt.Errorf("n%d: edge condition: %w", n.ID, err))
				continue
			}
			if p.Size(e.Cond) != 1 || p.IsAffine(e.Cond) {
				errs = append(errs, fmt.Errorf("n%d: edge condition must be a regular scalar", n.ID))
			}
		}
		if n.Follower != NoNodeID {
			check(n.ID, n.Follower)
		}
	}
	if entry := p.Node(p.Entry); len(entry.Stmts) > 0 || len(entry.Edges) > 0 {
		errs = append(errs, fmt.Errorf("n%d: entry node must be empty", p.Entry))
	}
	if exit := p.Node(p.Exit); len(exit.Stmts) > 0 || len(exit.Succs()) > 0 {
		errs = append(errs, fmt.Errorf("n%d: exit node must be empty", p.Exit))
	}
	return errors.Join(errs...)
}

func validateVars(p *Program) error {
	var errs []error
	for i := range p.Vars {
		v := &p.Vars[i]
		if v.Size <= 0 {
			errs = append(errs, fmt.Errorf("var %s: size %d", v.Name, v.Size))
		}
		switch v.Binding {
		case BindConst:
			if v.Affine() || len(v.Data) != v.Size {
				errs = append(errs, fmt.Errorf("var %s: constants are regular with %d values", v.Name, v.Size))
			}
		case BindTexture:
			if v.Affine() || len(v.Lo) != v.Size || len(v.Hi) != v.Size {
				errs = append(errs, fmt.Errorf("var %s: textures need regular storage and per-channel bounds", v.Name))
			}
		}
	}
	return errors.Join(errs...)
}

func validateOperand(p *Program, o Operand) error {
	if o.Var < 0 || int(o.Var) >= len(p.Vars) {
		return fmt.Errorf("unknown var %d", o.Var)
	}
	size := p.Vars[o.Var].Size
	for _, k := range o.Swiz {
		if k < 0 || k >= size {
			return fmt.Errorf("swizzle index %d out of range for %s", k, p.Vars[o.Var].Name)
		}
	}
	if o.Swiz != nil && len(o.Swiz) == 0 {
		return fmt.Errorf("empty swizzle on %s", p.Vars[o.Var].Name)
	}
	return nil
}

func validateStmt(p *Program, s *Stmt) error {
	info, ok := Info(s.Op)
	if !ok {
		return fmt.Errorf("unknown operation %d", s.Op)
	}
	if info.Has(FlagMarker) {
		if s.HasDest() || len(s.Src) != 0 {
			return errors.New("section markers take no operands")
		}
		return nil
	}
	if !s.HasDest() {
		return errors.New("missing destination")
	}
	if len(s.Src) != info.Arity {
		return fmt.Errorf("expected %d operands, got %d", info.Arity, len(s.Src))
	}
	if err := validateOperand(p, s.Dest); err != nil {
		return fmt.Errorf("dest: %w", err)
	}
	for k, src := range s.Src {
		if err := validateOperand(p, src); err != nil {
			return fmt.Errorf("src%d: %w", k, err)
		}
	}

	dest := p.Var(s.Dest.Var)
	switch dest.Binding {
	case BindInput, BindConst, BindTexture:
		return fmt.Errorf("cannot write %s variable %s", dest.Binding, dest.Name)
	}
	if s.Dest.Neg {
		return errors.New("negated destination")
	}
	seen := make(map[int]bool)
	for _, k := range p.Indices(s.Dest) {
		if seen[k] {
			return fmt.Errorf("destination element %d written twice", k)
		}
		seen[k] = true
	}

	if err := validateKinds(p, s, info); err != nil {
		return err
	}
	return validateSizes(p, s, info)
}

func validateKinds(p *Program, s *Stmt, info OpInfo) error {
	destAffine := p.IsAffine(s.Dest)
	anyAffine := false
	for _, src := range s.Src {
		if p.IsAffine(src) {
			anyAffine = true
		}
	}
	switch {
	case info.Has(FlagRegularDest):
		if destAffine {
			return errors.New("result is regular")
		}
		if !p.IsAffine(s.Src[0]) {
			return errors.New("operand must be affine")
		}
	case info.Has(FlagAffineOnly):
		if !destAffine {
			return errors.New("destination must be affine")
		}
	case anyAffine && !destAffine:
		return errors.New("regular destination from affine operand")
	}
	switch s.Op {
	case OpCond:
		if p.IsAffine(s.Src[0]) {
			return errors.New("condition must be regular")
		}
	case OpTex:
		if p.Var(s.Src[0].Var).Binding != BindTexture {
			return errors.New("first operand must be a texture")
		}
		if p.IsAffine(s.Src[1]) {
			return errors.New("texture coordinate must be regular")
		}
	case OpIval:
		if p.IsAffine(s.Src[0]) || p.IsAffine(s.Src[1]) {
			return errors.New("interval bounds must be regular")
		}
	}
	return nil
}

func validateSizes(p *Program, s *Stmt, info OpInfo) error {
	n := p.Size(s.Dest)
	switch {
	case s.Op == OpTex:
		if n != p.Var(s.Src[0].Var).Size {
			return fmt.Errorf("texture result has %d channels, dest %d", p.Var(s.Src[0].Var).Size, n)
		}
		return nil
	case s.Op == OpErrFrom || s.Op == OpLastErr:
		if m := p.Size(s.Src[0]); m != n && m != 1 {
			return fmt.Errorf("src0 has %d elements for %d", m, n)
		}
		return nil
	case info.Has(FlagReduce):
		if n != 1 {
			return fmt.Errorf("reduction writes one element, dest has %d", n)
		}
		if s.Op == OpDot && p.Size(s.Src[0]) != p.Size(s.Src[1]) {
			return fmt.Errorf("dot operands differ in size: %d vs %d", p.Size(s.Src[0]), p.Size(s.Src[1]))
		}
		return nil
	}
	for k, src := range s.Src {
		if m := p.Size(src); m != n && m != 1 {
			return fmt.Errorf("src%d has %d elements for %d", k, m, n)
		}
	}
	return nil
}
