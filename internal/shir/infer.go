package shir

// InferValues promotes temporaries to affine when any statement writes them
// from an affine operand, or with an operation whose result is always
// affine. It iterates to a fixpoint and returns the promoted variables.
func InferValues(p *Program) []VarID {
	var promoted []VarID
	for changed := true; changed; {
		changed = false
		p.Walk(func(_ *Node, _ int, s *Stmt) {
			if !s.HasDest() {
				return
			}
			dest := p.Var(s.Dest.Var)
			if dest.Binding != BindTemp || dest.Affine() {
				return
			}
			info, ok := Info(s.Op)
			if !ok || info.Has(FlagRegularDest) {
				return
			}
			if info.Has(FlagMakesAffine) || readsAffine(p, s) {
				dest.Value = ValueAffine
				promoted = append(promoted, dest.ID)
				changed = true
			}
		})
	}
	return promoted
}

func readsAffine(p *Program, s *Stmt) bool {
	for k, src := range s.Src {
		if s.Op == OpCond && k == 0 {
			continue
		}
		if s.Op == OpTex {
			continue
		}
		if p.IsAffine(src) {
			return true
		}
	}
	return false
}
