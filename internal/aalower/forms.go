package aalower

import (
	"fmt"
	"math"
	"sort"

	"shade/internal/aaplace"
	"shade/internal/shir"
)

// Form is the concrete value of one affine element: a center and one
// coefficient per noise symbol.
type Form struct {
	Center float64
	Coeffs map[int]float64
}

// Radius is the sum of the coefficient magnitudes.
func (f Form) Radius() float64 {
	r := 0.0
	for _, c := range f.Coeffs {
		r += math.Abs(c)
	}
	return r
}

// Bounds is the interval the form encloses.
func (f Form) Bounds() (lo, hi float64) {
	r := f.Radius()
	return f.Center - r, f.Center + r
}

// Share is the part of a form's radius owed to one origin.
type Share struct {
	Origin aaplace.Origin
	Syms   []int
	Radius float64
}

// Attribute splits the radius of f by the origin of each symbol, largest
// share first. A merged representative carries the whole merged term and
// is charged to the origin of the representative. Symbols missing from
// origins are grouped under an empty Origin.
func (f Form) Attribute(origins map[int]aaplace.Origin) []Share {
	syms := make([]int, 0, len(f.Coeffs))
	for sym := range f.Coeffs {
		syms = append(syms, sym)
	}
	sort.Ints(syms)

	var shares []Share
	at := make(map[aaplace.Origin]int)
	for _, sym := range syms {
		c := math.Abs(f.Coeffs[sym])
		if c == 0 {
			continue
		}
		o, ok := origins[sym]
		if !ok {
			o = aaplace.Origin{Stmt: shir.NoStmtID}
		}
		i, seen := at[o]
		if !seen {
			i = len(shares)
			at[o] = i
			shares = append(shares, Share{Origin: o})
		}
		shares[i].Syms = append(shares[i].Syms, sym)
		shares[i].Radius += c
	}
	sort.SliceStable(shares, func(i, j int) bool { return shares[i].Radius > shares[j].Radius })
	return shares
}

// IntervalForms builds input forms for center[e] ± radius[e], putting
// each radius on the first symbol of its element.
func (st *Storage) IntervalForms(center, radius []float64) ([]Form, error) {
	if st.In == nil {
		return nil, fmt.Errorf("%s is not an input", st.Name)
	}
	n := st.In.Syms.Size()
	if len(center) != n || len(radius) != n {
		return nil, fmt.Errorf("%s: %d elements, got %d centers and %d radii", st.Name, n, len(center), len(radius))
	}
	forms := make([]Form, n)
	for e := range forms {
		forms[e] = Form{Center: center[e], Coeffs: make(map[int]float64)}
		if radius[e] == 0 {
			continue
		}
		if st.In.Syms[e].Empty() {
			return nil, fmt.Errorf("%s[%d] has no noise symbol to carry radius %g", st.Name, e, radius[e])
		}
		forms[e].Coeffs[st.In.Syms[e].First()] = math.Abs(radius[e])
	}
	return forms, nil
}

// BindInputs writes forms for affine inputs into values under the names
// of the variables the lowered program reads.
func (l Layout) BindInputs(p *shir.Program, in map[string][]Form, values map[string][]float64) error {
	for name, forms := range in {
		st, ok := l.Lookup(name)
		if !ok || st.In == nil {
			return fmt.Errorf("%s is not an affine input", name)
		}
		if len(forms) != st.In.Syms.Size() {
			return fmt.Errorf("%s: %d forms for %d elements", name, len(forms), st.In.Syms.Size())
		}
		center := make([]float64, len(forms))
		for e, f := range forms {
			center[e] = f.Center
			for sym, c := range f.Coeffs {
				slot, ok := st.In.Slot(e, sym)
				if !ok {
					return fmt.Errorf("%s[%d] does not carry symbol %d", name, e, sym)
				}
				vname := p.VarName(slot.Var)
				if values[vname] == nil {
					values[vname] = make([]float64, p.Var(slot.Var).Size)
				}
				values[vname][slot.Swiz[0]] = c
			}
		}
		values[name] = center
	}
	return nil
}

// ReadForms reads the affine output name back from the values of a run
// of the lowered program.
func (l Layout) ReadForms(p *shir.Program, name string, values map[string][]float64) ([]Form, error) {
	st, ok := l.Lookup(name)
	if !ok || st.Out == nil {
		return nil, fmt.Errorf("%s is not an affine output", name)
	}
	center := values[name]
	if len(center) != st.Out.Syms.Size() {
		return nil, fmt.Errorf("%s: %d values for %d elements", name, len(center), st.Out.Syms.Size())
	}
	forms := make([]Form, len(center))
	for e := range forms {
		forms[e] = Form{Center: center[e], Coeffs: make(map[int]float64)}
		for _, sym := range st.Out.Syms[e].Slice() {
			slot, _ := st.Out.Slot(e, sym)
			vals := values[p.VarName(slot.Var)]
			if slot.Swiz[0] >= len(vals) {
				return nil, fmt.Errorf("%s[%d]: missing coefficient storage %s", name, e, p.VarName(slot.Var))
			}
			forms[e].Coeffs[sym] = vals[slot.Swiz[0]]
		}
	}
	return forms, nil
}
