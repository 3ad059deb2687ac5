package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"shade/internal/aalower"
	"shade/internal/aaplace"
	"shade/internal/eval"
	"shade/internal/shir"
)

var (
	evalSet      []string
	evalRadius   []string
	evalMaxSteps int
	evalAttrib   bool
)

func init() {
	evalCmd.Flags().StringArrayVar(&evalSet, "set", nil, "input value: name=v1,v2,... (repeatable)")
	evalCmd.Flags().StringArrayVar(&evalRadius, "radius", nil, "affine input radius: name=r1,r2,... (repeatable)")
	evalCmd.Flags().IntVar(&evalMaxSteps, "max-steps", eval.DefaultMaxSteps, "statement budget for the interpreter")
	evalCmd.Flags().BoolVar(&evalAttrib, "attrib", false, "split each affine output radius by the input or statement that introduced it")
}

var evalCmd = &cobra.Command{
	Use:   "eval FILE",
	Short: "Lower a program and run it on concrete inputs",
	Long: `eval lowers FILE and interprets the result. Affine inputs take a center
from --set and a radius from --radius; affine outputs are printed as
center ± radius with the enclosing interval. --attrib lists, under each
affine output element, how much of its radius every input element and
statement contributed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		defer s.cleanup()

		centers, err := parseAssignments(evalSet)
		if err != nil {
			return fmt.Errorf("--set: %w", err)
		}
		radii, err := parseAssignments(evalRadius)
		if err != nil {
			return fmt.Errorf("--radius: %w", err)
		}

		res, err := compileFile(cmd, s, args[0])
		if err != nil {
			return err
		}
		p := res.Program
		values := make(map[string][]float64)
		forms := make(map[string][]aalower.Form)
		for name, vals := range centers {
			st, ok := res.Layout.Lookup(name)
			if !ok || st.In == nil {
				values[name] = vals
				continue
			}
			r := radii[name]
			if r == nil {
				r = make([]float64, len(vals))
			}
			if forms[name], err = st.IntervalForms(vals, r); err != nil {
				return err
			}
			delete(radii, name)
		}
		if len(radii) > 0 {
			names := make([]string, 0, len(radii))
			for name := range radii {
				names = append(names, name)
			}
			sort.Strings(names)
			return fmt.Errorf("--radius %s: no affine input with a --set center", strings.Join(names, ", "))
		}
		if err := res.Layout.BindInputs(p, forms, values); err != nil {
			return err
		}

		out, err := eval.Run(p, values, eval.Options{MaxSteps: evalMaxSteps})
		if err != nil {
			return err
		}
		var origins map[int]aaplace.Origin
		if evalAttrib {
			origins = res.Origins
		}
		return printOutputs(cmd.OutOrStdout(), p, res.Layout, out, origins, s.colored)
	},
}

// parseAssignments reads name=v1,v2,... pairs.
func parseAssignments(list []string) (map[string][]float64, error) {
	out := make(map[string][]float64, len(list))
	for _, item := range list {
		name, rest, ok := strings.Cut(item, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("%q is not name=values", item)
		}
		var vals []float64
		for _, field := range strings.Split(rest, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			vals = append(vals, v)
		}
		out[name] = vals
	}
	return out, nil
}

// printOutputs lists every program output. Error storage is folded into
// the affine output it belongs to. With origins, each affine element is
// followed by its radius split per origin.
func printOutputs(w io.Writer, p *shir.Program, layout aalower.Layout, res *eval.Result, origins map[int]aaplace.Origin, colored bool) error {
	storage := make(map[string]bool)
	for _, st := range layout {
		for _, es := range []*aalower.ErrStorage{st.Internal, st.In, st.Out} {
			if es == nil {
				continue
			}
			for _, v := range es.Vars {
				if v != shir.NoVarID {
					storage[p.VarName(v)] = true
				}
			}
		}
	}
	nameColor := color.New(color.Bold)
	if !colored {
		nameColor.DisableColor()
	}
	for _, name := range res.Names() {
		if storage[name] {
			continue
		}
		if st, ok := layout.Lookup(name); ok && st.Out != nil {
			forms, err := layout.ReadForms(p, name, res.Values)
			if err != nil {
				return err
			}
			for e, f := range forms {
				lo, hi := f.Bounds()
				fmt.Fprintf(w, "%s[%d] = %g ± %g  [%g, %g]\n", nameColor.Sprint(name), e, f.Center, f.Radius(), lo, hi)
				if origins == nil {
					continue
				}
				for _, sh := range f.Attribute(origins) {
					fmt.Fprintf(w, "    %-10g %s\n", sh.Radius, sh.Origin)
				}
			}
			continue
		}
		fmt.Fprintf(w, "%s = %v\n", nameColor.Sprint(name), res.Get(name))
	}
	return nil
}
