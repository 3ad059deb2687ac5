package aaplace

import (
	"sort"

	"shade/internal/nest"
	"shade/internal/shir"
	"shade/internal/valtrack"
)

// insertJoins finds affine values that are defined inside a section and
// read outside it, and places an ESCJOIN for them right before the
// section's closing marker. It returns the number of joins inserted.
//
// A definition escapes its own section and every ancestor up to the first
// one that contains the use. Output uses are read at the root.
func insertJoins(p *shir.Program, tree *nest.Tree, chains *valtrack.Chains) int {
	// esc[section][var] holds the escaping elements.
	esc := make(map[nest.SectionID]map[shir.VarID]map[int]bool)
	mark := func(sec nest.SectionID, v shir.VarID, elem int) {
		vars, ok := esc[sec]
		if !ok {
			vars = make(map[shir.VarID]map[int]bool)
			esc[sec] = vars
		}
		if vars[v] == nil {
			vars[v] = make(map[int]bool)
		}
		vars[v][elem] = true
	}

	stmts := p.Stmts()
	for id, d := range chains.Defs {
		if d.Kind != valtrack.DefStmt || !p.Var(d.Var).Affine() {
			continue
		}
		start := tree.Section(d.Stmt)
		// a join's value is meant to leave its section
		if stmts[d.Stmt].Op == shir.OpEscJoin && start != nest.Root {
			start = tree.Parent(start)
		}
		if start == nest.Root {
			continue
		}
		for _, u := range chains.DefUse[id] {
			target := nest.Root
			if u.Kind == valtrack.UseStmt {
				target = tree.Section(u.Stmt)
			}
			for sec := start; !tree.Contains(sec, target); sec = tree.Parent(sec) {
				mark(sec, d.Var, d.Elem)
			}
		}
	}

	secs := make([]nest.SectionID, 0, len(esc))
	for sec := range esc {
		secs = append(secs, sec)
	}
	sort.Slice(secs, func(i, j int) bool { return secs[i] < secs[j] })

	count := 0
	for _, sec := range secs {
		info := tree.Sections[sec]
		vars := make([]shir.VarID, 0, len(esc[sec]))
		for v := range esc[sec] {
			vars = append(vars, v)
		}
		sort.Slice(vars, func(i, j int) bool { return vars[i] < vars[j] })

		joins := make([]*shir.Stmt, 0, len(vars))
		for _, v := range vars {
			elems := make([]int, 0, len(esc[sec][v]))
			for e := range esc[sec][v] {
				elems = append(elems, e)
			}
			sort.Ints(elems)
			op := shir.Operand{Var: v, Swiz: elems}
			s := p.NewStmt(shir.OpEscJoin, op, op)
			s.Comment = "leave " + info.Name
			joins = append(joins, s)
		}
		pos, ok := p.Locate()[info.End]
		if !ok {
			continue
		}
		p.Node(pos.Node).Insert(pos.Index, joins...)
		count += len(joins)
	}
	return count
}
