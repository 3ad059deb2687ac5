package aaplace

import (
	"fmt"

	"shade/internal/aasym"
	"shade/internal/shir"
)

// Origin names what introduced a noise symbol: one element of an affine
// input, or one element of the statement that allocated it.
type Origin struct {
	Input string // input variable, empty for statements
	Stmt  shir.StmtID
	Elem  int
	Text  string // statement as printed before lowering
}

func (o Origin) String() string {
	if o.Input != "" {
		return fmt.Sprintf("input %s[%d]", o.Input, o.Elem)
	}
	return fmt.Sprintf("s%d[%d] %s", o.Stmt, o.Elem, o.Text)
}

// Origins maps every symbol of ps to where it came from. It reads the
// statements of p, so it must run before lowering rewrites them. Input
// symbols win over statements when a tuple was seeded from elsewhere.
func Origins(p *shir.Program, ps *aasym.ProgramSyms) map[int]Origin {
	out := make(map[int]Origin)
	stmts := p.Stmts()
	for id, syms := range ps.Stmts {
		text := ""
		if s, ok := stmts[id]; ok {
			text = p.FormatStmt(s)
		}
		for e := range syms {
			for _, sym := range syms[e].Slice() {
				out[sym] = Origin{Stmt: id, Elem: e, Text: text}
			}
		}
	}
	for _, v := range aasym.SortedVars(ps.Inputs) {
		syms := ps.Inputs[v]
		for e := range syms {
			for _, sym := range syms[e].Slice() {
				out[sym] = Origin{Input: p.VarName(v), Stmt: shir.NoStmtID, Elem: e}
			}
		}
	}
	return out
}
