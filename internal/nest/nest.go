// Package nest recovers the lexical section structure of a program from its
// StartSec/EndSec markers.
package nest

import (
	"errors"
	"fmt"

	"shade/internal/shir"
)

// SectionID identifies a section. Root is the whole program.
type SectionID int32

// Root is the outermost section, at depth 0.
const Root SectionID = 0

// Section is one node of the section tree.
type Section struct {
	ID     SectionID
	Name   string
	Parent SectionID // Root's parent is itself
	Depth  int
	Start  shir.StmtID // NoStmtID for Root
	End    shir.StmtID
}

// Tree is the nesting decomposition of a program.
type Tree struct {
	Sections []Section
	// Of maps each placed statement to its innermost section. Markers
	// belong to the section they open or close.
	Of map[shir.StmtID]SectionID
	// NodeEntry is the section active on entry to each reachable node.
	NodeEntry map[shir.NodeID]SectionID
}

// Build walks the CFG from the entry carrying the open-section stack.
func Build(p *shir.Program) (*Tree, error) {
	t := &Tree{
		Sections:  []Section{{ID: Root, Name: "root", Parent: Root, Start: shir.NoStmtID, End: shir.NoStmtID}},
		Of:        make(map[shir.StmtID]SectionID),
		NodeEntry: make(map[shir.NodeID]SectionID),
	}
	byStart := make(map[shir.StmtID]SectionID)

	var errs []error
	type item struct {
		node shir.NodeID
		sec  SectionID
	}
	work := []item{{node: p.Entry, sec: Root}}
	for len(work) > 0 {
		it := work[len(work)-1]
		work = work[:len(work)-1]
		if prev, seen := t.NodeEntry[it.node]; seen {
			if prev != it.sec {
				errs = append(errs, fmt.Errorf("n%d: reached inside %s and %s",
					it.node, t.Sections[prev].Name, t.Sections[it.sec].Name))
			}
			continue
		}
		t.NodeEntry[it.node] = it.sec

		cur := it.sec
		n := p.Node(it.node)
		for _, s := range n.Stmts {
			switch s.Op {
			case shir.OpStartSec:
				id, ok := byStart[s.ID]
				if !ok {
					id = SectionID(len(t.Sections))
					t.Sections = append(t.Sections, Section{
						ID:     id,
						Name:   s.Comment,
						Parent: cur,
						Depth:  t.Sections[cur].Depth + 1,
						Start:  s.ID,
						End:    shir.NoStmtID,
					})
					byStart[s.ID] = id
				}
				cur = id
				t.Of[s.ID] = cur
			case shir.OpEndSec:
				if cur == Root {
					errs = append(errs, fmt.Errorf("n%d: s%d closes a section that is not open", n.ID, s.ID))
					t.Of[s.ID] = Root
					continue
				}
				sec := &t.Sections[cur]
				if sec.End != shir.NoStmtID && sec.End != s.ID {
					errs = append(errs, fmt.Errorf("n%d: section %s closed twice (s%d and s%d)", n.ID, sec.Name, sec.End, s.ID))
				}
				sec.End = s.ID
				t.Of[s.ID] = cur
				cur = sec.Parent
			default:
				t.Of[s.ID] = cur
			}
		}
		if n.ID == p.Exit && cur != Root {
			errs = append(errs, fmt.Errorf("section %s still open at exit", t.Sections[cur].Name))
		}
		succs := n.Succs()
		for i := len(succs) - 1; i >= 0; i-- {
			work = append(work, item{node: succs[i], sec: cur})
		}
	}
	for _, sec := range t.Sections[1:] {
		if sec.End == shir.NoStmtID {
			errs = append(errs, fmt.Errorf("section %s (s%d) never closed", sec.Name, sec.Start))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return t, nil
}

// Depth returns the nesting depth of a statement.
func (t *Tree) Depth(s shir.StmtID) int {
	return t.Sections[t.Section(s)].Depth
}

// Section returns the innermost section of a statement.
func (t *Tree) Section(s shir.StmtID) SectionID {
	sec, ok := t.Of[s]
	if !ok {
		panic(fmt.Errorf("nest: statement s%d has no section", s))
	}
	return sec
}

// Contains reports whether inner is outer or nested within it.
func (t *Tree) Contains(outer, inner SectionID) bool {
	for {
		if inner == outer {
			return true
		}
		if inner == Root {
			return false
		}
		inner = t.Sections[inner].Parent
	}
}

// Parent returns the enclosing section.
func (t *Tree) Parent(s SectionID) SectionID { return t.Sections[s].Parent }

// MaxDepth returns the deepest nesting level.
func (t *Tree) MaxDepth() int {
	d := 0
	for _, sec := range t.Sections {
		d = max(d, sec.Depth)
	}
	return d
}
