package shir

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
)

const swizLetters = "xyzw"

// FormatOperand renders o as [-]name[.swizzle].
func (p *Program) FormatOperand(o Operand) string {
	if !o.Valid() {
		return "_"
	}
	var sb strings.Builder
	if o.Neg {
		sb.WriteByte('-')
	}
	sb.WriteString(p.VarName(o.Var))
	if o.Swiz == nil {
		return sb.String()
	}
	letters := true
	for _, k := range o.Swiz {
		if k >= len(swizLetters) {
			letters = false
			break
		}
	}
	if letters {
		sb.WriteByte('.')
		for _, k := range o.Swiz {
			sb.WriteByte(swizLetters[k])
		}
		return sb.String()
	}
	sb.WriteByte('[')
	for i, k := range o.Swiz {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(k))
	}
	sb.WriteByte(']')
	return sb.String()
}

// FormatStmt renders s without its comment.
func (p *Program) FormatStmt(s *Stmt) string {
	var sb strings.Builder
	if s.HasDest() {
		sb.WriteString(p.FormatOperand(s.Dest))
		sb.WriteString(" = ")
	}
	sb.WriteString(s.Op.String())
	for k, src := range s.Src {
		if k == 0 {
			sb.WriteByte(' ')
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString(p.FormatOperand(src))
	}
	if info, _ := Info(s.Op); info.Has(FlagMarker) && s.Comment != "" {
		sb.WriteByte(' ')
		sb.WriteString(s.Comment)
	}
	return sb.String()
}

// Print writes a readable listing of the program. annotate, when not nil,
// supplies an extra trailing comment per statement.
func Print(w io.Writer, p *Program, annotate func(*Stmt) string) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "program %s\n", p.Name)
	for i := range p.Vars {
		v := &p.Vars[i]
		if v.Binding == BindTemp && !v.Affine() && strings.HasPrefix(v.Name, "%") {
			continue
		}
		fmt.Fprintf(&sb, "  %s %s %s[%d]", v.Binding, v.Name, v.Value, v.Size)
		if len(v.Data) > 0 && v.Binding == BindConst {
			fmt.Fprintf(&sb, " = %v", v.Data)
		}
		sb.WriteByte('\n')
	}

	for _, id := range p.Reachable() {
		n := p.Node(id)
		fmt.Fprintf(&sb, "n%d %s:\n", n.ID, n.Name)

		lines := make([]string, len(n.Stmts))
		width := 0
		for k, s := range n.Stmts {
			lines[k] = fmt.Sprintf("  s%-4d %s", s.ID, p.FormatStmt(s))
			width = max(width, runewidth.StringWidth(lines[k]))
		}
		for k, s := range n.Stmts {
			note := s.Comment
			if info, _ := Info(s.Op); info.Has(FlagMarker) {
				note = ""
			}
			if annotate != nil {
				if extra := annotate(s); extra != "" {
					if note != "" {
						note += " "
					}
					note += extra
				}
			}
			sb.WriteString(lines[k])
			if note != "" {
				sb.WriteString(strings.Repeat(" ", width-runewidth.StringWidth(lines[k])))
				sb.WriteString("  ; ")
				sb.WriteString(note)
			}
			sb.WriteByte('\n')
		}
		for _, e := range n.Edges {
			fmt.Fprintf(&sb, "  if %s -> n%d\n", p.FormatOperand(e.Cond), e.To)
		}
		if n.Follower != NoNodeID {
			fmt.Fprintf(&sb, "  -> n%d\n", n.Follower)
		}
	}
	_, err := io.WriteString(w, sb.String())
	return err
}
