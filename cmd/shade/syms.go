package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"shade/internal/aasym"
	"shade/internal/driver"
	"shade/internal/shir"
	"shade/internal/symdump"
)

var symsDump string

func init() {
	symsCmd.Flags().StringVar(&symsDump, "dump", "", "save the symbol table (msgpack) for --input-syms")
}

var symsCmd = &cobra.Command{
	Use:   "syms FILE",
	Short: "Print the noise symbols placed on every affine variable",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		defer s.cleanup()
		s.opts.PlaceOnly = true

		res, err := compileFile(cmd, s, args[0])
		if err != nil {
			return err
		}
		if symsDump != "" {
			if err := symdump.Save(symsDump, res.Table); err != nil {
				return err
			}
		}
		renderSyms(cmd.OutOrStdout(), res, s.colored)
		return nil
	},
}

type symRow struct {
	class, name, syms string
}

func symRows(p *shir.Program, ps *aasym.ProgramSyms) []symRow {
	var rows []symRow
	add := func(class string, m map[shir.VarID]aasym.Syms) {
		for _, v := range aasym.SortedVars(m) {
			rows = append(rows, symRow{class: class, name: p.VarName(v), syms: m[v].String()})
		}
	}
	add("input", ps.Inputs)
	add("var", ps.Vars)
	add("output", ps.Outputs)
	return rows
}

// renderSyms prints a bordered table of symbol tuples and a stats line.
func renderSyms(w io.Writer, res *driver.Result, colored bool) {
	rows := symRows(res.Program, res.Syms)
	header := symRow{class: "class", name: "variable", syms: "symbols"}
	widths := [3]int{}
	for _, r := range append([]symRow{header}, rows...) {
		widths[0] = max(widths[0], runewidth.StringWidth(r.class))
		widths[1] = max(widths[1], runewidth.StringWidth(r.name))
		widths[2] = max(widths[2], runewidth.StringWidth(r.syms))
	}
	line := func(r symRow) string {
		return runewidth.FillRight(r.class, widths[0]) + "  " +
			runewidth.FillRight(r.name, widths[1]) + "  " +
			runewidth.FillRight(r.syms, widths[2])
	}

	headStyle := lipgloss.NewStyle().Bold(true)
	box := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	if colored {
		headStyle = headStyle.Foreground(lipgloss.Color("6"))
		box = box.BorderForeground(lipgloss.Color("8"))
	}
	var sb strings.Builder
	sb.WriteString(headStyle.Render(line(header)))
	for _, r := range rows {
		sb.WriteByte('\n')
		sb.WriteString(line(r))
	}
	fmt.Fprintln(w, box.Render(sb.String()))

	st := res.Place
	fmt.Fprintf(w, "%s: %d symbols (max %d), %d records, %d merged, %d merge passes, %d joins, max live %d\n",
		res.Program.Name, st.Symbols, res.Syms.MaxSym, st.Records, st.Merged, st.MergePasses, st.Joins, st.MaxLive)
}
