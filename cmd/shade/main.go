package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"shade/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "shade",
	Short: "Affine error-term analysis and lowering for shader programs",
	Long: `shade places noise symbols on the affine values of a shader program and
rewrites it into ordinary tuple arithmetic that tracks rounding and
approximation error alongside every value.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(lowerCmd)
	rootCmd.AddCommand(symsCmd)
	rootCmd.AddCommand(evalCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(versionCmd)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "configuration file (default: ./"+configFileName()+" when present)")
	flags.String("color", "auto", "colorize output (auto|on|off)")
	flags.Bool("timings", false, "print phase timings to stderr")
	flags.Bool("no-merge", false, "disable live-range symbol merging")
	flags.Bool("no-hier", false, "disable hierarchical escape analysis")
	flags.String("input-syms", "", "symbol table saved by 'shade syms --dump' seeding affine inputs")
	flags.String("trace", "", "trace output file (- for stderr)")
	flags.String("trace-level", "", "trace level (off|error|phase|detail|debug)")
	flags.String("trace-mode", "", "trace mode (stream|ring|both)")
	flags.Duration("trace-heartbeat", 0, "emit a heartbeat event at this interval")
	flags.String("cpuprofile", "", "write a CPU profile to this file")
	flags.String("memprofile", "", "write a heap profile to this file on exit")
	flags.String("runtime-trace", "", "write a Go execution trace to this file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
