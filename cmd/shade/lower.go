package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"shade/internal/driver"
	"shade/internal/progfile"
	"shade/internal/shir"
)

var lowerOutput string

func init() {
	lowerCmd.Flags().StringVarP(&lowerOutput, "output", "o", "", "write the listing to this file instead of stdout")
}

var lowerCmd = &cobra.Command{
	Use:   "lower FILE",
	Short: "Place noise symbols and print the lowered program",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		defer s.cleanup()

		res, err := compileFile(cmd, s, args[0])
		if err != nil {
			return err
		}

		var out io.Writer = cmd.OutOrStdout()
		if lowerOutput != "" {
			f, err := os.Create(lowerOutput)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}
		return shir.Print(out, res.Program, nil)
	},
}

// compileFile loads and compiles one program file with the session
// options, printing timings when asked.
func compileFile(cmd *cobra.Command, s *session, path string) (*driver.Result, error) {
	p, err := progfile.Load(path)
	if err != nil {
		return nil, err
	}
	res, err := driver.Compile(cmd.Context(), p, s.opts)
	if showTimings(cmd) && res != nil {
		fmt.Fprint(cmd.ErrOrStderr(), res.Timings.Summary())
	}
	return res, err
}
