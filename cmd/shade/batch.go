package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"shade/internal/buildpipeline"
	"shade/internal/driver"
	"shade/internal/shir"
	"shade/internal/symdump"
	"shade/internal/ui"
)

var (
	batchJobs    int
	batchOutDir  string
	batchUI      string
	batchJSONTim bool
)

func init() {
	batchCmd.Flags().IntVarP(&batchJobs, "jobs", "j", 0, "programs compiled at once (default GOMAXPROCS)")
	batchCmd.Flags().StringVar(&batchOutDir, "out-dir", "", "write NAME.shir listings and NAME.syms tables here")
	batchCmd.Flags().StringVar(&batchUI, "ui", "auto", "progress view (auto|on|off)")
	batchCmd.Flags().BoolVar(&batchJSONTim, "timings-json", false, "print --timings as one JSON object per program")
}

var batchCmd = &cobra.Command{
	Use:   "batch FILE...",
	Short: "Compile several program files concurrently",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		useUI, err := wantProgressView(batchUI)
		if err != nil {
			return err
		}
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		defer s.cleanup()

		if batchOutDir != "" {
			if err := os.MkdirAll(batchOutDir, 0o755); err != nil {
				return err
			}
			s.opts.Write = writeOutputs(batchOutDir)
		}

		var rec buildpipeline.Recorder
		var items []driver.BatchItem
		if useUI {
			items, err = runBatchWithUI(cmd.Context(), args, s.opts, &rec)
		} else {
			items, err = driver.CompileFiles(cmd.Context(), args, s.opts, batchJobs, &rec)
		}
		if err != nil {
			return err
		}

		okMark, failMark := color.New(color.FgGreen).Sprint("ok"), color.New(color.FgRed).Sprint("FAIL")
		var failed []error
		for _, item := range items {
			if item.Err != nil {
				failed = append(failed, item.Err)
				fmt.Fprintf(cmd.ErrOrStderr(), "%s %s: %v\n", failMark, item.Name, item.Err)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%d lowered, %d symbols)\n",
				okMark, item.Name, item.Result.Lower.Lowered, item.Result.Place.Symbols)
		}
		if showTimings(cmd) {
			if err := driver.WriteTimings(cmd.ErrOrStderr(), items, batchJSONTim); err != nil {
				return err
			}
		}
		if len(failed) > 0 {
			return fmt.Errorf("%d of %d programs failed (%s): %w",
				len(failed), len(items), failedStages(rec.FailedIn()), errors.Join(failed...))
		}
		return nil
	},
}

// failedStages renders per-stage failure counts in pipeline order,
// e.g. "load 1, write 2".
func failedStages(counts map[buildpipeline.Stage]int) string {
	var parts []string
	for _, st := range buildpipeline.Stages {
		if n := counts[st]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", st, n))
		}
	}
	return strings.Join(parts, ", ")
}

func writeOutputs(dir string) func(string, *driver.Result) error {
	return func(name string, res *driver.Result) error {
		base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
		f, err := os.Create(filepath.Join(dir, base+".shir"))
		if err != nil {
			return err
		}
		if err := shir.Print(f, res.Program, nil); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		return symdump.Save(filepath.Join(dir, base+".syms"), res.Table)
	}
}

type batchOutcome struct {
	items []driver.BatchItem
	err   error
}

func runBatchWithUI(ctx context.Context, files []string, opts driver.Options, rec *buildpipeline.Recorder) ([]driver.BatchItem, error) {
	events := make(chan buildpipeline.Event, 256)
	outcomeCh := make(chan batchOutcome, 1)

	go func() {
		items, err := driver.CompileFiles(ctx, files, opts, batchJobs, buildpipeline.Tee{buildpipeline.ChannelSink{Ch: events}, rec})
		outcomeCh <- batchOutcome{items: items, err: err}
		close(events)
	}()

	uiErr := ui.RunProgress(os.Stdout, "shade batch", files, events)
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.items, uiErr
	}
	return outcome.items, outcome.err
}

// wantProgressView resolves --ui; auto draws the view only when stdout
// is a terminal.
func wantProgressView(value string) (bool, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", "auto":
		return isTerminal(os.Stdout), nil
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid --ui value %q (expected auto|on|off)", value)
}
