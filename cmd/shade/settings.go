package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"shade/internal/config"
	"shade/internal/driver"
	"shade/internal/symdump"
)

func configFileName() string { return config.FileName }

// loadConfig merges the configuration file, the SHADE_* environment and
// the command line, in that order of increasing precedence.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	flags := cmd.Root().PersistentFlags()
	path, err := flags.GetString("config")
	if err != nil {
		return config.Config{}, err
	}
	var cfg config.Config
	if path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadOptional(config.FileName)
	}
	if err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}

	if noMerge, _ := flags.GetBool("no-merge"); noMerge {
		cfg.Analysis.Merge = false
	}
	if noHier, _ := flags.GetBool("no-hier"); noHier {
		cfg.Analysis.Hierarchical = false
	}
	for flag, dst := range map[string]*string{
		"trace":       &cfg.Trace.Output,
		"trace-level": &cfg.Trace.Level,
		"trace-mode":  &cfg.Trace.Mode,
	} {
		if flags.Changed(flag) {
			*dst, _ = flags.GetString(flag)
		}
	}
	// An output file without a level asks for pass boundaries.
	if cfg.Trace.Output != "" && !flags.Changed("trace-level") && cfg.Trace.Level == "off" {
		cfg.Trace.Level = "phase"
	}
	return cfg, cfg.Validate()
}

// driverOptions builds the compilation options for cfg and the
// --input-syms flag.
func driverOptions(cmd *cobra.Command, cfg config.Config) (driver.Options, error) {
	opts := driver.Options{Place: cfg.PlaceOptions()}
	path, err := cmd.Root().PersistentFlags().GetString("input-syms")
	if err != nil {
		return opts, err
	}
	if path != "" {
		table, err := symdump.Load(path)
		if err != nil {
			return opts, fmt.Errorf("input symbols: %w", err)
		}
		opts.Inputs = table
	}
	return opts, nil
}

// setupColor applies --color to fatih/color and reports whether output
// should be colored.
func setupColor(cmd *cobra.Command) (bool, error) {
	value, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "auto":
		color.NoColor = !isTerminal(os.Stdout)
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	default:
		return false, fmt.Errorf("invalid --color value %q (expected auto|on|off)", value)
	}
	return !color.NoColor, nil
}

func showTimings(cmd *cobra.Command) bool {
	on, _ := cmd.Root().PersistentFlags().GetBool("timings")
	return on
}
