// Package config loads shade.toml and the SHADE_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/xyproto/env/v2"

	"shade/internal/aaplace"
	"shade/internal/trace"
)

// FileName is the configuration file looked up next to the programs.
const FileName = "shade.toml"

// Analysis controls symbol placement.
type Analysis struct {
	Hierarchical   bool `toml:"hierarchical"`
	Merge          bool `toml:"merge"`
	MaxMergePasses int  `toml:"max_merge_passes"`
}

// Trace controls the tracer.
type Trace struct {
	Level  string `toml:"level"`
	Output string `toml:"output"`
	Mode   string `toml:"mode"`
	Format string `toml:"format"`
}

// Config is the merged configuration.
type Config struct {
	Analysis Analysis `toml:"analysis"`
	Trace    Trace    `toml:"trace"`
	// Source is the file the configuration came from, empty for defaults.
	Source string `toml:"-"`
}

// Default enables every analysis stage and turns tracing off.
func Default() Config {
	return Config{
		Analysis: Analysis{
			Hierarchical:   true,
			Merge:          true,
			MaxMergePasses: aaplace.DefaultMaxMergePasses,
		},
		Trace: Trace{
			Level:  trace.LevelOff.String(),
			Output: "",
			Mode:   trace.ModeStream.String(),
			Format: "auto",
		},
	}
}

// Load decodes path over the defaults. Keys the file leaves out keep
// their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	var file Config
	meta, err := toml.DecodeFile(path, &file)
	if err != nil {
		return cfg, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return cfg, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if meta.IsDefined("analysis", "hierarchical") {
		cfg.Analysis.Hierarchical = file.Analysis.Hierarchical
	}
	if meta.IsDefined("analysis", "merge") {
		cfg.Analysis.Merge = file.Analysis.Merge
	}
	if meta.IsDefined("analysis", "max_merge_passes") {
		cfg.Analysis.MaxMergePasses = file.Analysis.MaxMergePasses
	}
	if meta.IsDefined("trace", "level") {
		cfg.Trace.Level = file.Trace.Level
	}
	if meta.IsDefined("trace", "output") {
		cfg.Trace.Output = file.Trace.Output
	}
	if meta.IsDefined("trace", "mode") {
		cfg.Trace.Mode = file.Trace.Mode
	}
	if meta.IsDefined("trace", "format") {
		cfg.Trace.Format = file.Trace.Format
	}
	cfg.Source = path
	return cfg, cfg.Validate()
}

// LoadOptional loads path when it exists and returns the defaults
// otherwise.
func LoadOptional(path string) (Config, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Default(), err
	}
	return Load(path)
}

// ApplyEnv overrides cfg from SHADE_HIER, SHADE_MERGE,
// SHADE_MAX_MERGE_PASSES and SHADE_TRACE_LEVEL when they are set.
// The environment is reread on every call.
func (cfg *Config) ApplyEnv() error {
	env.Load()
	if env.Has("SHADE_HIER") {
		cfg.Analysis.Hierarchical = env.Bool("SHADE_HIER")
	}
	if env.Has("SHADE_MERGE") {
		cfg.Analysis.Merge = env.Bool("SHADE_MERGE")
	}
	if env.Has("SHADE_MAX_MERGE_PASSES") {
		cfg.Analysis.MaxMergePasses = env.Int("SHADE_MAX_MERGE_PASSES", cfg.Analysis.MaxMergePasses)
	}
	if env.Has("SHADE_TRACE_LEVEL") {
		cfg.Trace.Level = env.Str("SHADE_TRACE_LEVEL")
	}
	return cfg.Validate()
}

// Validate checks the values the file and environment may have set.
func (cfg *Config) Validate() error {
	var errs []error
	if cfg.Analysis.MaxMergePasses < 0 {
		errs = append(errs, fmt.Errorf("analysis.max_merge_passes: %d is negative", cfg.Analysis.MaxMergePasses))
	}
	if _, err := trace.ParseLevel(cfg.Trace.Level); err != nil {
		errs = append(errs, fmt.Errorf("trace.level: %w", err))
	}
	if _, err := trace.ParseMode(cfg.Trace.Mode); err != nil {
		errs = append(errs, fmt.Errorf("trace.mode: %w", err))
	}
	if _, err := trace.ParseFormat(cfg.Trace.Format); err != nil {
		errs = append(errs, fmt.Errorf("trace.format: %w", err))
	}
	return errors.Join(errs...)
}

// PlaceOptions converts the analysis settings.
func (cfg *Config) PlaceOptions() aaplace.Options {
	return aaplace.Options{
		Hierarchical:   cfg.Analysis.Hierarchical,
		Merge:          cfg.Analysis.Merge,
		MaxMergePasses: cfg.Analysis.MaxMergePasses,
	}
}

// TraceConfig converts the trace settings.
func (cfg *Config) TraceConfig() (trace.Config, error) {
	level, err := trace.ParseLevel(cfg.Trace.Level)
	if err != nil {
		return trace.Config{}, err
	}
	mode, err := trace.ParseMode(cfg.Trace.Mode)
	if err != nil {
		return trace.Config{}, err
	}
	format, err := trace.ParseFormat(cfg.Trace.Format)
	if err != nil {
		return trace.Config{}, err
	}
	return trace.Config{Level: level, Mode: mode, Format: format, OutputPath: cfg.Trace.Output}, nil
}
