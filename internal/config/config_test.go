package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"shade/internal/aaplace"
	"shade/internal/config"
	"shade/internal/trace"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), config.FileName)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_KeepsDefaultsForMissingKeys(t *testing.T) {
	path := writeConfig(t, "[analysis]\nmerge = false\n")
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Analysis.Merge {
		t.Errorf("merge should be off")
	}
	if !cfg.Analysis.Hierarchical {
		t.Errorf("hierarchical should keep its default")
	}
	if cfg.Analysis.MaxMergePasses != aaplace.DefaultMaxMergePasses {
		t.Errorf("max_merge_passes = %d", cfg.Analysis.MaxMergePasses)
	}
	if cfg.Trace.Level != "off" || cfg.Source != path {
		t.Errorf("trace level %q, source %q", cfg.Trace.Level, cfg.Source)
	}
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "[analysis]\nmerge = true\nfuse = true\n")
	_, err := config.Load(path)
	if err == nil || !strings.Contains(err.Error(), "analysis.fuse") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestLoad_ReportsEveryInvalidValue(t *testing.T) {
	path := writeConfig(t, "[analysis]\nmax_merge_passes = -1\n[trace]\nlevel = \"loud\"\nmode = \"tape\"\n")
	_, err := config.Load(path)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"analysis.max_merge_passes", "trace.level", "trace.mode"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("missing %q in %v", want, err)
		}
	}
}

func TestLoadOptional_MissingFile(t *testing.T) {
	cfg, err := config.LoadOptional(filepath.Join(t.TempDir(), config.FileName))
	if err != nil {
		t.Fatalf("LoadOptional: %v", err)
	}
	if cfg != config.Default() {
		t.Errorf("got %+v, want defaults", cfg)
	}
}

func TestApplyEnv_Overrides(t *testing.T) {
	t.Setenv("SHADE_MERGE", "false")
	t.Setenv("SHADE_MAX_MERGE_PASSES", "3")
	t.Setenv("SHADE_TRACE_LEVEL", "debug")
	cfg := config.Default()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.Analysis.Merge || !cfg.Analysis.Hierarchical {
		t.Errorf("analysis = %+v", cfg.Analysis)
	}
	opts := cfg.PlaceOptions()
	if opts.MaxMergePasses != 3 || opts.Merge {
		t.Errorf("place options = %+v", opts)
	}
	tc, err := cfg.TraceConfig()
	if err != nil {
		t.Fatalf("TraceConfig: %v", err)
	}
	if tc.Level != trace.LevelDebug || tc.Mode != trace.ModeStream {
		t.Errorf("trace config = %+v", tc)
	}
}

func TestApplyEnv_InvalidLevel(t *testing.T) {
	t.Setenv("SHADE_TRACE_LEVEL", "chatty")
	cfg := config.Default()
	if err := cfg.ApplyEnv(); err == nil || !strings.Contains(err.Error(), "trace.level") {
		t.Fatalf("expected level error, got %v", err)
	}
}

func TestApplyEnv_SeesLaterChanges(t *testing.T) {
	t.Setenv("SHADE_MAX_MERGE_PASSES", "5")
	first := config.Default()
	if err := first.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	t.Setenv("SHADE_MAX_MERGE_PASSES", "9")
	t.Setenv("SHADE_HIER", "false")
	second := config.Default()
	if err := second.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if first.Analysis.MaxMergePasses != 5 || second.Analysis.MaxMergePasses != 9 {
		t.Errorf("max_merge_passes = %d then %d, want 5 then 9",
			first.Analysis.MaxMergePasses, second.Analysis.MaxMergePasses)
	}
	if second.Analysis.Hierarchical {
		t.Errorf("SHADE_HIER set after the first read was ignored")
	}
}
