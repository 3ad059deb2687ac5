package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"shade/internal/buildpipeline"
	"shade/internal/symdump"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestEval_PrintsEnclosures(t *testing.T) {
	out, err := execute(t, "eval", "testdata/double.toml", "--color", "off",
		"--set", "x=3", "--radius", "x=0.5", "--set", "k=2")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	for _, want := range []string{"out[0] = 6 ± 1  [5, 7]", "scaled = [6]"} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
}

func TestEval_AttributesRadius(t *testing.T) {
	t.Cleanup(func() { evalAttrib = false })
	out, err := execute(t, "eval", "testdata/double.toml", "--color", "off",
		"--set", "x=3", "--radius", "x=0.5", "--set", "k=2", "--attrib")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	lines := strings.Split(out, "\n")
	for i, line := range lines {
		if !strings.HasPrefix(line, "out[0] = ") {
			continue
		}
		if i+1 >= len(lines) || !strings.Contains(lines[i+1], "input x[0]") || strings.Fields(lines[i+1])[0] != "1" {
			t.Errorf("out[0] is not followed by its input share:\n%s", out)
		}
		return
	}
	t.Errorf("no out[0] line:\n%s", out)
}

func TestSyms_DumpsTable(t *testing.T) {
	dump := filepath.Join(t.TempDir(), "double.syms")
	out, err := execute(t, "syms", "testdata/double.toml", "--color", "off", "--dump", dump)
	if err != nil {
		t.Fatalf("syms: %v", err)
	}
	if !strings.Contains(out, "input") || !strings.Contains(out, "double: ") {
		t.Errorf("unexpected table:\n%s", out)
	}
	table, err := symdump.Load(dump)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := table.Outputs["out"]; !ok || table.Program != "double" {
		t.Errorf("table = %+v", table)
	}
}

func TestLower_WritesListing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "double.shir")
	if _, err := execute(t, "lower", "testdata/double.toml", "-o", path); err != nil {
		t.Fatalf("lower: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "add x, x") {
		t.Errorf("listing lacks the original statement:\n%s", data)
	}
}

func TestParseAssignments(t *testing.T) {
	got, err := parseAssignments([]string{"x=1,2.5", " y = -3 "})
	if err != nil {
		t.Fatal(err)
	}
	if len(got["x"]) != 2 || got["x"][1] != 2.5 || got["y"][0] != -3 {
		t.Errorf("got %v", got)
	}
	for _, bad := range []string{"x", "=1", "x=1,,2"} {
		if _, err := parseAssignments([]string{bad}); err == nil {
			t.Errorf("%q accepted", bad)
		}
	}
}

func TestWantProgressView(t *testing.T) {
	if on, err := wantProgressView(" ON "); err != nil || !on {
		t.Errorf("wantProgressView(ON) = %v, %v", on, err)
	}
	if on, err := wantProgressView("off"); err != nil || on {
		t.Errorf("wantProgressView(off) = %v, %v", on, err)
	}
	if _, err := wantProgressView("sometimes"); err == nil {
		t.Errorf("accepted an unknown mode")
	}
}

func TestBatch_WritesOutputs(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "batch", "--ui", "off", "--color", "off", "--out-dir", dir,
		"testdata/double.toml", "../../internal/progfile/testdata/blend.toml")
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if strings.Count(out, "ok ") != 2 {
		t.Errorf("output:\n%s", out)
	}
	for _, name := range []string{"double.shir", "double.syms", "blend.shir", "blend.syms"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
}

func TestBatch_SummarizesFailuresByStage(t *testing.T) {
	_, err := execute(t, "batch", "--ui", "off", "--color", "off", "--out-dir", t.TempDir(),
		"testdata/double.toml", "testdata/missing.toml")
	if err == nil || !strings.Contains(err.Error(), "1 of 2 programs failed (load 1)") {
		t.Fatalf("err = %v", err)
	}
}

func TestFailedStages_PipelineOrder(t *testing.T) {
	got := failedStages(map[buildpipeline.Stage]int{
		buildpipeline.StageWrite: 2,
		buildpipeline.StageLoad:  1,
	})
	if got != "load 1, write 2" {
		t.Errorf("failedStages = %q", got)
	}
}
