package observ_test

import (
	"errors"
	"strings"
	"testing"

	"shade/internal/observ"
)

func TestTimer_ReportKeepsOrderAndNotes(t *testing.T) {
	tm := observ.NewTimer()
	if err := tm.Time("place", func() (string, error) { return "12 syms", nil }); err != nil {
		t.Fatal(err)
	}
	err := tm.Time("lower", func() (string, error) { return "", errors.New("ice") })
	if err == nil {
		t.Fatal("expected the phase error to be returned")
	}

	r := tm.Report()
	if len(r.Phases) != 2 || r.Phases[0].Name != "place" || r.Phases[1].Note != "failed" {
		t.Fatalf("report = %+v", r)
	}
	sum := tm.Summary()
	if !strings.Contains(sum, "// 12 syms") || !strings.Contains(sum, "total") {
		t.Errorf("summary:\n%s", sum)
	}
	tm.End(42, "ignored")
}
