package trace_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"shade/internal/trace"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want trace.Level
		ok   bool
	}{
		{"off", trace.LevelOff, true},
		{"PHASE", trace.LevelPhase, true},
		{" debug ", trace.LevelDebug, true},
		{"loud", trace.LevelOff, false},
	}
	for _, tt := range tests {
		got, err := trace.ParseLevel(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestRingTracer_WrapsAndFilters(t *testing.T) {
	ring := trace.NewRingTracer(3, trace.LevelDetail)
	for _, name := range []string{"a", "b", "c", "d"} {
		trace.Point(ring, trace.ScopeProgram, name, "")
	}
	trace.Point(ring, trace.ScopeStmt, "too-fine", "")

	got := ring.Snapshot()
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	if got[0].Name != "b" || got[2].Name != "d" {
		t.Errorf("snapshot order = %s %s %s", got[0].Name, got[1].Name, got[2].Name)
	}
	if len(ring.Named("too-fine")) != 0 {
		t.Errorf("stmt scope must be filtered at detail level")
	}
}

func TestFailuresPassErrorLevel(t *testing.T) {
	ring := trace.NewRingTracer(8, trace.LevelError)
	trace.Point(ring, trace.ScopePass, "place", "")
	trace.Fail(ring, "lower", errors.New("boom"))
	got := ring.Snapshot()
	if len(got) != 1 || got[0].Detail != "boom" {
		t.Fatalf("snapshot = %+v", got)
	}
}

func TestSpanAndStreamText(t *testing.T) {
	var sb strings.Builder
	st := trace.NewStreamTracer(&sb, trace.LevelPhase, trace.FormatText)
	ctx := trace.WithTracer(context.Background(), st)

	span := trace.Begin(trace.FromContext(ctx), trace.ScopePass, "place", 0)
	span.WithExtra("joins", "2").End("ok")

	out := sb.String()
	if !strings.Contains(out, "→ place") || !strings.Contains(out, "← place (ok) {joins=2}") {
		t.Errorf("unexpected trace:\n%s", out)
	}
	if trace.FromContext(context.Background()) != trace.Nop {
		t.Errorf("missing tracer must default to Nop")
	}
}

func TestNDJSONFormat(t *testing.T) {
	ev := &trace.Event{Kind: trace.KindPoint, Scope: trace.ScopeProgram, Name: "degraded", Detail: "out"}
	line := string(trace.FormatEvent(ev, trace.FormatNDJSON))
	if !strings.HasSuffix(line, "\n") || !strings.Contains(line, `"name":"degraded"`) {
		t.Errorf("ndjson line = %q", line)
	}
}
