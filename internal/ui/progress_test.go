package ui

import (
	"errors"
	"math"
	"strings"
	"testing"

	"shade/internal/buildpipeline"
)

func TestProgressModel_TracksFiles(t *testing.T) {
	events := make(chan buildpipeline.Event)
	m := NewProgressModel("batch", []string{"a.toml", "b.toml"}, events).(*progressModel)

	m.apply(buildpipeline.Event{File: "a.toml", Stage: buildpipeline.StageLower, Status: buildpipeline.StatusWorking})
	m.apply(buildpipeline.Event{File: "b.toml", Stage: buildpipeline.StagePlace, Status: buildpipeline.StatusError,
		Err: errors.New("b: n1: edge condition must be a regular scalar\nmore")})
	m.apply(buildpipeline.Event{File: "c.toml", Status: buildpipeline.StatusDone})

	if m.rows[0].label() != "lowering" || m.rows[1].label() != "error" {
		t.Fatalf("labels = %q, %q", m.rows[0].label(), m.rows[1].label())
	}
	if got := m.percent(); math.Abs(got-0.85) > 1e-12 {
		t.Errorf("percent = %v", got)
	}
	view := m.View()
	for _, want := range []string{"batch  1/2, 1 failed", "a.toml", "edge condition must be a regular scalar"} {
		if !strings.Contains(view, want) {
			t.Errorf("view lacks %q:\n%s", want, view)
		}
	}
	if strings.Contains(view, "more") {
		t.Errorf("view shows more than the first error line:\n%s", view)
	}
}

func TestClip_Width(t *testing.T) {
	if got := clip("abcdefghij", 6); got != "abc..." {
		t.Errorf("clip = %q", got)
	}
	if got := clip("short", 20); got != "short" {
		t.Errorf("clip = %q", got)
	}
}

func TestProgressModel_QuitsWhenEventsClose(t *testing.T) {
	events := make(chan buildpipeline.Event, 1)
	m := NewProgressModel("batch", []string{"a.toml"}, events).(*progressModel)
	events <- buildpipeline.Event{File: "a.toml", Stage: buildpipeline.StageLower, Status: buildpipeline.StatusDone}
	close(events)

	msg := m.next()()
	if _, ok := msg.(eventMsg); !ok {
		t.Fatalf("first message = %T", msg)
	}
	m.Update(msg)
	if _, ok := m.next()().(closedMsg); !ok {
		t.Fatalf("expected closedMsg after the channel closes")
	}
	m.Update(closedMsg{})
	if !m.closed || m.percent() != 1 {
		t.Errorf("closed = %v, percent = %v", m.closed, m.percent())
	}
}
