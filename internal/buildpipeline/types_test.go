package buildpipeline_test

import (
	"testing"
	"time"

	"shade/internal/buildpipeline"
)

func TestTimings_Accumulate(t *testing.T) {
	var tm buildpipeline.Timings
	tm.Set(buildpipeline.StagePlace, time.Millisecond)
	tm.Set(buildpipeline.StagePlace, 2*time.Millisecond)
	tm.Set(buildpipeline.StageLower, time.Millisecond)
	if !tm.Has(buildpipeline.StagePlace) || tm.Has(buildpipeline.StageWrite) {
		t.Fatalf("unexpected stage presence")
	}
	if got := tm.Duration(buildpipeline.StagePlace); got != 3*time.Millisecond {
		t.Errorf("place = %v", got)
	}
	if got := tm.Sum(buildpipeline.Stages...); got != 4*time.Millisecond {
		t.Errorf("sum = %v", got)
	}
}

func TestRecorder_FinalStatus(t *testing.T) {
	var r buildpipeline.Recorder
	r.OnEvent(buildpipeline.Event{File: "a", Status: buildpipeline.StatusQueued})
	r.OnEvent(buildpipeline.Event{Stage: buildpipeline.StageLoad, Status: buildpipeline.StatusWorking})
	r.OnEvent(buildpipeline.Event{File: "a", Stage: buildpipeline.StageLower, Status: buildpipeline.StatusError})
	final := r.Final()
	if len(final) != 1 || final["a"] != buildpipeline.StatusError {
		t.Errorf("final = %v", final)
	}
	if n := len(r.Events()); n != 3 {
		t.Errorf("%d events", n)
	}
}

func TestTee_FeedsEverySink(t *testing.T) {
	var a, b buildpipeline.Recorder
	tee := buildpipeline.Tee{&a, nil, &b}
	tee.OnEvent(buildpipeline.Event{File: "x", Status: buildpipeline.StatusDone})
	if len(a.Events()) != 1 || len(b.Events()) != 1 {
		t.Errorf("events: %d and %d", len(a.Events()), len(b.Events()))
	}
}

func TestRecorder_FailedInCountsLastStage(t *testing.T) {
	var r buildpipeline.Recorder
	for _, ev := range []buildpipeline.Event{
		{File: "a", Stage: buildpipeline.StageLoad, Status: buildpipeline.StatusError},
		{File: "b", Stage: buildpipeline.StagePlace, Status: buildpipeline.StatusWorking},
		{File: "b", Stage: buildpipeline.StageWrite, Status: buildpipeline.StatusError},
		{File: "c", Stage: buildpipeline.StageWrite, Status: buildpipeline.StatusError},
		{File: "d", Stage: buildpipeline.StageLower, Status: buildpipeline.StatusDone},
	} {
		r.OnEvent(ev)
	}
	got := r.FailedIn()
	if len(got) != 2 || got[buildpipeline.StageLoad] != 1 || got[buildpipeline.StageWrite] != 2 {
		t.Errorf("FailedIn = %v", got)
	}
}
