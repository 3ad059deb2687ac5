// Package buildpipeline describes the progress of a batch compilation as a
// stream of per-file events.
package buildpipeline

import "time"

// Stage is one step of compiling a program file.
type Stage string

const (
	// StageLoad reads and builds the program.
	StageLoad Stage = "load"
	// StagePlace validates the program and places noise symbols.
	StagePlace Stage = "place"
	// StageLower rewrites affine statements into regular ones.
	StageLower Stage = "lower"
	// StageWrite stores the lowered program or its symbol table.
	StageWrite Stage = "write"
)

// Stages lists every stage in pipeline order.
var Stages = []Stage{StageLoad, StagePlace, StageLower, StageWrite}

// Status is where a file stands in the batch.
type Status string

const (
	// StatusQueued indicates the file is waiting for a worker.
	StatusQueued Status = "queued"
	// StatusWorking indicates the file is inside Stage.
	StatusWorking Status = "working"
	// StatusDone indicates the file compiled.
	StatusDone Status = "done"
	// StatusError indicates the file failed in Stage.
	StatusError Status = "error"
)

// Event is one status change. An empty File describes the batch.
type Event struct {
	File    string
	Stage   Stage
	Status  Status
	Err     error
	Elapsed time.Duration
}

// ProgressSink receives events from worker goroutines, so it must be
// safe for concurrent use.
type ProgressSink interface {
	OnEvent(Event)
}

// Timings accumulates the time one file spent in each stage.
type Timings struct {
	stages map[Stage]time.Duration
}

// Set adds dur to the time recorded for stage.
func (t *Timings) Set(stage Stage, dur time.Duration) {
	if t == nil {
		return
	}
	if t.stages == nil {
		t.stages = make(map[Stage]time.Duration)
	}
	t.stages[stage] += dur
}

// Has reports whether the file reached stage.
func (t Timings) Has(stage Stage) bool {
	_, ok := t.stages[stage]
	return ok
}

// Duration is the time spent in stage.
func (t Timings) Duration(stage Stage) time.Duration {
	return t.stages[stage]
}

// Sum adds up the time spent in stages.
func (t Timings) Sum(stages ...Stage) time.Duration {
	var total time.Duration
	for _, stage := range stages {
		total += t.stages[stage]
	}
	return total
}
