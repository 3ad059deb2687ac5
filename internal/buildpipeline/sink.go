package buildpipeline

import "sync"

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(evt Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- evt
}

// Tee forwards each event to every sink in order.
type Tee []ProgressSink

func (t Tee) OnEvent(evt Event) {
	for _, s := range t {
		if s != nil {
			s.OnEvent(evt)
		}
	}
}

// Recorder keeps every event it receives, in arrival order.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) OnEvent(evt Event) {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Final returns the last status seen for each file.
func (r *Recorder) Final() map[string]Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]Status)
	for _, ev := range r.events {
		if ev.File != "" {
			out[ev.File] = ev.Status
		}
	}
	return out
}

// FailedIn counts the files whose last event is an error, by the stage
// they failed in.
func (r *Recorder) FailedIn() map[Stage]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	last := make(map[string]Event)
	for _, ev := range r.events {
		if ev.File != "" {
			last[ev.File] = ev
		}
	}
	out := make(map[Stage]int)
	for _, ev := range last {
		if ev.Status == StatusError {
			out[ev.Stage]++
		}
	}
	return out
}
