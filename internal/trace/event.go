package trace

import "time"

// Kind is the type of a trace event.
type Kind uint8

const (
	// KindSpanBegin opens a span.
	KindSpanBegin Kind = iota + 1
	// KindSpanEnd closes a span.
	KindSpanEnd
	// KindPoint is an instant event.
	KindPoint
	// KindHeartbeat is a periodic liveness signal.
	KindHeartbeat
)

func (k Kind) String() string {
	switch k {
	case KindSpanBegin:
		return "begin"
	case KindSpanEnd:
		return "end"
	case KindPoint:
		return "point"
	case KindHeartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}

// Scope is the granularity of an event. Smaller values are coarser.
type Scope uint8

const (
	// ScopeDriver covers whole compilations and batches.
	ScopeDriver Scope = iota + 1
	// ScopePass covers one pass over a program.
	ScopePass
	// ScopeProgram covers per-program outcomes inside a pass.
	ScopeProgram
	// ScopeStmt covers single statements.
	ScopeStmt
)

func (s Scope) String() string {
	switch s {
	case ScopeDriver:
		return "driver"
	case ScopePass:
		return "pass"
	case ScopeProgram:
		return "program"
	case ScopeStmt:
		return "stmt"
	default:
		return "unknown"
	}
}

// Event is one trace record.
type Event struct {
	Time     time.Time
	Seq      uint64
	Kind     Kind
	Scope    Scope
	SpanID   uint64
	ParentID uint64
	GID      uint64
	Name     string // "place", "merge", "degraded"
	Detail   string
	Failure  bool // recorded at every level above off
	Extra    map[string]string
}

// accepted reports whether a tracer at level records ev.
func accepted(level Level, ev *Event) bool {
	if level == LevelOff {
		return false
	}
	return ev.Failure || ev.Kind == KindHeartbeat || level.ShouldEmit(ev.Scope)
}
