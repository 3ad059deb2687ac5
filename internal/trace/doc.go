// Package trace records what the affine passes do.
//
// Every pass receives a Tracer through its context and reports spans for
// pass boundaries and point events for noteworthy outcomes: merge
// iterations, inserted escape joins, outputs that were never assigned.
// At debug level each statement's symbol record is reported as well.
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopePass, "place", 0)
//	defer span.End("")
//
// Tracers: Nop (disabled), StreamTracer (text or NDJSON to a writer),
// RingTracer (last N events kept in memory for failure dumps) and
// MultiTracer (fan-out).
package trace
