package driver

import (
	"context"
	"runtime"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"shade/internal/aasym"
	"shade/internal/buildpipeline"
	"shade/internal/progfile"
	"shade/internal/shir"
	"shade/internal/trace"
)

// BatchItem is the outcome for one program of a batch. A failed program
// does not stop the others; its error is kept here.
type BatchItem struct {
	Name    string
	Result  *Result
	Err     error
	Timings buildpipeline.Timings
}

type loadFunc func() (*shir.Program, error)

// CompileBatch compiles programs concurrently, at most jobs at a time
// (GOMAXPROCS when jobs <= 0). Each program gets its own allocator, so
// the outcome does not depend on scheduling. Items come back in input
// order; the returned error is only set when ctx is cancelled.
func CompileBatch(ctx context.Context, programs []*shir.Program, opts Options, jobs int, sink buildpipeline.ProgressSink) ([]BatchItem, error) {
	names := make([]string, len(programs))
	loads := make([]loadFunc, len(programs))
	for i, p := range programs {
		names[i] = p.Name
		loads[i] = func() (*shir.Program, error) { return p, nil }
	}
	return runBatch(ctx, names, loads, opts, jobs, sink)
}

// CompileFiles loads each TOML program file and compiles it like
// CompileBatch. Items are named by path.
func CompileFiles(ctx context.Context, paths []string, opts Options, jobs int, sink buildpipeline.ProgressSink) ([]BatchItem, error) {
	loads := make([]loadFunc, len(paths))
	for i, path := range paths {
		loads[i] = func() (*shir.Program, error) { return progfile.Load(path) }
	}
	return runBatch(ctx, paths, loads, opts, jobs, sink)
}

func runBatch(ctx context.Context, names []string, loads []loadFunc, opts Options, jobs int, sink buildpipeline.ProgressSink) ([]BatchItem, error) {
	items := make([]BatchItem, len(names))
	if len(names) == 0 {
		return items, nil
	}
	emit := func(ev buildpipeline.Event) {
		if sink != nil {
			sink.OnEvent(ev)
		}
	}

	tr := trace.FromContext(ctx)
	span := trace.Begin(tr, trace.ScopeDriver, "batch", trace.ParentSpan(ctx)).
		WithExtra("programs", strconv.Itoa(len(names)))
	defer span.End("")
	ctx = trace.WithSpan(ctx, span)

	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	for i, name := range names {
		items[i].Name = name
		emit(buildpipeline.Event{File: name, Status: buildpipeline.StatusQueued})
	}

	// Each goroutine writes only its own index of items.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(names)))
	for i := range names {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			item := &items[i]
			stage := buildpipeline.StageLoad
			started := time.Now()
			mark := func(next buildpipeline.Stage) {
				item.Timings.Set(stage, time.Since(started))
				stage, started = next, time.Now()
				emit(buildpipeline.Event{File: item.Name, Stage: stage, Status: buildpipeline.StatusWorking})
			}
			emit(buildpipeline.Event{File: item.Name, Stage: stage, Status: buildpipeline.StatusWorking})

			p, err := loads[i]()
			if err == nil {
				item.Result, err = compile(gctx, p, aasym.NewAllocator(), opts, func(s string) {
					mark(buildpipeline.Stage(s))
				})
			}
			if err == nil && opts.Write != nil {
				mark(buildpipeline.StageWrite)
				err = opts.Write(item.Name, item.Result)
			}
			item.Timings.Set(stage, time.Since(started))
			item.Err = err
			if err != nil {
				emit(buildpipeline.Event{File: item.Name, Stage: stage, Status: buildpipeline.StatusError, Err: err})
				return nil
			}
			emit(buildpipeline.Event{File: item.Name, Stage: stage, Status: buildpipeline.StatusDone,
				Elapsed: item.Timings.Sum(buildpipeline.Stages...)})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return items, err
	}
	return items, ctx.Err()
}
