package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"shade/internal/config"
	"shade/internal/driver"
	"shade/internal/prof"
	"shade/internal/trace"
)

// setupTracing builds the tracer cfg describes and attaches it to the
// command context. The cleanup function flushes and closes it.
func setupTracing(cmd *cobra.Command, cfg config.Config) (func(), error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	tcfg, err := cfg.TraceConfig()
	if err != nil {
		return nil, err
	}
	if tcfg.Level == trace.LevelOff {
		cmd.SetContext(trace.WithTracer(ctx, trace.Nop))
		return func() {}, nil
	}
	tcfg.Heartbeat, err = cmd.Root().PersistentFlags().GetDuration("trace-heartbeat")
	if err != nil {
		return nil, err
	}

	tracer, err := trace.New(tcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}
	cmd.SetContext(trace.WithTracer(ctx, tracer))

	var heartbeat *trace.Heartbeat
	if tcfg.Heartbeat > 0 {
		heartbeat = trace.StartHeartbeat(tracer, tcfg.Heartbeat)
	}
	return func() {
		if heartbeat != nil {
			heartbeat.Stop()
		}
		// Ring mode has no stream, so its events are printed on exit.
		if rt, ok := tracer.(*trace.RingTracer); ok {
			if err := rt.Dump(cmd.ErrOrStderr(), trace.FormatText); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "trace: dump error: %v\n", err)
			}
		}
		if err := tracer.Flush(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: flush error: %v\n", err)
		}
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: close error: %v\n", err)
		}
	}, nil
}

// session is what every compiling command needs before it starts.
type session struct {
	cfg     config.Config
	opts    driver.Options
	colored bool
	cleanup func()
}

func newSession(cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	colored, err := setupColor(cmd)
	if err != nil {
		return nil, err
	}
	opts, err := driverOptions(cmd, cfg)
	if err != nil {
		return nil, err
	}
	profiler, err := startProfiling(cmd)
	if err != nil {
		return nil, err
	}
	stopTrace, err := setupTracing(cmd, cfg)
	if err != nil {
		_ = profiler.Stop()
		return nil, err
	}
	cleanup := func() {
		stopTrace()
		if err := profiler.Stop(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "profile: %v\n", err)
		}
	}
	return &session{cfg: cfg, opts: opts, colored: colored, cleanup: cleanup}, nil
}

func startProfiling(cmd *cobra.Command) (*prof.Profiler, error) {
	flags := cmd.Root().PersistentFlags()
	var opts prof.Options
	for flag, dst := range map[string]*string{
		"cpuprofile":    &opts.CPU,
		"memprofile":    &opts.Mem,
		"runtime-trace": &opts.Trace,
	} {
		v, err := flags.GetString(flag)
		if err != nil {
			return nil, err
		}
		*dst = v
	}
	return prof.Start(opts)
}
