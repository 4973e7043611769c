package netprobe

import (
	"context"
	"log"

	"github.com/bc-dunia/burnrig/internal/config"
	"github.com/bc-dunia/burnrig/internal/run"
)

// Worker drives the probe loop as a run worker. Network is a verifying
// category: its verdict survives a manual stop.
type Worker struct {
	configPath string
	runner     Runner
	prober     Prober // overrides the config-built prober when set
}

// NewWorker creates a network worker reading its settings from
// configPath. An empty path uses the built-in defaults.
func NewWorker(configPath string) *Worker {
	return &Worker{configPath: configPath, runner: ExecRunner{}}
}

// Category returns the worker's category.
func (w *Worker) Category() run.Category { return run.CategoryNetwork }

// Kind returns the worker's concurrency kind.
func (w *Worker) Kind() run.ConcurrencyKind { return run.KindTask }

// Run probes the configured target until stopped and records the
// verdict. The placeholder target is swapped for the default gateway
// when one can be detected, so a machine without internet reach still
// exercises its own link.
func (w *Worker) Run(ctx context.Context, env *run.Env) error {
	if !env.Barrier.Wait(ctx) {
		return nil
	}
	env.Verdicts.MarkStarted(run.CategoryNetwork)

	cfg := config.DefaultNetProbeConfig()
	if w.configPath != "" {
		loaded, err := config.LoadNetProbeConfig(w.configPath)
		if err != nil {
			log.Printf("netprobe: config %s unreadable, using defaults: %v", w.configPath, err)
		}
		cfg = loaded
	}

	target := cfg.TargetHost
	if target == config.DefaultPlaceholderTgt {
		if gw, err := DetectDefaultGateway(ctx, w.runner); err == nil {
			target = gw
		}
	}

	prober := w.prober
	if prober == nil {
		prober = &PingProber{Runner: w.runner, Count: cfg.PingCount, Timeout: cfg.Timeout()}
	}
	tester := &Tester{Prober: prober, Target: target, Interval: cfg.Interval()}

	tally := tester.RunTestLoop(ctx, env.Status, env.Duration, env.Stop)
	switch {
	case tally.Probes == 0:
		env.Verdicts.Record(run.CategoryNetwork, run.VerdictSkip)
	case tally.Passed():
		env.Verdicts.Record(run.CategoryNetwork, run.VerdictPass)
	default:
		env.Verdicts.Record(run.CategoryNetwork, run.VerdictFail)
	}
	return nil
}
