package sound

import (
	"context"

	"github.com/bc-dunia/burnrig/internal/run"
)

// Worker drives the trial loop as a run worker. Sound is a verifying
// category: its verdict survives a manual stop.
type Worker struct {
	tester *Tester
}

// NewWorker creates a sound worker; a nil trialer uses the default
// command-backed one.
func NewWorker(trialer Trialer) *Worker {
	if trialer == nil {
		trialer = DefaultTrialer()
	}
	return &Worker{tester: NewTester(trialer)}
}

// Category returns the worker's category.
func (w *Worker) Category() run.Category { return run.CategorySound }

// Kind returns the worker's concurrency kind.
func (w *Worker) Kind() run.ConcurrencyKind { return run.KindTask }

// Run scores loopback trials until stopped and records the verdict:
// PASS if any trial reached the threshold, SKIP if no trial completed.
func (w *Worker) Run(ctx context.Context, env *run.Env) error {
	if !env.Barrier.Wait(ctx) {
		return nil
	}
	env.Verdicts.MarkStarted(run.CategorySound)

	tally := w.tester.RunTestLoop(ctx, env.Status, env.Duration, env.Stop)
	switch {
	case tally.Trials == 0:
		env.Verdicts.Record(run.CategorySound, run.VerdictSkip)
	case tally.Best >= w.tester.Threshold:
		env.Verdicts.Record(run.CategorySound, run.VerdictPass)
	default:
		env.Verdicts.Record(run.CategorySound, run.VerdictFail)
	}
	return nil
}
