package storage

import (
	"context"

	"github.com/bc-dunia/burnrig/internal/otel"
	"github.com/bc-dunia/burnrig/internal/run"
)

// Worker wraps the verification loop as a run worker. Storage is a
// verifying category: its verdict reflects what the loop measured, so
// a manual stop does not discard it.
type Worker struct {
	tester *Tester
}

// NewWorker creates a storage worker over explicit targets; nil
// targets means detect at run time.
func NewWorker(targets []string) *Worker {
	return &Worker{tester: NewTester(targets)}
}

// Category returns the worker's category.
func (w *Worker) Category() run.Category { return run.CategoryStorage }

// Kind returns the worker's concurrency kind.
func (w *Worker) Kind() run.ConcurrencyKind { return run.KindTask }

// Run verifies every removable device until stopped and records the
// verdict.
func (w *Worker) Run(ctx context.Context, env *run.Env) error {
	if !env.Barrier.Wait(ctx) {
		return nil
	}
	env.Verdicts.MarkStarted(run.CategoryStorage)

	if w.tester.Targets == nil {
		targets, err := DetectTargets()
		if err != nil {
			env.Verdicts.Record(run.CategoryStorage, run.VerdictFail)
			otel.GetGlobalMetrics().RecordError(ctx, string(run.CategoryStorage))
			return &run.RunError{Op: "detect", Category: run.CategoryStorage, Err: err}
		}
		w.tester.Targets = targets
	}

	ok, _ := w.tester.RunTestLoop(ctx, env.Status, env.Duration, env.Stop)
	if ok {
		env.Verdicts.Record(run.CategoryStorage, run.VerdictPass)
	} else {
		env.Verdicts.Record(run.CategoryStorage, run.VerdictFail)
	}
	return nil
}
