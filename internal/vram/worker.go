package vram

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/bc-dunia/burnrig/internal/otel"
	"github.com/bc-dunia/burnrig/internal/run"
)

// Worker runs one target controller per device. Like the other
// load-only workers it passes on confirmed start; a device whose
// capacity cannot be read at all fails the category.
type Worker struct {
	pct     int
	devices []Device
}

// NewWorker creates a memory load worker over the given devices. An
// empty device list falls back to host memory.
func NewWorker(pct int, devices []Device) *Worker {
	if len(devices) == 0 {
		devices = []Device{HostDevice{}}
	}
	return &Worker{pct: pct, devices: devices}
}

// Category returns the worker's category.
func (w *Worker) Category() run.Category { return run.CategoryVRAM }

// Kind returns the worker's concurrency kind.
func (w *Worker) Kind() run.ConcurrencyKind { return run.KindTask }

// Run seeks the usage target on every device until stopped.
func (w *Worker) Run(ctx context.Context, env *run.Env) error {
	if !env.Barrier.Wait(ctx) {
		return nil
	}
	env.Verdicts.MarkStarted(run.CategoryVRAM)

	names := make([]string, len(w.devices))
	for i, d := range w.devices {
		names[i] = d.Name()
	}
	env.Status.Emit(fmt.Sprintf("memory target %d%% on %v", w.pct, names))
	env.Verdicts.Record(run.CategoryVRAM, run.VerdictPass)

	// One shared gauge across all controllers.
	var heldTotal atomic.Int64
	onChange := func(delta int64) {
		otel.GetGlobalMetrics().SetAllocatedMB(heldTotal.Add(delta) / mib)
	}

	errCh := make(chan error, len(w.devices))
	var wg sync.WaitGroup
	for _, d := range w.devices {
		d := d
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := &Controller{Device: d, TargetPct: w.pct, OnHeldChange: onChange}
			if err := c.Run(ctx, env.Stop); err != nil {
				errCh <- err
			}
		}()
	}
	wg.Wait()
	close(errCh)

	if err := <-errCh; err != nil {
		env.Verdicts.Record(run.CategoryVRAM, run.VerdictFail)
		otel.GetGlobalMetrics().RecordError(ctx, string(run.CategoryVRAM))
		return &run.RunError{Op: "meminfo", Category: run.CategoryVRAM, Err: err}
	}
	return nil
}
