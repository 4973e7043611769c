package cpuload

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/bc-dunia/burnrig/internal/otel"
	"github.com/bc-dunia/burnrig/internal/run"
)

// Worker fans one duty-cycled shaper out per logical core. It is the
// run's only process-isolated worker: its generators are external
// processes that can be force-killed if the cooperative join times out.
type Worker struct {
	pct      int
	modulate bool
	launcher Launcher

	mu    sync.Mutex
	procs []Process
}

// NewWorker creates a CPU load worker at the given percentage. A nil
// launcher selects DefaultLauncher.
func NewWorker(pct int, modulate bool, launcher Launcher) *Worker {
	if launcher == nil {
		launcher = DefaultLauncher()
	}
	return &Worker{pct: pct, modulate: modulate, launcher: launcher}
}

// Category returns the worker's category.
func (w *Worker) Category() run.Category { return run.CategoryCPU }

// Kind returns the worker's concurrency kind.
func (w *Worker) Kind() run.ConcurrencyKind { return run.KindProcess }

// Run applies duty-cycled load on every logical core until the stop
// signal is set. Confirmed launch records PASS; a generator that cannot
// be launched records FAIL.
func (w *Worker) Run(ctx context.Context, env *run.Env) error {
	if !env.Barrier.Wait(ctx) {
		return nil
	}
	env.Verdicts.MarkStarted(run.CategoryCPU)

	cores, err := cpu.Counts(true)
	if err != nil || cores < 1 {
		log.Printf("cpuload: falling back to single core: %v", err)
		cores = 1
	}
	if err := lowerPriority(); err != nil {
		log.Printf("cpuload: failed to lower priority: %v", err)
	}
	env.Status.Emit(fmt.Sprintf("CPU load %d%% on %d cores", w.pct, cores))
	env.Verdicts.Record(run.CategoryCPU, run.VerdictPass)

	errCh := make(chan error, cores)
	var wg sync.WaitGroup
	for i := 0; i < cores; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := &Shaper{
				Pct:      w.pct,
				Modulate: w.modulate,
				Launcher: w.trackingLauncher(),
				Category: string(run.CategoryCPU),
			}
			if err := s.Run(ctx, env.Stop); err != nil {
				errCh <- err
			}
		}()
	}
	wg.Wait()
	close(errCh)

	if err := <-errCh; err != nil {
		env.Verdicts.Record(run.CategoryCPU, run.VerdictFail)
		otel.GetGlobalMetrics().RecordError(ctx, string(run.CategoryCPU))
		return &run.RunError{Op: "launch", Category: run.CategoryCPU, Err: err}
	}
	return nil
}

// ForceKill kills every generator the worker ever launched. Called by
// the supervisor when the join deadline passes.
func (w *Worker) ForceKill() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, p := range w.procs {
		p.Kill()
	}
}

// trackingLauncher wraps the configured launcher so every launched
// generator lands in the kill table.
func (w *Worker) trackingLauncher() Launcher {
	return LauncherFunc(func(ctx context.Context, pct int) (Process, error) {
		p, err := w.launcher.Launch(ctx, pct)
		if err != nil {
			return nil, err
		}
		w.mu.Lock()
		// Drop generators that already exited so the kill table does
		// not grow for the whole run.
		live := w.procs[:0]
		for _, old := range w.procs {
			if old.Running() {
				live = append(live, old)
			}
		}
		w.procs = append(live, p)
		w.mu.Unlock()
		return p, nil
	})
}
