package gpuload

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"sync"

	"github.com/bc-dunia/burnrig/internal/cpuload"
	"github.com/bc-dunia/burnrig/internal/otel"
	"github.com/bc-dunia/burnrig/internal/run"
)

// Mode selects which helper workload to launch.
type Mode string

const (
	// ModeCompute exercises the GPU's compute units with tensor-style
	// arithmetic.
	ModeCompute Mode = "compute"
	// ModeRender exercises the raster/render path.
	ModeRender Mode = "render"
)

// helperName is the GPU load binary, launched per device and mode.
const helperName = "burnrig-gpugen"

// Launcher starts one full-intensity GPU workload on a device.
type Launcher interface {
	Launch(ctx context.Context, d Device, mode Mode, pct int) (cpuload.Process, error)
}

// ExecLauncher launches the external GPU helper binary.
type ExecLauncher struct {
	Path string
}

// NewExecLauncher resolves the helper binary on PATH.
func NewExecLauncher() (*ExecLauncher, error) {
	path, err := exec.LookPath(helperName)
	if err != nil {
		return nil, err
	}
	return &ExecLauncher{Path: path}, nil
}

// Launch starts the helper for one device.
func (l *ExecLauncher) Launch(ctx context.Context, d Device, mode Mode, pct int) (cpuload.Process, error) {
	cmd := exec.Command(l.Path,
		"-device", strconv.Itoa(d.Index),
		"-mode", string(mode),
		"-pct", strconv.Itoa(pct),
	)
	return cpuload.StartCommand(cmd)
}

// Worker drives duty-cycled load of one mode across every detected
// device. Like the other load-only workers, a confirmed launch is the
// success criterion.
type Worker struct {
	category run.Category
	mode     Mode
	pct      int
	modulate bool
	devices  []Device
	launcher Launcher
}

// NewComputeWorker creates a GPU compute load worker.
func NewComputeWorker(pct int, modulate bool, devices []Device, launcher Launcher) *Worker {
	return &Worker{
		category: run.CategoryGPUCompute,
		mode:     ModeCompute,
		pct:      pct,
		modulate: modulate,
		devices:  devices,
		launcher: launcher,
	}
}

// NewRenderWorker creates a GPU render load worker.
func NewRenderWorker(pct int, modulate bool, devices []Device, launcher Launcher) *Worker {
	return &Worker{
		category: run.CategoryGPURender,
		mode:     ModeRender,
		pct:      pct,
		modulate: modulate,
		devices:  devices,
		launcher: launcher,
	}
}

// Category returns the worker's category.
func (w *Worker) Category() run.Category { return w.category }

// Kind returns the worker's concurrency kind.
func (w *Worker) Kind() run.ConcurrencyKind { return run.KindTask }

// Run duty-cycles the mode's workload on every device until stopped.
func (w *Worker) Run(ctx context.Context, env *run.Env) error {
	if !env.Barrier.Wait(ctx) {
		return nil
	}
	env.Verdicts.MarkStarted(w.category)

	if len(w.devices) == 0 {
		env.Verdicts.Record(w.category, run.VerdictSkip)
		return nil
	}

	env.Status.Emit(fmt.Sprintf("GPU %s load %d%% on %d device(s)", w.mode, w.pct, len(w.devices)))
	env.Verdicts.Record(w.category, run.VerdictPass)

	errCh := make(chan error, len(w.devices))
	var wg sync.WaitGroup
	for _, d := range w.devices {
		d := d
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := &cpuload.Shaper{
				Pct:      w.pct,
				Modulate: w.modulate,
				Launcher: w.deviceLauncher(d),
				Category: string(w.category),
			}
			if err := s.Run(ctx, env.Stop); err != nil {
				errCh <- err
			}
		}()
	}
	wg.Wait()
	close(errCh)

	if err := <-errCh; err != nil {
		env.Verdicts.Record(w.category, run.VerdictFail)
		otel.GetGlobalMetrics().RecordError(ctx, string(w.category))
		return &run.RunError{Op: "launch", Category: w.category, Err: err}
	}
	return nil
}

// deviceLauncher binds one device and the worker's mode into the
// single-percentage launcher shape the duty shaper consumes.
func (w *Worker) deviceLauncher(d Device) cpuload.Launcher {
	return cpuload.LauncherFunc(func(ctx context.Context, pct int) (cpuload.Process, error) {
		return w.launcher.Launch(ctx, d, w.mode, pct)
	})
}
