package run

import (
	"context"
	"sync/atomic"
	"time"
)

// Category identifies one test category of a run.
type Category string

const (
	CategoryCPU        Category = "CPU"
	CategoryGPUCompute Category = "GPU_COMPUTE"
	CategoryGPURender  Category = "GPU_RENDER"
	CategoryVRAM       Category = "VRAM"
	CategoryStorage    Category = "STORAGE"
	CategoryNetwork    Category = "NETWORK"
	CategorySound      Category = "SOUND"
)

// AllCategories returns every known category in reporting order.
func AllCategories() []Category {
	return []Category{
		CategoryCPU,
		CategoryGPUCompute,
		CategoryGPURender,
		CategoryVRAM,
		CategoryStorage,
		CategoryNetwork,
		CategorySound,
	}
}

// LoadOnly reports whether the category is pure load generation with
// no intrinsic correctness test. Load-only categories have no
// completion criterion short of the full run duration, which is why a
// manual stop downgrades them to SKIP instead of leaving PASS or FAIL.
func (c Category) LoadOnly() bool {
	switch c {
	case CategoryCPU, CategoryGPUCompute, CategoryGPURender, CategoryVRAM:
		return true
	}
	return false
}

// ConcurrencyKind is how a worker executes. The kind is fixed per
// category: CPU instruction-load helpers are process-isolated so an
// unkillable helper cannot destabilize the orchestrator; everything
// else runs as a task on the orchestrator's own scheduler.
type ConcurrencyKind string

const (
	KindProcess ConcurrencyKind = "process-isolated"
	KindTask    ConcurrencyKind = "in-process-task"
)

// WorkerState is the lifecycle state of a worker within one run.
type WorkerState string

const (
	StatePending    WorkerState = "pending"
	StateRunning    WorkerState = "running"
	StateStopping   WorkerState = "stopping"
	StateTerminated WorkerState = "terminated"
)

// StatusSink receives human-readable progress lines from workers. The
// concrete binding (stdout, UI, log) is chosen by the caller.
type StatusSink interface {
	Emit(message string)
}

// StatusFunc adapts a plain function to a StatusSink.
type StatusFunc func(message string)

func (f StatusFunc) Emit(message string) { f(message) }

// NopSink discards all status messages.
func NopSink() StatusSink { return StatusFunc(func(string) {}) }

// Env is the per-worker view of a run, handed to the worker at start.
// The barrier and signals are always passed explicitly; nothing here
// is looked up globally.
type Env struct {
	// Barrier gates the start of load-bearing work.
	Barrier *StartBarrier

	// Stop is this worker's own stop signal. It is set together with
	// the run's global signal by StopAll.
	Stop *StopSignal

	// Verdicts is where the worker records its category outcome.
	Verdicts *Aggregator

	// Status receives progress lines.
	Status StatusSink

	// Duration is the configured run length.
	Duration time.Duration
}

// Worker is one load/test unit bound to a category.
type Worker interface {
	Category() Category
	Kind() ConcurrencyKind

	// Run executes the worker until its stop signal is set. It must
	// first wait on env.Barrier and return without load action if the
	// barrier is aborted. It must return within a bounded grace period
	// after env.Stop is set.
	Run(ctx context.Context, env *Env) error
}

// ForceTerminator is implemented by process-isolated workers that can
// kill their external helpers when the cooperative join times out.
type ForceTerminator interface {
	ForceKill()
}

// WorkerHandle wraps one registered worker with its per-category stop
// signal and lifecycle state.
type WorkerHandle struct {
	worker Worker
	stop   *StopSignal
	state  atomic.Value // WorkerState
	done   chan struct{}
	err    error
}

func newWorkerHandle(w Worker) *WorkerHandle {
	h := &WorkerHandle{
		worker: w,
		stop:   NewStopSignal(),
		done:   make(chan struct{}),
	}
	h.state.Store(StatePending)
	return h
}

// Category returns the wrapped worker's category.
func (h *WorkerHandle) Category() Category { return h.worker.Category() }

// Kind returns the wrapped worker's concurrency kind.
func (h *WorkerHandle) Kind() ConcurrencyKind { return h.worker.Kind() }

// State returns the current lifecycle state.
func (h *WorkerHandle) State() WorkerState {
	return h.state.Load().(WorkerState)
}

// Stop returns the worker's own stop signal.
func (h *WorkerHandle) Stop() *StopSignal { return h.stop }

// Err returns the error the worker's Run returned, if any. Valid only
// after the handle's done channel is closed.
func (h *WorkerHandle) Err() error { return h.err }
