package run

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bc-dunia/burnrig/internal/config"
	"github.com/bc-dunia/burnrig/internal/events"
	"github.com/bc-dunia/burnrig/internal/otel"
)

// Supervisor owns the lifecycle of every worker in a run: it launches
// them under their declared concurrency kind, propagates stop, and
// joins them within a hard time bound.
type Supervisor struct {
	runID   string
	barrier *StartBarrier
	global  *StopSignal

	mu      sync.Mutex
	handles []*WorkerHandle

	started atomic.Bool
	stopped atomic.Bool
	manual  atomic.Bool

	env envTemplate
	wg  sync.WaitGroup
}

type envTemplate struct {
	verdicts *Aggregator
	status   StatusSink
	duration time.Duration
}

// NewSupervisor creates a supervisor bound to the run's barrier,
// global stop signal and aggregator.
func NewSupervisor(runID string, barrier *StartBarrier, global *StopSignal, verdicts *Aggregator, status StatusSink, duration time.Duration) *Supervisor {
	if status == nil {
		status = NopSink()
	}
	return &Supervisor{
		runID:   runID,
		barrier: barrier,
		global:  global,
		env: envTemplate{
			verdicts: verdicts,
			status:   status,
			duration: duration,
		},
	}
}

// Register adds a worker before the run starts. Registration after
// StartAll is a no-op.
func (s *Supervisor) Register(w Worker) *WorkerHandle {
	if s.started.Load() {
		log.Printf("supervisor: ignoring registration of %s after start", w.Category())
		return nil
	}
	h := newWorkerHandle(w)
	s.mu.Lock()
	s.handles = append(s.handles, h)
	s.mu.Unlock()
	return h
}

// Handles returns the registered worker handles.
func (s *Supervisor) Handles() []*WorkerHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*WorkerHandle, len(s.handles))
	copy(out, s.handles)
	return out
}

// StartAll launches every registered worker. Each worker gets its own
// Env with a per-category stop signal; the barrier is still closed, so
// no load starts until Arm.
func (s *Supervisor) StartAll(ctx context.Context) {
	if s.started.Swap(true) {
		return
	}
	for _, h := range s.Handles() {
		h := h
		env := &Env{
			Barrier:  s.barrier,
			Stop:     h.stop,
			Verdicts: s.env.verdicts,
			Status:   s.env.status,
			Duration: s.env.duration,
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer close(h.done)

			h.state.Store(StateRunning)
			events.GetGlobalEventLogger().LogWorkerStarted(string(h.Category()), string(h.Kind()))

			spanCtx, span := otel.GetGlobalTracer().StartWorkerSpan(ctx, otel.WorkerSpanOptions{
				RunID:    s.runID,
				Category: string(h.Category()),
				Kind:     string(h.Kind()),
			})
			err := h.worker.Run(spanCtx, env)
			if err != nil {
				otel.RecordError(span, err, "worker", false)
			}
			span.End()

			h.err = err
			h.state.Store(StateTerminated)
			events.GetGlobalEventLogger().LogWorkerStopped(string(h.Category()), err)
		}()
	}
}

// StopAll sets the global stop signal and every per-category signal
// exactly once per run. The manual flag records whether the stop was
// user-initiated or deadline-driven; only the aggregator consumes it.
// Idempotent: repeated calls do nothing.
func (s *Supervisor) StopAll(manual bool) {
	if s.stopped.Swap(true) {
		return
	}
	s.manual.Store(manual)
	events.GetGlobalEventLogger().LogStopRequested(manual)
	s.global.Set()
	for _, h := range s.Handles() {
		if h.State() == StateRunning {
			h.state.Store(StateStopping)
		}
		h.stop.Set()
	}
}

// Manual reports whether the recorded stop was user-initiated.
func (s *Supervisor) Manual() bool { return s.manual.Load() }

// Stopped reports whether StopAll has been called.
func (s *Supervisor) Stopped() bool { return s.stopped.Load() }

// JoinAll waits up to timeout for every worker to exit. The bound is a
// hard contract: JoinAll returns within timeout plus a small kill
// grace regardless of worker misbehavior. A process-isolated worker
// still alive at the deadline is force-killed and waited on briefly;
// an in-process task still alive is abandoned (logged, never blocked
// on again).
func (s *Supervisor) JoinAll(timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for _, h := range s.Handles() {
		remaining := time.Until(deadline)
		if remaining > 0 {
			t := time.NewTimer(remaining)
			select {
			case <-h.done:
				t.Stop()
				continue
			case <-t.C:
			}
		} else {
			select {
			case <-h.done:
				continue
			default:
			}
		}

		// Past the deadline with the worker still alive.
		switch h.Kind() {
		case KindProcess:
			if ft, ok := h.worker.(ForceTerminator); ok {
				ft.ForceKill()
			}
			t := time.NewTimer(config.DefaultKillWait)
			select {
			case <-h.done:
				t.Stop()
				events.GetGlobalEventLogger().LogJoinTimeout(string(h.Category()), string(h.Kind()), "killed")
			case <-t.C:
				events.GetGlobalEventLogger().LogJoinTimeout(string(h.Category()), string(h.Kind()), "kill_timeout")
			}
		default:
			events.GetGlobalEventLogger().LogJoinTimeout(string(h.Category()), string(h.Kind()), "abandoned")
		}
	}
}
