package run

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync/atomic"
	"time"

	"github.com/bc-dunia/burnrig/internal/config"
	"github.com/bc-dunia/burnrig/internal/events"
	"github.com/bc-dunia/burnrig/internal/otel"
)

// TestRun is the aggregate root for one burn-in cycle: the
// configuration, the barrier, the global and per-category stop
// signals, the worker set, and the verdict map all hang off it.
type TestRun struct {
	id       string
	duration time.Duration
	profile  config.StressProfile

	barrier    *StartBarrier
	global     *StopSignal
	verdicts   *Aggregator
	supervisor *Supervisor
	timer      *DurationTimer

	joinTimeout time.Duration
	executed    atomic.Bool
}

// Summary is the outcome of one completed run.
type Summary struct {
	RunID    string
	Manual   bool
	Elapsed  time.Duration
	Verdicts map[Category]Verdict
	Overall  Verdict
}

// NewTestRun assembles a run over the given workers. Workers whose
// category is disabled must simply not be passed in; their verdicts
// stay at SKIP.
func NewTestRun(duration time.Duration, profile config.StressProfile, workers []Worker, status StatusSink) (*TestRun, error) {
	if duration <= 0 {
		return nil, ErrInvalidDuration
	}
	if len(workers) == 0 {
		return nil, ErrNoWorkers
	}

	id := newRunID()
	barrier := NewStartBarrier()
	global := NewStopSignal()
	verdicts := NewAggregator()
	sup := NewSupervisor(id, barrier, global, verdicts, status, duration)
	for _, w := range workers {
		sup.Register(w)
	}

	r := &TestRun{
		id:          id,
		duration:    duration,
		profile:     profile,
		barrier:     barrier,
		global:      global,
		verdicts:    verdicts,
		supervisor:  sup,
		joinTimeout: config.DefaultJoinTimeout,
	}
	r.timer = NewDurationTimer(duration, global, sup.StopAll)
	return r, nil
}

// ID returns the run identifier.
func (r *TestRun) ID() string { return r.id }

// Verdicts returns the run's aggregator.
func (r *TestRun) Verdicts() *Aggregator { return r.verdicts }

// SetJoinTimeout overrides the bounded join wait. Mostly for tests.
func (r *TestRun) SetJoinTimeout(d time.Duration) { r.joinTimeout = d }

// Stop requests a stop of the whole run. Manual stops and the deadline
// share the same signal path; the flag only matters to the aggregator.
func (r *TestRun) Stop(manual bool) {
	r.supervisor.StopAll(manual)
}

// Execute runs one full cycle: start every worker, arm the barrier,
// start the deadline timer, wait for a stop (deadline, manual, or
// context cancellation — the last counts as manual), join with a hard
// bound, and finalize verdicts. A TestRun executes at most once.
func (r *TestRun) Execute(ctx context.Context) (*Summary, error) {
	if r.executed.Swap(true) {
		return nil, ErrAlreadyExecuted
	}

	events.GetGlobalEventLogger().LogRunStarted(
		r.duration.Seconds(),
		r.profile.CPUPct, r.profile.GPUPct, r.profile.VRAMPct,
	)

	started := time.Now()
	r.supervisor.StartAll(ctx)
	r.barrier.Arm()
	r.timer.Start()

	select {
	case <-r.global.Done():
	case <-ctx.Done():
		// Interrupt or caller cancellation maps onto a manual stop.
		r.supervisor.StopAll(true)
	}
	r.timer.Cancel()

	r.supervisor.JoinAll(r.joinTimeout)
	r.verdicts.Finalize(r.supervisor.Manual())

	summary := &Summary{
		RunID:    r.id,
		Manual:   r.supervisor.Manual(),
		Elapsed:  time.Since(started),
		Verdicts: r.verdicts.Snapshot(),
		Overall:  r.verdicts.Overall(),
	}
	otel.GetGlobalMetrics().RecordRunVerdicts(ctx, categoryVerdictPairs(summary.Verdicts))
	events.GetGlobalEventLogger().LogRunFinished(string(summary.Overall), summary.Manual, summary.Elapsed.Seconds())

	// Teardown: the handle set is dropped so worker state (and any
	// helper bookkeeping it retains) does not leak across runs.
	r.supervisor.mu.Lock()
	r.supervisor.handles = nil
	r.supervisor.mu.Unlock()

	return summary, nil
}

func categoryVerdictPairs(m map[Category]Verdict) map[string]string {
	out := make(map[string]string, len(m))
	for c, v := range m {
		out[string(c)] = string(v)
	}
	return out
}

func newRunID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}
