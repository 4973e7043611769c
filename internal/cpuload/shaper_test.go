package cpuload

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bc-dunia/burnrig/internal/run"
)

// fakeProcess is a controllable generator for shaper tests.
type fakeProcess struct {
	mu         sync.Mutex
	done       chan struct{}
	terminated bool
	killed     bool
}

func newFakeProcess() *fakeProcess {
	return &fakeProcess{done: make(chan struct{})}
}

func (p *fakeProcess) Running() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *fakeProcess) Terminate() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.terminated {
		p.terminated = true
		close(p.done)
	}
	return nil
}

func (p *fakeProcess) Kill() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.killed = true
	if !p.terminated {
		p.terminated = true
		close(p.done)
	}
}

func (p *fakeProcess) Wait() error {
	<-p.done
	return nil
}

type fakeLauncher struct {
	mu       sync.Mutex
	launched []*fakeProcess
	err      error
}

func (l *fakeLauncher) Launch(ctx context.Context, pct int) (Process, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	p := newFakeProcess()
	l.launched = append(l.launched, p)
	return p, nil
}

func (l *fakeLauncher) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.launched)
}

func TestShaperTerminatesGeneratorOnStop(t *testing.T) {
	launcher := &fakeLauncher{}
	stop := run.NewStopSignal()
	s := &Shaper{Pct: 50, Launcher: launcher, Category: "CPU"}

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background(), stop) }()

	// Wait for the first launch, then stop.
	deadline := time.Now().Add(time.Second)
	for launcher.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if launcher.count() == 0 {
		t.Fatal("shaper never launched a generator")
	}
	stop.Set()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("shaper did not return after stop")
	}

	launcher.mu.Lock()
	p := launcher.launched[0]
	launcher.mu.Unlock()
	if p.Running() {
		t.Fatal("generator should be terminated on stop")
	}
}

func TestShaperRelaunchesAfterGeneratorExit(t *testing.T) {
	launcher := &fakeLauncher{}
	stop := run.NewStopSignal()
	s := &Shaper{Pct: 50, Launcher: launcher, Category: "CPU"}

	go s.Run(context.Background(), stop)
	defer stop.Set()

	deadline := time.Now().Add(time.Second)
	for launcher.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if launcher.count() == 0 {
		t.Fatal("no first launch")
	}

	// Let the generator exit on its own; the shaper must relaunch
	// after its pause slice.
	launcher.mu.Lock()
	launcher.launched[0].Terminate()
	launcher.mu.Unlock()

	deadline = time.Now().Add(3 * time.Second)
	for launcher.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if launcher.count() < 2 {
		t.Fatal("shaper did not relaunch after generator exit")
	}
}

func TestShaperLaunchFailure(t *testing.T) {
	wantErr := errors.New("no such binary")
	launcher := &fakeLauncher{err: wantErr}
	stop := run.NewStopSignal()
	s := &Shaper{Pct: 50, Launcher: launcher, Category: "CPU"}

	if err := s.Run(context.Background(), stop); !errors.Is(err, wantErr) {
		t.Fatalf("Run error = %v, want %v", err, wantErr)
	}
}

func TestBusyLauncherProcessLifecycle(t *testing.T) {
	p, err := BusyLauncher{}.Launch(context.Background(), 40)
	if err != nil {
		t.Fatalf("Launch failed: %v", err)
	}
	if !p.Running() {
		t.Fatal("busy process should be running")
	}

	p.Terminate()
	waitDone := make(chan struct{})
	go func() { p.Wait(); close(waitDone) }()
	select {
	case <-waitDone:
	case <-time.After(2 * time.Second):
		t.Fatal("busy process did not exit after Terminate")
	}
	if p.Running() {
		t.Fatal("busy process should have stopped")
	}
}

func TestWorkerForceKill(t *testing.T) {
	launcher := &fakeLauncher{}
	w := NewWorker(50, false, launcher)

	barrier := run.NewStartBarrier()
	stop := run.NewStopSignal()
	env := &run.Env{
		Barrier:  barrier,
		Stop:     stop,
		Verdicts: run.NewAggregator(),
		Status:   run.NopSink(),
		Duration: time.Minute,
	}

	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background(), env) }()
	barrier.Arm()

	deadline := time.Now().Add(time.Second)
	for launcher.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if launcher.count() == 0 {
		t.Fatal("worker never launched a generator")
	}

	w.ForceKill()
	stop.Set()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not return")
	}

	launcher.mu.Lock()
	var anyKilled bool
	for _, p := range launcher.launched {
		if p.killed {
			anyKilled = true
		}
	}
	launcher.mu.Unlock()
	if !anyKilled {
		t.Fatal("ForceKill should kill tracked generators")
	}
}

func TestWorkerBarrierAbort(t *testing.T) {
	launcher := &fakeLauncher{}
	w := NewWorker(50, false, launcher)

	barrier := run.NewStartBarrier()
	verdicts := run.NewAggregator()
	env := &run.Env{
		Barrier:  barrier,
		Stop:     run.NewStopSignal(),
		Verdicts: verdicts,
		Status:   run.NopSink(),
		Duration: time.Minute,
	}

	var returned atomic.Bool
	go func() {
		w.Run(context.Background(), env)
		returned.Store(true)
	}()
	barrier.Abort()

	deadline := time.Now().Add(time.Second)
	for !returned.Load() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !returned.Load() {
		t.Fatal("worker did not return after barrier abort")
	}
	if launcher.count() != 0 {
		t.Fatal("aborted worker must not launch generators")
	}
	if got := verdicts.Verdict(run.CategoryCPU); got != run.VerdictSkip {
		t.Fatalf("verdict = %s, want SKIP", got)
	}
}
