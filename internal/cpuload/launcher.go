// Package cpuload generates duty-cycled CPU load through external
// helper processes, one per logical core, with an in-process fallback
// when no helper binary is installed.
package cpuload

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"
)

// helperName is the full-intensity load binary looked up next to the
// orchestrator executable, then on PATH.
const helperName = "burnrig-loadgen"

// Process is one running load generator.
type Process interface {
	// Running reports whether the generator is still executing.
	Running() bool

	// Terminate requests a graceful stop.
	Terminate() error

	// Kill stops the generator immediately.
	Kill()

	// Wait blocks until the generator has exited.
	Wait() error
}

// Launcher starts a full-intensity load generator at the given
// percentage.
type Launcher interface {
	Launch(ctx context.Context, pct int) (Process, error)
}

// LauncherFunc adapts a function to a Launcher.
type LauncherFunc func(ctx context.Context, pct int) (Process, error)

func (f LauncherFunc) Launch(ctx context.Context, pct int) (Process, error) {
	return f(ctx, pct)
}

// DefaultLauncher returns an exec-backed launcher when the helper
// binary can be found, otherwise the in-process busy-work fallback.
func DefaultLauncher() Launcher {
	if path, err := findHelper(); err == nil {
		return &ExecLauncher{Path: path}
	}
	return BusyLauncher{}
}

func findHelper() (string, error) {
	if self, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(self), helperName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return exec.LookPath(helperName)
}

// ExecLauncher launches the external helper binary with the load
// percentage as its single argument.
type ExecLauncher struct {
	Path string
}

// Launch starts one helper process.
func (l *ExecLauncher) Launch(ctx context.Context, pct int) (Process, error) {
	return StartCommand(exec.Command(l.Path, strconv.Itoa(pct)))
}

// StartCommand starts cmd and wraps it as a Process whose exit is
// observable without blocking. Shared by the GPU launchers.
func StartCommand(cmd *exec.Cmd) (Process, error) {
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	p := &execProcess{cmd: cmd, done: make(chan struct{})}
	go func() {
		p.err = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

type execProcess struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

func (p *execProcess) Running() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *execProcess) Terminate() error {
	if !p.Running() {
		return nil
	}
	return terminateProcess(p.cmd.Process)
}

func (p *execProcess) Kill() {
	if p.Running() {
		p.cmd.Process.Kill()
	}
}

func (p *execProcess) Wait() error {
	<-p.done
	return p.err
}

// BusyLauncher is the in-process fallback: chunked busy-work on the
// caller's scheduler instead of an external helper.
type BusyLauncher struct{}

// Launch starts one busy-work goroutine.
func (BusyLauncher) Launch(ctx context.Context, pct int) (Process, error) {
	p := &busyProcess{done: make(chan struct{})}
	go p.loop(pct)
	return p, nil
}

type busyProcess struct {
	stopped atomic.Bool
	done    chan struct{}
}

func (p *busyProcess) loop(pct int) {
	defer close(p.done)
	sink := 0
	for !p.stopped.Load() {
		// Small work chunks keep the stop check responsive.
		for i := 0; i < 5000; i++ {
			sink += i * i
		}
		if pct < 100 {
			idle := time.Duration(100-pct) * 100 * time.Microsecond
			time.Sleep(idle)
		}
	}
	_ = sink
}

func (p *busyProcess) Running() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *busyProcess) Terminate() error {
	p.stopped.Store(true)
	return nil
}

func (p *busyProcess) Kill() {
	p.stopped.Store(true)
}

func (p *busyProcess) Wait() error {
	<-p.done
	return nil
}
