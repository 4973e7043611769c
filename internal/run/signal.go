// Package run provides the burn-in test orchestration engine: stop
// signalling, the start barrier, worker supervision, the run deadline
// timer, and verdict aggregation.
package run

import (
	"sync"
	"time"
)

// StopSignal is an idempotent, settable cancellation flag observed
// cooperatively by workers. Set may be called from any goroutine, any
// number of times.
type StopSignal struct {
	once sync.Once
	ch   chan struct{}
}

// NewStopSignal creates an unset StopSignal.
func NewStopSignal() *StopSignal {
	return &StopSignal{ch: make(chan struct{})}
}

// Set marks the signal. Safe to call concurrently and repeatedly.
func (s *StopSignal) Set() {
	s.once.Do(func() { close(s.ch) })
}

// IsSet reports whether the signal has been set.
func (s *StopSignal) IsSet() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}

// Done returns a channel closed when the signal is set.
func (s *StopSignal) Done() <-chan struct{} {
	return s.ch
}

// Wait blocks until the signal is set or the timeout elapses, and
// reports whether the signal was set. A non-positive timeout polls
// without blocking.
func (s *StopSignal) Wait(timeout time.Duration) bool {
	if timeout <= 0 {
		return s.IsSet()
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-s.ch:
		return true
	case <-t.C:
		return false
	}
}
