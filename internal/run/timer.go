package run

import (
	"sync"
	"time"
)

// DurationTimer fires a single deadline-driven stop after the
// configured run length. It counts from Start (called right after the
// barrier is armed), fires at most once, and never fires after a
// manual stop: the global signal's state is checked immediately before
// firing to avoid a redundant late signal.
type DurationTimer struct {
	d       time.Duration
	global  *StopSignal
	stopAll func(manual bool)

	startOnce  sync.Once
	cancelOnce sync.Once
	cancelCh   chan struct{}
	doneCh     chan struct{}
}

// NewDurationTimer creates an unstarted timer. stopAll is invoked with
// manual=false at expiry.
func NewDurationTimer(d time.Duration, global *StopSignal, stopAll func(manual bool)) *DurationTimer {
	return &DurationTimer{
		d:        d,
		global:   global,
		stopAll:  stopAll,
		cancelCh: make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the countdown. Repeated calls are no-ops.
func (t *DurationTimer) Start() {
	t.startOnce.Do(func() {
		go t.loop()
	})
}

func (t *DurationTimer) loop() {
	defer close(t.doneCh)
	timer := time.NewTimer(t.d)
	defer timer.Stop()
	select {
	case <-timer.C:
		if t.global.IsSet() {
			// A manual stop beat the deadline; stay silent.
			return
		}
		t.stopAll(false)
	case <-t.cancelCh:
	case <-t.global.Done():
	}
}

// Cancel stops the timer without firing. Safe to call whether or not
// the timer started or already fired.
func (t *DurationTimer) Cancel() {
	t.cancelOnce.Do(func() { close(t.cancelCh) })
}
