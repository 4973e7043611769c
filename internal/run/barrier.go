package run

import (
	"context"
	"sync"
)

// StartBarrier is a one-shot gate. Workers block in Wait until the
// supervisor calls Arm; no load-bearing work may happen before that.
// Abort releases all waiters without arming, so workers return having
// done nothing and their verdicts stay at SKIP.
type StartBarrier struct {
	armOnce   sync.Once
	abortOnce sync.Once
	armCh     chan struct{}
	abortCh   chan struct{}
}

// NewStartBarrier creates an unarmed barrier.
func NewStartBarrier() *StartBarrier {
	return &StartBarrier{
		armCh:   make(chan struct{}),
		abortCh: make(chan struct{}),
	}
}

// Arm releases every waiter. Called exactly once per run by the
// supervisor; repeated calls are no-ops.
func (b *StartBarrier) Arm() {
	b.armOnce.Do(func() { close(b.armCh) })
}

// Abort releases every waiter without arming. Waiters observe false
// and must not perform any load action.
func (b *StartBarrier) Abort() {
	b.abortOnce.Do(func() { close(b.abortCh) })
}

// Armed reports whether Arm has been called.
func (b *StartBarrier) Armed() bool {
	select {
	case <-b.armCh:
		return true
	default:
		return false
	}
}

// Wait blocks until the barrier is armed, aborted, or the context is
// cancelled. It returns true only when the barrier was armed.
func (b *StartBarrier) Wait(ctx context.Context) bool {
	select {
	case <-b.abortCh:
		return false
	default:
	}
	select {
	case <-b.armCh:
		return true
	case <-b.abortCh:
		return false
	case <-ctx.Done():
		return false
	}
}
