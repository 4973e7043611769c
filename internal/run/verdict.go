package run

import (
	"sync"

	"github.com/bc-dunia/burnrig/internal/events"
)

// Verdict is the terminal classification of one test category.
type Verdict string

const (
	VerdictPass Verdict = "PASS"
	VerdictFail Verdict = "FAIL"
	VerdictSkip Verdict = "SKIP"
)

// Aggregator is the single source of truth for per-category verdicts.
// Every known category starts at SKIP. A worker that begins executing
// marks its slot FAIL (pessimistic default) and only its explicit
// success criterion moves it to PASS. Each category has exactly one
// writer (its own worker); the mutex exists for the late Finalize and
// Snapshot readers.
type Aggregator struct {
	mu       sync.Mutex
	verdicts map[Category]Verdict
	launched map[Category]bool
}

// NewAggregator seeds every known category to SKIP.
func NewAggregator() *Aggregator {
	a := &Aggregator{
		verdicts: make(map[Category]Verdict),
		launched: make(map[Category]bool),
	}
	for _, c := range AllCategories() {
		a.verdicts[c] = VerdictSkip
	}
	return a
}

// MarkStarted records that the category's worker has begun executing:
// the slot moves to FAIL before any work happens, so a crash mid-run
// is never mistaken for a pass.
func (a *Aggregator) MarkStarted(c Category) {
	a.mu.Lock()
	a.verdicts[c] = VerdictFail
	a.launched[c] = true
	a.mu.Unlock()
	events.GetGlobalEventLogger().LogVerdict(string(c), string(VerdictFail))
}

// Record sets the category's verdict.
func (a *Aggregator) Record(c Category, v Verdict) {
	a.mu.Lock()
	a.verdicts[c] = v
	a.mu.Unlock()
	events.GetGlobalEventLogger().LogVerdict(string(c), string(v))
}

// Verdict returns the current verdict for a category.
func (a *Aggregator) Verdict(c Category) Verdict {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.verdicts[c]
}

// Launched reports whether the category's worker ever began executing.
func (a *Aggregator) Launched(c Category) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.launched[c]
}

// Finalize applies the end-of-run rules. On a manual stop, every
// load-only category that launched is downgraded to SKIP: with no
// completion criterion short of the full duration, neither PASS nor
// FAIL is a fair verdict for a preempted load generator. A
// deadline-driven stop leaves verdicts untouched — a load worker that
// was running when the deadline hit did its job.
func (a *Aggregator) Finalize(manual bool) {
	if !manual {
		return
	}
	a.mu.Lock()
	downgraded := make([]Category, 0, 4)
	for _, c := range AllCategories() {
		if c.LoadOnly() && a.launched[c] {
			a.verdicts[c] = VerdictSkip
			downgraded = append(downgraded, c)
		}
	}
	a.mu.Unlock()
	for _, c := range downgraded {
		events.GetGlobalEventLogger().LogVerdict(string(c), string(VerdictSkip))
	}
}

// Snapshot returns a copy of the verdict map.
func (a *Aggregator) Snapshot() map[Category]Verdict {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[Category]Verdict, len(a.verdicts))
	for c, v := range a.verdicts {
		out[c] = v
	}
	return out
}

// Overall returns PASS iff no category slot is FAIL.
func (a *Aggregator) Overall() Verdict {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, v := range a.verdicts {
		if v == VerdictFail {
			return VerdictFail
		}
	}
	return VerdictPass
}
