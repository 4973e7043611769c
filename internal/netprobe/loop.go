package netprobe

import (
	"context"
	"fmt"
	"time"

	"github.com/bc-dunia/burnrig/internal/events"
	"github.com/bc-dunia/burnrig/internal/otel"
	"github.com/bc-dunia/burnrig/internal/run"
)

// Tally is the outcome of one probe loop.
type Tally struct {
	Probes    int
	Successes int
	Failures  int
}

// Passed reports the loop's verdict criterion: at least one clean
// probe and no failed ones.
func (t Tally) Passed() bool {
	return t.Successes > 0 && t.Failures == 0
}

// Tester probes a single target at a fixed cadence.
type Tester struct {
	Prober   Prober
	Target   string
	Interval time.Duration
}

// RunTestLoop probes until stop is set or duration elapses.
func (t *Tester) RunTestLoop(ctx context.Context, status run.StatusSink, duration time.Duration, stop *run.StopSignal) Tally {
	var tally Tally
	deadline := time.Now().Add(duration)
	for !stop.IsSet() && time.Now().Before(deadline) {
		res, err := t.Prober.Probe(ctx, t.Target)
		tally.Probes++
		if err != nil {
			tally.Failures++
			otel.GetGlobalMetrics().RecordProbe(ctx, false)
			status.Emit(fmt.Sprintf("network %s: probe error: %v", t.Target, err))
		} else {
			ok := res.Clean()
			if ok {
				tally.Successes++
			} else {
				tally.Failures++
			}
			otel.GetGlobalMetrics().RecordProbe(ctx, ok)
			events.GetGlobalEventLogger().LogProbe(t.Target, res.Transmitted, res.Received, res.LossPct, res.RTTAvgMs)
			status.Emit(fmt.Sprintf("network %s: %d/%d replies, %.1f%% loss, avg %.2f ms",
				t.Target, res.Received, res.Transmitted, res.LossPct, res.RTTAvgMs))
		}
		stop.Wait(t.Interval)
	}
	return tally
}
