package sound

import (
	"context"
	"fmt"
	"time"

	"github.com/bc-dunia/burnrig/internal/config"
	"github.com/bc-dunia/burnrig/internal/events"
	"github.com/bc-dunia/burnrig/internal/otel"
	"github.com/bc-dunia/burnrig/internal/run"
)

// Tally is the outcome of a trial loop.
type Tally struct {
	Trials int
	Best   float64
}

// Tester runs loopback trials at a fixed gap until stopped. The gap
// lets the microphone settle between tones.
type Tester struct {
	Trialer   Trialer
	Gap       time.Duration
	Threshold float64
}

// NewTester creates a tester with the default gap and threshold.
func NewTester(trialer Trialer) *Tester {
	return &Tester{
		Trialer:   trialer,
		Gap:       config.SoundTrialGap,
		Threshold: config.SoundCorrelationThreshold,
	}
}

// RunTestLoop runs trials until stop is set or duration elapses. A
// trial error ends the loop; trials already scored still count.
func (t *Tester) RunTestLoop(ctx context.Context, status run.StatusSink, duration time.Duration, stop *run.StopSignal) Tally {
	var tally Tally
	deadline := time.Now().Add(duration)
	for !stop.IsSet() && time.Now().Before(deadline) {
		corr, err := t.Trialer.Trial(ctx)
		if err != nil {
			status.Emit(fmt.Sprintf("sound: trial error: %v", err))
			break
		}
		tally.Trials++
		if corr > tally.Best {
			tally.Best = corr
		}
		passed := corr >= t.Threshold
		events.GetGlobalEventLogger().LogTrial(tally.Trials, corr, passed)
		otel.GetGlobalMetrics().RecordTrial(ctx, passed)
		status.Emit(fmt.Sprintf("sound: trial %d correlation %.3f", tally.Trials, corr))
		stop.Wait(t.Gap)
	}
	return tally
}

// Check runs a fixed number of trials outside a test run and returns
// the best correlation seen. Used by the standalone loopback check.
func (t *Tester) Check(ctx context.Context, status run.StatusSink) (float64, error) {
	var best float64
	for i := 0; i < config.SoundTrialCount; i++ {
		if i > 0 {
			time.Sleep(t.Gap)
		}
		corr, err := t.Trialer.Trial(ctx)
		if err != nil {
			return best, err
		}
		if corr > best {
			best = corr
		}
		status.Emit(fmt.Sprintf("sound check: trial %d correlation %.3f", i+1, corr))
	}
	return best, nil
}
