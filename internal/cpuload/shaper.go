package cpuload

import (
	"context"

	"github.com/bc-dunia/burnrig/internal/config"
	"github.com/bc-dunia/burnrig/internal/otel"
	"github.com/bc-dunia/burnrig/internal/run"
)

// Shaper runs one duty-cycled load loop: launch a full-intensity
// generator, poll it at the check interval until it exits or a stop is
// requested, terminate it if still alive, sleep the pause slice, and
// repeat. Modulate doubles both intervals to let temperatures swing.
type Shaper struct {
	Pct      int
	Modulate bool
	Launcher Launcher
	Category string
}

// Run loops until stop is set. A launch failure aborts the loop and is
// returned; generator exit errors are not failures, the generator is
// simply relaunched on the next cycle.
func (s *Shaper) Run(ctx context.Context, stop *run.StopSignal) error {
	check := config.DutyCheckInterval
	pause := config.DutyPauseUnit
	if s.Modulate {
		check *= config.ModulatePauseFactor
		pause *= config.ModulatePauseFactor
	}

	for !stop.IsSet() {
		p, err := s.Launcher.Launch(ctx, s.Pct)
		if err != nil {
			return err
		}

		for !stop.IsSet() && p.Running() {
			stop.Wait(check)
		}
		if p.Running() {
			p.Terminate()
			p.Wait()
		}
		otel.GetGlobalMetrics().RecordDutyCycle(ctx, s.Category)

		if stop.IsSet() {
			break
		}
		stop.Wait(pause)
	}
	return nil
}
