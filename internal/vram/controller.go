package vram

import (
	"context"

	"github.com/bc-dunia/burnrig/internal/config"
	"github.com/bc-dunia/burnrig/internal/events"
	"github.com/bc-dunia/burnrig/internal/otel"
	"github.com/bc-dunia/burnrig/internal/run"
)

const mib = 1 << 20

// Controller seeks and holds the device's usage at TargetPct of total
// capacity. Growth happens in chunks of a tenth of the remaining gap
// (never below the minimum unit); overshoot is corrected by releasing
// chunks most-recent-first and reclaiming. Allocation failure backs the
// controller off without failing the run.
type Controller struct {
	Device    Device
	TargetPct int

	// OnHeldChange, if set, receives the signed byte delta of held
	// memory after every grow, shrink, or release-all step.
	OnHeldChange func(delta int64)

	held      []Chunk
	heldBytes uint64
	backoffs  int
}

// Run executes control steps until stop is set, then releases every
// chunk in reverse allocation order and reclaims. The returned error is
// reserved for a device whose capacity cannot be read at all.
func (c *Controller) Run(ctx context.Context, stop *run.StopSignal) error {
	converged := false
	for !stop.IsSet() {
		free, total, err := c.Device.MemInfo()
		if err != nil {
			c.releaseAll()
			return err
		}
		used := total - free
		target := total * uint64(c.TargetPct) / 100
		band := uint64(config.AllocHoldBandMB) * mib

		switch {
		case used+band < target:
			converged = false
			c.grow(ctx, target-used, stop)
			stop.Wait(config.AllocControlInterval)
		case used > target+band:
			converged = false
			c.shrink(used - target)
			stop.Wait(config.AllocControlInterval)
		default:
			if !converged {
				converged = true
				events.GetGlobalEventLogger().LogAllocation(
					c.Device.Name(), c.heldBytes/mib, target/mib, len(c.held))
			}
			stop.Wait(config.AllocIdleInterval)
		}
	}
	c.releaseAll()
	return nil
}

// HeldBytes reports the bytes currently held. Single-goroutine use:
// only valid from the controller's own loop or after Run returns.
func (c *Controller) HeldBytes() uint64 { return c.heldBytes }

func (c *Controller) grow(ctx context.Context, gap uint64, stop *run.StopSignal) {
	size := gap / config.AllocGapDivisor
	if min := uint64(config.AllocMinUnitMB) * mib; size < min {
		size = min
	}
	chunk, err := c.Device.Alloc(size)
	if err != nil {
		// Expected under memory pressure; hold position and retry.
		c.backoffs++
		otel.RecordBackoff(otel.GetGlobalTracer().SpanFromContext(ctx), c.backoffs, "allocation failed")
		stop.Wait(config.AllocFailureBackoff)
		return
	}
	c.backoffs = 0
	c.held = append(c.held, chunk)
	c.heldBytes += chunk.Size()
	c.notify(int64(chunk.Size()))
}

func (c *Controller) shrink(excess uint64) {
	var freed uint64
	for freed < excess && len(c.held) > 0 {
		last := c.held[len(c.held)-1]
		c.held = c.held[:len(c.held)-1]
		freed += last.Size()
		last.Release()
	}
	c.heldBytes -= freed
	c.Device.Reclaim()
	if freed > 0 {
		c.notify(-int64(freed))
	}
}

func (c *Controller) releaseAll() {
	var freed uint64
	for i := len(c.held) - 1; i >= 0; i-- {
		freed += c.held[i].Size()
		c.held[i].Release()
	}
	c.held = nil
	c.heldBytes = 0
	c.Device.Reclaim()
	if freed > 0 {
		c.notify(-int64(freed))
	}
}

func (c *Controller) notify(delta int64) {
	if c.OnHeldChange != nil {
		c.OnHeldChange(delta)
	}
}
