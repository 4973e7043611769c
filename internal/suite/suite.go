// Package suite assembles the per-category workers for one run from
// the stress profile and the category enable switches.
package suite

import (
	"context"
	"log"

	"github.com/bc-dunia/burnrig/internal/config"
	"github.com/bc-dunia/burnrig/internal/cpuload"
	"github.com/bc-dunia/burnrig/internal/gpuload"
	"github.com/bc-dunia/burnrig/internal/netprobe"
	"github.com/bc-dunia/burnrig/internal/run"
	"github.com/bc-dunia/burnrig/internal/sound"
	"github.com/bc-dunia/burnrig/internal/storage"
	"github.com/bc-dunia/burnrig/internal/vram"
)

// Options selects which categories a run exercises. A load category
// with a zero percentage is left out even when enabled, so it stays
// SKIP in the summary.
type Options struct {
	Profile  config.StressProfile
	Modulate bool

	Storage bool
	Network bool
	Sound   bool

	// NetConfigPath is the persisted network-test settings file; empty
	// means built-in defaults.
	NetConfigPath string

	// Runner overrides the command runner used for GPU discovery.
	// Nil means the host's commands.
	Runner gpuload.Runner
}

// Build detects the GPU platform and returns the workers for every
// enabled category.
func Build(ctx context.Context, opts Options) []run.Worker {
	runner := opts.Runner
	if runner == nil {
		runner = gpuload.ExecRunner{}
	}
	platform, devices := gpuload.Detect(ctx, runner)

	var workers []run.Worker
	if opts.Profile.CPUPct > 0 {
		workers = append(workers, cpuload.NewWorker(opts.Profile.CPUPct, opts.Modulate, nil))
	}
	if opts.Profile.GPUPct > 0 && platform != gpuload.PlatformNone {
		if launcher, err := gpuload.NewExecLauncher(); err != nil {
			log.Printf("suite: GPU load disabled, %v", err)
		} else {
			workers = append(workers,
				gpuload.NewComputeWorker(opts.Profile.GPUPct, opts.Modulate, devices, launcher),
				gpuload.NewRenderWorker(opts.Profile.GPUPct, opts.Modulate, devices, launcher),
			)
		}
	}
	if opts.Profile.VRAMPct > 0 {
		workers = append(workers, vram.NewWorker(opts.Profile.VRAMPct, vramDevices(platform, devices, runner)))
	}
	if opts.Storage {
		workers = append(workers, storage.NewWorker(nil))
	}
	if opts.Network {
		workers = append(workers, netprobe.NewWorker(opts.NetConfigPath))
	}
	if opts.Sound {
		workers = append(workers, sound.NewWorker(nil))
	}
	return workers
}

// vramDevices maps detected GPUs to smi-backed memory devices; with no
// GPU tooling the host's own memory is stressed instead.
func vramDevices(platform gpuload.Platform, devices []gpuload.Device, runner gpuload.Runner) []vram.Device {
	if platform == gpuload.PlatformNone || len(devices) == 0 {
		return nil
	}
	out := make([]vram.Device, 0, len(devices))
	for _, d := range devices {
		out = append(out, vram.NewSMIDevice(platform, d.Index, runner))
	}
	return out
}
