// Package sysinfo assembles the hardware inventory banner printed
// before a run starts.
package sysinfo

import (
	"context"
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/bc-dunia/burnrig/internal/gpuload"
)

const mib = 1 << 20

// Collector gathers the banner. The runner is injectable so tests can
// fake the smi tools.
type Collector struct {
	Runner gpuload.Runner
}

// NewCollector returns a collector using the host's commands.
func NewCollector() *Collector {
	return &Collector{Runner: gpuload.ExecRunner{}}
}

// Banner returns the inventory summary, one line per subsystem. Every
// source is best-effort; a probe that fails just drops its line.
func (c *Collector) Banner(ctx context.Context) string {
	var b strings.Builder
	b.WriteString("=== system information ===\n")
	if hi, err := host.Info(); err == nil {
		fmt.Fprintf(&b, "host: %s (%s %s, kernel %s)\n",
			hi.Hostname, hi.Platform, hi.PlatformVersion, hi.KernelVersion)
	}
	if infos, err := cpu.Info(); err == nil && len(infos) > 0 {
		cores, err := cpu.Counts(true)
		if err != nil {
			cores = len(infos)
		}
		fmt.Fprintf(&b, "cpu: %s, %d logical cores\n", infos[0].ModelName, cores)
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		fmt.Fprintf(&b, "memory: %d MiB total, %d MiB available\n",
			vm.Total/mib, vm.Available/mib)
	}
	if la, err := load.Avg(); err == nil {
		fmt.Fprintf(&b, "load: %.2f %.2f %.2f\n", la.Load1, la.Load5, la.Load15)
	}
	b.WriteString(c.gpuLines(ctx))
	return b.String()
}

func (c *Collector) gpuLines(ctx context.Context) string {
	platform, devices := gpuload.Detect(ctx, c.Runner)
	if platform == gpuload.PlatformNone {
		return "gpu: none detected\n"
	}
	var b strings.Builder
	for _, d := range devices {
		fmt.Fprintf(&b, "gpu[%d]: %s (%s)\n", d.Index, d.Name, platform)
	}
	if power := c.powerLine(ctx, platform); power != "" {
		b.WriteString(power)
	}
	return b.String()
}

// powerLine reports the GPU power draw where the smi tool exposes it.
func (c *Collector) powerLine(ctx context.Context, platform gpuload.Platform) string {
	switch platform {
	case gpuload.PlatformCUDA:
		out, err := c.Runner.Output(ctx, "nvidia-smi",
			"--query-gpu=power.draw", "--format=csv,noheader,nounits")
		if err != nil {
			return ""
		}
		draws := strings.Fields(strings.TrimSpace(string(out)))
		if len(draws) == 0 {
			return ""
		}
		return fmt.Sprintf("gpu power: %s W\n", strings.Join(draws, " W, "))
	case gpuload.PlatformROCm:
		out, err := c.Runner.Output(ctx, "rocm-smi", "--showpower")
		if err != nil {
			return ""
		}
		for _, line := range strings.Split(string(out), "\n") {
			if strings.Contains(line, "Power") {
				return "gpu power: " + strings.TrimSpace(line) + "\n"
			}
		}
	}
	return ""
}

// CPUDetails returns the lscpu dump with the vulnerability disclosure
// lines removed. Empty when lscpu is unavailable.
func (c *Collector) CPUDetails(ctx context.Context) string {
	out, err := c.Runner.Output(ctx, "lscpu")
	if err != nil {
		return ""
	}
	var kept []string
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if strings.Contains(line, "Vulnerability") {
			continue
		}
		kept = append(kept, line)
	}
	if len(kept) == 0 {
		return ""
	}
	return strings.Join(kept, "\n") + "\n"
}
