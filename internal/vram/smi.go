package vram

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/bc-dunia/burnrig/internal/cpuload"
	"github.com/bc-dunia/burnrig/internal/gpuload"
)

// vramHelperName holds GPU allocations on the controller's behalf: one
// helper process per chunk, releasing its memory when killed.
const vramHelperName = "burnrig-vramhold"

// SMIDevice targets one GPU's memory. Capacity comes from the smi
// query tools; chunks are helper processes pinning device memory.
type SMIDevice struct {
	Platform gpuload.Platform
	Index    int
	Runner   gpuload.Runner

	// HelperPath overrides the PATH lookup of the hold helper.
	HelperPath string
}

// NewSMIDevice creates a device for one detected GPU.
func NewSMIDevice(platform gpuload.Platform, index int, runner gpuload.Runner) *SMIDevice {
	if runner == nil {
		runner = gpuload.ExecRunner{}
	}
	return &SMIDevice{Platform: platform, Index: index, Runner: runner}
}

// Name identifies the GPU pool.
func (d *SMIDevice) Name() string {
	return fmt.Sprintf("%s-gpu%d", d.Platform, d.Index)
}

// MemInfo queries free and total device memory through the platform's
// smi tool.
func (d *SMIDevice) MemInfo() (free, total uint64, err error) {
	switch d.Platform {
	case gpuload.PlatformCUDA:
		out, err := d.Runner.Output(context.Background(), "nvidia-smi",
			"--query-gpu=memory.free,memory.total",
			"--format=csv,noheader,nounits",
			"-i", strconv.Itoa(d.Index))
		if err != nil {
			return 0, 0, err
		}
		return parseNvidiaMemInfo(string(out))
	case gpuload.PlatformROCm:
		out, err := d.Runner.Output(context.Background(), "rocm-smi",
			"--showmeminfo", "vram", "-d", strconv.Itoa(d.Index))
		if err != nil {
			return 0, 0, err
		}
		return parseROCmMemInfo(string(out))
	default:
		return 0, 0, fmt.Errorf("no smi tooling for platform %q", d.Platform)
	}
}

// Alloc spawns one hold helper pinning the given amount of device
// memory. Helper startup failure reads as an ordinary OOM-class
// failure and backs the controller off.
func (d *SMIDevice) Alloc(bytes uint64) (Chunk, error) {
	path := d.HelperPath
	if path == "" {
		p, err := exec.LookPath(vramHelperName)
		if err != nil {
			return nil, err
		}
		path = p
	}
	cmd := exec.Command(path,
		"-device", strconv.Itoa(d.Index),
		"-mb", strconv.FormatUint(bytes/mib, 10),
	)
	proc, err := cpuload.StartCommand(cmd)
	if err != nil {
		return nil, err
	}
	return &smiChunk{size: bytes, proc: proc}, nil
}

// Reclaim is a no-op: releasing a chunk kills its helper, and the
// driver returns the memory immediately.
func (d *SMIDevice) Reclaim() {}

type smiChunk struct {
	size uint64
	proc cpuload.Process
}

func (c *smiChunk) Size() uint64 { return c.size }

func (c *smiChunk) Release() {
	c.proc.Kill()
	c.proc.Wait()
}

// parseNvidiaMemInfo parses "free, total" MiB values.
func parseNvidiaMemInfo(out string) (free, total uint64, err error) {
	line := strings.TrimSpace(out)
	freeStr, totalStr, ok := strings.Cut(line, ",")
	if !ok {
		return 0, 0, fmt.Errorf("unexpected nvidia-smi memory output %q", line)
	}
	freeMB, err := strconv.ParseUint(strings.TrimSpace(freeStr), 10, 64)
	if err != nil {
		return 0, 0, err
	}
	totalMB, err := strconv.ParseUint(strings.TrimSpace(totalStr), 10, 64)
	if err != nil {
		return 0, 0, err
	}
	return freeMB * mib, totalMB * mib, nil
}

// parseROCmMemInfo parses "VRAM Total Memory (B)" and "VRAM Total Used
// Memory (B)" lines from rocm-smi.
func parseROCmMemInfo(out string) (free, total uint64, err error) {
	var used uint64
	var haveTotal, haveUsed bool
	for _, line := range strings.Split(out, "\n") {
		switch {
		case strings.Contains(line, "Total Memory"):
			if v, ok := trailingUint(line); ok {
				total = v
				haveTotal = true
			}
		case strings.Contains(line, "Used Memory"):
			if v, ok := trailingUint(line); ok {
				used = v
				haveUsed = true
			}
		}
	}
	if !haveTotal || !haveUsed {
		return 0, 0, fmt.Errorf("unexpected rocm-smi memory output")
	}
	if used > total {
		used = total
	}
	return total - used, total, nil
}

func trailingUint(line string) (uint64, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return 0, false
	}
	v, err := strconv.ParseUint(fields[len(fields)-1], 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
