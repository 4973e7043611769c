// Package gpuload generates duty-cycled GPU compute and render load on
// every detected GPU. Detection prefers CUDA tooling and falls back to
// ROCm, matching the platforms the load helpers support.
package gpuload

import (
	"context"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// Platform is the GPU tooling family driving the load helpers.
type Platform string

const (
	PlatformCUDA Platform = "cuda"
	PlatformROCm Platform = "rocm"
	PlatformNone Platform = "none"
)

// Device is one detected GPU.
type Device struct {
	Index int
	Name  string
}

// Runner executes an external command and returns its combined output.
// The indirection keeps detection testable without GPU tooling.
type Runner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

var rocmDeviceRe = regexp.MustCompile(`GPU\[(\d+)\][^:]*:\s*(?:Card [Ss]eries:\s*)?(.+)`)

// Detect enumerates GPUs. nvidia-smi is queried first, then rocm-smi;
// no tooling means no devices and PlatformNone.
func Detect(ctx context.Context, runner Runner) (Platform, []Device) {
	if runner == nil {
		runner = ExecRunner{}
	}

	if out, err := runner.Output(ctx, "nvidia-smi",
		"--query-gpu=index,name", "--format=csv,noheader"); err == nil {
		if devices := parseNvidiaList(string(out)); len(devices) > 0 {
			return PlatformCUDA, devices
		}
	}

	if out, err := runner.Output(ctx, "rocm-smi", "--showproductname"); err == nil {
		if devices := parseROCmList(string(out)); len(devices) > 0 {
			return PlatformROCm, devices
		}
	}

	return PlatformNone, nil
}

// parseNvidiaList parses "index, name" CSV lines from nvidia-smi.
func parseNvidiaList(out string) []Device {
	var devices []Device
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		idx, name, ok := strings.Cut(line, ",")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(idx))
		if err != nil {
			continue
		}
		devices = append(devices, Device{Index: n, Name: strings.TrimSpace(name)})
	}
	return devices
}

// parseROCmList parses "GPU[n] ... : Card series: name" lines from
// rocm-smi. Duplicate indexes keep the first name seen.
func parseROCmList(out string) []Device {
	seen := make(map[int]bool)
	var devices []Device
	for _, line := range strings.Split(out, "\n") {
		m := rocmDeviceRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || seen[n] {
			continue
		}
		seen[n] = true
		devices = append(devices, Device{Index: n, Name: strings.TrimSpace(m[2])})
	}
	return devices
}
