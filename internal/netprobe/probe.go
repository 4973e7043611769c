// Package netprobe checks network connectivity by pinging a target
// host on a fixed cadence and tallying probe outcomes.
package netprobe

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Runner executes an external command and returns its combined output.
type Runner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands on the host.
type ExecRunner struct{}

func (ExecRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// ProbeResult is one parsed ping summary.
type ProbeResult struct {
	Transmitted int
	Received    int
	LossPct     float64
	RTTMinMs    float64
	RTTAvgMs    float64
	RTTMaxMs    float64
}

// Clean reports whether the probe saw replies and lost nothing.
func (r ProbeResult) Clean() bool {
	return r.Received > 0 && r.LossPct == 0
}

// Prober issues a single probe against a target.
type Prober interface {
	Probe(ctx context.Context, target string) (ProbeResult, error)
}

// PingProber probes with the system ping command.
type PingProber struct {
	Runner  Runner
	Count   int
	Timeout time.Duration
}

var (
	packetsRe = regexp.MustCompile(`(\d+) packets transmitted, (\d+)(?: packets)? received.*?([\d.]+)% packet loss`)
	rttRe     = regexp.MustCompile(`rtt min/avg/max/mdev = ([\d.]+)/([\d.]+)/([\d.]+)/[\d.]+ ms`)
)

// Probe pings the target once and parses the summary. A non-zero ping
// exit (unreachable host, total loss) is a probe error.
func (p *PingProber) Probe(ctx context.Context, target string) (ProbeResult, error) {
	args := []string{
		"-c", strconv.Itoa(p.Count),
		"-W", strconv.Itoa(int(p.Timeout / time.Second)),
		target,
	}
	out, err := p.Runner.Output(ctx, "ping", args...)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("ping %s: %w", target, err)
	}
	return parsePingOutput(out)
}

func parsePingOutput(out []byte) (ProbeResult, error) {
	var r ProbeResult
	m := packetsRe.FindStringSubmatch(string(out))
	if m == nil {
		return r, errors.New("ping output missing packet summary")
	}
	r.Transmitted, _ = strconv.Atoi(m[1])
	r.Received, _ = strconv.Atoi(m[2])
	r.LossPct, _ = strconv.ParseFloat(m[3], 64)

	if m := rttRe.FindStringSubmatch(string(out)); m != nil {
		r.RTTMinMs, _ = strconv.ParseFloat(m[1], 64)
		r.RTTAvgMs, _ = strconv.ParseFloat(m[2], 64)
		r.RTTMaxMs, _ = strconv.ParseFloat(m[3], 64)
	}
	return r, nil
}

// DetectDefaultGateway parses `ip route` for the default route's next
// hop.
func DetectDefaultGateway(ctx context.Context, runner Runner) (string, error) {
	out, err := runner.Output(ctx, "ip", "route")
	if err != nil {
		return "", fmt.Errorf("ip route: %w", err)
	}
	for _, line := range strings.Split(string(out), "\n") {
		if !strings.HasPrefix(line, "default via") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 3 {
			return fields[2], nil
		}
	}
	return "", errors.New("no default route")
}
