// Package sound checks the audio loopback path by playing a test tone
// while recording, and scoring how strongly the tone came back.
package sound

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bc-dunia/burnrig/internal/config"
)

// helperName is the play/record binary looked up next to the
// orchestrator executable, then on PATH.
const helperName = "burnrig-toneprobe"

// Trialer plays one tone-and-record trial and reports the normalized
// correlation between what was played and what came back, in [0,1].
type Trialer interface {
	Trial(ctx context.Context) (float64, error)
}

// TrialerFunc adapts a function to a Trialer.
type TrialerFunc func(ctx context.Context) (float64, error)

func (f TrialerFunc) Trial(ctx context.Context) (float64, error) { return f(ctx) }

// CommandTrialer runs the external play/record helper and parses the
// correlation it prints.
type CommandTrialer struct {
	Path         string
	ToneHz       int
	ToneDuration time.Duration
}

// DefaultTrialer returns a command-backed trialer when the helper
// binary can be found. Without one every trial errors immediately,
// which ends the loop with zero trials and a SKIP verdict.
func DefaultTrialer() Trialer {
	if path, err := findHelper(); err == nil {
		return &CommandTrialer{
			Path:         path,
			ToneHz:       config.SoundToneHz,
			ToneDuration: config.SoundToneDuration,
		}
	}
	return TrialerFunc(func(context.Context) (float64, error) {
		return 0, errors.New("no audio helper available")
	})
}

func findHelper() (string, error) {
	if self, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(self), helperName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return exec.LookPath(helperName)
}

// Trial runs one helper invocation. The helper plays the tone while
// recording and prints the correlation as its last output line.
func (t *CommandTrialer) Trial(ctx context.Context) (float64, error) {
	cmd := exec.CommandContext(ctx, t.Path,
		"-hz", strconv.Itoa(t.ToneHz),
		"-seconds", strconv.FormatFloat(t.ToneDuration.Seconds(), 'f', -1, 64),
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("tone helper: %w", err)
	}
	return parseCorrelation(out)
}

// parseCorrelation reads the last non-empty output line as a float and
// clamps it into [0,1].
func parseCorrelation(out []byte) (float64, error) {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		corr, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return 0, fmt.Errorf("tone helper output %q: %w", line, err)
		}
		if corr < 0 {
			corr = 0
		}
		if corr > 1 {
			corr = 1
		}
		return corr, nil
	}
	return 0, errors.New("tone helper produced no output")
}
