package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bc-dunia/burnrig/internal/run"
)

func TestRunTestLoopCleanDevice(t *testing.T) {
	mount := t.TempDir()
	tester := &Tester{Targets: []string{mount}, Interval: time.Millisecond}
	stop := run.NewStopSignal()

	go func() {
		time.Sleep(50 * time.Millisecond)
		stop.Set()
	}()

	ok, results := tester.RunTestLoop(context.Background(), run.NopSink(), time.Minute, stop)
	if !ok {
		t.Fatal("clean device should verify")
	}
	if len(results) != 1 {
		t.Fatalf("result count = %d, want 1", len(results))
	}
	if results[0].Successes == 0 {
		t.Fatal("expected at least one successful cycle")
	}
	if results[0].Failures != 0 {
		t.Fatalf("failures = %d, want 0", results[0].Failures)
	}

	// The copy must be cleaned up.
	if _, err := os.Stat(filepath.Join(mount, copyName)); !os.IsNotExist(err) {
		t.Fatal("copy file left behind")
	}
}

func TestRunTestLoopZeroDevicesVacuousPass(t *testing.T) {
	tester := &Tester{Interval: time.Millisecond}
	stop := run.NewStopSignal()

	ok, results := tester.RunTestLoop(context.Background(), run.NopSink(), time.Minute, stop)
	if !ok {
		t.Fatal("zero devices should verify vacuously")
	}
	if len(results) != 0 {
		t.Fatalf("result count = %d, want 0", len(results))
	}
}

func TestRunTestLoopMissingMountFails(t *testing.T) {
	mount := filepath.Join(t.TempDir(), "gone")
	tester := &Tester{Targets: []string{mount}, Interval: time.Millisecond}
	stop := run.NewStopSignal()

	go func() {
		time.Sleep(30 * time.Millisecond)
		stop.Set()
	}()

	ok, results := tester.RunTestLoop(context.Background(), run.NopSink(), time.Minute, stop)
	if ok {
		t.Fatal("unwritable target should fail verification")
	}
	if results[0].Failures == 0 {
		t.Fatal("expected failures on missing mount")
	}
}

func TestRunTestLoopPermissionErrorIsFatalPerDevice(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("permission bits do not bind root")
	}
	locked := t.TempDir()
	if err := os.Chmod(locked, 0o500); err != nil {
		t.Fatal(err)
	}
	defer os.Chmod(locked, 0o700)
	good := t.TempDir()

	tester := &Tester{Targets: []string{locked, good}, Interval: time.Millisecond}
	stop := run.NewStopSignal()
	go func() {
		time.Sleep(50 * time.Millisecond)
		stop.Set()
	}()

	ok, results := tester.RunTestLoop(context.Background(), run.NopSink(), time.Minute, stop)
	if ok {
		t.Fatal("permission failure should fail the loop")
	}

	var lockedRes, goodRes Result
	for _, r := range results {
		switch r.Mount {
		case locked:
			lockedRes = r
		case good:
			goodRes = r
		}
	}
	if lockedRes.Fatal == nil {
		t.Fatal("permission error should be fatal for the device")
	}
	if lockedRes.Failures != 1 {
		t.Fatalf("locked device failures = %d, want 1 (no retry)", lockedRes.Failures)
	}
	if goodRes.Successes == 0 {
		t.Fatal("healthy device should keep verifying")
	}
}

func TestRunTestLoopRespectsDuration(t *testing.T) {
	mount := t.TempDir()
	tester := &Tester{Targets: []string{mount}, Interval: time.Millisecond}
	stop := run.NewStopSignal()

	start := time.Now()
	ok, _ := tester.RunTestLoop(context.Background(), run.NopSink(), 30*time.Millisecond, stop)
	if !ok {
		t.Fatal("clean device should verify")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("loop overran duration: %v", elapsed)
	}
}

func TestVerifyCycleDetectsCorruption(t *testing.T) {
	mount := t.TempDir()
	source, sum, err := writeSource()
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(source)

	if err := verifyCycle(mount, source, sum); err != nil {
		t.Fatalf("clean cycle failed: %v", err)
	}

	// A corrupted source checksum must be caught.
	var bad [16]byte
	if err := verifyCycle(mount, source, bad); err == nil {
		t.Fatal("mismatched checksum not detected")
	}
}

func TestIsRemovableMount(t *testing.T) {
	tests := []struct {
		mount string
		want  bool
	}{
		{"/media/user/USBSTICK", true},
		{"/run/media/user/disk", true},
		{"/", false},
		{"/home/user/media", false},
	}
	for _, tt := range tests {
		if got := isRemovableMount(tt.mount); got != tt.want {
			t.Errorf("isRemovableMount(%q) = %v, want %v", tt.mount, got, tt.want)
		}
	}
}
