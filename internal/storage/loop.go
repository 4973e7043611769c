package storage

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bc-dunia/burnrig/internal/config"
	"github.com/bc-dunia/burnrig/internal/events"
	"github.com/bc-dunia/burnrig/internal/otel"
	"github.com/bc-dunia/burnrig/internal/run"
)

// sampleText is the verification payload, truncated to 100 bytes like
// the transfer check it descends from.
const sampleText = "Sample text for removable storage transfer verification. " +
	"Sample text for removable storage transfer verification."

const copyName = "burnrig_copy.txt"

// Result is one device's tally after the loop ends.
type Result struct {
	Mount     string
	Successes int
	Failures  int
	Fatal     error
}

// Tester runs the write-copy-verify loop across every target at a
// fixed cadence.
type Tester struct {
	Targets  []string
	Interval time.Duration
}

// NewTester creates a tester at the default cadence.
func NewTester(targets []string) *Tester {
	return &Tester{Targets: targets, Interval: config.StorageCycleInterval}
}

// RunTestLoop exercises every target until stop is set or duration
// elapses, and reports whether all devices verified cleanly. Zero
// targets verify vacuously. One slow or wedged device never blocks the
// others; each runs its own loop.
func (t *Tester) RunTestLoop(ctx context.Context, status run.StatusSink, duration time.Duration, stop *run.StopSignal) (bool, []Result) {
	if len(t.Targets) == 0 {
		status.Emit("storage: no removable devices mounted")
		return true, nil
	}

	source, sum, err := writeSource()
	if err != nil {
		status.Emit(fmt.Sprintf("storage: cannot create source file: %v", err))
		return false, nil
	}
	defer os.Remove(source)

	results := make([]Result, len(t.Targets))
	var wg sync.WaitGroup
	for i, mount := range t.Targets {
		i, mount := i, mount
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = t.deviceLoop(ctx, mount, source, sum, duration, stop)
		}()
	}
	wg.Wait()

	ok := true
	for _, r := range results {
		if r.Failures > 0 || r.Fatal != nil {
			ok = false
		}
		detail := ""
		if r.Fatal != nil {
			detail = r.Fatal.Error()
		}
		events.GetGlobalEventLogger().LogDeviceResult(r.Mount, r.Failures == 0 && r.Fatal == nil, detail)
		status.Emit(fmt.Sprintf("storage %s: %d successes, %d failures", r.Mount, r.Successes, r.Failures))
	}
	return ok, results
}

func (t *Tester) deviceLoop(ctx context.Context, mount, source string, sum [md5.Size]byte, duration time.Duration, stop *run.StopSignal) Result {
	r := Result{Mount: mount}
	deadline := time.Now().Add(duration)
	for !stop.IsSet() && time.Now().Before(deadline) {
		err := verifyCycle(mount, source, sum)
		otel.GetGlobalMetrics().RecordStorageCycle(ctx, err == nil)
		switch {
		case err == nil:
			r.Successes++
		case isPermission(err):
			// Wrongly formatted media; retrying cannot succeed.
			r.Failures++
			r.Fatal = err
			return r
		default:
			r.Failures++
		}
		stop.Wait(t.Interval)
	}
	return r
}

// verifyCycle copies the source file onto the device, compares MD5
// checksums, and removes the copy.
func verifyCycle(mount, source string, sum [md5.Size]byte) error {
	target := filepath.Join(mount, copyName)
	if err := copyFile(source, target); err != nil {
		return err
	}
	defer os.Remove(target)

	targetSum, err := fileMD5(target)
	if err != nil {
		return err
	}
	if targetSum != sum {
		return fmt.Errorf("checksum mismatch on %s", target)
	}
	return nil
}

func writeSource() (path string, sum [md5.Size]byte, err error) {
	f, err := os.CreateTemp("", "burnrig_src_*.txt")
	if err != nil {
		return "", sum, err
	}
	payload := []byte(sampleText)[:100]
	if _, err := f.Write(payload); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", sum, err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", sum, err
	}
	return f.Name(), md5.Sum(payload), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func fileMD5(path string) (sum [md5.Size]byte, err error) {
	f, err := os.Open(path)
	if err != nil {
		return sum, err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return sum, err
	}
	copy(sum[:], h.Sum(nil))
	return sum, nil
}

func isPermission(err error) bool {
	if errors.Is(err, fs.ErrPermission) {
		return true
	}
	// Some filesystems surface EROFS/EACCES as plain message text.
	msg := err.Error()
	return strings.Contains(msg, "permission denied") || strings.Contains(msg, "read-only file system")
}
