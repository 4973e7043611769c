package events

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

// EventLogger provides structured logging for key events in burnrig.
type EventLogger struct {
	logger *slog.Logger
	runID  string
}

// NewEventLogger creates a new EventLogger with JSON output to stdout.
// It includes run_id as a base attribute.
func NewEventLogger(runID string) *EventLogger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	logger := slog.New(handler).With(
		"run_id", runID,
	)
	return &EventLogger{
		logger: logger,
		runID:  runID,
	}
}

// NewEventLoggerWithWriter creates a new EventLogger with JSON output to a custom writer.
// Useful for testing or redirecting output.
func NewEventLoggerWithWriter(runID string, w io.Writer) *EventLogger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	logger := slog.New(handler).With(
		"run_id", runID,
	)
	return &EventLogger{
		logger: logger,
		runID:  runID,
	}
}

// LogRunStarted logs the start of a burn-in run.
// event: "run_started"
// Attributes: duration_seconds, cpu_pct, gpu_pct, vram_pct
func (el *EventLogger) LogRunStarted(durationSeconds float64, cpuPct, gpuPct, vramPct int) {
	el.logger.Info("run_started",
		"duration_seconds", durationSeconds,
		"cpu_pct", cpuPct,
		"gpu_pct", gpuPct,
		"vram_pct", vramPct,
	)
}

// LogRunFinished logs the end of a run with its overall outcome.
// event: "run_finished"
// Attributes: overall, manual_stop, elapsed_seconds
func (el *EventLogger) LogRunFinished(overall string, manual bool, elapsedSeconds float64) {
	el.logger.Info("run_finished",
		"overall", overall,
		"manual_stop", manual,
		"elapsed_seconds", elapsedSeconds,
	)
}

// LogWorkerStarted logs a worker goroutine beginning execution.
// event: "worker_started"
// Attributes: category, kind
func (el *EventLogger) LogWorkerStarted(category, kind string) {
	el.logger.Info("worker_started",
		"category", category,
		"kind", kind,
	)
}

// LogWorkerStopped logs a worker terminating.
// event: "worker_stopped"
// Attributes: category, error (when the worker returned one)
func (el *EventLogger) LogWorkerStopped(category string, err error) {
	if err != nil {
		el.logger.Warn("worker_stopped",
			"category", category,
			"error", err.Error(),
		)
		return
	}
	el.logger.Info("worker_stopped",
		"category", category,
	)
}

// LogVerdict logs a verdict transition for a category.
// event: "verdict"
// Attributes: category, verdict
func (el *EventLogger) LogVerdict(category, verdict string) {
	el.logger.Info("verdict",
		"category", category,
		"verdict", verdict,
	)
}

// LogStopRequested logs a stop request reaching the supervisor.
// event: "stop_requested"
// Attributes: manual
func (el *EventLogger) LogStopRequested(manual bool) {
	el.logger.Info("stop_requested",
		"manual", manual,
	)
}

// LogJoinTimeout logs a worker that missed the join deadline.
// event: "join_timeout"
// Attributes: category, kind, outcome ("killed", "kill_timeout" or "abandoned")
func (el *EventLogger) LogJoinTimeout(category, kind, outcome string) {
	el.logger.Warn("join_timeout",
		"category", category,
		"kind", kind,
		"outcome", outcome,
	)
}

// LogProbe logs one network probe result.
// event: "probe"
// Attributes: target, transmitted, received, loss_pct, rtt_avg_ms
func (el *EventLogger) LogProbe(target string, transmitted, received int, lossPct, rttAvgMs float64) {
	el.logger.Info("probe",
		"target", target,
		"transmitted", transmitted,
		"received", received,
		"loss_pct", lossPct,
		"rtt_avg_ms", rttAvgMs,
	)
}

// LogAllocation logs the memory controller's position after a control step.
// event: "allocation"
// Attributes: device, allocated_mb, target_mb, chunks
func (el *EventLogger) LogAllocation(device string, allocatedMB, targetMB uint64, chunks int) {
	el.logger.Info("allocation",
		"device", device,
		"allocated_mb", allocatedMB,
		"target_mb", targetMB,
		"chunks", chunks,
	)
}

// LogDeviceResult logs the outcome of one storage verification cycle.
// event: "device_result"
// Attributes: mount, ok, detail
func (el *EventLogger) LogDeviceResult(mount string, ok bool, detail string) {
	if ok {
		el.logger.Info("device_result",
			"mount", mount,
			"ok", ok,
		)
		return
	}
	el.logger.Warn("device_result",
		"mount", mount,
		"ok", ok,
		"detail", detail,
	)
}

// LogTrial logs one audio loopback trial.
// event: "trial"
// Attributes: index, correlation, passed
func (el *EventLogger) LogTrial(index int, correlation float64, passed bool) {
	el.logger.Info("trial",
		"index", index,
		"correlation", correlation,
		"passed", passed,
	)
}

// Global logger management
var (
	globalLogger *EventLogger
	globalMu     sync.RWMutex

	noopLogger *EventLogger
	noopOnce   sync.Once
)

// SetGlobalEventLogger sets the global event logger instance.
func SetGlobalEventLogger(l *EventLogger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = l
}

// GetGlobalEventLogger returns the global event logger instance.
// If no logger is set, returns a no-op logger.
func GetGlobalEventLogger() *EventLogger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalLogger != nil {
		return globalLogger
	}
	return NoopEventLogger()
}

// NoopEventLogger returns the shared event logger that discards all
// events. Useful for testing or when event logging is disabled.
func NoopEventLogger() *EventLogger {
	noopOnce.Do(func() {
		handler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
		noopLogger = &EventLogger{
			logger: slog.New(handler),
			runID:  "",
		}
	})
	return noopLogger
}
