package config

import "time"

// Default configuration constants for run orchestration
const (
	// DefaultJoinTimeout bounds the supervisor's wait for all workers
	// after a stop request.
	DefaultJoinTimeout = 10 * time.Second
	// DefaultKillWait is the grace period after force-killing a
	// process-isolated worker that missed the join deadline.
	DefaultKillWait = 2 * time.Second
	// DefaultRunDuration applies when no duration flag is given.
	DefaultRunDuration = 10 * time.Minute
)

// CPU duty-cycle shaping constants
const (
	// DutyCheckInterval is how often a busy phase checks whether it has
	// consumed its share of the cycle.
	DutyCheckInterval = 200 * time.Millisecond
	// DutyPauseUnit is the sleep slice of one duty cycle.
	DutyPauseUnit = 500 * time.Millisecond
	// ModulatePauseFactor multiplies the pause slice when thermal
	// modulation is enabled.
	ModulatePauseFactor = 2
	// HelperNice is the scheduling niceness applied to load helper
	// processes so the orchestrator stays responsive.
	HelperNice = 10
)

// Memory target-controller constants
const (
	// AllocControlInterval is the cadence of control steps while the
	// controller is still converging on its target.
	AllocControlInterval = 100 * time.Millisecond
	// AllocIdleInterval is the cadence once within the hold band.
	AllocIdleInterval = 200 * time.Millisecond
	// AllocFailureBackoff is how long the controller waits after a
	// failed allocation before growing again.
	AllocFailureBackoff = 1 * time.Second
	// AllocGapDivisor sets the growth step to a fraction of the
	// remaining gap to target.
	AllocGapDivisor = 10
	// AllocMinUnitMB is the smallest allocation step in MiB.
	AllocMinUnitMB = 8
	// AllocHoldBandMB is the tolerance band around the target in MiB
	// inside which the controller holds.
	AllocHoldBandMB = 64
)

// Storage verification constants
const (
	// StorageCycleInterval is the cadence of write-copy-verify cycles.
	StorageCycleInterval = 1 * time.Second
)

// Network probe defaults
const (
	DefaultPingCount      = 4
	DefaultPingTimeout    = 10 * time.Second
	DefaultProbeInterval  = 5 * time.Second
	DefaultPlaceholderTgt = "8.8.8.8"
)

// Audio loopback constants
const (
	// SoundToneHz is the probe tone frequency.
	SoundToneHz = 1000
	// SoundToneDuration is how long each tone plays.
	SoundToneDuration = 1 * time.Second
	// SoundTrialGap separates consecutive loopback trials.
	SoundTrialGap = 3 * time.Second
	// SoundCorrelationThreshold is the minimum normalized correlation
	// for a trial to count as heard.
	SoundCorrelationThreshold = 0.6
	// SoundTrialCount is the number of trials in a single check.
	SoundTrialCount = 3
)
