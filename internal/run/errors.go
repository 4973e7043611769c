package run

// RunError is an error from the orchestration engine.
type RunError struct {
	Op       string   // operation that failed
	Category Category // category involved, if any
	Err      error    // underlying error
}

func (e *RunError) Error() string {
	if e.Category != "" {
		return "run " + string(e.Category) + ": " + e.Op + ": " + e.Err.Error()
	}
	return "run: " + e.Op + ": " + e.Err.Error()
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// Common engine errors.
var (
	ErrAlreadyExecuted = &RunError{Op: "execute", Err: errAlreadyExecuted}
	ErrNoWorkers       = &RunError{Op: "execute", Err: errNoWorkers}
	ErrInvalidDuration = &RunError{Op: "create", Err: errInvalidDuration}
)

// Internal error values.
var (
	errAlreadyExecuted = errorString("run already executed")
	errNoWorkers       = errorString("no workers enabled")
	errInvalidDuration = errorString("duration must be positive")
)

type errorString string

func (e errorString) Error() string { return string(e) }
