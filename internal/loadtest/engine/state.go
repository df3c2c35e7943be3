package engine

import "fmt"

// State is the lifecycle phase of a run.
type State int32

const (
	StateIdle State = iota
	StateSettingUp
	StateRunning
	StateTearingDown
	StateEvaluating
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSettingUp:
		return "setting-up"
	case StateRunning:
		return "running"
	case StateTearingDown:
		return "tearing-down"
	case StateEvaluating:
		return "evaluating"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Status is the terminal outcome of a run.
type Status int

const (
	// StatusSuccess means setup succeeded and every threshold passed.
	StatusSuccess Status = iota
	// StatusThresholdsFailed means at least one threshold failed.
	StatusThresholdsFailed
	// StatusSetupError means setup failed and no VU ran.
	StatusSetupError
	// StatusTeardownError means teardown failed while thresholds passed.
	StatusTeardownError
)

// Process exit codes, matching k6.
const (
	ExitSuccess          = 0
	ExitThresholdsFailed = 99
	ExitScriptError      = 107
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusThresholdsFailed:
		return "thresholds-failed"
	case StatusSetupError:
		return "setup-error"
	case StatusTeardownError:
		return "teardown-error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// ExitCode returns the process exit code for s.
func (s Status) ExitCode() int {
	switch s {
	case StatusSuccess:
		return ExitSuccess
	case StatusThresholdsFailed:
		return ExitThresholdsFailed
	default:
		return ExitScriptError
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// resolveStatus applies the precedence setup error > thresholds failed >
// teardown error > success.
func resolveStatus(setupErr, teardownErr error, thresholdsPassed bool) Status {
	switch {
	case setupErr != nil:
		return StatusSetupError
	case !thresholdsPassed:
		return StatusThresholdsFailed
	case teardownErr != nil:
		return StatusTeardownError
	default:
		return StatusSuccess
	}
}
