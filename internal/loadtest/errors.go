package loadtest

import (
	"errors"
	"fmt"
)

var (
	// ErrSetupFailed wraps any error returned or raised by Setup.
	ErrSetupFailed = errors.New("setup failed")

	// ErrTeardownFailed wraps any error returned or raised by Teardown.
	ErrTeardownFailed = errors.New("teardown failed")

	// ErrInterrupted is reported for iterations cut short by the drain
	// deadline.
	ErrInterrupted = errors.New("iteration interrupted")
)

// AbortError ends the current iteration. It propagates through every
// enclosing group and is caught at the iteration boundary.
type AbortError struct {
	Message string
}

func (e *AbortError) Error() string {
	return "iteration aborted: " + e.Message
}

// Fail returns an AbortError with a formatted message. Workload code
// returns it to stop the current iteration:
//
//	if !vu.Check(res, checks) {
//	    return loadtest.Fail("create failed: %d", res.StatusCode)
//	}
func Fail(format string, args ...interface{}) error {
	return &AbortError{Message: fmt.Sprintf(format, args...)}
}

// IsAbort reports whether err carries an AbortError.
func IsAbort(err error) bool {
	var ae *AbortError
	return errors.As(err, &ae)
}

// PanicError wraps a value recovered from workload code.
type PanicError struct {
	Value interface{}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
