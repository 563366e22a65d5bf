package handlers

import "errors"

// Exit codes of the fabkube CLI. Deploy distinguishes configuration
// problems from convergence failures so callers can script against the
// result.
const (
	ExitOK          = 0
	ExitValidation  = 1
	ExitConvergence = 2
)

// ExitError carries an exit code alongside the underlying error.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode maps an error returned by a handler to a process exit code.
// Errors without an explicit code are treated as validation/usage errors.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ExitValidation
}
