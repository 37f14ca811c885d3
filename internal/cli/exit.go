package cli

import "errors"

// Process exit codes.
const (
	ExitSuccess = 0

	// ExitFailure: validation rejected the inputs, a scenario failed or the
	// benchmark was interrupted.
	ExitFailure = 1

	// ExitCommandError: bad flags, unreadable files, or an engine that
	// rejected the recipe or security config.
	ExitCommandError = 2
)

// ExitError carries the exit code a failed command should end the process
// with.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// NewExitError returns an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError returns an ExitError wrapping err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns the code of the first ExitError in err's chain, or
// ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		return ExitFailure
	}
	return exitErr.Code
}
