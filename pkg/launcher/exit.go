package launcher

import (
	"errors"
	"fmt"
)

// ExitError carries a shell-compatible exit status for a failed deployment
type ExitError struct {
	Code int
	Err  error
	// ToolRan is set when the tool started and reported its own failure
	ToolRan bool
}

func (e *ExitError) Error() string {
	if !e.ToolRan {
		return e.Err.Error()
	}
	return fmt.Sprintf("deployment tool exited with status %d: %v", e.Code, e.Err)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// exitNotFound is what a shell returns for a command it cannot find
const exitNotFound = 127

// ExitCode maps an error from Run to a process exit status
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Code != 0 {
		return exitErr.Code
	}
	return 1
}
