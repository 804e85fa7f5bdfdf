package runner

import (
	"fmt"

	"github.com/laspilot/laspilot/internal/task"
)

// LaunchError means the process could not be started at all: the executable
// was not found or the working directory is invalid. No process was spawned.
type LaunchError struct {
	Executable string
	Err        error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s: %v", e.Executable, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// ProcessFailed means the process ran but exited non-zero, timed out, or
// went idle past the configured limit. The partial result, including all
// output captured so far, is attached. Not fatal to the host application.
type ProcessFailed struct {
	Executable string
	ExitCode   int
	Reason     string
	Result     *task.RunResult
}

func (e *ProcessFailed) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s failed: %s", e.Executable, e.Reason)
	}
	return fmt.Sprintf("%s exited with code %d", e.Executable, e.ExitCode)
}

// IOError means reading the process output stream failed. The run is
// marked failed even if the process itself exited cleanly.
type IOError struct {
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("read process output: %v", e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
