package trim

import (
	"fmt"
	"strings"
)

// ProcessLaunchError means the engine could not be started at all.
type ProcessLaunchError struct {
	Command string
	Err     error
}

func (e *ProcessLaunchError) Error() string {
	return fmt.Sprintf("launch %s: %v", e.Command, e.Err)
}

func (e *ProcessLaunchError) Unwrap() error { return e.Err }

// NonZeroExitError means the engine ran and reported failure. Cause is set
// when the process was terminated because its context ended.
type NonZeroExitError struct {
	ExitCode int
	Output   string
	Cause    error
}

func (e *NonZeroExitError) Error() string {
	msg := fmt.Sprintf("engine exited with code %d", e.ExitCode)
	if e.Cause != nil {
		msg += fmt.Sprintf(" (%v)", e.Cause)
	}
	if e.Output != "" {
		msg += "\nOutput: " + e.Output
	}
	return msg
}

func (e *NonZeroExitError) Unwrap() error { return e.Cause }

// MissingOutputError means the engine reported success without writing
// every declared output.
type MissingOutputError struct {
	Paths []string
}

func (e *MissingOutputError) Error() string {
	return fmt.Sprintf("engine succeeded but outputs are missing: %s", strings.Join(e.Paths, ", "))
}
