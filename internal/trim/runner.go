package trim

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// Status is the terminal state of one job.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
)

const defaultOutputTail = 4096

// RunResult is what the runner learns from one engine invocation.
type RunResult struct {
	Status   Status
	ExitCode int
	Err      error
	// Output is the tail of the engine's combined stdout/stderr.
	Output   string
	Duration time.Duration
}

// Runner executes engine command lines synchronously.
type Runner struct {
	// OutputTail caps how many trailing bytes of engine output are kept.
	OutputTail int
	// Dir is the working directory for the engine; empty means the current one.
	Dir string
	// WaitDelay bounds how long a killed engine's children may hold its output open.
	WaitDelay time.Duration
}

// Run executes argv and blocks until the engine exits. A zero exit is only
// reported as success when every path in outputs exists afterwards.
// Cancelling ctx kills the engine.
func (r Runner) Run(ctx context.Context, argv []string, outputs []string) RunResult {
	start := time.Now()
	res := RunResult{Status: StatusFailure, ExitCode: -1}

	if len(argv) == 0 {
		res.Err = &ProcessLaunchError{Command: "", Err: errors.New("empty command line")}
		return res
	}

	if _, err := exec.LookPath(argv[0]); err != nil {
		res.Err = &ProcessLaunchError{Command: argv[0], Err: fmt.Errorf("not found in PATH: %w", err)}
		res.Duration = time.Since(start)
		return res
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = r.Dir
	cmd.WaitDelay = r.waitDelay()

	out, err := cmd.CombinedOutput()
	res.Output = tail(out, r.outputTail())
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	res.Duration = time.Since(start)

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.Err = &NonZeroExitError{ExitCode: res.ExitCode, Output: res.Output, Cause: ctx.Err()}
			return res
		}
		res.Err = &ProcessLaunchError{Command: argv[0], Err: err}
		return res
	}

	var missing []string
	for _, p := range outputs {
		if _, err := os.Stat(p); err != nil {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		res.Err = &MissingOutputError{Paths: missing}
		return res
	}

	res.Status = StatusSuccess
	return res
}

func (r Runner) outputTail() int {
	if r.OutputTail > 0 {
		return r.OutputTail
	}
	return defaultOutputTail
}

func (r Runner) waitDelay() time.Duration {
	if r.WaitDelay > 0 {
		return r.WaitDelay
	}
	return 10 * time.Second
}

func tail(b []byte, n int) string {
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return string(b)
}
