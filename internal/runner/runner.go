// Package runner executes the external deployctl command with explicit
// argument vectors and wall-clock timeouts. Arguments are never passed
// through a shell, so no parameter value can become shell syntax.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

// ErrUnavailable marks failures to locate or start the external command,
// as opposed to the command running and failing.
var ErrUnavailable = errors.New("external command unavailable")

// maxCapture bounds each captured stream. deployctl output is line-oriented
// JSON; anything past this is noise.
const maxCapture = 1 << 20

// Result is the outcome of one subprocess invocation. Immutable once
// returned; a non-zero ExitCode is data here, not an error.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
	Duration time.Duration
}

// Runner launches a fixed external command with per-call argument vectors.
type Runner struct {
	command string
	logger  *slog.Logger
}

// New creates a Runner for the given command path.
func New(command string, logger *slog.Logger) *Runner {
	return &Runner{command: command, logger: logger}
}

// Command returns the configured external command path.
func (r *Runner) Command() string { return r.command }

// Run executes the command with the given arguments, capturing stdout and
// stderr, and enforcing the timeout. On timeout the process is killed and a
// Result with TimedOut set is returned: the external operation may still have
// completed out-of-band, the timeout only means we could not confirm it.
func (r *Runner) Run(ctx context.Context, args []string, timeout time.Duration) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.command, args...)
	// Don't hang on inherited pipes after the kill.
	cmd.WaitDelay = 5 * time.Second

	stdout := newBoundedBuffer(maxCapture)
	stderr := newBoundedBuffer(maxCapture)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	result := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: elapsed,
	}

	if ctx.Err() == context.DeadlineExceeded {
		result.TimedOut = true
		result.ExitCode = -1
		r.logger.Error("command timed out",
			"command", r.command,
			"args", args,
			"timeout", timeout,
			"elapsed", elapsed,
		)
		return result, nil
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		result.ExitCode = 0
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	default:
		// Never started: not found, not executable, fork failure.
		r.logger.Error("command could not start",
			"command", r.command,
			"args", args,
			"error", err,
		)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	r.logger.Debug("command finished",
		"command", r.command,
		"args", args,
		"exit_code", result.ExitCode,
		"elapsed", elapsed,
	)
	return result, nil
}
