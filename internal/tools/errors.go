package tools

import (
	"errors"
	"fmt"
	"time"

	"deploygate/api"
	"deploygate/internal/runner"
	"deploygate/internal/validate"
)

// UnknownToolError marks a tools/call naming a tool outside the registry.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool: %q", e.Name)
}

// InvalidParamsError marks arguments that failed schema or shape checks
// before validation proper.
type InvalidParamsError struct {
	Tool   string
	Reason string
}

func (e *InvalidParamsError) Error() string {
	return fmt.Sprintf("invalid parameters for %s: %s", e.Tool, e.Reason)
}

// ExecutionError marks a subprocess that ran and exited non-zero. The
// command's own stderr is embedded verbatim for debuggability.
type ExecutionError struct {
	Tool     string
	ExitCode int
	Stderr   string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s failed (exit %d): %s", e.Tool, e.ExitCode, e.Stderr)
}

// TimeoutError marks a subprocess that outlived its window. Completion is
// unconfirmed, not disproven: the caller must check out-of-band.
type TimeoutError struct {
	Tool    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s did not finish within %s; the operation may still have completed, check its status out-of-band", e.Tool, e.Timeout)
}

// PolicyDeniedError marks a call rejected by the policy gate before the
// handler ran.
type PolicyDeniedError struct {
	Tool    string
	Rule    string
	Message string
}

func (e *PolicyDeniedError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s denied by policy rule %q: %s", e.Tool, e.Rule, e.Message)
	}
	return fmt.Sprintf("%s denied by policy rule %q", e.Tool, e.Rule)
}

// MapError converts any handler failure into its protocol error code. This
// is the single boundary of the error taxonomy: nothing below it writes
// protocol errors, nothing above it inspects error types.
func MapError(err error) (int, string) {
	var (
		unkErr  *UnknownToolError
		verr    *validate.Error
		perr    *InvalidParamsError
		execErr *ExecutionError
		toErr   *TimeoutError
		polErr  *PolicyDeniedError
	)
	switch {
	case errors.As(err, &unkErr):
		return api.CodeMethodNotFound, unkErr.Error()
	case errors.As(err, &verr):
		return api.CodeInvalidParams, verr.Message
	case errors.As(err, &perr):
		return api.CodeInvalidParams, perr.Error()
	case errors.As(err, &toErr):
		return api.CodeTimeoutError, toErr.Error()
	case errors.As(err, &execErr):
		return api.CodeExecutionError, execErr.Error()
	case errors.As(err, &polErr):
		return api.CodePolicyDenied, polErr.Error()
	case errors.Is(err, runner.ErrUnavailable):
		return api.CodeCommandUnavailable, err.Error()
	default:
		return api.CodeInternalError, err.Error()
	}
}
