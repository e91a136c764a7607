// Package shell runs command strings inside the project root.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/rs/zerolog/log"
)

// MaxOutputBytes caps each captured stream.
const MaxOutputBytes = 1024 * 1024

// DefaultTimeout applies when a Runner is built with a zero timeout.
const DefaultTimeout = 10 * time.Minute

const truncatedMarker = "\n[output truncated]\n"

// Result captures one finished command.
type Result struct {
	Command  string
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
	TimedOut bool
}

// CommandError is returned for a non-zero exit, a timeout or a failure to start.
type CommandError struct {
	Result Result
	Err    error
}

func (e *CommandError) Error() string {
	if e.Result.TimedOut {
		return fmt.Sprintf("command %q timed out after %s", e.Result.Command, e.Result.Duration.Round(time.Millisecond))
	}
	return fmt.Sprintf("command %q exited with code %d", e.Result.Command, e.Result.ExitCode)
}

func (e *CommandError) Unwrap() error { return e.Err }

// Runner executes commands with a fixed working directory and timeout.
type Runner struct {
	dir     string
	timeout time.Duration
}

// NewRunner returns a Runner for dir.
func NewRunner(dir string, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Runner{dir: dir, timeout: timeout}
}

// Dir returns the working directory.
func (r *Runner) Dir() string { return r.dir }

// Run executes command through sh -c. A non-nil error is always a *CommandError.
func (r *Runner) Run(ctx context.Context, command string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	log.Debug().Str("dir", r.dir).Str("cmd", command).Msg("running shell command")

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = r.dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = 5 * time.Second

	start := time.Now()
	runErr := cmd.Run()
	res := Result{
		Command:  command,
		Stdout:   limit(stdout.Bytes()),
		Stderr:   limit(stderr.Bytes()),
		Duration: time.Since(start),
	}
	if runErr == nil {
		return res, nil
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
		res.ExitCode = -1
		res.Stderr += fmt.Sprintf("\ncommand timed out after %s", r.timeout)
	} else {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.ExitCode = -1
			res.Stderr += runErr.Error()
		}
	}
	log.Warn().Err(runErr).Str("dir", r.dir).Str("cmd", command).Int("exit_code", res.ExitCode).Msg("shell command failed")
	return res, &CommandError{Result: res, Err: runErr}
}

// FormatFailure renders a failed result with both streams delineated.
func FormatFailure(res Result) string {
	return fmt.Sprintf("Command failed with exit code %d:\nSTDOUT:\n%s\nSTDERR:\n%s", res.ExitCode, res.Stdout, res.Stderr)
}

func limit(b []byte) string {
	if len(b) <= MaxOutputBytes {
		return string(b)
	}
	return string(b[:MaxOutputBytes]) + truncatedMarker
}
