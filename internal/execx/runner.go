// Package execx runs external tools (yt-dlp) behind a small interface so the
// lister and audio acquisition can be tested without spawning processes.
package execx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Result captures one process execution.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner abstracts process execution for testability.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// ErrTimeout is returned when a command is killed because its deadline passed.
var ErrTimeout = errors.New("command timed out")

// ExitError reports a nonzero exit status together with captured stderr.
type ExitError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if len(msg) > 300 {
		msg = msg[len(msg)-300:]
	}
	if msg == "" {
		return fmt.Sprintf("%s exited with code %d", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("%s exited with code %d: %s", e.Command, e.ExitCode, msg)
}

// OSRunner executes commands via os/exec.
type OSRunner struct{}

// Run executes one command, capturing stdout, stderr and the exit code.
// A context deadline kills the process and yields ErrTimeout.
func (OSRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return result, nil
	}

	result.ExitCode = -1
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return result, ErrTimeout
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, &ExitError{Command: name, ExitCode: result.ExitCode, Stderr: result.Stderr}
	}
	return result, fmt.Errorf("run %s: %w", name, err)
}

// RunWithTimeout runs a command under a hard deadline.
func RunWithTimeout(ctx context.Context, r Runner, timeout time.Duration, name string, args ...string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return r.Run(ctx, name, args...)
}
