package execx

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"
)

func requireTool(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available: %v", name, err)
	}
}

func TestOSRunnerCapturesOutput(t *testing.T) {
	requireTool(t, "sh")
	res, err := OSRunner{}.Run(context.Background(), "sh", "-c", "echo out; echo err >&2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Stdout != "out\n" || res.Stderr != "err\n" || res.ExitCode != 0 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestOSRunnerExitStatus(t *testing.T) {
	requireTool(t, "sh")
	res, err := OSRunner{}.Run(context.Background(), "sh", "-c", "echo 'ERROR: private video' >&2; exit 3")
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %v", err)
	}
	if exitErr.ExitCode != 3 || res.ExitCode != 3 || exitErr.Command != "sh" {
		t.Errorf("unexpected exit %+v, result %+v", exitErr, res)
	}
	if !strings.Contains(exitErr.Error(), "private video") {
		t.Errorf("expected stderr in message, got %q", exitErr.Error())
	}

	requireTool(t, "false")
	if _, err := (OSRunner{}).Run(context.Background(), "false"); !errors.As(err, &exitErr) || exitErr.ExitCode != 1 {
		t.Errorf("expected exit code 1 from false, got %v", err)
	}
}

func TestRunWithTimeoutKillsSlowCommand(t *testing.T) {
	requireTool(t, "sleep")
	start := time.Now()
	res, err := RunWithTimeout(context.Background(), OSRunner{}, 50*time.Millisecond, "sleep", "5")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if res.ExitCode != -1 {
		t.Errorf("expected exit code -1, got %d", res.ExitCode)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("command was not killed promptly: %v", elapsed)
	}
}

func TestOSRunnerMissingBinary(t *testing.T) {
	_, err := OSRunner{}.Run(context.Background(), "definitely-not-a-real-binary-xyz")
	var exitErr *ExitError
	if err == nil || errors.As(err, &exitErr) || errors.Is(err, ErrTimeout) {
		t.Errorf("expected a plain run error, got %v", err)
	}
}

func TestExitErrorMessage(t *testing.T) {
	err := &ExitError{Command: "yt-dlp", ExitCode: 1, Stderr: "ERROR: Video unavailable\n"}
	if got := err.Error(); got != "yt-dlp exited with code 1: ERROR: Video unavailable" {
		t.Errorf("unexpected message %q", got)
	}

	long := &ExitError{Command: "yt-dlp", ExitCode: 2, Stderr: strings.Repeat("x", 500) + "tail"}
	if !strings.HasSuffix(long.Error(), "tail") || len(long.Error()) > 340 {
		t.Errorf("expected truncated stderr ending in tail, got %d chars", len(long.Error()))
	}

	bare := &ExitError{Command: "yt-dlp", ExitCode: 3}
	if bare.Error() != "yt-dlp exited with code 3" {
		t.Errorf("unexpected message %q", bare.Error())
	}
}
