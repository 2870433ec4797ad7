package audio

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/fpang/transcript-insight/internal/execx"
	"github.com/fpang/transcript-insight/internal/transcript"
)

type fakeRunner struct {
	calls int
	run   func(args []string) (execx.Result, error)
}

func (f *fakeRunner) Run(_ context.Context, _ string, args ...string) (execx.Result, error) {
	f.calls++
	return f.run(args)
}

// outputArg returns the value following -o.
func outputArg(args []string) string {
	for i, a := range args {
		if a == "-o" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func newTestAcquirer(t *testing.T, runner execx.Runner) *Acquirer {
	dir := t.TempDir()
	return NewAcquirer(runner, func(id string) string { return filepath.Join(dir, id+".mp3") }, 0)
}

func TestAcquireDownloads(t *testing.T) {
	runner := &fakeRunner{run: func(args []string) (execx.Result, error) {
		return execx.Result{}, os.WriteFile(outputArg(args), []byte("ID3"), 0o644)
	}}
	a := newTestAcquirer(t, runner)

	path, err := a.Acquire(context.Background(), transcript.Video{ID: "vid", URL: "https://www.youtube.com/watch?v=vid"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Base(path) != "vid.mp3" {
		t.Errorf("unexpected path %s", path)
	}

	// Second call is served from disk.
	if _, err := a.Acquire(context.Background(), transcript.Video{ID: "vid"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if runner.calls != 1 {
		t.Errorf("expected 1 download, got %d", runner.calls)
	}
}

func TestAcquireFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind string
	}{
		{"timeout", execx.ErrTimeout, KindTimeout},
		{"nonzero exit", &execx.ExitError{Command: "yt-dlp", ExitCode: 1, Stderr: "ERROR"}, KindExit},
		{"missing output", nil, KindMissingOutput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{run: func([]string) (execx.Result, error) { return execx.Result{}, tt.err }}
			a := newTestAcquirer(t, runner)

			path, err := a.Acquire(context.Background(), transcript.Video{ID: "vid"})
			if path != "" {
				t.Errorf("expected no path, got %s", path)
			}
			ae, ok := err.(*AcquireError)
			if !ok {
				t.Fatalf("expected *AcquireError, got %T", err)
			}
			if ae.Kind != tt.kind {
				t.Errorf("expected kind %s, got %s", tt.kind, ae.Kind)
			}
			if IsTimeout(err) != (tt.kind == KindTimeout) {
				t.Errorf("IsTimeout mismatch for %s", tt.kind)
			}
		})
	}
}
