// Package audio downloads source audio for videos that lack native captions.
package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/transcript-insight/internal/execx"
	"github.com/fpang/transcript-insight/internal/transcript"
)

// DefaultTimeout bounds one download; on expiry the subprocess is killed.
const DefaultTimeout = 5 * time.Minute

// Failure kinds reported in AcquireError.
const (
	KindTimeout       = "timeout"
	KindExit          = "exit"
	KindMissingOutput = "missing_output"
	KindStart         = "start"
)

// AcquireError is a soft, per-video acquisition failure. It is never retried
// here; operators re-run the batch instead.
type AcquireError struct {
	VideoID string
	Kind    string
	Err     error
}

func (e *AcquireError) Error() string {
	switch e.Kind {
	case KindTimeout:
		return fmt.Sprintf("audio download timed out for %s", e.VideoID)
	case KindMissingOutput:
		return fmt.Sprintf("audio download for %s produced no file", e.VideoID)
	}
	return fmt.Sprintf("audio download failed for %s: %v", e.VideoID, e.Err)
}

func (e *AcquireError) Unwrap() error { return e.Err }

// IsTimeout reports whether err is an acquisition timeout.
func IsTimeout(err error) bool {
	var ae *AcquireError
	return errors.As(err, &ae) && ae.Kind == KindTimeout
}

// Acquirer extracts mp3 audio with yt-dlp.
type Acquirer struct {
	runner  execx.Runner
	pathFor func(videoID string) string
	bin     string
	timeout time.Duration
}

// NewAcquirer creates an acquirer writing to the path returned by pathFor.
func NewAcquirer(runner execx.Runner, pathFor func(videoID string) string, timeout time.Duration) *Acquirer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Acquirer{runner: runner, pathFor: pathFor, bin: "yt-dlp", timeout: timeout}
}

// Acquire returns the local audio path for a video, downloading it unless it
// already exists. Failures come back as *AcquireError.
func (a *Acquirer) Acquire(ctx context.Context, v transcript.Video) (string, error) {
	out := a.pathFor(v.ID)
	if _, err := os.Stat(out); err == nil {
		log.Debug().Str("video_id", v.ID).Str("path", out).Msg("Audio already downloaded")
		return out, nil
	}

	url := v.URL
	if url == "" {
		url = "https://www.youtube.com/watch?v=" + v.ID
	}
	start := time.Now()
	_, err := execx.RunWithTimeout(ctx, a.runner, a.timeout, a.bin,
		"-x",
		"--audio-format", "mp3",
		"--audio-quality", "5",
		"-o", out,
		"--no-playlist",
		"--quiet",
		"--no-warnings",
		url,
	)
	if err != nil {
		kind := KindStart
		var exitErr *execx.ExitError
		switch {
		case errors.Is(err, execx.ErrTimeout):
			kind = KindTimeout
		case errors.As(err, &exitErr):
			kind = KindExit
		}
		log.Warn().Err(err).Str("video_id", v.ID).Str("kind", kind).Msg("Audio download failed")
		return "", &AcquireError{VideoID: v.ID, Kind: kind, Err: err}
	}

	info, err := os.Stat(out)
	if err != nil {
		log.Warn().Str("video_id", v.ID).Str("path", out).Msg("Audio download produced no file")
		return "", &AcquireError{VideoID: v.ID, Kind: KindMissingOutput, Err: err}
	}
	log.Info().
		Str("video_id", v.ID).
		Float64("size_mb", float64(info.Size())/(1<<20)).
		Dur("elapsed", time.Since(start)).
		Msg("Audio downloaded")
	return out, nil
}
