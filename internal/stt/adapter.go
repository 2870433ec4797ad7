// Package stt turns acquired audio into transcripts through a remote
// speech-to-text backend (OpenAI Whisper or Gemini).
package stt

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/fpang/transcript-insight/internal/metrics"
	"github.com/fpang/transcript-insight/internal/transcript"
)

// MaxFileSize is the upload ceiling enforced by the remote services.
const MaxFileSize int64 = 25 << 20

// ErrFileTooLarge is returned, without any remote call, for audio above the ceiling.
var ErrFileTooLarge = errors.New("audio file exceeds speech-to-text size limit")

// Segment is a backend segment with absolute start and end times.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Result is a backend's raw transcription.
type Result struct {
	Text     string
	Language string
	Segments []Segment
}

// Backend is one remote speech-to-text service.
type Backend interface {
	Name() string
	Transcribe(ctx context.Context, audioPath, language string) (*Result, error)
}

// BackendFactory constructs a backend on first use.
type BackendFactory func(ctx context.Context) (Backend, error)

// Saver persists transcripts as soon as they are produced.
type Saver interface {
	SaveTranscript(ctx context.Context, t *transcript.Transcript) error
}

// Adapter enforces the size ceiling, paces remote calls, normalises segment
// timing and persists every successful transcript.
type Adapter struct {
	factory  BackendFactory
	saver    Saver
	limiter  *rate.Limiter
	maxBytes int64

	mu      sync.Mutex
	backend Backend
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithRateLimit paces remote calls to r per second with the given burst.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(a *Adapter) { a.limiter = rate.NewLimiter(r, burst) }
}

// WithMaxFileSize overrides the size ceiling.
func WithMaxFileSize(n int64) Option {
	return func(a *Adapter) { a.maxBytes = n }
}

// NewAdapter creates an adapter. The backend is built lazily on the first
// transcription and reused afterwards.
func NewAdapter(factory BackendFactory, saver Saver, opts ...Option) *Adapter {
	a := &Adapter{
		factory:  factory,
		saver:    saver,
		limiter:  rate.NewLimiter(rate.Every(time.Second), 3),
		maxBytes: MaxFileSize,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) client(ctx context.Context) (Backend, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.backend != nil {
		return a.backend, nil
	}
	b, err := a.factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialise speech-to-text backend: %w", err)
	}
	a.backend = b
	return b, nil
}

// Transcribe converts one audio file into a persisted transcript.
func (a *Adapter) Transcribe(ctx context.Context, videoID, audioPath, language string) (*transcript.Transcript, error) {
	info, err := os.Stat(audioPath)
	if err != nil {
		return nil, fmt.Errorf("stat audio: %w", err)
	}
	sizeMB := float64(info.Size()) / (1 << 20)
	if info.Size() > a.maxBytes {
		log.Warn().
			Str("video_id", videoID).
			Float64("size_mb", sizeMB).
			Float64("limit_mb", float64(a.maxBytes)/(1<<20)).
			Msg("Audio file too large for speech-to-text")
		return nil, fmt.Errorf("%w (%.1f MB)", ErrFileTooLarge, sizeMB)
	}

	backend, err := a.client(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	log.Info().Str("video_id", videoID).Str("backend", backend.Name()).Float64("size_mb", sizeMB).Msg("Sending audio for transcription")
	start := time.Now()
	res, err := backend.Transcribe(ctx, audioPath, language)
	metrics.SpeechToText(backend.Name(), time.Since(start), info.Size(), err == nil)
	if err != nil {
		log.Error().Err(err).Str("video_id", videoID).Str("backend", backend.Name()).Msg("Speech-to-text failed")
		return nil, fmt.Errorf("%s transcription: %w", backend.Name(), err)
	}

	t := Normalize(videoID, language, res)
	if t.Text == "" {
		return nil, fmt.Errorf("%s returned an empty transcript", backend.Name())
	}
	if err := a.saver.SaveTranscript(ctx, t); err != nil {
		return nil, fmt.Errorf("persist transcript: %w", err)
	}
	log.Info().Str("video_id", videoID).Int("segments", len(t.Segments)).Dur("elapsed", time.Since(start)).Msg("Speech-to-text transcript saved")
	return t, nil
}

// Normalize converts backend output into the uniform (start, duration, text)
// shape. The requested language wins over the backend's detected language.
func Normalize(videoID, language string, res *Result) *transcript.Transcript {
	segments := make([]transcript.Segment, 0, len(res.Segments))
	for _, s := range res.Segments {
		d := s.End - s.Start
		if d < 0 {
			d = 0
		}
		segments = append(segments, transcript.Segment{Start: s.Start, Duration: d, Text: s.Text})
	}
	if language == "" {
		language = res.Language
	}
	return transcript.New(videoID, language, transcript.SourceSpeechToText, segments, res.Text)
}
