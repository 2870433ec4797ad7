package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/fpang/transcript-insight/internal/audio"
	"github.com/fpang/transcript-insight/internal/execx"
	"github.com/fpang/transcript-insight/internal/store"
	"github.com/fpang/transcript-insight/internal/stt"
	"github.com/fpang/transcript-insight/internal/youtube"
)

// KeyFunc resolves an API key when a remote stage first needs it.
type KeyFunc func(ctx context.Context) (string, error)

// Setup names the concrete collaborators of a transcription run.
type Setup struct {
	Store  *store.FileStore
	Runner execx.Runner
	// HTTPClient is used for caption pages; nil uses a client with a 30s timeout.
	HTTPClient *http.Client

	STTBackend   string // "whisper" or "gemini"
	STTLanguage  string
	STTModel     string
	STTRate      float64
	MaxBytes     int64
	AudioTimeout time.Duration

	OpenAIKey KeyFunc
	Gemini    stt.ClientFunc
}

// NewTranscriptionResolver assembles a Resolver from s. Speech-to-text
// backends are built on first use, so runs that never reach that stage need
// no key.
func NewTranscriptionResolver(s Setup) *Resolver {
	httpClient := s.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	captions := youtube.NewCaptionClient(httpClient)
	acquirer := audio.NewAcquirer(s.Runner, s.Store.AudioPath, s.AudioTimeout)

	var opts []stt.Option
	if s.STTRate > 0 {
		opts = append(opts, stt.WithRateLimit(rate.Limit(s.STTRate), 3))
	}
	if s.MaxBytes > 0 {
		opts = append(opts, stt.WithMaxFileSize(s.MaxBytes))
	}
	adapter := stt.NewAdapter(backendFactory(s), s.Store, opts...)

	return NewResolver(s.Store, captions, acquirer, adapter, s.STTLanguage)
}

func backendFactory(s Setup) stt.BackendFactory {
	return func(ctx context.Context) (stt.Backend, error) {
		switch s.STTBackend {
		case "gemini":
			if s.Gemini == nil {
				return nil, fmt.Errorf("gemini speech-to-text is not configured")
			}
			return stt.NewGeminiBackend(s.Gemini, s.STTModel), nil
		case "", "whisper":
			if s.OpenAIKey == nil {
				return nil, fmt.Errorf("whisper speech-to-text is not configured")
			}
			key, err := s.OpenAIKey(ctx)
			if err != nil {
				return nil, err
			}
			return stt.NewWhisperBackend(key), nil
		default:
			return nil, fmt.Errorf("unknown speech-to-text backend %q", s.STTBackend)
		}
	}
}
