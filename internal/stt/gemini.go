package stt

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/fpang/transcript-insight/internal/jsonutil"
)

const (
	geminiPollInterval = 3 * time.Second
	geminiPollTimeout  = 5 * time.Minute
)

const geminiTranscribePrompt = `Transcribe the attached audio verbatim in language %q.
Return only JSON of the form:
{"text": "<full transcript>", "segments": [{"start": <seconds>, "end": <seconds>, "text": "<utterance>"}]}
Segments must be in chronological order and cover the whole recording.`

// ClientFunc returns a ready Gemini client.
type ClientFunc func(ctx context.Context) (*genai.Client, error)

// fileService is the part of genai.Files the backend uses.
type fileService interface {
	Upload(ctx context.Context, r io.Reader, config *genai.UploadFileConfig) (*genai.File, error)
	Get(ctx context.Context, name string, config *genai.GetFileConfig) (*genai.File, error)
	Delete(ctx context.Context, name string, config *genai.DeleteFileConfig) (*genai.DeleteFileResponse, error)
}

// contentService is the part of genai.Models the backend uses.
type contentService interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type geminiConnect func(ctx context.Context) (fileService, contentService, error)

// GeminiBackend transcribes audio through the Gemini Files API.
type GeminiBackend struct {
	connect      geminiConnect
	model        string
	pollInterval time.Duration
	pollTimeout  time.Duration
}

// NewGeminiBackend creates a Gemini speech-to-text backend.
func NewGeminiBackend(client ClientFunc, model string) *GeminiBackend {
	connect := func(ctx context.Context) (fileService, contentService, error) {
		c, err := client(ctx)
		if err != nil {
			return nil, nil, err
		}
		return c.Files, c.Models, nil
	}
	return &GeminiBackend{
		connect:      connect,
		model:        model,
		pollInterval: geminiPollInterval,
		pollTimeout:  geminiPollTimeout,
	}
}

func (g *GeminiBackend) Name() string { return "gemini" }

type geminiTranscript struct {
	Text     string    `json:"text"`
	Segments []Segment `json:"segments"`
}

// Transcribe uploads the audio, waits for processing, then asks the model
// for a timed transcript. The uploaded file is always deleted.
func (g *GeminiBackend) Transcribe(ctx context.Context, audioPath, language string) (*Result, error) {
	files, models, err := g.connect(ctx)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio: %w", err)
	}
	defer f.Close()

	file, err := files.Upload(ctx, f, &genai.UploadFileConfig{MIMEType: "audio/mpeg"})
	if err != nil {
		return nil, fmt.Errorf("failed to upload audio: %w", err)
	}
	name := file.Name
	defer func() {
		if _, err := files.Delete(context.WithoutCancel(ctx), name, nil); err != nil {
			log.Warn().Err(err).Str("name", name).Msg("Failed to delete uploaded audio")
		}
	}()

	deadline := time.Now().Add(g.pollTimeout)
	for file.State == genai.FileStateProcessing {
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("timeout waiting for audio processing after %v", g.pollTimeout)
		}
		select {
		case <-time.After(g.pollInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		file, err = files.Get(ctx, name, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to get file state: %w", err)
		}
	}
	if file.State == genai.FileStateFailed {
		return nil, fmt.Errorf("audio processing failed")
	}

	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{FileData: &genai.FileData{MIMEType: file.MIMEType, FileURI: file.URI}},
			{Text: fmt.Sprintf(geminiTranscribePrompt, language)},
		},
	}}
	resp, err := models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0),
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, fmt.Errorf("gemini transcription: %w", err)
	}

	out, err := jsonutil.ParseJSON[geminiTranscript](resp.Text())
	if err != nil {
		return nil, fmt.Errorf("parse gemini transcript: %w", err)
	}
	return &Result{Text: out.Text, Language: language, Segments: out.Segments}, nil
}
