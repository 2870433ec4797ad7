package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const (
	openAITranscriptionURL = "https://api.openai.com/v1/audio/transcriptions"
	whisperModel           = "whisper-1"
)

// WhisperBackend calls the OpenAI audio transcription endpoint.
type WhisperBackend struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

// NewWhisperBackend creates a Whisper backend.
func NewWhisperBackend(apiKey string) *WhisperBackend {
	return &WhisperBackend{
		apiKey:     apiKey,
		endpoint:   openAITranscriptionURL,
		httpClient: &http.Client{Timeout: 10 * time.Minute},
	}
}

func (w *WhisperBackend) Name() string { return "whisper" }

type verboseJSON struct {
	Language string    `json:"language"`
	Text     string    `json:"text"`
	Segments []Segment `json:"segments"`
}

// Transcribe uploads the audio with segment-level timestamps.
func (w *WhisperBackend) Transcribe(ctx context.Context, audioPath, language string) (*Result, error) {
	if w.apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key not configured")
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	f, err := os.Open(audioPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, err
	}
	writer.WriteField("model", whisperModel)
	writer.WriteField("response_format", "verbose_json")
	writer.WriteField("timestamp_granularities[]", "segment")
	if language != "" && language != "auto" {
		writer.WriteField("language", language)
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+w.apiKey)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("OpenAI API request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		msg := string(body)
		if len(msg) > 300 {
			msg = msg[:300]
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Body: msg}
	}

	var out verboseJSON
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode whisper response: %w", err)
	}
	return &Result{Text: out.Text, Language: out.Language, Segments: out.Segments}, nil
}

// APIError is a non-200 response from a speech-to-text HTTP API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Body)
}

// HTTPStatus returns the response status code.
func (e *APIError) HTTPStatus() int { return e.StatusCode }
