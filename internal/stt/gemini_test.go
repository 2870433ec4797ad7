package stt

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"google.golang.org/genai"
)

// fakeFiles serves upload, then each state in states on successive Gets.
type fakeFiles struct {
	mu       sync.Mutex
	uploaded string
	mimeType string
	states   []genai.FileState
	gets     int
	deleted  []string
	getErr   error
}

func (f *fakeFiles) Upload(_ context.Context, r io.Reader, cfg *genai.UploadFileConfig) (*genai.File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploaded = string(data)
	f.mimeType = cfg.MIMEType
	return f.file(genai.FileStateProcessing), nil
}

func (f *fakeFiles) Get(_ context.Context, name string, _ *genai.GetFileConfig) (*genai.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	state := genai.FileStateActive
	if f.gets < len(f.states) {
		state = f.states[f.gets]
	}
	f.gets++
	return f.file(state), nil
}

func (f *fakeFiles) Delete(_ context.Context, name string, _ *genai.DeleteFileConfig) (*genai.DeleteFileResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, name)
	return &genai.DeleteFileResponse{}, nil
}

func (f *fakeFiles) file(state genai.FileState) *genai.File {
	return &genai.File{Name: "files/abc", URI: "https://files/abc", MIMEType: "audio/mpeg", State: state}
}

type fakeModels struct {
	text     string
	err      error
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

func (m *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.model, m.contents, m.config = model, contents, cfg
	if m.err != nil {
		return nil, m.err
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: m.text}}},
	}}}, nil
}

func newTestGemini(files *fakeFiles, models *fakeModels) *GeminiBackend {
	return &GeminiBackend{
		connect: func(context.Context) (fileService, contentService, error) {
			return files, models, nil
		},
		model:        "gemini-test",
		pollInterval: time.Millisecond,
		pollTimeout:  time.Second,
	}
}

func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "v.mp3")
	if err := os.WriteFile(path, []byte("ID3audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestGeminiBackendTranscribes(t *testing.T) {
	files := &fakeFiles{states: []genai.FileState{genai.FileStateProcessing, genai.FileStateActive}}
	models := &fakeModels{text: "```json\n" + `{"text": "hello there", "segments": [{"start": 0, "end": 1.5, "text": "hello"}, {"start": 1.5, "end": 2, "text": "there"}]}` + "\n```"}
	g := newTestGemini(files, models)

	res, err := g.Transcribe(context.Background(), writeAudio(t), "en")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "hello there" || res.Language != "en" || len(res.Segments) != 2 || res.Segments[1].Start != 1.5 {
		t.Errorf("unexpected result %+v", res)
	}
	if files.uploaded != "ID3audio" || files.mimeType != "audio/mpeg" {
		t.Errorf("upload = %q (%s)", files.uploaded, files.mimeType)
	}
	if files.gets != 2 {
		t.Errorf("expected 2 state polls, got %d", files.gets)
	}
	if len(files.deleted) != 1 || files.deleted[0] != "files/abc" {
		t.Errorf("expected uploaded file to be deleted, got %v", files.deleted)
	}
	if models.model != "gemini-test" || models.config.ResponseMIMEType != "application/json" {
		t.Errorf("request model %q config %+v", models.model, models.config)
	}
	parts := models.contents[0].Parts
	if parts[0].FileData == nil || parts[0].FileData.FileURI != "https://files/abc" || !strings.Contains(parts[1].Text, `"en"`) {
		t.Errorf("unexpected request parts %+v", parts)
	}
}

func TestGeminiBackendFailures(t *testing.T) {
	tests := []struct {
		name   string
		files  *fakeFiles
		models *fakeModels
		want   string
	}{
		{"processing failed", &fakeFiles{states: []genai.FileState{genai.FileStateFailed}}, &fakeModels{}, "processing failed"},
		{"poll error", &fakeFiles{getErr: errors.New("boom")}, &fakeModels{}, "file state"},
		{"remote error", &fakeFiles{}, &fakeModels{err: errors.New("quota")}, "quota"},
		{"malformed", &fakeFiles{}, &fakeModels{text: "sorry, no audio"}, "parse gemini transcript"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestGemini(tt.files, tt.models).Transcribe(context.Background(), writeAudio(t), "en")
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
			if len(tt.files.deleted) != 1 {
				t.Errorf("expected uploaded file to be deleted, got %v", tt.files.deleted)
			}
		})
	}
}

func TestGeminiBackendPollTimeout(t *testing.T) {
	states := make([]genai.FileState, 1000)
	for i := range states {
		states[i] = genai.FileStateProcessing
	}
	g := newTestGemini(&fakeFiles{states: states}, &fakeModels{})
	g.pollTimeout = 20 * time.Millisecond

	_, err := g.Transcribe(context.Background(), writeAudio(t), "en")
	if err == nil || !strings.Contains(err.Error(), "timeout waiting") {
		t.Fatalf("expected poll timeout, got %v", err)
	}
}

func TestGeminiBackendConnectError(t *testing.T) {
	g := &GeminiBackend{connect: func(context.Context) (fileService, contentService, error) {
		return nil, nil, errors.New("no key")
	}}
	if _, err := g.Transcribe(context.Background(), writeAudio(t), "en"); err == nil || err.Error() != "no key" {
		t.Errorf("expected connect error, got %v", err)
	}
}
