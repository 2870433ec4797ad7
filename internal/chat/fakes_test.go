package chat

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/fpang/transcript-insight/internal/transcript"
)

type fakeGenerator struct {
	mu       sync.Mutex
	response string
	err      error
	calls    []GenerateRequest
}

func (f *fakeGenerator) Generate(_ context.Context, req GenerateRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type memExtractions struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newMemExtractions() *memExtractions {
	return &memExtractions{items: map[string][]byte{}}
}

func (m *memExtractions) LoadExtraction(_ context.Context, id string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.items[id]
	return data, ok, nil
}

func (m *memExtractions) SaveExtraction(_ context.Context, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[id] = data
	return nil
}

func sampleVideo() transcript.Video {
	return transcript.Video{
		ID:            "vid00000001",
		Title:         "Shark Tank Egypt Episode 4",
		URL:           "https://www.youtube.com/watch?v=vid00000001",
		EpisodeNumber: 4,
	}
}

func sampleTranscript() *transcript.Transcript {
	return transcript.New("vid00000001", "en", transcript.SourceNative, []transcript.Segment{
		{Start: 0, Duration: 5, Text: "This is the hook line."},
		{Start: 5, Duration: 10, Text: "Second line about things."},
		{Start: 30, Duration: 30, Text: "Later content that is not part of the hook."},
	}, "")
}
