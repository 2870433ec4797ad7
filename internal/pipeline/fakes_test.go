package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fpang/transcript-insight/internal/audio"
	"github.com/fpang/transcript-insight/internal/stt"
	"github.com/fpang/transcript-insight/internal/store"
	"github.com/fpang/transcript-insight/internal/transcript"
	"github.com/fpang/transcript-insight/internal/youtube"
)

type memCache struct {
	mu    sync.Mutex
	items map[string]*transcript.Transcript
}

func newMemCache() *memCache {
	return &memCache{items: make(map[string]*transcript.Transcript)}
}

func (m *memCache) LoadTranscript(_ context.Context, id string) (*transcript.Transcript, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[id], nil
}

func (m *memCache) SaveTranscript(_ context.Context, t *transcript.Transcript) error {
	if err := t.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[t.VideoID] = t
	return nil
}

func (m *memCache) ids() map[string]bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]bool, len(m.items))
	for id := range m.items {
		out[id] = true
	}
	return out
}

// fakeCaptions serves native captions for ids in has; everything else has
// captions disabled unless listed in errs.
type fakeCaptions struct {
	mu    sync.Mutex
	calls int
	has   map[string]bool
	errs  map[string]error
}

func (f *fakeCaptions) Fetch(_ context.Context, id string, langs []string) (*transcript.Transcript, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if err, ok := f.errs[id]; ok {
		return nil, err
	}
	if !f.has[id] {
		return nil, youtube.ErrCaptionsDisabled
	}
	return transcript.New(id, langs[0], transcript.SourceNative, []transcript.Segment{
		{Start: 5, Duration: 2, Text: "later"},
		{Start: 0, Duration: 5, Text: "native " + id},
	}, ""), nil
}

type fakeAudio struct {
	mu      sync.Mutex
	calls   int
	timeout map[string]bool
	broken  map[string]bool
}

func (f *fakeAudio) Acquire(_ context.Context, v transcript.Video) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.timeout[v.ID] {
		return "", &audio.AcquireError{VideoID: v.ID, Kind: audio.KindTimeout, Err: errors.New("command timed out")}
	}
	if f.broken[v.ID] {
		return "", &audio.AcquireError{VideoID: v.ID, Kind: audio.KindExit, Err: errors.New("exit 1")}
	}
	return "/audio/" + v.ID + ".mp3", nil
}

// fakeSTT mimics the adapter: it persists what it produces.
type fakeSTT struct {
	cache    *memCache
	oversize map[string]bool
}

func (f *fakeSTT) Transcribe(ctx context.Context, id, path, lang string) (*transcript.Transcript, error) {
	if f.oversize[id] {
		return nil, fmt.Errorf("%w (30.0 MB)", stt.ErrFileTooLarge)
	}
	t := transcript.New(id, lang, transcript.SourceSpeechToText, []transcript.Segment{
		{Start: 0, Duration: 3, Text: "spoken " + id},
	}, "")
	return t, f.cache.SaveTranscript(ctx, t)
}

type memCheckpoints struct {
	mu     sync.Mutex
	writes []store.Checkpoint
}

func (m *memCheckpoints) SaveCheckpoint(cp *store.Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = append(m.writes, *cp)
	return nil
}

func (m *memCheckpoints) last() store.Checkpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.writes) == 0 {
		return store.Checkpoint{}
	}
	return m.writes[len(m.writes)-1]
}

func videos(n int) []transcript.Video {
	out := make([]transcript.Video, n)
	for i := range out {
		out[i] = transcript.Video{ID: fmt.Sprintf("vid%02d", i), Title: fmt.Sprintf("Video %d", i), Index: i}
	}
	return out
}
