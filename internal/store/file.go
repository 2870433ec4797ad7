package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/fpang/transcript-insight/internal/transcript"
)

// FileStore is the directory-backed cache store. Concurrent writers must
// target distinct video IDs; the scheduler guarantees that by construction.
type FileStore struct {
	root   string
	mirror Mirror
}

// Option configures a FileStore.
type Option func(*FileStore)

// WithMirror attaches a secondary tier for read-through / write-through.
func WithMirror(m Mirror) Option {
	return func(s *FileStore) { s.mirror = m }
}

// NewFileStore creates the data directory layout under root.
func NewFileStore(root string, opts ...Option) (*FileStore, error) {
	s := &FileStore{root: root}
	for _, opt := range opts {
		opt(s)
	}
	for _, dir := range []string{TranscriptsDir, AudioDir, ExtractionDir} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("create %s directory: %w", dir, err)
		}
	}
	return s, nil
}

// Root returns the data directory.
func (s *FileStore) Root() string { return s.root }

// TranscriptPath returns the cache path for a video's transcript.
func (s *FileStore) TranscriptPath(id string) string {
	return filepath.Join(s.root, TranscriptsDir, id+".json")
}

// AudioPath returns where acquired audio for a video is stored.
func (s *FileStore) AudioPath(id string) string {
	return filepath.Join(s.root, AudioDir, id+".mp3")
}

// ExtractionPath returns the extraction cache path for a video.
func (s *FileStore) ExtractionPath(id string) string {
	return filepath.Join(s.root, ExtractionDir, id+".json")
}

// CheckpointPath returns the progress checkpoint path.
func (s *FileStore) CheckpointPath() string {
	return filepath.Join(s.root, CheckpointFile)
}

// LoadTranscript returns the cached transcript, or (nil, nil) when absent.
func (s *FileStore) LoadTranscript(ctx context.Context, id string) (*transcript.Transcript, error) {
	data, err := s.readThrough(ctx, s.TranscriptPath(id), mirrorKey(TranscriptsDir, id))
	if err != nil || data == nil {
		return nil, err
	}
	var t transcript.Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode transcript %s: %w", id, err)
	}
	return &t, nil
}

// SaveTranscript persists a transcript, replacing any earlier version.
func (s *FileStore) SaveTranscript(ctx context.Context, t *transcript.Transcript) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("refusing to persist transcript: %w", err)
	}
	data, err := marshalIndent(t)
	if err != nil {
		return fmt.Errorf("encode transcript %s: %w", t.VideoID, err)
	}
	return s.writeThrough(ctx, s.TranscriptPath(t.VideoID), mirrorKey(TranscriptsDir, t.VideoID), data)
}

// LoadExtraction returns the raw cached extraction document for a video.
func (s *FileStore) LoadExtraction(ctx context.Context, id string) ([]byte, bool, error) {
	data, err := s.readThrough(ctx, s.ExtractionPath(id), mirrorKey(ExtractionDir, id))
	if err != nil {
		return nil, false, err
	}
	return data, data != nil, nil
}

// SaveExtraction persists an extraction result document for a video.
func (s *FileStore) SaveExtraction(ctx context.Context, id string, v any) error {
	data, err := marshalIndent(v)
	if err != nil {
		return fmt.Errorf("encode extraction %s: %w", id, err)
	}
	return s.writeThrough(ctx, s.ExtractionPath(id), mirrorKey(ExtractionDir, id), data)
}

// SaveCheckpoint overwrites the progress checkpoint file. Callers serialise
// access; the file is written atomically so readers never see a torn write.
func (s *FileStore) SaveCheckpoint(cp *Checkpoint) error {
	data, err := marshalIndent(cp)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	return writeFileAtomic(s.CheckpointPath(), data)
}

// LoadCheckpoint reads the last checkpoint, or (nil, nil) when none exists.
func (s *FileStore) LoadCheckpoint() (*Checkpoint, error) {
	data, err := os.ReadFile(s.CheckpointPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	return &cp, nil
}

// LoadAllTranscripts reads every cached transcript. Unreadable files are
// logged and skipped.
func (s *FileStore) LoadAllTranscripts() (map[string]*transcript.Transcript, error) {
	paths, err := filepath.Glob(filepath.Join(s.root, TranscriptsDir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list transcripts: %w", err)
	}
	sort.Strings(paths)

	out := make(map[string]*transcript.Transcript, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			log.Warn().Err(err).Str("path", p).Msg("Skipping unreadable transcript")
			continue
		}
		var t transcript.Transcript
		if err := json.Unmarshal(data, &t); err != nil || t.VideoID == "" {
			log.Warn().Err(err).Str("path", p).Msg("Skipping malformed transcript")
			continue
		}
		out[t.VideoID] = &t
	}
	return out, nil
}

// CleanupAudio deletes acquired audio. With keepFailed, only audio whose
// video already has a transcript is removed. Returns the number deleted.
func (s *FileStore) CleanupAudio(keepFailed bool) (int, error) {
	paths, err := filepath.Glob(filepath.Join(s.root, AudioDir, "*.mp3"))
	if err != nil {
		return 0, fmt.Errorf("list audio: %w", err)
	}
	deleted := 0
	for _, p := range paths {
		id := strings.TrimSuffix(filepath.Base(p), ".mp3")
		if keepFailed {
			if _, err := os.Stat(s.TranscriptPath(id)); err != nil {
				continue
			}
		}
		if err := os.Remove(p); err != nil {
			log.Warn().Err(err).Str("path", p).Msg("Failed to delete audio file")
			continue
		}
		deleted++
	}
	return deleted, nil
}

// SaveVideos writes a listing snapshot (e.g. "playlist_videos.json").
func (s *FileStore) SaveVideos(name string, videos []transcript.Video) (string, error) {
	data, err := marshalIndent(videos)
	if err != nil {
		return "", fmt.Errorf("encode videos: %w", err)
	}
	path := filepath.Join(s.root, name)
	if err := writeFileAtomic(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// LoadVideos reads a listing snapshot written by SaveVideos.
func (s *FileStore) LoadVideos(name string) ([]transcript.Video, error) {
	data, err := os.ReadFile(filepath.Join(s.root, name))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	var videos []transcript.Video
	if err := json.Unmarshal(data, &videos); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return videos, nil
}

// WriteDocument writes an output document into the data directory and,
// when a mirror is configured, under documents/ in the mirror.
func (s *FileStore) WriteDocument(ctx context.Context, name string, data []byte) (string, error) {
	path := filepath.Join(s.root, name)
	if err := s.writeThrough(ctx, path, DocumentsDir+"/"+name, data); err != nil {
		return "", err
	}
	return path, nil
}

// readThrough reads the local file, falling back to the mirror and
// back-filling the local copy on a mirror hit.
func (s *FileStore) readThrough(ctx context.Context, path, key string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if s.mirror == nil {
		return nil, nil
	}

	data, err = s.mirror.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Mirror read failed, treating as cache miss")
		return nil, nil
	}
	if data == nil {
		return nil, nil
	}
	log.Debug().Str("key", key).Msg("Cache hit from mirror")
	if err := writeFileAtomic(path, data); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Failed to back-fill local cache")
	}
	return data, nil
}

// writeThrough writes locally, then best-effort to the mirror.
func (s *FileStore) writeThrough(ctx context.Context, path, key string, data []byte) error {
	if err := writeFileAtomic(path, data); err != nil {
		return err
	}
	if s.mirror != nil {
		if err := s.mirror.Put(ctx, key, data); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Mirror write failed")
		}
	}
	return nil
}

func mirrorKey(dir, id string) string {
	return dir + "/" + id + ".json"
}

// marshalIndent encodes v as indented JSON without HTML escaping, so
// non-Latin transcripts stay readable on disk.
func marshalIndent(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeFileAtomic writes data to a temp file in the same directory and
// renames it into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// LoadKnownVideos merges every saved listing snapshot ("*_videos.json") by
// video ID. Unreadable snapshots are logged and skipped.
func (s *FileStore) LoadKnownVideos() map[string]transcript.Video {
	out := make(map[string]transcript.Video)
	paths, _ := filepath.Glob(filepath.Join(s.root, "*_videos.json"))
	sort.Strings(paths)
	for _, p := range paths {
		videos, err := s.LoadVideos(filepath.Base(p))
		if err != nil {
			log.Warn().Err(err).Str("path", p).Msg("Skipping unreadable video listing")
			continue
		}
		for _, v := range videos {
			out[v.ID] = v
		}
	}
	return out
}
