package chat

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/fpang/transcript-insight/internal/jsonutil"
	"github.com/fpang/transcript-insight/internal/metrics"
	"github.com/fpang/transcript-insight/internal/transcript"
)

// DefaultTranscriptChars is the default prompt budget for transcript text.
const DefaultTranscriptChars = 15000

// ExtractionCache persists per-item extraction results.
type ExtractionCache interface {
	LoadExtraction(ctx context.Context, id string) ([]byte, bool, error)
	SaveExtraction(ctx context.Context, id string, v any) error
}

// Schema describes one extraction profile: how to prompt for an item and
// how to turn loosely-typed model output into records.
type Schema[R any] struct {
	// Profile names the schema in cache keys, logs and metrics.
	Profile string
	System  string
	// ContainerKeys are the object keys that may wrap the record list.
	ContainerKeys []string
	Temperature   float32
	// TranscriptChars caps the transcript text sent in the prompt.
	TranscriptChars int

	BuildPrompt func(v transcript.Video, t *transcript.Transcript, text string) (string, error)
	// Normalize converts one raw record; index is its position in the
	// response list. It returns false when a required field is missing,
	// and the record is dropped.
	Normalize func(v transcript.Video, t *transcript.Transcript, index int, raw map[string]any) (R, bool)
}

// Extractor turns one transcript into zero or more typed records.
type Extractor[R any] struct {
	gen    Generator
	cache  ExtractionCache
	model  string
	schema Schema[R]
}

// NewExtractor creates an extractor. cache may be nil.
func NewExtractor[R any](gen Generator, cache ExtractionCache, model string, schema Schema[R]) *Extractor[R] {
	if schema.TranscriptChars <= 0 {
		schema.TranscriptChars = DefaultTranscriptChars
	}
	return &Extractor[R]{gen: gen, cache: cache, model: model, schema: schema}
}

// Profile returns the schema name.
func (e *Extractor[R]) Profile() string { return e.schema.Profile }

// cacheKey keeps results of different profiles apart for the same video.
func (e *Extractor[R]) cacheKey(videoID string) string {
	return videoID + "." + e.schema.Profile
}

// Extract returns the records for one item. It never fails the batch: remote
// errors and malformed output yield an empty list and are not cached, while
// a successful parse (even an empty one) is cached.
func (e *Extractor[R]) Extract(ctx context.Context, v transcript.Video, t *transcript.Transcript) []R {
	key := e.cacheKey(v.ID)
	if cached, ok := e.loadCached(ctx, key); ok {
		metrics.ExtractionRecords(e.schema.Profile, len(cached), true)
		return cached
	}

	text := truncateRunes(t.Text, e.schema.TranscriptChars)
	prompt, err := e.schema.BuildPrompt(v, t, text)
	if err != nil {
		log.Error().Err(err).Str("video_id", v.ID).Msg("Failed to build extraction prompt")
		return []R{}
	}

	raw, err := e.gen.Generate(ctx, GenerateRequest{
		Model:       e.model,
		System:      e.schema.System,
		Prompt:      prompt,
		Temperature: e.schema.Temperature,
		JSON:        true,
	})
	if err != nil {
		log.Warn().Err(err).Str("video_id", v.ID).Str("profile", e.schema.Profile).Msg("Extraction call failed")
		return []R{}
	}

	rawRecords, err := jsonutil.DecodeIndexedRecords(raw, e.schema.ContainerKeys...)
	if err != nil {
		log.Warn().Err(err).Str("video_id", v.ID).Str("profile", e.schema.Profile).Msg("Extraction response was not valid JSON")
		return []R{}
	}

	records := make([]R, 0, len(rawRecords))
	for _, rec := range rawRecords {
		r, ok := e.schema.Normalize(v, t, rec.Index, rec.Fields)
		if !ok {
			log.Debug().Str("video_id", v.ID).Int("record", rec.Index).Msg("Dropping record without required fields")
			continue
		}
		records = append(records, r)
	}

	if len(records) == 0 {
		log.Info().Str("video_id", v.ID).Str("profile", e.schema.Profile).Msg("No records extracted")
	}

	if e.cache != nil {
		if err := e.cache.SaveExtraction(ctx, key, records); err != nil {
			log.Warn().Err(err).Str("video_id", v.ID).Msg("Failed to cache extraction")
		}
	}
	metrics.ExtractionRecords(e.schema.Profile, len(records), false)
	return records
}

func (e *Extractor[R]) loadCached(ctx context.Context, key string) ([]R, bool) {
	if e.cache == nil {
		return nil, false
	}
	data, ok, err := e.cache.LoadExtraction(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to read extraction cache")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var records []R
	if err := json.Unmarshal(data, &records); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Ignoring unreadable extraction cache entry")
		return nil, false
	}
	if records == nil {
		records = []R{}
	}
	log.Debug().Str("key", key).Int("records", len(records)).Msg("Extraction cache hit")
	return records, true
}

// truncateRunes cuts s to at most n characters without splitting a code point.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
