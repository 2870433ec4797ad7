package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/transcript-insight/internal/jsonutil"
	"github.com/fpang/transcript-insight/internal/metrics"
)

// ErrNoRecords is returned by Synthesize when there is nothing to aggregate.
var ErrNoRecords = errors.New("no records to aggregate")

// DigestSeparator separates per-record digest entries.
const DigestSeparator = "\n\n---\n\n"

// Synthesis describes how a profile's records become one guideline document.
type Synthesis[R, G any] struct {
	Profile     string
	System      string
	Temperature float32
	// WrapperKeys are object keys the model may nest the document under.
	WrapperKeys []string
	// Entry renders the compact digest entry for one record.
	Entry       func(r R) string
	BuildPrompt func(digest string, count int) (string, error)
}

// Aggregator synthesizes guidelines from many records in one remote call.
type Aggregator[R, G any] struct {
	gen   Generator
	model string
	spec  Synthesis[R, G]
}

// NewAggregator creates an aggregator.
func NewAggregator[R, G any](gen Generator, model string, spec Synthesis[R, G]) *Aggregator[R, G] {
	return &Aggregator[R, G]{gen: gen, model: model, spec: spec}
}

// Digest renders all records and truncates on entry boundaries to at most
// maxChars characters (0 means unlimited). It returns the digest and the
// number of records it covers.
func (a *Aggregator[R, G]) Digest(records []R, maxChars int) (string, int) {
	entries := make([]string, 0, len(records))
	for _, r := range records {
		entries = append(entries, a.spec.Entry(r))
	}
	return LimitDigest(entries, maxChars)
}

// Synthesize renders the digest of records and asks the model for the
// guideline document.
func (a *Aggregator[R, G]) Synthesize(ctx context.Context, records []R, maxChars int) (G, error) {
	var zero G
	if len(records) == 0 {
		return zero, ErrNoRecords
	}
	digest, n := a.Digest(records, maxChars)
	if n < len(records) {
		log.Warn().
			Int("records", len(records)).
			Int("included", n).
			Int("max_chars", maxChars).
			Msg("Digest truncated to fit budget")
	}
	return a.SynthesizeDigest(ctx, digest, n)
}

// SynthesizeDigest sends an already-built digest covering count records.
func (a *Aggregator[R, G]) SynthesizeDigest(ctx context.Context, digest string, count int) (G, error) {
	var zero G
	if count == 0 || strings.TrimSpace(digest) == "" {
		return zero, ErrNoRecords
	}
	prompt, err := a.spec.BuildPrompt(digest, count)
	if err != nil {
		return zero, err
	}

	log.Info().
		Str("profile", a.spec.Profile).
		Str("model", a.model).
		Int("records", count).
		Int("digest_chars", len([]rune(digest))).
		Msg("Synthesizing guidelines")

	start := time.Now()
	raw, err := a.gen.Generate(ctx, GenerateRequest{
		Model:       a.model,
		System:      a.spec.System,
		Prompt:      prompt,
		Temperature: a.spec.Temperature,
		JSON:        true,
	})
	elapsed := time.Since(start)
	if err != nil {
		return zero, fmt.Errorf("aggregate %s: %w", a.spec.Profile, err)
	}
	metrics.Aggregation(a.spec.Profile, elapsed, count)

	g, err := jsonutil.DecodeObject[G](raw, a.spec.WrapperKeys...)
	if err != nil {
		return zero, fmt.Errorf("aggregate %s: %w", a.spec.Profile, err)
	}
	log.Info().Str("profile", a.spec.Profile).Dur("duration", elapsed).Msg("Guidelines synthesized")
	return g, nil
}

// IsNoRecords reports whether err means there was nothing to aggregate.
func IsNoRecords(err error) bool { return errors.Is(err, ErrNoRecords) }

// LimitDigest joins entries with DigestSeparator, stopping before the entry
// that would push the digest past maxChars. At least one entry is always
// kept, truncated if needed. maxChars <= 0 disables the limit.
func LimitDigest(entries []string, maxChars int) (string, int) {
	if len(entries) == 0 {
		return "", 0
	}
	if maxChars <= 0 {
		return strings.Join(entries, DigestSeparator), len(entries)
	}
	sepLen := len([]rune(DigestSeparator))
	var b strings.Builder
	used := 0
	n := 0
	for _, e := range entries {
		l := len([]rune(e))
		if n > 0 {
			l += sepLen
		}
		if used+l > maxChars {
			break
		}
		if n > 0 {
			b.WriteString(DigestSeparator)
		}
		b.WriteString(e)
		used += l
		n++
	}
	if n == 0 {
		return truncateRunes(entries[0], maxChars), 1
	}
	return b.String(), n
}
