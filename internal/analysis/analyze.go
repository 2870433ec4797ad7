// Package analysis runs an extraction profile over cached transcripts and
// synthesizes the profile's guidelines.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/fpang/transcript-insight/internal/chat"
	"github.com/fpang/transcript-insight/internal/report"
	"github.com/fpang/transcript-insight/internal/transcript"
	"github.com/fpang/transcript-insight/internal/youtube"
)

// Item is one transcript to analyse with its listing metadata.
type Item struct {
	Video      transcript.Video
	Transcript *transcript.Transcript
}

// Items pairs transcripts with known listing metadata, ordered by listing
// index and then video ID. Transcripts without metadata get a minimal video.
// limit > 0 keeps only the first limit items.
func Items(transcripts map[string]*transcript.Transcript, known map[string]transcript.Video, limit int) []Item {
	items := make([]Item, 0, len(transcripts))
	for id, t := range transcripts {
		v, ok := known[id]
		if !ok {
			v = transcript.Video{ID: id, URL: youtube.WatchURL(id), Index: -1}
		}
		items = append(items, Item{Video: v, Transcript: t})
	}
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i].Video, items[j].Video
		if (a.Index < 0) != (b.Index < 0) {
			return a.Index >= 0
		}
		if a.Index != b.Index {
			return a.Index < b.Index
		}
		return a.ID < b.ID
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

// Options configures one analysis run.
type Options struct {
	Profile         string
	ExtractModel    string
	AggregateModel  string
	TranscriptChars int
	MaxDigestChars  int
	SkipAggregate   bool
	Workers         int
	// Out receives console summaries; nil discards them.
	Out io.Writer
}

// Result is the rendered output of a run.
type Result struct {
	Profile      string
	Items        int
	Records      int
	DocumentName string
	Document     []byte
	// Markdown is empty when no guidelines were produced.
	Markdown     []byte
	AggregateErr error
}

// Run executes the named profile over items.
func Run(ctx context.Context, gen chat.Generator, cache chat.ExtractionCache, items []Item, opts Options) (*Result, error) {
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.ExtractModel == "" {
		opts.ExtractModel = chat.DefaultExtractModel
	}
	if opts.AggregateModel == "" {
		opts.AggregateModel = chat.DefaultAggregateModel
	}

	switch opts.Profile {
	case chat.ProfileContent, "":
		ex := chat.NewExtractor(gen, cache, opts.ExtractModel, chat.ContentSchema(opts.TranscriptChars))
		agg := chat.NewAggregator(gen, opts.AggregateModel, chat.ContentSynthesis())
		out := runProfile(ctx, ex, agg, items, opts, func(_ Item, recs []chat.VideoAnalysis) {
			for _, a := range recs {
				report.VideoAnalysis(opts.Out, a)
			}
		})
		return render(out, report.ContentFile, "video_analyses", func(g chat.ContentGuidelines) string {
			return report.ContentMarkdown("Content Creation Guidelines", g)
		})
	case chat.ProfileStartups:
		ex := chat.NewExtractor(gen, cache, opts.ExtractModel, chat.StartupSchema(opts.TranscriptChars))
		agg := chat.NewAggregator(gen, opts.AggregateModel, chat.StartupSynthesis())
		out := runProfile(ctx, ex, agg, items, opts, func(it Item, recs []chat.Startup) {
			report.Startups(opts.Out, it.Video, recs)
		})
		report.StartupTotals(opts.Out, out.records)
		return render(out, report.StartupsFile, "startups", func(g chat.StartupGuidelines) string {
			return report.StartupsMarkdown("Pitch Guidelines", g, out.records)
		})
	default:
		return nil, fmt.Errorf("unknown profile %q (want %s or %s)", opts.Profile, chat.ProfileContent, chat.ProfileStartups)
	}
}

type profileOutput[R, G any] struct {
	profile      string
	items        int
	records      []R
	guidelines   *G
	aggregateErr error
}

// runProfile extracts every item with a bounded pool, keeping records in
// item order, then aggregates them once.
func runProfile[R, G any](ctx context.Context, ex *chat.Extractor[R], agg *chat.Aggregator[R, G], items []Item, opts Options, onItem func(Item, []R)) profileOutput[R, G] {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	perItem := make([][]R, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, it := range items {
		g.Go(func() error {
			log.Info().
				Str("video_id", it.Video.ID).
				Int("position", i+1).
				Int("total", len(items)).
				Msg("Extracting")
			perItem[i] = ex.Extract(gctx, it.Video, it.Transcript)
			return nil
		})
	}
	_ = g.Wait()

	out := profileOutput[R, G]{profile: ex.Profile(), items: len(items), records: []R{}}
	for i, recs := range perItem {
		onItem(items[i], recs)
		out.records = append(out.records, recs...)
	}

	if opts.SkipAggregate {
		return out
	}
	guide, err := agg.Synthesize(ctx, out.records, opts.MaxDigestChars)
	switch {
	case err == nil:
		out.guidelines = &guide
	case errors.Is(err, chat.ErrNoRecords):
		log.Info().Str("profile", out.profile).Msg("No records to aggregate")
	default:
		log.Error().Err(err).Str("profile", out.profile).Msg("Aggregation failed")
		out.aggregateErr = err
	}
	return out
}

func render[R, G any](out profileOutput[R, G], name, key string, markdown func(G) string) (*Result, error) {
	var guide any
	if out.guidelines != nil {
		guide = out.guidelines
	}
	doc, err := report.Document(key, out.records, guide)
	if err != nil {
		return nil, err
	}
	res := &Result{
		Profile:      out.profile,
		Items:        out.items,
		Records:      len(out.records),
		DocumentName: name,
		Document:     doc,
		AggregateErr: out.aggregateErr,
	}
	if out.guidelines != nil {
		res.Markdown = []byte(markdown(*out.guidelines))
	}
	return res, nil
}
