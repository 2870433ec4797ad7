package pipeline

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/fpang/transcript-insight/internal/transcript"
)

// RunOptions controls one batch run.
type RunOptions struct {
	Workers   int
	StartFrom int
	AllowSTT  bool
	Languages []string
}

// ProgressFunc is called once per finished item, serialised across workers.
// position is the item's ordinal in the full listing.
type ProgressFunc func(position, total int, o transcript.Outcome)

// Scheduler drives the resolver over a listing.
//
// Phase 1 resolves every item through the cache and native captions, one at
// a time. Phase 2, when speech-to-text is allowed, acquires audio for the
// remaining items with a bounded pool and then transcribes the acquired files
// with a second pool of the same size. A failure in one worker never cancels
// its siblings.
type Scheduler struct {
	resolver *Resolver
	tracker  *Tracker
	progress ProgressFunc

	progressMu sync.Mutex
}

// NewScheduler creates a scheduler. progress may be nil.
func NewScheduler(resolver *Resolver, tracker *Tracker, progress ProgressFunc) *Scheduler {
	return &Scheduler{resolver: resolver, tracker: tracker, progress: progress}
}

type candidate struct {
	position int
	video    transcript.Video
	audio    string
}

// Run resolves the videos whose Index is at least opts.StartFrom and returns
// their outcomes ordered by listing position. videos must be sorted by Index.
func (s *Scheduler) Run(ctx context.Context, videos []transcript.Video, opts RunOptions) []transcript.Outcome {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	start := 0
	for start < len(videos) && videos[start].Index < opts.StartFrom {
		start++
	}
	total := len(videos)
	results := make([]*transcript.Outcome, total)

	log.Info().
		Int("total", total).
		Int("start_from", opts.StartFrom).
		Int("skipped", start).
		Int("workers", workers).
		Bool("speech_to_text", opts.AllowSTT).
		Msg("Starting transcription run")

	// Phase 1: cache and native captions.
	var pending []candidate
	for pos := start; pos < total; pos++ {
		v := videos[pos]
		out := s.resolver.ResolveNative(ctx, v, opts.Languages)
		if out.NeedsSpeechToText && opts.AllowSTT {
			pending = append(pending, candidate{position: pos, video: v})
			continue
		}
		s.finish(ctx, results, pos, total, out)
	}

	if len(pending) == 0 {
		return collect(results)
	}

	// Phase 2a: audio acquisition.
	log.Info().Int("count", len(pending)).Msg("Acquiring audio for speech-to-text")
	acquired := make([]bool, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range pending {
		c := &pending[i]
		g.Go(func() error {
			path, failed, ok := s.resolver.AcquireAudio(gctx, c.video)
			if !ok {
				s.finish(ctx, results, c.position, total, failed)
				return nil
			}
			c.audio = path
			acquired[i] = true
			return nil
		})
	}
	g.Wait()

	// Phase 2b: transcription.
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range pending {
		if !acquired[i] {
			continue
		}
		c := pending[i]
		g.Go(func() error {
			out := s.resolver.TranscribeAudio(gctx, c.video, c.audio)
			s.finish(ctx, results, c.position, total, out)
			return nil
		})
	}
	g.Wait()

	return collect(results)
}

// finish stores an outcome, updates the checkpoint and reports progress.
// Each position is written by exactly one goroutine.
func (s *Scheduler) finish(ctx context.Context, results []*transcript.Outcome, pos, total int, out transcript.Outcome) {
	results[pos] = &out
	if s.tracker != nil {
		s.tracker.Record(ctx, out.Video.Index, out)
	}
	if s.progress != nil {
		s.progressMu.Lock()
		s.progress(pos, total, out)
		s.progressMu.Unlock()
	}
}

func collect(results []*transcript.Outcome) []transcript.Outcome {
	out := make([]transcript.Outcome, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}
