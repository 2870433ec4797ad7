package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"github.com/fpang/transcript-insight/internal/store"
	"github.com/fpang/transcript-insight/internal/transcript"
	"github.com/fpang/transcript-insight/internal/youtube"
)

type videoLister interface {
	List(ctx context.Context, src youtube.Source) ([]transcript.Video, error)
}

type transcriptResolver interface {
	Resolve(ctx context.Context, v transcript.Video, langs []string, allowSTT bool) transcript.Outcome
}

type runLedger interface {
	GetRun(ctx context.Context, runID string) (*store.RunRecord, error)
	GetCheckpoint(ctx context.Context, runID string) (*store.Checkpoint, error)
}

// toolServer holds the dependencies shared by the MCP tools.
type toolServer struct {
	store     *store.FileStore
	lister    videoLister
	resolver  transcriptResolver
	ledger    runLedger // nil without a ledger table
	languages []string
}

// ListVideosInput selects one listing source.
type ListVideosInput struct {
	Video      string   `json:"video,omitempty" jsonschema:"Single video ID or URL"`
	Videos     []string `json:"videos,omitempty" jsonschema:"Several video IDs or URLs"`
	Channel    string   `json:"channel,omitempty" jsonschema:"Channel URL"`
	Playlist   string   `json:"playlist,omitempty" jsonschema:"Playlist URL or ID"`
	Search     string   `json:"search,omitempty" jsonschema:"Search query"`
	MaxResults int      `json:"max_results,omitempty" jsonschema:"Maximum videos for channel, playlist and search (default 10)"`
}

// ListVideosOutput is the listing result.
type ListVideosOutput struct {
	Videos   []transcript.Video `json:"videos"`
	Snapshot string             `json:"snapshot,omitempty"`
}

// GetTranscriptInput names one video.
type GetTranscriptInput struct {
	Video           string   `json:"video" jsonschema:"Video ID or URL"`
	Languages       []string `json:"languages,omitempty" jsonschema:"Caption languages in preference order"`
	UseSpeechToText bool     `json:"use_speech_to_text,omitempty" jsonschema:"Transcribe the audio when no captions exist (metered)"`
	IncludeSegments bool     `json:"include_segments,omitempty" jsonschema:"Return timed segments as well as the text"`
}

// GetTranscriptOutput is a resolved transcript with derived metrics.
type GetTranscriptOutput struct {
	VideoID        string               `json:"video_id"`
	Language       string               `json:"language"`
	Source         transcript.Source    `json:"source"`
	Cached         bool                 `json:"cached"`
	Duration       string               `json:"duration"`
	WordCount      int                  `json:"word_count"`
	WordsPerMinute float64              `json:"words_per_minute"`
	Text           string               `json:"text"`
	Segments       []transcript.Segment `json:"segments,omitempty"`
}

// RunProgressInput optionally names a run in the ledger.
type RunProgressInput struct {
	RunID string `json:"run_id,omitempty" jsonschema:"Run ID to read from the run ledger; empty reads the local checkpoint"`
}

// RunProgressOutput reports a run's checkpoint.
type RunProgressOutput struct {
	Origin     string            `json:"origin"`
	Run        *store.RunRecord  `json:"run,omitempty"`
	Checkpoint *store.Checkpoint `json:"checkpoint,omitempty"`
}

func (t *toolServer) register(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_videos",
		Description: "List YouTube videos from one source (video, videos, channel, playlist or search) with title, duration and episode number. Channel, playlist and search listings are saved to the data directory.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, t.listVideos)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_transcript",
		Description: "Return the transcript of one video. Uses the local cache, then native captions; speech-to-text runs only when use_speech_to_text is set.",
	}, t.getTranscript)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "run_progress",
		Description: "Report transcription progress: completed and failed videos of the last local run, or of a run in the ledger when run_id is given.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, t.runProgress)
}

func (t *toolServer) listVideos(ctx context.Context, _ *mcp.CallToolRequest, in ListVideosInput) (*mcp.CallToolResult, ListVideosOutput, error) {
	src, err := sourceFromInput(in)
	if err != nil {
		return nil, ListVideosOutput{}, err
	}
	videos, err := t.lister.List(ctx, src)
	if err != nil {
		return nil, ListVideosOutput{}, fmt.Errorf("list %s: %w", src.Kind, err)
	}
	out := ListVideosOutput{Videos: videos}
	if name := src.SnapshotName(); name != "" {
		path, err := t.store.SaveVideos(name, videos)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to save video listing")
		} else {
			out.Snapshot = path
		}
	}
	if out.Videos == nil {
		out.Videos = []transcript.Video{}
	}
	return nil, out, nil
}

func (t *toolServer) getTranscript(ctx context.Context, _ *mcp.CallToolRequest, in GetTranscriptInput) (*mcp.CallToolResult, GetTranscriptOutput, error) {
	id := youtube.ExtractVideoID(in.Video)
	if id == "" {
		return nil, GetTranscriptOutput{}, fmt.Errorf("not a video ID or URL: %q", in.Video)
	}
	v, ok := t.store.LoadKnownVideos()[id]
	if !ok {
		v = transcript.Video{ID: id, URL: youtube.WatchURL(id)}
	}
	langs := in.Languages
	if len(langs) == 0 {
		langs = t.languages
	}

	o := t.resolver.Resolve(ctx, v, langs, in.UseSpeechToText)
	if !o.Success || o.Transcript == nil {
		if o.NeedsSpeechToText {
			return nil, GetTranscriptOutput{}, errors.New("no native captions; retry with use_speech_to_text")
		}
		return nil, GetTranscriptOutput{}, fmt.Errorf("%s: %s", o.Kind, o.Error)
	}

	tr := o.Transcript
	out := GetTranscriptOutput{
		VideoID:        tr.VideoID,
		Language:       tr.Language,
		Source:         tr.Source,
		Cached:         o.Cached,
		Duration:       tr.DurationFormatted(),
		WordCount:      tr.WordCount(),
		WordsPerMinute: tr.WordsPerMinute(),
		Text:           tr.Text,
	}
	if in.IncludeSegments {
		out.Segments = tr.Segments
	}
	return nil, out, nil
}

func (t *toolServer) runProgress(ctx context.Context, _ *mcp.CallToolRequest, in RunProgressInput) (*mcp.CallToolResult, RunProgressOutput, error) {
	if in.RunID == "" {
		cp, err := t.store.LoadCheckpoint()
		if err != nil {
			return nil, RunProgressOutput{}, err
		}
		if cp == nil {
			return nil, RunProgressOutput{}, errors.New("no checkpoint in the data directory")
		}
		return nil, RunProgressOutput{Origin: "local", Checkpoint: cp}, nil
	}

	if t.ledger == nil {
		return nil, RunProgressOutput{}, errors.New("run_id requires a configured ledger table")
	}
	run, err := t.ledger.GetRun(ctx, in.RunID)
	if err != nil {
		return nil, RunProgressOutput{}, err
	}
	if run == nil {
		return nil, RunProgressOutput{}, fmt.Errorf("unknown run %q", in.RunID)
	}
	cp, err := t.ledger.GetCheckpoint(ctx, in.RunID)
	if err != nil {
		return nil, RunProgressOutput{}, err
	}
	return nil, RunProgressOutput{Origin: "ledger", Run: run, Checkpoint: cp}, nil
}

func sourceFromInput(in ListVideosInput) (youtube.Source, error) {
	return youtube.Selector{
		Video:      in.Video,
		Videos:     in.Videos,
		Channel:    in.Channel,
		Playlist:   in.Playlist,
		Search:     in.Search,
		MaxResults: in.MaxResults,
	}.Source()
}
