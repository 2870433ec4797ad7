// Package main provides the Lambda entry point for one pipeline request.
//
// The handler lists videos from a single source, resolves a transcript for
// each (native captions first, speech-to-text when enabled), and optionally
// runs an extraction profile over the resolved transcripts. Work happens in
// /tmp; configure INSIGHT_CACHE_BUCKET so transcripts and extractions survive
// between invocations.
//
// Event format:
//
//	{
//	  "source": {"video"|"videos"|"channel"|"playlist"|"search": ..., "max_results": 10},
//	  "languages": ["en", "ar"],
//	  "use_speech_to_text": false,
//	  "speech_to_text_language": "en",
//	  "workers": 3,
//	  "start_from": 0,
//	  "profile": "content"|"startups",
//	  "analyze": false
//	}
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/fpang/transcript-insight/internal/analysis"
	"github.com/fpang/transcript-insight/internal/auth"
	"github.com/fpang/transcript-insight/internal/chat"
	"github.com/fpang/transcript-insight/internal/config"
	"github.com/fpang/transcript-insight/internal/events"
	"github.com/fpang/transcript-insight/internal/execx"
	"github.com/fpang/transcript-insight/internal/jobs"
	"github.com/fpang/transcript-insight/internal/lambdaboot"
	"github.com/fpang/transcript-insight/internal/logging"
	"github.com/fpang/transcript-insight/internal/pipeline"
	"github.com/fpang/transcript-insight/internal/report"
	"github.com/fpang/transcript-insight/internal/store"
	"github.com/fpang/transcript-insight/internal/transcript"
	"github.com/fpang/transcript-insight/internal/youtube"
)

var coldStart = true

// Initialized at cold start.
var (
	cfg    *config.Config
	remote lambdaboot.Remote
)

// Event is the invocation payload.
type Event struct {
	Source               youtube.Selector `json:"source"`
	Languages            []string         `json:"languages,omitempty"`
	UseSpeechToText      bool             `json:"use_speech_to_text"`
	SpeechToTextLanguage string           `json:"speech_to_text_language,omitempty"`
	Workers              int              `json:"workers,omitempty"`
	StartFrom            int              `json:"start_from,omitempty"`
	Profile              string           `json:"profile,omitempty"`
	Analyze              bool             `json:"analyze"`
}

// Summary is the invocation result.
type Summary struct {
	RunID          string           `json:"run_id"`
	Transcripts    transcript.Tally `json:"transcripts"`
	Failures       []FailureSummary `json:"failures,omitempty"`
	Profile        string           `json:"profile,omitempty"`
	Records        int              `json:"records,omitempty"`
	Documents      []string         `json:"documents,omitempty"`
	AggregateError string           `json:"aggregate_error,omitempty"`
}

// FailureSummary is one failed video.
type FailureSummary struct {
	VideoID string               `json:"video_id"`
	Kind    transcript.ErrorKind `json:"kind"`
	Error   string               `json:"error,omitempty"`
}

func init() {
	initStart := time.Now()
	logging.Init()

	var err error
	cfg, err = config.Load("")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if os.Getenv("INSIGHT_DATA_DIR") == "" {
		cfg.DataDir = filepath.Join(os.TempDir(), "transcript-insight")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	remote, err = lambdaboot.InitRemote(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise AWS resources")
	}

	lambdaboot.LogRemote(lambdaboot.StartupLog("insight-lambda", initStart), cfg).
		Config("dataDir", cfg.DataDir).
		Config("sttBackend", cfg.STT.Backend).
		SSMParam("geminiApiKey", os.Getenv(auth.Gemini.ParamEnvVar)).
		SSMParam("openaiApiKey", os.Getenv(auth.OpenAI.ParamEnvVar)).
		Log()
}

func main() {
	lambda.Start(handler)
}

func handler(ctx context.Context, event Event) (*Summary, error) {
	if coldStart {
		coldStart = false
		log.Info().Str("function", "insight-lambda").Msg("Cold start, first invocation")
	}

	src, err := event.Source.Source()
	if err != nil {
		return nil, err
	}
	runCfg := eventConfig(cfg, event)
	runID := jobs.NewRunID("transcribe")
	log.Info().
		Str("run_id", runID).
		Str("source", string(src.Kind)).
		Bool("speech_to_text", event.UseSpeechToText).
		Bool("analyze", event.Analyze).
		Msg("Insight Lambda invoked")

	if err := os.MkdirAll(runCfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	fs, err := store.NewFileStore(runCfg.DataDir, remote.StoreOptions()...)
	if err != nil {
		return nil, err
	}

	runner := execx.OSRunner{}
	videos, err := youtube.NewLister(runner).List(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", src.Kind, err)
	}
	if name := src.SnapshotName(); name != "" {
		if _, err := fs.SaveVideos(name, videos); err != nil {
			log.Warn().Err(err).Msg("Failed to save video listing")
		}
	}

	gemini := chat.NewGeminiGenerator(chat.KeyFactory(remote.GeminiKey))
	if event.UseSpeechToText {
		cred := auth.OpenAI
		if runCfg.STT.Backend == "gemini" {
			cred = auth.Gemini
		}
		if _, err := auth.GetAPIKey(ctx, cred, remote.Params()); err != nil {
			return nil, err
		}
	}

	resolver := pipeline.NewTranscriptionResolver(pipeline.Setup{
		Store:        fs,
		Runner:       runner,
		STTBackend:   runCfg.STT.Backend,
		STTLanguage:  runCfg.STT.Language,
		STTModel:     runCfg.STT.Model,
		STTRate:      runCfg.STT.Rate,
		MaxBytes:     runCfg.STT.MaxBytes,
		AudioTimeout: runCfg.STT.Timeout,
		OpenAIKey:    remote.OpenAIKey,
		Gemini:       gemini.Client,
	})
	tracker := pipeline.NewTracker(runID, fs, remote.CheckpointSinks()...)
	scheduler := pipeline.NewScheduler(resolver, tracker, nil)

	rec := store.RunRecord{RunID: runID, Kind: "transcribe", Source: string(src.Kind), ItemCount: len(videos)}
	remote.StartRun(ctx, rec)

	outcomes := scheduler.Run(ctx, videos, pipeline.RunOptions{
		Workers:   runCfg.Workers,
		StartFrom: event.StartFrom,
		AllowSTT:  event.UseSpeechToText,
		Languages: runCfg.Languages,
	})
	tally := transcript.Count(outcomes)
	if _, err := fs.CleanupAudio(false); err != nil {
		log.Warn().Err(err).Msg("Audio cleanup failed")
	}

	rec.Successful, rec.Failed = tally.Successful, tally.Failed
	remote.FinishRun(ctx, rec, events.TranscriptionRunCompleted, events.RunCompleted{
		Source:            string(src.Kind),
		Total:             tally.Total,
		Successful:        tally.Successful,
		Failed:            tally.Failed,
		NeedsSpeechToText: tally.NeedsSpeechToText,
	})

	summary := &Summary{RunID: runID, Transcripts: tally, Failures: failures(outcomes)}
	if event.Analyze {
		if err := analyze(ctx, fs, gemini, runCfg, event.Profile, outcomes, summary); err != nil {
			return summary, err
		}
	}

	log.Info().
		Str("run_id", runID).
		Int("successful", tally.Successful).
		Int("failed", tally.Failed).
		Int("records", summary.Records).
		Msg("Insight Lambda complete")
	return summary, nil
}

// analyze runs the profile over the transcripts this invocation resolved.
func analyze(ctx context.Context, fs *store.FileStore, gen chat.Generator, runCfg *config.Config, profile string, outcomes []transcript.Outcome, summary *Summary) error {
	if profile == "" {
		profile = chat.ProfileContent
	}
	items := successfulItems(outcomes)
	summary.Profile = profile
	if len(items) == 0 {
		log.Info().Msg("No transcripts to analyse")
		return nil
	}
	if _, err := auth.GetAPIKey(ctx, auth.Gemini, remote.Params()); err != nil {
		return err
	}

	runID := jobs.NewRunID("analyze")
	rec := store.RunRecord{RunID: runID, Kind: "analyze", Source: profile, ItemCount: len(items)}
	remote.StartRun(ctx, rec)

	res, err := analysis.Run(ctx, gen, fs, items, analysis.Options{
		Profile:         profile,
		ExtractModel:    runCfg.Analysis.ExtractModel,
		AggregateModel:  runCfg.Analysis.AggregateModel,
		TranscriptChars: runCfg.Analysis.TranscriptChars,
		MaxDigestChars:  runCfg.Analysis.MaxDigestChars,
		Workers:         runCfg.Workers,
	})
	if err != nil {
		return err
	}
	summary.Records = res.Records
	if _, err := fs.WriteDocument(ctx, res.DocumentName, res.Document); err != nil {
		return fmt.Errorf("write %s: %w", res.DocumentName, err)
	}
	summary.Documents = append(summary.Documents, res.DocumentName)
	if len(res.Markdown) > 0 {
		if _, err := fs.WriteDocument(ctx, report.GuidelinesFile, res.Markdown); err != nil {
			log.Warn().Err(err).Msg("Failed to write guidelines")
		} else {
			summary.Documents = append(summary.Documents, report.GuidelinesFile)
		}
	}

	rec.Successful = res.Records
	if res.AggregateErr != nil {
		rec.Failed = 1
		summary.AggregateError = res.AggregateErr.Error()
	}
	remote.FinishRun(ctx, rec, events.AnalysisRunCompleted, events.RunCompleted{
		Source:     "transcripts",
		Profile:    res.Profile,
		Total:      res.Items,
		Successful: res.Items,
		Failed:     rec.Failed,
		Records:    res.Records,
	})
	return nil
}

// eventConfig overlays the event's settings on a copy of the base config.
func eventConfig(base *config.Config, e Event) *config.Config {
	c := *base
	if len(e.Languages) > 0 {
		c.Languages = e.Languages
	}
	if e.SpeechToTextLanguage != "" {
		c.STT.Language = e.SpeechToTextLanguage
	}
	if e.Workers > 0 {
		c.Workers = e.Workers
	}
	return &c
}

func successfulItems(outcomes []transcript.Outcome) []analysis.Item {
	var items []analysis.Item
	for _, o := range outcomes {
		if o.Success && o.Transcript != nil {
			items = append(items, analysis.Item{Video: o.Video, Transcript: o.Transcript})
		}
	}
	return items
}

func failures(outcomes []transcript.Outcome) []FailureSummary {
	var out []FailureSummary
	for _, o := range outcomes {
		if !o.Success {
			out = append(out, FailureSummary{VideoID: o.Video.ID, Kind: o.Kind, Error: o.Error})
		}
	}
	return out
}
