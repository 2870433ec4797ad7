package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/transcript-insight/internal/analysis"
	"github.com/fpang/transcript-insight/internal/auth"
	"github.com/fpang/transcript-insight/internal/chat"
	"github.com/fpang/transcript-insight/internal/cli"
	"github.com/fpang/transcript-insight/internal/config"
	"github.com/fpang/transcript-insight/internal/events"
	"github.com/fpang/transcript-insight/internal/jobs"
	"github.com/fpang/transcript-insight/internal/lambdaboot"
	"github.com/fpang/transcript-insight/internal/logging"
	"github.com/fpang/transcript-insight/internal/report"
	"github.com/fpang/transcript-insight/internal/store"
)

// CLI flags
var (
	dataDirFlag        string
	profileFlag        string
	limitFlag          int
	modelFlag          string
	aggregateModelFlag string
	maxDigestCharsFlag int
	skipAggregateFlag  bool
	workersFlag        int
	configFlag         string
)

var rootCmd = &cobra.Command{
	Use:   "transcript-analyze",
	Short: "Extract structured records from cached transcripts and synthesize guidelines",
	Long: `transcript-analyze reads every transcript cached by yt-transcribe, asks Gemini
for structured records per video and then synthesizes one guidelines document
from all of them.

Profiles:
  content   per-video style analysis, aggregated into content creation guidelines
  startups  startup pitches per episode, aggregated into pitch guidelines

Extractions are cached per video, so reruns only pay for new transcripts.

Examples:
  transcript-analyze --profile content
  transcript-analyze --profile startups --data-dir data/shark-tank --limit 5
  transcript-analyze --skip-aggregate`,
	Args: cobra.NoArgs,
	Run:  runMain,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&dataDirFlag, "data-dir", "data", "Data directory written by yt-transcribe")
	f.StringVar(&profileFlag, "profile", chat.ProfileContent, "Extraction profile (content or startups)")
	f.IntVar(&limitFlag, "limit", 0, "Analyse at most this many transcripts (0 for all)")
	f.StringVar(&modelFlag, "model", "", "Gemini model for per-video extraction")
	f.StringVar(&aggregateModelFlag, "aggregate-model", "", "Gemini model for aggregation")
	f.IntVar(&maxDigestCharsFlag, "max-digest-chars", 0, "Character budget for the aggregation digest (0 for unlimited)")
	f.BoolVar(&skipAggregateFlag, "skip-aggregate", false, "Only extract per-video records")
	f.IntVar(&workersFlag, "workers", 3, "Parallel extraction requests")
	f.StringVar(&configFlag, "config", "", "YAML config file (default insight.yaml, or INSIGHT_CONFIG)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) {
	initStart := time.Now()
	logging.Init()
	ctx := context.Background()

	cfg, err := config.Load(configFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	runID := jobs.NewRunID("analyze")
	remote, err := lambdaboot.InitRemote(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise AWS resources")
	}

	dataDir := cli.EnsureDataDir(cfg.DataDir)
	fs, err := store.NewFileStore(dataDir, remote.StoreOptions()...)
	if err != nil {
		log.Fatal().Err(err).Str("path", dataDir).Msg("Failed to open data directory")
	}

	lambdaboot.LogRemote(lambdaboot.StartupLog("transcript-analyze", initStart), cfg).
		RunID(runID).
		Config("dataDir", dataDir).
		Config("profile", profileFlag).
		Config("extractModel", cfg.Analysis.ExtractModel).
		Config("aggregateModel", cfg.Analysis.AggregateModel).
		Config("workers", fmt.Sprint(cfg.Workers)).
		Feature("skipAggregate", skipAggregateFlag).
		Log()

	transcripts, err := fs.LoadAllTranscripts()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load transcripts")
	}
	if len(transcripts) == 0 {
		log.Warn().Str("path", dataDir).Msg("No transcripts found; run yt-transcribe first")
		return
	}
	items := analysis.Items(transcripts, fs.LoadKnownVideos(), limitFlag)

	cli.RequireAPIKey(ctx, auth.Gemini, remote.Params())
	gemini := chat.NewGeminiGenerator(chat.KeyFactory(remote.GeminiKey))
	client, err := gemini.Client(ctx)
	if err != nil {
		cli.HandleCredentialError(err)
	}
	if err := auth.ValidateAPIKey(ctx, client, cfg.Analysis.ExtractModel); err != nil {
		cli.HandleCredentialError(err)
	}

	rec := store.RunRecord{RunID: runID, Kind: "analyze", Source: profileFlag, ItemCount: len(items)}
	remote.StartRun(ctx, rec)

	fmt.Printf("\nAnalysing %d transcripts with profile %q\n", len(items), profileFlag)
	started := time.Now()
	res, err := analysis.Run(ctx, gemini, fs, items, analysis.Options{
		Profile:         profileFlag,
		ExtractModel:    cfg.Analysis.ExtractModel,
		AggregateModel:  cfg.Analysis.AggregateModel,
		TranscriptChars: cfg.Analysis.TranscriptChars,
		MaxDigestChars:  cfg.Analysis.MaxDigestChars,
		SkipAggregate:   skipAggregateFlag,
		Workers:         cfg.Workers,
		Out:             os.Stdout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Analysis failed")
	}

	path, err := fs.WriteDocument(ctx, res.DocumentName, res.Document)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to write results")
	}
	fmt.Printf("\nResults: %s\n", path)
	if len(res.Markdown) > 0 {
		mdPath, err := fs.WriteDocument(ctx, report.GuidelinesFile, res.Markdown)
		if err != nil {
			log.Error().Err(err).Msg("Failed to write guidelines")
		} else {
			fmt.Printf("Guidelines: %s\n", mdPath)
		}
	}
	fmt.Printf("Records: %d from %d transcripts in %s\n", res.Records, res.Items, cli.FormatDurationShort(time.Since(started)))

	rec.Successful = res.Records
	if res.AggregateErr != nil {
		rec.Failed = 1
	}
	remote.FinishRun(ctx, rec, events.AnalysisRunCompleted, events.RunCompleted{
		Source:     "transcripts",
		Profile:    res.Profile,
		Total:      res.Items,
		Successful: res.Items,
		Failed:     rec.Failed,
		Records:    res.Records,
	})

	if res.AggregateErr != nil {
		os.Exit(1)
	}
}

// applyFlags lets explicitly set flags override the file and environment.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("data-dir") {
		cfg.DataDir = dataDirFlag
	}
	if f.Changed("model") {
		cfg.Analysis.ExtractModel = modelFlag
	}
	if f.Changed("aggregate-model") {
		cfg.Analysis.AggregateModel = aggregateModelFlag
	}
	if f.Changed("max-digest-chars") {
		cfg.Analysis.MaxDigestChars = maxDigestCharsFlag
	}
	if f.Changed("workers") {
		cfg.Workers = workersFlag
	}
}
