package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/transcript-insight/internal/auth"
	"github.com/fpang/transcript-insight/internal/chat"
	"github.com/fpang/transcript-insight/internal/cli"
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

// CLI flags
var (
	videoFlag           string
	videosFlag          []string
	channelFlag         string
	playlistFlag        string
	searchFlag          string
	maxResultsFlag      int
	outputDirFlag       string
	languagesFlag       []string
	useWhisperFlag      bool
	whisperLanguageFlag string
	sttBackendFlag      string
	workersFlag         int
	startFromFlag       int
	listOnlyFlag        bool
	cleanupAudioFlag    bool
	cleanupAllFlag      bool
	configFlag          string
)

// rootCmd is the main Cobra command for the yt-transcribe CLI.
var rootCmd = &cobra.Command{
	Use:   "yt-transcribe",
	Short: "Fetch or generate transcripts for YouTube videos",
	Long: `yt-transcribe lists videos from a channel, playlist, search or explicit IDs
and resolves a transcript for each one. Cached transcripts are reused, native
captions are fetched when available, and with --use-whisper the remaining videos
are downloaded as audio and sent to a speech-to-text service.

Progress is checkpointed after every video; rerun with --start-from to resume.

Examples:
  yt-transcribe --channel https://www.youtube.com/@Fireship --max-results 50
  yt-transcribe --video dQw4w9WgXcQ --languages en
  yt-transcribe --playlist PL123 --use-whisper --whisper-language ar --workers 4
  yt-transcribe --search "shark tank egypt" --list-only`,
	Args: cobra.NoArgs,
	Run:  runMain,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&videoFlag, "video", "", "Single video ID or URL")
	f.StringSliceVar(&videosFlag, "videos", nil, "Video IDs or URLs (repeatable or comma-separated)")
	f.StringVar(&channelFlag, "channel", "", "Channel URL")
	f.StringVar(&playlistFlag, "playlist", "", "Playlist URL or ID")
	f.StringVar(&searchFlag, "search", "", "Search query")
	f.IntVar(&maxResultsFlag, "max-results", 10, "Maximum videos to list for channel, playlist and search sources")
	f.StringVar(&outputDirFlag, "output-dir", "data", "Data directory for transcripts, audio and progress")
	f.StringSliceVar(&languagesFlag, "languages", []string{"en", "ar"}, "Caption languages in preference order")
	f.BoolVar(&useWhisperFlag, "use-whisper", false, "Transcribe videos without native captions from their audio")
	f.StringVar(&whisperLanguageFlag, "whisper-language", "en", "Language hint for speech-to-text")
	f.StringVar(&sttBackendFlag, "stt-backend", "whisper", "Speech-to-text backend (whisper or gemini)")
	f.IntVar(&workersFlag, "workers", 3, "Parallel audio downloads and transcriptions")
	f.IntVar(&startFromFlag, "start-from", 0, "Skip videos before this listing index")
	f.BoolVar(&listOnlyFlag, "list-only", false, "List videos and save the listing without transcribing")
	f.BoolVar(&cleanupAudioFlag, "cleanup-audio", false, "Delete audio files whose transcript exists after the run")
	f.BoolVar(&cleanupAllFlag, "cleanup-all", false, "With --cleanup-audio, also delete audio of failed videos")
	f.StringVar(&configFlag, "config", "", "YAML config file (default insight.yaml, or INSIGHT_CONFIG)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runMain is the main execution logic called by Cobra.
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

	src, err := sourceFromFlags()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid source")
	}

	runID := jobs.NewRunID("transcribe")
	remote, err := lambdaboot.InitRemote(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise AWS resources")
	}

	dataDir := cli.EnsureDataDir(cfg.DataDir)
	fs, err := store.NewFileStore(dataDir, remote.StoreOptions()...)
	if err != nil {
		log.Fatal().Err(err).Str("path", dataDir).Msg("Failed to open data directory")
	}

	lambdaboot.LogRemote(lambdaboot.StartupLog("yt-transcribe", initStart), cfg).
		RunID(runID).
		Config("dataDir", dataDir).
		Config("source", string(src.Kind)).
		Config("languages", strings.Join(cfg.Languages, ",")).
		Config("workers", fmt.Sprint(cfg.Workers)).
		Config("sttBackend", cfg.STT.Backend).
		Feature("speechToText", useWhisperFlag).
		Feature("listOnly", listOnlyFlag).
		Log()

	runner := execx.OSRunner{}
	videos, err := youtube.NewLister(runner).List(ctx, src)
	if err != nil {
		log.Fatal().Err(err).Str("source", string(src.Kind)).Msg("Failed to list videos")
	}
	log.Info().Int("count", len(videos)).Msg("Videos listed")

	if name := src.SnapshotName(); name != "" {
		path, err := fs.SaveVideos(name, videos)
		if err != nil {
			log.Error().Err(err).Msg("Failed to save video listing")
		} else {
			log.Info().Str("path", path).Msg("Video listing saved")
		}
	}

	if listOnlyFlag {
		printListing(videos)
		return
	}

	gemini := chat.NewGeminiGenerator(chat.KeyFactory(remote.GeminiKey))
	if useWhisperFlag {
		// Fail before any download when the backend's key is missing.
		if cfg.STT.Backend == "gemini" {
			cli.RequireAPIKey(ctx, auth.Gemini, remote.Params())
		} else {
			cli.RequireAPIKey(ctx, auth.OpenAI, remote.Params())
		}
	}

	resolver := pipeline.NewTranscriptionResolver(pipeline.Setup{
		Store:        fs,
		Runner:       runner,
		STTBackend:   cfg.STT.Backend,
		STTLanguage:  cfg.STT.Language,
		STTModel:     cfg.STT.Model,
		STTRate:      cfg.STT.Rate,
		MaxBytes:     cfg.STT.MaxBytes,
		AudioTimeout: cfg.STT.Timeout,
		OpenAIKey:    remote.OpenAIKey,
		Gemini:       gemini.Client,
	})
	tracker := pipeline.NewTracker(runID, fs, remote.CheckpointSinks()...)
	scheduler := pipeline.NewScheduler(resolver, tracker, func(pos, total int, o transcript.Outcome) {
		report.Outcome(os.Stdout, pos+1, total, o)
	})

	rec := store.RunRecord{RunID: runID, Kind: "transcribe", Source: string(src.Kind), ItemCount: len(videos)}
	remote.StartRun(ctx, rec)

	fmt.Printf("\nTranscribing %d videos (starting at %d)\n", len(videos), startFromFlag)
	started := time.Now()
	outcomes := scheduler.Run(ctx, videos, pipeline.RunOptions{
		Workers:   cfg.Workers,
		StartFrom: startFromFlag,
		AllowSTT:  useWhisperFlag,
		Languages: cfg.Languages,
	})
	tally := report.RunSummary(os.Stdout, outcomes, useWhisperFlag)
	fmt.Printf("Elapsed: %s\n", cli.FormatDurationShort(time.Since(started)))

	if cleanupAudioFlag {
		n, err := fs.CleanupAudio(!cleanupAllFlag)
		if err != nil {
			log.Error().Err(err).Msg("Audio cleanup failed")
		} else {
			fmt.Printf("Deleted %d audio files\n", n)
		}
	}

	rec.Successful, rec.Failed = tally.Successful, tally.Failed
	remote.FinishRun(ctx, rec, events.TranscriptionRunCompleted, events.RunCompleted{
		Source:            string(src.Kind),
		Total:             tally.Total,
		Successful:        tally.Successful,
		Failed:            tally.Failed,
		NeedsSpeechToText: tally.NeedsSpeechToText,
	})

	if tally.Failed > 0 {
		os.Exit(1)
	}
}

// applyFlags lets explicitly set flags override the file and environment.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("output-dir") {
		cfg.DataDir = outputDirFlag
	}
	if f.Changed("languages") {
		cfg.Languages = languagesFlag
	}
	if f.Changed("workers") {
		cfg.Workers = workersFlag
	}
	if f.Changed("whisper-language") {
		cfg.STT.Language = whisperLanguageFlag
	}
	if f.Changed("stt-backend") {
		cfg.STT.Backend = sttBackendFlag
	}
}

// sourceFromFlags requires exactly one source flag.
func sourceFromFlags() (youtube.Source, error) {
	return youtube.Selector{
		Video:      videoFlag,
		Videos:     videosFlag,
		Channel:    channelFlag,
		Playlist:   playlistFlag,
		Search:     searchFlag,
		MaxResults: maxResultsFlag,
	}.Source()
}

func printListing(videos []transcript.Video) {
	fmt.Println()
	for _, v := range videos {
		fmt.Printf("%4d  %s  %6s  %s\n", v.Index, v.ID, cli.FormatSeconds(v.Duration), v.DisplayTitle())
	}
	fmt.Printf("\n%d videos\n", len(videos))
}
