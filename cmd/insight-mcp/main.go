// insight-mcp serves the transcript cache over the Model Context Protocol
// on stdio.
//
// Tools: list_videos, get_transcript, run_progress. Logs go to stderr so
// stdout stays reserved for the protocol.
package main

import (
	"context"
	"os"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/transcript-insight/internal/chat"
	"github.com/fpang/transcript-insight/internal/cli"
	"github.com/fpang/transcript-insight/internal/config"
	"github.com/fpang/transcript-insight/internal/execx"
	"github.com/fpang/transcript-insight/internal/lambdaboot"
	"github.com/fpang/transcript-insight/internal/logging"
	"github.com/fpang/transcript-insight/internal/metrics"
	"github.com/fpang/transcript-insight/internal/pipeline"
	"github.com/fpang/transcript-insight/internal/store"
	"github.com/fpang/transcript-insight/internal/youtube"
)

var version = "dev"

var configFlag string

var rootCmd = &cobra.Command{
	Use:   "insight-mcp",
	Short: "Serve video listings, transcripts and run progress over MCP (stdio)",
	Args:  cobra.NoArgs,
	Run:   runMain,
}

func init() {
	rootCmd.Flags().StringVar(&configFlag, "config", "", "YAML config file (default insight.yaml, or INSIGHT_CONFIG)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) {
	initStart := time.Now()
	logging.InitWriter(os.Stderr)
	if os.Getenv("INSIGHT_EMF") == "1" {
		metrics.SetOutput(os.Stderr)
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(configFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	remote, err := lambdaboot.InitRemote(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise AWS resources")
	}

	dataDir := cli.EnsureDataDir(cfg.DataDir)
	fs, err := store.NewFileStore(dataDir, remote.StoreOptions()...)
	if err != nil {
		log.Fatal().Err(err).Str("path", dataDir).Msg("Failed to open data directory")
	}

	runner := execx.OSRunner{}
	gemini := chat.NewGeminiGenerator(chat.KeyFactory(remote.GeminiKey))
	tools := &toolServer{
		store:  fs,
		lister: youtube.NewLister(runner),
		resolver: pipeline.NewTranscriptionResolver(pipeline.Setup{
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
		}),
		languages: cfg.Languages,
	}
	if remote.Ledger != nil {
		tools.ledger = remote.Ledger
	}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "transcript-insight",
		Version: version,
	}, nil)
	tools.register(server)

	lambdaboot.LogRemote(lambdaboot.StartupLog("insight-mcp", initStart), cfg).
		Config("dataDir", dataDir).
		Config("version", version).
		Log()

	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		log.Fatal().Err(err).Msg("MCP server stopped")
	}
}
