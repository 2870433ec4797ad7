// Package lambdaboot wires the optional AWS tier (S3 cache mirror, DynamoDB
// run ledger, EventBridge notifications, SSM secrets) for both the Lambda
// entry point and the CLIs.
package lambdaboot

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/fpang/transcript-insight/internal/auth"
	"github.com/fpang/transcript-insight/internal/config"
	"github.com/fpang/transcript-insight/internal/events"
	"github.com/fpang/transcript-insight/internal/logging"
	"github.com/fpang/transcript-insight/internal/store"
)

// AWSClients holds the core AWS SDK clients.
type AWSClients struct {
	Config aws.Config
	SSM    *ssm.Client
}

// InitAWS loads the default AWS config and returns it along with common clients.
func InitAWS(ctx context.Context) (AWSClients, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return AWSClients{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return AWSClients{
		Config: cfg,
		SSM:    ssm.NewFromConfig(cfg),
	}, nil
}

// Remote is the optional AWS tier. Every field may be nil.
type Remote struct {
	SSM    *ssm.Client
	Mirror *store.S3Mirror
	Ledger *store.DynamoLedger
	Events *events.Emitter
}

// Enabled reports whether cfg names any remote resource.
func Enabled(cfg *config.Config) bool {
	r := cfg.Remote
	return r.CacheBucket != "" || r.LedgerTable != "" || r.EventBus != ""
}

// InitRemote builds the clients for whichever remote resources cfg names.
// With none configured it returns an empty Remote without touching AWS.
func InitRemote(ctx context.Context, cfg *config.Config) (Remote, error) {
	if !Enabled(cfg) {
		return Remote{}, nil
	}
	clients, err := InitAWS(ctx)
	if err != nil {
		return Remote{}, err
	}
	return NewRemote(clients, cfg)
}

// NewRemote builds the remote tier from already-loaded clients.
func NewRemote(clients AWSClients, cfg *config.Config) (Remote, error) {
	r := Remote{SSM: clients.SSM}

	if bucket := cfg.Remote.CacheBucket; bucket != "" {
		mirror, err := store.NewS3Mirror(s3.NewFromConfig(clients.Config), bucket, cfg.Remote.CachePrefix)
		if err != nil {
			return Remote{}, err
		}
		r.Mirror = mirror
		log.Info().Str("bucket", bucket).Str("prefix", cfg.Remote.CachePrefix).Msg("S3 cache mirror enabled")
	}

	if table := cfg.Remote.LedgerTable; table != "" {
		r.Ledger = store.NewDynamoLedger(dynamodb.NewFromConfig(clients.Config), table)
		log.Info().Str("table", table).Msg("DynamoDB run ledger enabled")
	}

	if bus := cfg.Remote.EventBus; bus != "" {
		r.Events = events.NewEmitter(eventbridge.NewFromConfig(clients.Config), bus)
		log.Info().Str("bus", bus).Msg("EventBridge notifications enabled")
	}
	return r, nil
}

// StoreOptions returns the FileStore options for the configured tier.
func (r Remote) StoreOptions() []store.Option {
	if r.Mirror == nil {
		return nil
	}
	return []store.Option{store.WithMirror(r.Mirror)}
}

// CheckpointSinks returns the extra checkpoint destinations.
func (r Remote) CheckpointSinks() []store.CheckpointSink {
	if r.Ledger == nil {
		return nil
	}
	return []store.CheckpointSink{r.Ledger}
}

// Params returns the SSM client for key lookup, or nil when AWS is not in use.
func (r Remote) Params() auth.ParameterGetter {
	if r.SSM == nil {
		return nil
	}
	return r.SSM
}

// StartRun records the run in the ledger. Failures are logged, not returned.
func (r Remote) StartRun(ctx context.Context, rec store.RunRecord) {
	if r.Ledger == nil {
		return
	}
	rec.Status = store.RunStatusRunning
	if rec.StartedAt == 0 {
		rec.StartedAt = time.Now().Unix()
	}
	if err := r.Ledger.PutRun(ctx, &rec); err != nil {
		log.Warn().Err(err).Str("run_id", rec.RunID).Msg("Failed to record run start")
	}
}

// FinishRun updates the ledger and emits the run-completed notification.
func (r Remote) FinishRun(ctx context.Context, rec store.RunRecord, detailType string, event events.RunCompleted) {
	rec.FinishedAt = time.Now().Unix()
	if rec.Failed > 0 {
		rec.Status = store.RunStatusFailed
	} else {
		rec.Status = store.RunStatusComplete
	}
	if r.Ledger != nil {
		if err := r.Ledger.PutRun(ctx, &rec); err != nil {
			log.Warn().Err(err).Str("run_id", rec.RunID).Msg("Failed to record run completion")
		}
	}
	event.RunID = rec.RunID
	event.FinishedAt = time.Unix(rec.FinishedAt, 0).UTC()
	if err := r.Events.EmitRunCompleted(ctx, detailType, event); err != nil {
		log.Warn().Err(err).Str("run_id", rec.RunID).Msg("Failed to emit run notification")
	}
}

// StartupLog is a convenience wrapper for the run logger.
func StartupLog(name string, initStart time.Time) *logging.RunLogger {
	return logging.NewRunLogger(name).InitDuration(time.Since(initStart))
}

// LogRemote registers the configured remote resources on a run logger.
func LogRemote(l *logging.RunLogger, cfg *config.Config) *logging.RunLogger {
	return l.
		S3Bucket("cache", cfg.Remote.CacheBucket).
		DynamoTable("ledger", cfg.Remote.LedgerTable).
		EventBus("notifications", cfg.Remote.EventBus).
		SSMParam("gemini", logging.EnvOrDefault("INSIGHT_SSM_GEMINI_KEY", "")).
		SSMParam("openai", logging.EnvOrDefault("INSIGHT_SSM_OPENAI_KEY", ""))
}

// GeminiKey resolves the Gemini key from the environment or SSM.
func (r Remote) GeminiKey(ctx context.Context) (string, error) {
	return auth.GetAPIKey(ctx, auth.Gemini, r.Params())
}

// OpenAIKey resolves the OpenAI key from the environment or SSM.
func (r Remote) OpenAIKey(ctx context.Context) (string, error) {
	return auth.GetAPIKey(ctx, auth.OpenAI, r.Params())
}
