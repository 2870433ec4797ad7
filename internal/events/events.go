// Package events publishes run notifications to EventBridge.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	eventbridgetypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/rs/zerolog/log"
)

// Source is the EventBridge source of every event this package emits.
const Source = "transcript-insight"

// Detail types.
const (
	TranscriptionRunCompleted = "TranscriptionRunCompleted"
	AnalysisRunCompleted      = "AnalysisRunCompleted"
)

// PutEventsAPI is the subset of the EventBridge client used here.
type PutEventsAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// RunCompleted is the detail payload of a run notification.
type RunCompleted struct {
	RunID             string    `json:"run_id"`
	Source            string    `json:"source,omitempty"`
	Profile           string    `json:"profile,omitempty"`
	Total             int       `json:"total"`
	Successful        int       `json:"successful"`
	Failed            int       `json:"failed"`
	NeedsSpeechToText int       `json:"needs_speech_to_text,omitempty"`
	Records           int       `json:"records,omitempty"`
	FinishedAt        time.Time `json:"finished_at"`
}

// Emitter sends run notifications to one bus. A nil *Emitter is a no-op.
type Emitter struct {
	client  PutEventsAPI
	busName string
}

// NewEmitter creates an emitter for busName. It returns nil when either
// argument is empty, which disables notifications.
func NewEmitter(client PutEventsAPI, busName string) *Emitter {
	if client == nil || busName == "" {
		return nil
	}
	return &Emitter{client: client, busName: busName}
}

// EmitRunCompleted publishes one run-completed event of the given detail type.
func (e *Emitter) EmitRunCompleted(ctx context.Context, detailType string, event RunCompleted) error {
	if e == nil {
		return nil
	}
	detail, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", detailType, err)
	}

	input := &eventbridge.PutEventsInput{
		Entries: []eventbridgetypes.PutEventsRequestEntry{
			{
				EventBusName: aws.String(e.busName),
				Source:       aws.String(Source),
				DetailType:   aws.String(detailType),
				Detail:       aws.String(string(detail)),
			},
		},
	}

	result, err := e.client.PutEvents(ctx, input)
	if err != nil {
		log.Error().Err(err).Str("run_id", event.RunID).Str("detailType", detailType).Msg("EventBridge PutEvents failed")
		return fmt.Errorf("PutEvents: %w", err)
	}

	if result.FailedEntryCount > 0 {
		for i, entry := range result.Entries {
			if entry.ErrorCode != nil || entry.ErrorMessage != nil {
				log.Error().
					Int("index", i).
					Str("errorCode", aws.ToString(entry.ErrorCode)).
					Str("errorMessage", aws.ToString(entry.ErrorMessage)).
					Str("run_id", event.RunID).
					Msg("EventBridge PutEvents entry failed")
				return fmt.Errorf("PutEvents entry %d failed: %s - %s", i, aws.ToString(entry.ErrorCode), aws.ToString(entry.ErrorMessage))
			}
		}
	}

	log.Debug().Str("run_id", event.RunID).Str("detailType", detailType).Msg("Run notification emitted to EventBridge")
	return nil
}
