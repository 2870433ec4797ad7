// Package store persists pipeline state: per-video transcripts, extraction
// caches, acquired audio and the progress checkpoint.
//
// The primary tier is a directory tree keyed by video ID:
//
//	transcripts/{id}.json
//	audio/{id}.mp3
//	extraction_cache/{id}.json
//	transcription_progress.json
//
// An optional Mirror (S3) is consulted on local misses and receives a copy of
// every write, so a fresh machine or Lambda container can reuse completed work.
// An optional RunLedger (DynamoDB) mirrors checkpoint updates.
package store

import (
	"context"
	"time"
)

// Directory and file names inside the data directory.
const (
	TranscriptsDir = "transcripts"
	AudioDir       = "audio"
	ExtractionDir  = "extraction_cache"
	CheckpointFile = "transcription_progress.json"

	// DocumentsDir is the mirror prefix for output documents; locally they
	// sit at the data directory root.
	DocumentsDir = "documents"
)

// RunTTL is how long run ledger records are retained.
const RunTTL = 30 * 24 * time.Hour

// Mirror is a secondary blob tier for cached JSON documents.
// Get returns (nil, nil) when the key does not exist.
type Mirror interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
}

// CheckpointSink receives every checkpoint update for a run.
type CheckpointSink interface {
	PutCheckpoint(ctx context.Context, runID string, cp *Checkpoint) error
}

// Checkpoint is the persisted progress record for a transcription run.
// It is overwritten on every update and used only for human-driven resume.
type Checkpoint struct {
	CompletedCount int          `json:"completed_count" dynamodbav:"completedCount"`
	CompletedIDs   []string     `json:"completed_ids" dynamodbav:"completedIds"`
	Failed         []FailedItem `json:"failed" dynamodbav:"failed"`
}

// FailedItem identifies one failed video precisely enough to retry it.
type FailedItem struct {
	Index  int    `json:"index" dynamodbav:"index"`
	ItemID string `json:"item_id" dynamodbav:"itemId"`
	Kind   string `json:"kind,omitempty" dynamodbav:"kind,omitempty"`
	Error  string `json:"error" dynamodbav:"error"`
}

// RunRecord describes one pipeline run in the ledger (SK = META).
type RunRecord struct {
	RunID      string `json:"run_id" dynamodbav:"-"`
	Kind       string `json:"kind" dynamodbav:"kind"`
	Source     string `json:"source,omitempty" dynamodbav:"source,omitempty"`
	Status     string `json:"status" dynamodbav:"status"`
	ItemCount  int    `json:"item_count" dynamodbav:"itemCount"`
	Successful int    `json:"successful" dynamodbav:"successful"`
	Failed     int    `json:"failed" dynamodbav:"failed"`
	StartedAt  int64  `json:"started_at" dynamodbav:"startedAt"`
	FinishedAt int64  `json:"finished_at,omitempty" dynamodbav:"finishedAt,omitempty"`
}

// Run status values.
const (
	RunStatusRunning  = "running"
	RunStatusComplete = "complete"
	RunStatusFailed   = "failed"
)
