package pipeline

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/fpang/transcript-insight/internal/store"
	"github.com/fpang/transcript-insight/internal/transcript"
)

// CheckpointWriter persists the local checkpoint file.
type CheckpointWriter interface {
	SaveCheckpoint(cp *store.Checkpoint) error
}

// Tracker owns the progress checkpoint for one run. All updates go through
// its mutex, and each update is written before the lock is released, so
// concurrent completions can neither lose updates nor write out of order.
type Tracker struct {
	runID string
	file  CheckpointWriter
	sinks []store.CheckpointSink

	mu sync.Mutex
	cp store.Checkpoint
}

// NewTracker creates a tracker for a run. sinks receive every update after
// the local file (e.g. the DynamoDB ledger).
func NewTracker(runID string, file CheckpointWriter, sinks ...store.CheckpointSink) *Tracker {
	return &Tracker{
		runID: runID,
		file:  file,
		sinks: sinks,
		cp:    store.Checkpoint{CompletedIDs: []string{}, Failed: []store.FailedItem{}},
	}
}

// Record folds one finished item into the checkpoint and persists it.
func (t *Tracker) Record(ctx context.Context, index int, o transcript.Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if o.Success {
		t.cp.CompletedCount++
		t.cp.CompletedIDs = append(t.cp.CompletedIDs, o.Video.ID)
	} else {
		t.cp.Failed = append(t.cp.Failed, store.FailedItem{
			Index:  index,
			ItemID: o.Video.ID,
			Kind:   string(o.Kind),
			Error:  o.Error,
		})
	}
	t.flushLocked(ctx)
}

// Snapshot returns a copy of the current checkpoint.
func (t *Tracker) Snapshot() store.Checkpoint {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.copyLocked()
}

func (t *Tracker) copyLocked() store.Checkpoint {
	return store.Checkpoint{
		CompletedCount: t.cp.CompletedCount,
		CompletedIDs:   append([]string(nil), t.cp.CompletedIDs...),
		Failed:         append([]store.FailedItem(nil), t.cp.Failed...),
	}
}

func (t *Tracker) flushLocked(ctx context.Context) {
	snap := t.copyLocked()
	if t.file != nil {
		if err := t.file.SaveCheckpoint(&snap); err != nil {
			log.Warn().Err(err).Msg("Failed to write progress checkpoint")
		}
	}
	for _, sink := range t.sinks {
		if err := sink.PutCheckpoint(ctx, t.runID, &snap); err != nil {
			log.Warn().Err(err).Str("run_id", t.runID).Msg("Failed to mirror progress checkpoint")
		}
	}
}
