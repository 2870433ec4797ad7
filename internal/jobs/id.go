// Package jobs issues run identifiers.
package jobs

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewRunID returns a time-ordered run identifier such as
// "transcribe-20260102-150405-1b4e28ba".
func NewRunID(kind string) string {
	return NewRunIDAt(kind, time.Now())
}

// NewRunIDAt is NewRunID with an explicit clock reading.
func NewRunIDAt(kind string, now time.Time) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return kind + "-" + now.UTC().Format("20060102-150405") + "-" + id[:8]
}

// Kind returns the prefix a run ID was created with.
func Kind(runID string) string {
	if i := strings.IndexByte(runID, '-'); i > 0 {
		return runID[:i]
	}
	return ""
}
