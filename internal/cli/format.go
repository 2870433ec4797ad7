// Package cli holds helpers shared by the command-line binaries.
package cli

import (
	"fmt"
	"time"
)

// FormatDurationShort renders d as M:SS, or H:MM:SS from one hour up.
// Sub-second remainders are truncated.
func FormatDurationShort(d time.Duration) string {
	d = d.Truncate(time.Second)
	h, m, s := int(d/time.Hour), int(d%time.Hour/time.Minute), int(d%time.Minute/time.Second)
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// FormatSeconds renders a listing duration in whole seconds; unknown (zero)
// durations render as "?".
func FormatSeconds(seconds int) string {
	if seconds <= 0 {
		return "?"
	}
	return FormatDurationShort(time.Duration(seconds) * time.Second)
}
