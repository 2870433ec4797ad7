package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fpang/transcript-insight/internal/chat"
	"github.com/fpang/transcript-insight/internal/transcript"
)

// maxListedFailures caps the failure list printed after a run.
const maxListedFailures = 10

// Outcome prints the one-line progress entry for a resolved item.
func Outcome(w io.Writer, position, total int, o transcript.Outcome) {
	switch {
	case o.Success:
		note := string(o.Transcript.Source)
		if o.Cached {
			note = "cached"
		}
		fmt.Fprintf(w, "  [%d/%d] ✓ %s (%s, %d words)\n", position, total, o.Video.ID, note, o.Transcript.WordCount())
	case o.NeedsSpeechToText:
		fmt.Fprintf(w, "  [%d/%d] - %s: no native transcript\n", position, total, o.Video.ID)
	default:
		fmt.Fprintf(w, "  [%d/%d] ✗ %s: %s\n", position, total, o.Video.ID, o.Error)
	}
}

// RunSummary prints totals for a transcription run. When items still need
// speech-to-text and it was not enabled, a rerun hint is printed.
func RunSummary(w io.Writer, outcomes []transcript.Outcome, allowSTT bool) transcript.Tally {
	t := transcript.Count(outcomes)
	fmt.Fprintln(w, "\nTranscription complete:")
	fmt.Fprintf(w, "  - Success: %d/%d (native %d, speech-to-text %d)\n", t.Successful, t.Total, t.Native, t.SpeechToText)
	fmt.Fprintf(w, "  - Failed: %d\n", t.Failed-t.NeedsSpeechToText)
	fmt.Fprintf(w, "  - Needs speech-to-text: %d\n", t.NeedsSpeechToText)

	var failed []transcript.Outcome
	for _, o := range outcomes {
		if !o.Success && !o.NeedsSpeechToText {
			failed = append(failed, o)
		}
	}
	if len(failed) > 0 {
		fmt.Fprintln(w, "\nFailed videos:")
		for i, o := range failed {
			if i == maxListedFailures {
				fmt.Fprintf(w, "  ... and %d more\n", len(failed)-maxListedFailures)
				break
			}
			fmt.Fprintf(w, "  [%d] %s (%s): %s\n", o.Video.Index, o.Video.ID, o.Kind, o.Error)
		}
	}

	if t.NeedsSpeechToText > 0 && !allowSTT {
		fmt.Fprintf(w, "\n%d videos have no native transcript. Rerun with --use-whisper to transcribe their audio.\n", t.NeedsSpeechToText)
	}
	return t
}

// VideoAnalysis prints one content analysis.
func VideoAnalysis(w io.Writer, a chat.VideoAnalysis) {
	fmt.Fprintf(w, "\n== %s ==\n", a.VideoID)
	fmt.Fprintf(w, "%s\n", a.TitleGuess)
	fmt.Fprintf(w, "Type: %s | Duration: %s | WPM: %.0f\n", a.VideoType, a.Duration, a.WordsPerMinute)

	fmt.Fprintln(w, "\nHook:")
	fmt.Fprintf(w, "  %q\n", a.HookText)
	fmt.Fprintf(w, "  Technique: %s (%ss)\n", a.HookTechnique, formatNumber(a.HookDurationSeconds))

	fmt.Fprintln(w, "\nStructure:")
	fmt.Fprintf(w, "  Intro: %s\n", a.IntroTechnique)
	fmt.Fprintf(w, "  Sections: %s\n", strings.Join(a.MainSections, ", "))
	fmt.Fprintf(w, "  Outro: %s\n", a.OutroTechnique)

	bullets(w, "Humor:", a.HumorExamples, 3)
	bullets(w, "Analogies:", a.AnalogiesUsed, 3)

	fmt.Fprintln(w, "\nTechnical Style:")
	fmt.Fprintf(w, "  Code: %s\n", a.CodeExplanationStyle)
	fmt.Fprintf(w, "  Simplification: %s\n", a.ComplexityManagement)
}

// Startups prints the pitches found in one episode.
func Startups(w io.Writer, v transcript.Video, startups []chat.Startup) {
	fmt.Fprintf(w, "  %s: %d startups\n", v.DisplayTitle(), len(startups))
	for _, s := range startups {
		deal := "no deal"
		if s.DealMade {
			deal = "deal"
		}
		fmt.Fprintf(w, "    - %s (%s) %s\n", s.Name, s.Industry, deal)
	}
}

// StartupTotals prints the deal ratio across all extracted startups.
func StartupTotals(w io.Writer, startups []chat.Startup) {
	if len(startups) == 0 {
		fmt.Fprintln(w, "No startups extracted!")
		return
	}
	deals := 0
	for _, s := range startups {
		if s.DealMade {
			deals++
		}
	}
	fmt.Fprintf(w, "\nTotal startups extracted: %d\n", len(startups))
	fmt.Fprintf(w, "Deals made: %d/%d\n", deals, len(startups))
}

func bullets(w io.Writer, heading string, items []string, n int) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\n", heading)
	for i, it := range items {
		if i == n {
			break
		}
		fmt.Fprintf(w, "  - %s\n", it)
	}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
