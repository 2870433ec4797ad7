// Package transcript defines the work items and transcript records that flow
// through the transcription pipeline, plus the derived metrics (duration,
// pacing, hook text) the analysis prompts depend on.
package transcript

import (
	"fmt"
	"sort"
	"strings"
)

// Source identifies how a transcript was produced.
type Source string

const (
	// SourceNative is a creator- or platform-provided caption track.
	SourceNative Source = "youtube"
	// SourceSpeechToText is a transcript produced from downloaded audio.
	SourceSpeechToText Source = "whisper"
)

// HookWindowSeconds is how much of the opening is treated as the hook.
const HookWindowSeconds = 20.0

// hookFallbackWords approximates HookWindowSeconds at ~150 WPM when a
// transcript carries no timing information.
const hookFallbackWords = 50

// Video is one unit of work. It is immutable once listed.
type Video struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	URL           string `json:"url"`
	ThumbnailURL  string `json:"thumbnail_url,omitempty"`
	Duration      int    `json:"duration,omitempty"` // seconds
	PublishedAt   string `json:"published_at,omitempty"`
	ChannelID     string `json:"channel_id,omitempty"`
	ChannelTitle  string `json:"channel_title,omitempty"`
	EpisodeNumber int    `json:"episode_number,omitempty"`

	// Index is the ordinal position in the listing, used for resume.
	Index int `json:"index"`
}

// DisplayTitle returns the title, or the ID when the listing had none.
func (v Video) DisplayTitle() string {
	if v.Title != "" {
		return v.Title
	}
	return v.ID
}

// Segment is a single timed caption line.
type Segment struct {
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Text     string  `json:"text"`
}

// Transcript is produced once per video and never mutated afterwards.
type Transcript struct {
	VideoID  string    `json:"video_id"`
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Segments []Segment `json:"segments,omitempty"`
	Source   Source    `json:"source"`
}

// New builds a transcript from segments, ordering them by start time and
// deriving Text as their whitespace-joined concatenation. When there are no
// segments, fallbackText is used verbatim.
func New(videoID, language string, source Source, segments []Segment, fallbackText string) *Transcript {
	t := &Transcript{
		VideoID:  videoID,
		Language: language,
		Source:   source,
	}
	cleaned := make([]Segment, 0, len(segments))
	for _, s := range segments {
		s.Text = strings.TrimSpace(s.Text)
		if s.Text == "" {
			continue
		}
		cleaned = append(cleaned, s)
	}
	if len(cleaned) == 0 {
		t.Text = strings.TrimSpace(fallbackText)
		return t
	}
	sort.SliceStable(cleaned, func(i, j int) bool { return cleaned[i].Start < cleaned[j].Start })
	t.Segments = cleaned
	t.Text = JoinSegments(cleaned)
	return t
}

// JoinSegments concatenates segment texts with single spaces.
func JoinSegments(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		parts = append(parts, s.Text)
	}
	return strings.Join(parts, " ")
}

// Validate checks the segment ordering invariant.
func (t *Transcript) Validate() error {
	if t.VideoID == "" {
		return fmt.Errorf("transcript has no video id")
	}
	for i := 1; i < len(t.Segments); i++ {
		if t.Segments[i-1].Start > t.Segments[i].Start {
			return fmt.Errorf("segment %d starts at %.3f before segment %d at %.3f",
				i, t.Segments[i].Start, i-1, t.Segments[i-1].Start)
		}
	}
	return nil
}

// DurationSeconds is the end of the last segment, or 0 without segments.
func (t *Transcript) DurationSeconds() float64 {
	if len(t.Segments) == 0 {
		return 0
	}
	last := t.Segments[len(t.Segments)-1]
	return last.Start + last.Duration
}

// DurationFormatted renders the duration as M:SS.
func (t *Transcript) DurationFormatted() string {
	total := int(t.DurationSeconds())
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// WordCount counts whitespace-separated words in Text.
func (t *Transcript) WordCount() int {
	return len(strings.Fields(t.Text))
}

// WordsPerMinute is the average speaking pace; 0 when the duration is unknown.
func (t *Transcript) WordsPerMinute() float64 {
	d := t.DurationSeconds()
	if d == 0 {
		return 0
	}
	return float64(t.WordCount()) / (d / 60)
}

// HookText returns the text spoken in the first maxSeconds.
func (t *Transcript) HookText(maxSeconds float64) string {
	if len(t.Segments) == 0 {
		words := strings.Fields(t.Text)
		if len(words) > hookFallbackWords {
			words = words[:hookFallbackWords]
		}
		return strings.Join(words, " ")
	}
	var parts []string
	for _, s := range t.Segments {
		if s.Start >= maxSeconds {
			break
		}
		parts = append(parts, s.Text)
	}
	return strings.Join(parts, " ")
}
