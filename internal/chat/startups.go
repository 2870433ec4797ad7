package chat

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/fpang/transcript-insight/internal/assets"
	"github.com/fpang/transcript-insight/internal/transcript"
)

// ProfileStartups extracts investment-show pitches from each episode.
const ProfileStartups = "startups"

// startupTranscriptChars fits a full hour-long episode.
const startupTranscriptChars = 120000

// Startup is one pitch seen in an episode. Unknown amounts are null.
type Startup struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	NameAr         string   `json:"name_ar,omitempty"`
	EpisodeNumber  int      `json:"episode_number,omitempty"`
	Description    string   `json:"description"`
	Industry       string   `json:"industry"`
	AskAmount      *float64 `json:"ask_amount"`
	AskEquity      *float64 `json:"ask_equity"`
	Valuation      *float64 `json:"valuation"`
	DealMade       bool     `json:"deal_made"`
	DealAmount     *float64 `json:"deal_amount"`
	DealEquity     *float64 `json:"deal_equity"`
	Sharks         []string `json:"sharks"`
	Founders       []string `json:"founders"`
	Website        string   `json:"website,omitempty"`
	TimestampStart string   `json:"timestamp_start,omitempty"`
	VideoID        string   `json:"video_id"`
	VideoURL       string   `json:"video_url"`
}

// StartupGuidelines summarizes what the investors reward.
type StartupGuidelines struct {
	TopIndustries    TextList        `json:"top_industries"`
	TypicalAsks      Text            `json:"typical_asks"`
	DealPatterns     TextList        `json:"deal_patterns"`
	SharkPreferences map[string]Text `json:"shark_preferences"`
	PitchAdvice      TextList        `json:"pitch_advice"`
	KeyTakeaways     TextList        `json:"key_takeaways"`
}

// StartupSchema returns the extraction schema for the startups profile.
// transcriptChars <= 0 keeps whole episodes.
func StartupSchema(transcriptChars int) Schema[Startup] {
	if transcriptChars <= 0 {
		transcriptChars = startupTranscriptChars
	}
	return Schema[Startup]{
		Profile:         ProfileStartups,
		System:          assets.StartupsSystemPrompt,
		ContainerKeys:   []string{"startups", "pitches"},
		Temperature:     0.1,
		TranscriptChars: transcriptChars,
		BuildPrompt: func(v transcript.Video, _ *transcript.Transcript, text string) (string, error) {
			return assets.RenderStartupsExtract(assets.ExtractData{
				Title:      v.DisplayTitle(),
				URL:        v.URL,
				Transcript: text,
			})
		},
		Normalize: normalizeStartup,
	}
}

func normalizeStartup(v transcript.Video, _ *transcript.Transcript, index int, raw map[string]any) (Startup, bool) {
	name, nameAr := startupName(raw)
	if name == "" {
		return Startup{}, false
	}

	s := Startup{
		ID:             StartupID(v.ID, name, index),
		Name:           name,
		NameAr:         nameAr,
		EpisodeNumber:  v.EpisodeNumber,
		Description:    stringField(raw, "description"),
		Industry:       strings.ToLower(stringField(raw, "industry")),
		AskAmount:      optionalNumber(raw, "ask_amount"),
		AskEquity:      optionalNumber(raw, "ask_equity"),
		DealMade:       boolField(raw, "deal_made"),
		DealAmount:     optionalNumber(raw, "deal_amount"),
		DealEquity:     optionalNumber(raw, "deal_equity"),
		Sharks:         listField(raw, "sharks"),
		Founders:       listField(raw, "founders"),
		Website:        stringField(raw, "website"),
		TimestampStart: stringField(raw, "timestamp_start"),
		VideoID:        v.ID,
		VideoURL:       v.URL,
	}
	if s.Industry == "" {
		s.Industry = "other"
	}
	if s.EpisodeNumber == 0 {
		if n, ok := numberField(raw, "episode_number"); ok {
			s.EpisodeNumber = int(n)
		}
	}
	if s.AskAmount != nil && s.AskEquity != nil && *s.AskAmount > 0 && *s.AskEquity > 0 {
		val := *s.AskAmount / *s.AskEquity * 100
		s.Valuation = &val
	}
	return s, true
}

// startupName reads "name" as either a plain string or a bilingual object.
func startupName(raw map[string]any) (name, nameAr string) {
	nameAr = stringField(raw, "name_ar")
	switch n := raw["name"].(type) {
	case string:
		name = strings.TrimSpace(n)
	case map[string]any:
		name = firstNonEmpty(stringField(n, "english"), stringField(n, "en"))
		if ar := firstNonEmpty(stringField(n, "arabic"), stringField(n, "ar")); ar != "" {
			nameAr = ar
		}
	}
	if name == "" {
		name = nameAr
	}
	return name, nameAr
}

// StartupID is the first 12 hex chars of md5("{videoID}_{name}_{index}").
func StartupID(videoID, name string, index int) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s_%s_%d", videoID, name, index)))
	return hex.EncodeToString(sum[:])[:12]
}

func optionalNumber(raw map[string]any, key string) *float64 {
	if f, ok := numberField(raw, key); ok {
		return &f
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// StartupSynthesis returns the aggregation spec for the startups profile.
func StartupSynthesis() Synthesis[Startup, StartupGuidelines] {
	return Synthesis[Startup, StartupGuidelines]{
		Profile:     ProfileStartups,
		System:      assets.StartupsSystemPrompt,
		Temperature: 0.4,
		WrapperKeys: []string{"guidelines"},
		Entry:       startupDigestEntry,
		BuildPrompt: func(digest string, count int) (string, error) {
			return assets.RenderStartupsAggregate(assets.AggregateData{Count: count, Digest: digest})
		},
	}
}

func startupDigestEntry(s Startup) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Startup: %s (%s)\n", s.Name, s.Industry)
	fmt.Fprintf(&b, "Ask: %s EGP for %s%%\n", formatAmount(s.AskAmount), formatAmount(s.AskEquity))
	if s.DealMade {
		fmt.Fprintf(&b, "Deal: %s EGP for %s%% with %s\n", formatAmount(s.DealAmount), formatAmount(s.DealEquity), strings.Join(s.Sharks, ", "))
	} else {
		b.WriteString("Deal: none\n")
	}
	fmt.Fprintf(&b, "Description: %s", s.Description)
	return b.String()
}

func formatAmount(f *float64) string {
	if f == nil {
		return "?"
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}
