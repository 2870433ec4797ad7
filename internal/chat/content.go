package chat

import (
	"fmt"
	"math"
	"strings"

	"github.com/fpang/transcript-insight/internal/assets"
	"github.com/fpang/transcript-insight/internal/transcript"
)

// ProfileContent analyses the scripting style of each video.
const ProfileContent = "content"

// VideoAnalysis is the style breakdown of one video.
type VideoAnalysis struct {
	VideoID              string   `json:"video_id"`
	TitleGuess           string   `json:"title_guess"`
	VideoType            string   `json:"video_type"`
	Duration             string   `json:"duration"`
	HookText             string   `json:"hook_text"`
	HookTechnique        string   `json:"hook_technique"`
	HookDurationSeconds  float64  `json:"hook_duration_seconds"`
	IntroTechnique       string   `json:"intro_technique"`
	MainSections         []string `json:"main_sections"`
	OutroTechnique       string   `json:"outro_technique"`
	WordsPerMinute       float64  `json:"words_per_minute"`
	PacingNotes          string   `json:"pacing_notes"`
	HumorExamples        []string `json:"humor_examples"`
	AnalogiesUsed        []string `json:"analogies_used"`
	CallToActions        []string `json:"call_to_actions"`
	CodeExplanationStyle string   `json:"code_explanation_style"`
	ComplexityManagement string   `json:"complexity_management"`
}

// ContentGuidelines is the style guide synthesized from many analyses.
type ContentGuidelines struct {
	HookPatterns             TextList `json:"hook_patterns"`
	AvgHookDuration          Number   `json:"avg_hook_duration"`
	CommonIntroTechniques    TextList `json:"common_intro_techniques"`
	CommonOutroTechniques    TextList `json:"common_outro_techniques"`
	TypicalSectionCount      Number   `json:"typical_section_count"`
	AvgWordsPerMinute        Number   `json:"avg_words_per_minute"`
	PacingGuidelines         TextList `json:"pacing_guidelines"`
	HumorTechniques          TextList `json:"humor_techniques"`
	AnalogyPatterns          TextList `json:"analogy_patterns"`
	ToneCharacteristics      TextList `json:"tone_characteristics"`
	VocabularyNotes          TextList `json:"vocabulary_notes"`
	CodeExplanationPatterns  TextList `json:"code_explanation_patterns"`
	SimplificationTechniques TextList `json:"simplification_techniques"`
	KeyTakeaways             TextList `json:"key_takeaways"`
}

// ContentSchema returns the extraction schema for the content profile.
// transcriptChars <= 0 uses DefaultTranscriptChars.
func ContentSchema(transcriptChars int) Schema[VideoAnalysis] {
	return Schema[VideoAnalysis]{
		Profile:         ProfileContent,
		System:          assets.ContentSystemPrompt,
		ContainerKeys:   []string{"video_analyses", "analyses", "analysis"},
		Temperature:     0.3,
		TranscriptChars: transcriptChars,
		BuildPrompt:     buildContentPrompt,
		Normalize:       normalizeVideoAnalysis,
	}
}

func buildContentPrompt(v transcript.Video, t *transcript.Transcript, text string) (string, error) {
	return assets.RenderContentExtract(assets.ExtractData{
		Title:          v.DisplayTitle(),
		URL:            v.URL,
		Duration:       t.DurationFormatted(),
		WordsPerMinute: t.WordsPerMinute(),
		HookSeconds:    int(transcript.HookWindowSeconds),
		Hook:           t.HookText(transcript.HookWindowSeconds),
		Transcript:     text,
	})
}

// normalizeVideoAnalysis fills the measured fields from the transcript and
// the judged fields from the model.
func normalizeVideoAnalysis(v transcript.Video, t *transcript.Transcript, _ int, raw map[string]any) (VideoAnalysis, bool) {
	title := stringField(raw, "title_guess")
	if title == "" {
		return VideoAnalysis{}, false
	}
	hookDur, _ := numberField(raw, "hook_duration_seconds")
	return VideoAnalysis{
		VideoID:              v.ID,
		TitleGuess:           title,
		VideoType:            stringField(raw, "video_type"),
		Duration:             t.DurationFormatted(),
		HookText:             t.HookText(transcript.HookWindowSeconds),
		HookTechnique:        stringField(raw, "hook_technique"),
		HookDurationSeconds:  hookDur,
		IntroTechnique:       stringField(raw, "intro_technique"),
		MainSections:         listField(raw, "main_sections"),
		OutroTechnique:       stringField(raw, "outro_technique"),
		WordsPerMinute:       math.Round(t.WordsPerMinute()*10) / 10,
		PacingNotes:          stringField(raw, "pacing_notes"),
		HumorExamples:        listField(raw, "humor_examples"),
		AnalogiesUsed:        listField(raw, "analogies_used"),
		CallToActions:        listField(raw, "call_to_actions"),
		CodeExplanationStyle: stringField(raw, "code_explanation_style"),
		ComplexityManagement: stringField(raw, "complexity_management"),
	}, true
}

// ContentSynthesis returns the aggregation spec for the content profile.
func ContentSynthesis() Synthesis[VideoAnalysis, ContentGuidelines] {
	return Synthesis[VideoAnalysis, ContentGuidelines]{
		Profile:     ProfileContent,
		System:      assets.ContentSystemPrompt,
		Temperature: 0.4,
		WrapperKeys: []string{"guidelines"},
		Entry:       contentDigestEntry,
		BuildPrompt: func(digest string, count int) (string, error) {
			return assets.RenderContentAggregate(assets.AggregateData{Count: count, Digest: digest})
		},
	}
}

func contentDigestEntry(a VideoAnalysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Video: %s\n", a.TitleGuess)
	fmt.Fprintf(&b, "Type: %s\n", a.VideoType)
	fmt.Fprintf(&b, "Duration: %s\n", a.Duration)
	fmt.Fprintf(&b, "Hook: %s\n", a.HookText)
	fmt.Fprintf(&b, "Hook Technique: %s\n", a.HookTechnique)
	fmt.Fprintf(&b, "Sections: %s\n", strings.Join(a.MainSections, ", "))
	fmt.Fprintf(&b, "WPM: %.1f\n", a.WordsPerMinute)
	fmt.Fprintf(&b, "Humor: %s\n", strings.Join(firstN(a.HumorExamples, 3), ", "))
	fmt.Fprintf(&b, "Analogies: %s\n", strings.Join(firstN(a.AnalogiesUsed, 3), ", "))
	fmt.Fprintf(&b, "Code Style: %s", a.CodeExplanationStyle)
	return b.String()
}

func firstN(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
