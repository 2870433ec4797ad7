package transcript

// ErrorKind classifies why an item did not produce a transcript.
type ErrorKind string

const (
	KindNone              ErrorKind = ""
	KindNeedsSpeechToText ErrorKind = "needs_speech_to_text"
	KindCaptions          ErrorKind = "captions"
	KindTimeout           ErrorKind = "timeout"
	KindAcquisition       ErrorKind = "acquisition"
	KindOversized         ErrorKind = "oversized"
	KindTranscription     ErrorKind = "transcription"
	KindCache             ErrorKind = "cache"
)

// Outcome is the result of resolving one video.
//
// NeedsSpeechToText is set when no native transcript exists and the
// speech-to-text path was not attempted. It is an actionable signal rather
// than a terminal failure, but Success is still false.
type Outcome struct {
	Video             Video       `json:"video"`
	Transcript        *Transcript `json:"transcript,omitempty"`
	Success           bool        `json:"success"`
	Kind              ErrorKind   `json:"error_kind,omitempty"`
	Error             string      `json:"error,omitempty"`
	NeedsSpeechToText bool        `json:"needs_speech_to_text,omitempty"`
	Cached            bool        `json:"cached,omitempty"`
}

// Succeeded wraps a transcript in a successful outcome.
func Succeeded(v Video, t *Transcript, cached bool) Outcome {
	return Outcome{Video: v, Transcript: t, Success: true, Cached: cached}
}

// Failed builds a failed outcome with a human-readable message.
func Failed(v Video, kind ErrorKind, msg string) Outcome {
	return Outcome{Video: v, Kind: kind, Error: msg}
}

// NeedsSpeech builds the "native transcript absent" outcome.
func NeedsSpeech(v Video) Outcome {
	return Outcome{
		Video:             v,
		Kind:              KindNeedsSpeechToText,
		Error:             "No native transcript available",
		NeedsSpeechToText: true,
	}
}

// Tally summarises a set of outcomes.
type Tally struct {
	Total             int `json:"total"`
	Successful        int `json:"successful"`
	Failed            int `json:"failed"`
	NeedsSpeechToText int `json:"needs_speech_to_text"`
	Native            int `json:"native"`
	SpeechToText      int `json:"speech_to_text"`
}

// Count tallies outcomes by status and transcript source.
func Count(outcomes []Outcome) Tally {
	var t Tally
	for _, o := range outcomes {
		t.Total++
		if o.Success {
			t.Successful++
			if o.Transcript != nil && o.Transcript.Source == SourceSpeechToText {
				t.SpeechToText++
			} else {
				t.Native++
			}
			continue
		}
		t.Failed++
		if o.NeedsSpeechToText {
			t.NeedsSpeechToText++
		}
	}
	return t
}
