package youtube

import "strings"

// Track is one caption track advertised by the player response.
type Track struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"` // "asr" = auto-generated
}

// Generated reports whether the track is auto-generated speech recognition.
func (t Track) Generated() bool {
	return t.Kind == "asr"
}

// needsPoToken reports whether a track URL can only be fetched by a browser.
func needsPoToken(baseURL string) bool {
	return strings.Contains(baseURL, "&exp=xpe")
}

// SelectTrack picks the caption track to fetch for a language preference list:
// first a manually created track matching a preferred language, in preference
// order; otherwise an auto-generated track whose language is in the list.
// Tracks outside the preference list are never chosen, so the returned
// track's LanguageCode is always one the caller asked for.
func SelectTrack(tracks []Track, langs []string) (Track, bool) {
	usable := make([]Track, 0, len(tracks))
	for _, t := range tracks {
		if !needsPoToken(t.BaseURL) {
			usable = append(usable, t)
		}
	}
	for _, lang := range langs {
		for _, t := range usable {
			if !t.Generated() && t.LanguageCode == lang {
				return t, true
			}
		}
	}
	for _, lang := range langs {
		for _, t := range usable {
			if t.Generated() && t.LanguageCode == lang {
				return t, true
			}
		}
	}
	return Track{}, false
}
