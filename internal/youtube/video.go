// Package youtube talks to YouTube: native caption tracks from the watch page,
// and video metadata listings through yt-dlp.
package youtube

import (
	"regexp"
	"strconv"
	"strings"
)

const watchURLPrefix = "https://www.youtube.com/watch?v="

var (
	bareIDRE = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

	videoIDPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:v=|/)([A-Za-z0-9_-]{11})(?:[&?#/]|$)`),
		regexp.MustCompile(`youtu\.be/([A-Za-z0-9_-]{11})`),
		regexp.MustCompile(`(?:embed|shorts|live)/([A-Za-z0-9_-]{11})`),
	}

	episodePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Episode\s*(\d+)`),
		regexp.MustCompile(`الحلقة\s*(\d+)`),
		regexp.MustCompile(`(?i)\bE(\d+)\b`),
		regexp.MustCompile(`(?i)\bEp\.?\s*(\d+)`),
		regexp.MustCompile(`حلقة\s*(\d+)`),
	}
)

// ExtractVideoID returns the 11-character video ID from a bare ID or any
// watch, short, embed or shorts URL. Returns "" when none is found.
func ExtractVideoID(s string) string {
	s = strings.TrimSpace(s)
	if bareIDRE.MatchString(s) {
		return s
	}
	for _, re := range videoIDPatterns {
		if m := re.FindStringSubmatch(s); len(m) == 2 {
			return m[1]
		}
	}
	return ""
}

// WatchURL returns the canonical watch page URL for a video ID.
func WatchURL(id string) string {
	return watchURLPrefix + id
}

// PlaylistURL accepts a playlist URL or a bare playlist ID.
func PlaylistURL(s string) string {
	if strings.HasPrefix(s, "http") {
		return s
	}
	return "https://www.youtube.com/playlist?list=" + s
}

// EpisodeNumber parses an episode number out of a video title.
// Returns 0 when the title carries none.
func EpisodeNumber(title string) int {
	for _, re := range episodePatterns {
		if m := re.FindStringSubmatch(title); len(m) == 2 {
			if n, err := strconv.Atoi(m[1]); err == nil {
				return n
			}
		}
	}
	return 0
}
