package youtube

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/transcript-insight/internal/transcript"
)

// Soft absences: the video cannot yield a native transcript. Callers treat
// these as "needs speech-to-text", not as failures.
var (
	ErrNoCaptions       = errors.New("no caption track in the requested languages")
	ErrCaptionsDisabled = errors.New("captions are disabled for this video")
	ErrVideoUnavailable = errors.New("video unavailable")
)

// IsSoftAbsence reports whether err means the video simply has no usable
// native transcript.
func IsSoftAbsence(err error) bool {
	return errors.Is(err, ErrNoCaptions) || errors.Is(err, ErrCaptionsDisabled) || errors.Is(err, ErrVideoUnavailable)
}

const (
	defaultBaseURL      = "https://www.youtube.com"
	playerResponseMark  = "ytInitialPlayerResponse = "
	maxWatchPageBytes   = 6 << 20
	maxTimedTextBytes   = 4 << 20
	defaultUserAgent    = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"
	defaultFetchTimeout = 30 * time.Second
)

var tagRE = regexp.MustCompile(`<[^>]+>`)

// CaptionClient fetches native caption tracks by scraping the watch page's
// embedded player response and downloading the selected timedtext track.
type CaptionClient struct {
	httpClient *http.Client
	baseURL    string
	retry      RetryConfig
}

// NewCaptionClient creates a client. A nil httpClient gets a default with a
// 30s timeout.
func NewCaptionClient(httpClient *http.Client) *CaptionClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultFetchTimeout}
	}
	return &CaptionClient{
		httpClient: httpClient,
		baseURL:    defaultBaseURL,
		retry:      DefaultRetryConfig,
	}
}

type playerResponse struct {
	PlayabilityStatus *struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
	Captions *struct {
		PlayerCaptionsTracklistRenderer struct {
			CaptionTracks []Track `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
}

// ListTracks returns the caption tracks advertised for a video.
func (c *CaptionClient) ListTracks(ctx context.Context, videoID string) ([]Track, error) {
	body, err := c.get(ctx, c.baseURL+"/watch?v="+videoID, maxWatchPageBytes)
	if err != nil {
		return nil, fmt.Errorf("watch page: %w", err)
	}

	idx := strings.Index(string(body), playerResponseMark)
	if idx < 0 {
		return nil, fmt.Errorf("%w: no player response in watch page", ErrVideoUnavailable)
	}
	raw := extractObject(body[idx+len(playerResponseMark):])
	if raw == nil {
		return nil, errors.New("malformed player response in watch page")
	}
	var pr playerResponse
	if err := json.Unmarshal(raw, &pr); err != nil {
		return nil, fmt.Errorf("decode player response: %w", err)
	}

	if ps := pr.PlayabilityStatus; ps != nil {
		switch ps.Status {
		case "ERROR", "UNPLAYABLE":
			return nil, fmt.Errorf("%w: %s", ErrVideoUnavailable, ps.Reason)
		}
	}
	if pr.Captions == nil {
		return nil, ErrCaptionsDisabled
	}
	tracks := pr.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks
	if len(tracks) == 0 {
		return nil, ErrNoCaptions
	}
	return tracks, nil
}

// FetchTrack downloads and parses one timedtext track into segments.
func (c *CaptionClient) FetchTrack(ctx context.Context, track Track) ([]transcript.Segment, error) {
	body, err := c.get(ctx, track.BaseURL, maxTimedTextBytes)
	if err != nil {
		return nil, fmt.Errorf("fetch timedtext: %w", err)
	}
	return parseTimedText(body)
}

// Fetch resolves a native transcript in the first available preferred language.
// The returned transcript records the language of the track actually fetched.
func (c *CaptionClient) Fetch(ctx context.Context, videoID string, langs []string) (*transcript.Transcript, error) {
	tracks, err := c.ListTracks(ctx, videoID)
	if err != nil {
		return nil, err
	}
	track, ok := SelectTrack(tracks, langs)
	if !ok {
		available := make([]string, 0, len(tracks))
		for _, t := range tracks {
			available = append(available, t.LanguageCode)
		}
		return nil, fmt.Errorf("%w (wanted %s, available %s)", ErrNoCaptions,
			strings.Join(langs, ","), strings.Join(available, ","))
	}

	segments, err := c.FetchTrack(ctx, track)
	if err != nil {
		return nil, err
	}
	t := transcript.New(videoID, track.LanguageCode, transcript.SourceNative, segments, "")
	if t.Text == "" {
		return nil, fmt.Errorf("%w: track %s is empty", ErrNoCaptions, track.LanguageCode)
	}
	log.Debug().
		Str("video_id", videoID).
		Str("language", track.LanguageCode).
		Bool("generated", track.Generated()).
		Int("segments", len(t.Segments)).
		Msg("Native captions fetched")
	return t, nil
}

func (c *CaptionClient) get(ctx context.Context, url string, limit int64) ([]byte, error) {
	resp, err := retryHTTP(ctx, c.retry, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", defaultUserAgent)
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
		return c.httpClient.Do(req)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrVideoUnavailable
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, limit))
}

// timedText covers both the legacy <transcript><text start dur> format and
// the srv3 <timedtext><body><p t d> format (milliseconds).
type timedText struct {
	Lines []struct {
		Start string `xml:"start,attr"`
		Dur   string `xml:"dur,attr"`
		Text  string `xml:",chardata"`
	} `xml:"text"`
	Paragraphs []struct {
		T     string `xml:"t,attr"`
		D     string `xml:"d,attr"`
		Inner string `xml:",innerxml"`
	} `xml:"body>p"`
}

func parseTimedText(body []byte) ([]transcript.Segment, error) {
	var tt timedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return nil, fmt.Errorf("parse timedtext XML: %w", err)
	}

	segments := make([]transcript.Segment, 0, len(tt.Lines)+len(tt.Paragraphs))
	for _, l := range tt.Lines {
		segments = append(segments, transcript.Segment{
			Start:    parseFloat(l.Start),
			Duration: parseFloat(l.Dur),
			Text:     cleanCaption(l.Text),
		})
	}
	for _, p := range tt.Paragraphs {
		segments = append(segments, transcript.Segment{
			Start:    parseFloat(p.T) / 1000,
			Duration: parseFloat(p.D) / 1000,
			Text:     cleanCaption(p.Inner),
		})
	}
	return segments, nil
}

func cleanCaption(s string) string {
	s = tagRE.ReplaceAllString(s, "")
	s = html.UnescapeString(html.UnescapeString(s))
	return strings.Join(strings.Fields(s), " ")
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}

// extractObject returns the balanced JSON object at the start of b.
func extractObject(b []byte) []byte {
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	depth := 0
	inStr := false
	escaped := false
	for i, ch := range b {
		if inStr {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inStr = false
			}
			continue
		}
		switch ch {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return b[:i+1]
			}
		}
	}
	return nil
}
