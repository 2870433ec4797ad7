package youtube

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/transcript-insight/internal/execx"
	"github.com/fpang/transcript-insight/internal/transcript"
)

// SourceKind selects how videos are listed.
type SourceKind string

const (
	SourceVideo    SourceKind = "video"
	SourceVideos   SourceKind = "videos"
	SourceChannel  SourceKind = "channel"
	SourcePlaylist SourceKind = "playlist"
	SourceSearch   SourceKind = "search"
)

// Source is a listing request: exactly one kind with its locator(s).
type Source struct {
	Kind       SourceKind `json:"kind"`
	Values     []string   `json:"values"`
	MaxResults int        `json:"max_results,omitempty"`
}

// SnapshotName is the file the listing is saved under in the data directory,
// or "" for single/multiple video sources.
func (s Source) SnapshotName() string {
	switch s.Kind {
	case SourceChannel, SourcePlaylist, SourceSearch:
		return string(s.Kind) + "_videos.json"
	}
	return ""
}

// DefaultMaxResults caps channel, playlist and search listings when the
// caller names no limit.
const DefaultMaxResults = 10

// Selector names a source by field, the way flags and request payloads
// carry it. Exactly one field besides MaxResults must be set.
type Selector struct {
	Video      string   `json:"video,omitempty"`
	Videos     []string `json:"videos,omitempty"`
	Channel    string   `json:"channel,omitempty"`
	Playlist   string   `json:"playlist,omitempty"`
	Search     string   `json:"search,omitempty"`
	MaxResults int      `json:"max_results,omitempty"`
}

// Source converts the selector, rejecting zero or several sources.
func (s Selector) Source() (Source, error) {
	limit := s.MaxResults
	if limit <= 0 {
		limit = DefaultMaxResults
	}
	var sources []Source
	if s.Video != "" {
		sources = append(sources, Source{Kind: SourceVideo, Values: []string{s.Video}})
	}
	if len(s.Videos) > 0 {
		sources = append(sources, Source{Kind: SourceVideos, Values: s.Videos})
	}
	if s.Channel != "" {
		sources = append(sources, Source{Kind: SourceChannel, Values: []string{s.Channel}, MaxResults: limit})
	}
	if s.Playlist != "" {
		sources = append(sources, Source{Kind: SourcePlaylist, Values: []string{PlaylistURL(s.Playlist)}, MaxResults: limit})
	}
	if s.Search != "" {
		sources = append(sources, Source{Kind: SourceSearch, Values: []string{s.Search}, MaxResults: limit})
	}
	if len(sources) != 1 {
		return Source{}, fmt.Errorf("exactly one of video, videos, channel, playlist or search is required (got %d)", len(sources))
	}
	return sources[0], nil
}

// Lister lists video metadata with yt-dlp.
type Lister struct {
	runner  execx.Runner
	bin     string
	timeout time.Duration
}

// DefaultListTimeout bounds one yt-dlp listing invocation.
const DefaultListTimeout = 10 * time.Minute

// NewLister creates a lister using the yt-dlp binary on PATH.
func NewLister(runner execx.Runner) *Lister {
	return &Lister{runner: runner, bin: "yt-dlp", timeout: DefaultListTimeout}
}

// ytdlpEntry is the subset of yt-dlp's --dump-json output we use.
type ytdlpEntry struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Thumbnail  string  `json:"thumbnail"`
	Thumbnails []struct {
		URL string `json:"url"`
	} `json:"thumbnails"`
	Duration   float64 `json:"duration"`
	UploadDate string  `json:"upload_date"`
	ChannelID  string  `json:"channel_id"`
	Channel    string  `json:"channel"`
	Uploader   string  `json:"uploader"`
}

// List resolves a source into an ordered list of videos. Indices are
// assigned in listing order starting at 0. For explicit video lists the
// index is the position in the request, so a video that fails to list
// leaves a gap instead of shifting the ones after it.
func (l *Lister) List(ctx context.Context, src Source) ([]transcript.Video, error) {
	var videos []transcript.Video
	switch src.Kind {
	case SourceVideo, SourceVideos:
		for i, v := range src.Values {
			video, err := l.Video(ctx, v)
			if err != nil {
				log.Warn().Err(err).Str("video", v).Int("index", i).Msg("Skipping video that could not be listed")
				continue
			}
			video.Index = i
			videos = append(videos, video)
		}
		if len(videos) == 0 {
			return nil, errors.New("none of the requested videos could be listed")
		}
		return videos, nil
	case SourceChannel:
		url := strings.TrimRight(firstValue(src), "/")
		if !strings.HasSuffix(url, "/videos") {
			url += "/videos"
		}
		entries, err := l.flat(ctx, url, src.MaxResults)
		if err != nil {
			return nil, fmt.Errorf("list channel: %w", err)
		}
		videos = entries
	case SourcePlaylist:
		entries, err := l.flat(ctx, firstValue(src), src.MaxResults)
		if err != nil {
			return nil, fmt.Errorf("list playlist: %w", err)
		}
		videos = entries
	case SourceSearch:
		n := src.MaxResults
		if n <= 0 {
			n = 10
		}
		entries, err := l.flat(ctx, fmt.Sprintf("ytsearch%d:%s", n, firstValue(src)), 0)
		if err != nil {
			return nil, fmt.Errorf("search: %w", err)
		}
		videos = entries
	default:
		return nil, fmt.Errorf("unknown source kind %q", src.Kind)
	}

	for i := range videos {
		videos[i].Index = i
	}
	return videos, nil
}

// Video fetches metadata for a single video ID or URL.
func (l *Lister) Video(ctx context.Context, idOrURL string) (transcript.Video, error) {
	url := idOrURL
	if !strings.HasPrefix(url, "http") {
		url = WatchURL(url)
	}
	res, err := execx.RunWithTimeout(ctx, l.runner, l.timeout, l.bin, "--dump-json", "--no-playlist", url)
	if err != nil {
		return transcript.Video{}, err
	}
	out := strings.TrimSpace(res.Stdout)
	if out == "" {
		return transcript.Video{}, fmt.Errorf("no metadata for %s", idOrURL)
	}
	var e ytdlpEntry
	if err := json.Unmarshal([]byte(out), &e); err != nil {
		return transcript.Video{}, fmt.Errorf("decode metadata for %s: %w", idOrURL, err)
	}
	if e.ID == "" {
		return transcript.Video{}, fmt.Errorf("metadata for %s has no id", idOrURL)
	}
	return e.toVideo(), nil
}

func (l *Lister) flat(ctx context.Context, target string, limit int) ([]transcript.Video, error) {
	args := []string{"--flat-playlist", "--dump-json"}
	if limit > 0 {
		args = append(args, "--playlist-end", strconv.Itoa(limit))
	}
	args = append(args, target)

	res, err := execx.RunWithTimeout(ctx, l.runner, l.timeout, l.bin, args...)
	if err != nil {
		return nil, err
	}
	return parseEntries(res.Stdout), nil
}

// parseEntries decodes one JSON object per line, skipping malformed lines.
func parseEntries(stdout string) []transcript.Video {
	var videos []transcript.Video
	sc := bufio.NewScanner(strings.NewReader(stdout))
	sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var e ytdlpEntry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			log.Debug().Err(err).Msg("Skipping malformed yt-dlp line")
			continue
		}
		if e.ID == "" {
			continue
		}
		videos = append(videos, e.toVideo())
	}
	return videos
}

func (e ytdlpEntry) toVideo() transcript.Video {
	thumb := e.Thumbnail
	if thumb == "" && len(e.Thumbnails) > 0 {
		thumb = e.Thumbnails[len(e.Thumbnails)-1].URL
	}
	channel := e.Channel
	if channel == "" {
		channel = e.Uploader
	}
	return transcript.Video{
		ID:            e.ID,
		Title:         e.Title,
		URL:           WatchURL(e.ID),
		ThumbnailURL:  thumb,
		Duration:      int(e.Duration),
		PublishedAt:   e.UploadDate,
		ChannelID:     e.ChannelID,
		ChannelTitle:  channel,
		EpisodeNumber: EpisodeNumber(e.Title),
	}
}

func firstValue(src Source) string {
	if len(src.Values) == 0 {
		return ""
	}
	return src.Values[0]
}
