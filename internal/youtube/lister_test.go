package youtube

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fpang/transcript-insight/internal/execx"
)

type fakeRunner struct {
	calls   [][]string
	outputs map[string]string // keyed by last argument
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (execx.Result, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	out, ok := f.outputs[args[len(args)-1]]
	if !ok {
		return execx.Result{ExitCode: 1}, &execx.ExitError{Command: name, ExitCode: 1, Stderr: "ERROR: not found"}
	}
	return execx.Result{Stdout: out}, nil
}

func TestListPlaylist(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]string{
		"https://www.youtube.com/playlist?list=PL1": strings.Join([]string{
			`{"id":"aaaaaaaaaaa","title":"Episode 1","duration":620.0,"channel":"Shark Tank"}`,
			`not json`,
			``,
			`{"id":"bbbbbbbbbbb","title":"Episode 2","uploader":"Shark Tank","thumbnails":[{"url":"small"},{"url":"big"}]}`,
		}, "\n"),
	}}
	l := NewLister(runner)

	videos, err := l.List(context.Background(), Source{Kind: SourcePlaylist, Values: []string{"https://www.youtube.com/playlist?list=PL1"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(videos) != 2 {
		t.Fatalf("expected 2 videos, got %d", len(videos))
	}
	if videos[0].Index != 0 || videos[1].Index != 1 {
		t.Errorf("expected sequential indices, got %d, %d", videos[0].Index, videos[1].Index)
	}
	if videos[0].Duration != 620 || videos[0].EpisodeNumber != 1 {
		t.Errorf("unexpected first video %+v", videos[0])
	}
	if videos[1].ChannelTitle != "Shark Tank" || videos[1].ThumbnailURL != "big" {
		t.Errorf("unexpected second video %+v", videos[1])
	}
	if videos[1].URL != "https://www.youtube.com/watch?v=bbbbbbbbbbb" {
		t.Errorf("unexpected url %s", videos[1].URL)
	}
}

func TestListChannelAndSearchArgs(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]string{
		"https://www.youtube.com/@Fireship/videos": `{"id":"ccccccccccc","title":"Go in 100 seconds"}`,
		"ytsearch5:golang generics":                `{"id":"ddddddddddd","title":"Generics"}`,
	}}
	l := NewLister(runner)
	ctx := context.Background()

	if _, err := l.List(ctx, Source{Kind: SourceChannel, Values: []string{"https://www.youtube.com/@Fireship/"}, MaxResults: 20}); err != nil {
		t.Fatalf("channel: %v", err)
	}
	got := strings.Join(runner.calls[0], " ")
	if got != "yt-dlp --flat-playlist --dump-json --playlist-end 20 https://www.youtube.com/@Fireship/videos" {
		t.Errorf("unexpected channel args: %s", got)
	}

	if _, err := l.List(ctx, Source{Kind: SourceSearch, Values: []string{"golang generics"}, MaxResults: 5}); err != nil {
		t.Fatalf("search: %v", err)
	}
	if last := runner.calls[1][len(runner.calls[1])-1]; last != "ytsearch5:golang generics" {
		t.Errorf("unexpected search target %s", last)
	}
}

func TestListVideosSkipsFailures(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]string{
		"https://www.youtube.com/watch?v=eeeeeeeeeee": `{"id":"eeeeeeeeeee","title":"One"}`,
	}}
	l := NewLister(runner)

	videos, err := l.List(context.Background(), Source{Kind: SourceVideos, Values: []string{"eeeeeeeeeee", "fffffffffff"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(videos) != 1 || videos[0].ID != "eeeeeeeeeee" {
		t.Errorf("unexpected videos %+v", videos)
	}

	videos, err = l.List(context.Background(), Source{Kind: SourceVideos, Values: []string{"fffffffffff", "eeeeeeeeeee"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(videos) != 1 || videos[0].Index != 1 {
		t.Errorf("expected surviving video to keep index 1, got %+v", videos)
	}

	_, err = l.List(context.Background(), Source{Kind: SourceVideo, Values: []string{"fffffffffff"}})
	if err == nil {
		t.Error("expected error when no video can be listed")
	}

	var exitErr *execx.ExitError
	if _, err := l.Video(context.Background(), "fffffffffff"); !errors.As(err, &exitErr) {
		t.Errorf("expected ExitError, got %v", err)
	}
}

func TestSnapshotName(t *testing.T) {
	if got := (Source{Kind: SourceChannel}).SnapshotName(); got != "channel_videos.json" {
		t.Errorf("unexpected snapshot name %s", got)
	}
	if got := (Source{Kind: SourceVideo}).SnapshotName(); got != "" {
		t.Errorf("expected no snapshot for single video, got %s", got)
	}
}

func TestSelectorSource(t *testing.T) {
	tests := []struct {
		name    string
		sel     Selector
		want    SourceKind
		wantErr bool
	}{
		{"none", Selector{}, "", true},
		{"video", Selector{Video: "abc"}, SourceVideo, false},
		{"videos", Selector{Videos: []string{"a", "b"}}, SourceVideos, false},
		{"search", Selector{Search: "go tutorials"}, SourceSearch, false},
		{"two", Selector{Video: "abc", Channel: "https://www.youtube.com/@x"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := tt.sel.Source()
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if src.Kind != tt.want {
				t.Errorf("kind = %q, want %q", src.Kind, tt.want)
			}
		})
	}
}

func TestSelectorLimits(t *testing.T) {
	src, err := Selector{Playlist: "PL1"}.Source()
	if err != nil {
		t.Fatal(err)
	}
	if src.MaxResults != DefaultMaxResults || src.Values[0] != "https://www.youtube.com/playlist?list=PL1" {
		t.Errorf("src = %+v", src)
	}
	src, _ = Selector{Video: "abc", MaxResults: 3}.Source()
	if src.MaxResults != 0 {
		t.Errorf("single video should carry no limit, got %d", src.MaxResults)
	}
}
