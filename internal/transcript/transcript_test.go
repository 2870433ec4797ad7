package transcript

import (
	"math"
	"testing"
)

func TestNewOrdersSegmentsAndJoinsText(t *testing.T) {
	segs := []Segment{
		{Start: 4.0, Duration: 2.0, Text: "world"},
		{Start: 0.5, Duration: 3.0, Text: " hello "},
		{Start: 6.0, Duration: 1.0, Text: "   "},
		{Start: 7.5, Duration: 1.5, Text: "again"},
	}

	tr := New("abc123", "en", SourceNative, segs, "ignored")

	if len(tr.Segments) != 3 {
		t.Fatalf("expected 3 non-empty segments, got %d", len(tr.Segments))
	}
	if tr.Text != "hello world again" {
		t.Errorf("expected joined text, got %q", tr.Text)
	}
	if err := tr.Validate(); err != nil {
		t.Errorf("expected ordered segments, got %v", err)
	}
	for i := 1; i < len(tr.Segments); i++ {
		if tr.Segments[i-1].Start > tr.Segments[i].Start {
			t.Errorf("segment %d out of order", i)
		}
	}
}

func TestNewWithoutSegmentsUsesFallback(t *testing.T) {
	tr := New("abc123", "ar", SourceSpeechToText, nil, "  some text  ")
	if tr.Text != "some text" {
		t.Errorf("expected fallback text, got %q", tr.Text)
	}
	if tr.Segments != nil {
		t.Errorf("expected nil segments, got %v", tr.Segments)
	}
}

func TestValidateRejectsOutOfOrder(t *testing.T) {
	tr := &Transcript{
		VideoID:  "x",
		Segments: []Segment{{Start: 5}, {Start: 1}},
	}
	if err := tr.Validate(); err == nil {
		t.Error("expected ordering error")
	}
}

func TestDurationAndPace(t *testing.T) {
	tr := New("v", "en", SourceNative, []Segment{
		{Start: 0, Duration: 30, Text: "one two three"},
		{Start: 30, Duration: 95, Text: "four five six"},
	}, "")

	if got := tr.DurationSeconds(); got != 125 {
		t.Errorf("expected 125s, got %v", got)
	}
	if got := tr.DurationFormatted(); got != "2:05" {
		t.Errorf("expected 2:05, got %s", got)
	}
	if got := tr.WordCount(); got != 6 {
		t.Errorf("expected 6 words, got %d", got)
	}
	want := 6 / (125.0 / 60)
	if got := tr.WordsPerMinute(); math.Abs(got-want) > 1e-9 {
		t.Errorf("expected %.3f wpm, got %.3f", want, got)
	}

	empty := &Transcript{VideoID: "v", Text: "a b"}
	if empty.WordsPerMinute() != 0 {
		t.Error("expected 0 wpm without timing")
	}
}

func TestHookText(t *testing.T) {
	tr := New("v", "en", SourceNative, []Segment{
		{Start: 0, Duration: 5, Text: "first"},
		{Start: 12, Duration: 5, Text: "second"},
		{Start: 20, Duration: 5, Text: "third"},
	}, "")
	if got := tr.HookText(HookWindowSeconds); got != "first second" {
		t.Errorf("unexpected hook %q", got)
	}

	words := ""
	for i := 0; i < 80; i++ {
		words += "w "
	}
	untimed := &Transcript{VideoID: "v", Text: words}
	if got := len(untimed.HookText(HookWindowSeconds)); got != 2*hookFallbackWords-1 {
		t.Errorf("expected %d-word fallback hook, got length %d", hookFallbackWords, got)
	}
}

func TestCount(t *testing.T) {
	v := Video{ID: "a"}
	outcomes := []Outcome{
		Succeeded(v, &Transcript{Source: SourceNative}, false),
		Succeeded(v, &Transcript{Source: SourceSpeechToText}, true),
		NeedsSpeech(v),
		Failed(v, KindTimeout, "timed out"),
	}
	got := Count(outcomes)
	want := Tally{Total: 4, Successful: 2, Failed: 2, NeedsSpeechToText: 1, Native: 1, SpeechToText: 1}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}
