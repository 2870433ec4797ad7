package main

import (
	"encoding/json"
	"testing"

	"github.com/fpang/transcript-insight/internal/config"
	"github.com/fpang/transcript-insight/internal/transcript"
	"github.com/fpang/transcript-insight/internal/youtube"
)

func TestEventDecoding(t *testing.T) {
	raw := `{
		"source": {"playlist": "PL42", "max_results": 5},
		"languages": ["ar"],
		"use_speech_to_text": true,
		"speech_to_text_language": "ar",
		"workers": 2,
		"profile": "startups",
		"analyze": true
	}`
	var e Event
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		t.Fatal(err)
	}
	src, err := e.Source.Source()
	if err != nil {
		t.Fatalf("Source: %v", err)
	}
	if src.Kind != youtube.SourcePlaylist || src.MaxResults != 5 || src.Values[0] != "https://www.youtube.com/playlist?list=PL42" {
		t.Errorf("src = %+v", src)
	}

	base := config.Default()
	c := eventConfig(base, e)
	if c.Workers != 2 || c.STT.Language != "ar" || len(c.Languages) != 1 {
		t.Errorf("config = %+v", c)
	}
	if base.Workers != 3 || base.STT.Language != "en" {
		t.Error("base config was modified")
	}
}

func TestOutcomeSummaries(t *testing.T) {
	tr := &transcript.Transcript{VideoID: "ok", Text: "hello"}
	outcomes := []transcript.Outcome{
		transcript.Succeeded(transcript.Video{ID: "ok"}, tr, false),
		transcript.NeedsSpeech(transcript.Video{ID: "silent"}),
		transcript.Failed(transcript.Video{ID: "bad"}, transcript.KindTimeout, "timed out"),
	}
	items := successfulItems(outcomes)
	if len(items) != 1 || items[0].Transcript != tr {
		t.Errorf("items = %+v", items)
	}
	fails := failures(outcomes)
	if len(fails) != 2 || fails[0].Kind != transcript.KindNeedsSpeechToText || fails[1].Error != "timed out" {
		t.Errorf("failures = %+v", fails)
	}
}
