package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug": zerolog.DebugLevel,
		"warn":  zerolog.WarnLevel,
		"error": zerolog.ErrorLevel,
		"info":  zerolog.InfoLevel,
		"":      zerolog.InfoLevel,
		"loud":  zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRunLoggerEmitsOneEvent(t *testing.T) {
	var buf bytes.Buffer
	t.Setenv(LevelEnvVar, "info")
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "")
	prev := log.Logger
	InitWriter(&buf)
	defer func() { log.Logger = prev }()

	NewRunLogger("yt-transcribe").
		RunID("run-123").
		S3Bucket("cache", "my-bucket").
		S3Bucket("unused", "").
		DynamoTable("ledger", "runs").
		Feature("speechToText", true).
		Config("workers", "3").
		Log()

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 1 {
		t.Fatalf("want one log line, got %d", len(lines))
	}
	var evt map[string]any
	if err := json.Unmarshal(lines[0], &evt); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if evt["message"] != "Run configuration" || evt["run_id"] != "run-123" {
		t.Errorf("event = %v", evt)
	}
	resources := evt["resources"].(map[string]any)
	buckets := resources["s3Buckets"].(map[string]any)
	if buckets["cache"] != "my-bucket" || buckets["unused"] != nil {
		t.Errorf("buckets = %v", buckets)
	}
	if _, ok := resources["ssmParams"]; ok {
		t.Error("empty resource groups should be omitted")
	}
	if evt["features"].(map[string]any)["speechToText"] != true {
		t.Errorf("features = %v", evt["features"])
	}
}
