package stt

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestWhisperBackendRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if r.FormValue("model") != "whisper-1" || r.FormValue("response_format") != "verbose_json" {
			t.Errorf("unexpected form %v", r.MultipartForm.Value)
		}
		if r.FormValue("timestamp_granularities[]") != "segment" {
			t.Errorf("expected segment granularity")
		}
		if r.FormValue("language") != "ar" {
			t.Errorf("expected language ar, got %q", r.FormValue("language"))
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("missing file: %v", err)
		}
		data, _ := io.ReadAll(file)
		if string(data) != "ID3audio" {
			t.Errorf("unexpected file body %q", data)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"language": "arabic",
			"text":     "مرحبا بكم",
			"segments": []map[string]any{{"id": 0, "start": 0.0, "end": 1.2, "text": "مرحبا بكم"}},
		})
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "v.mp3")
	os.WriteFile(path, []byte("ID3audio"), 0o644)

	w := NewWhisperBackend("sk-test")
	w.endpoint = server.URL
	res, err := w.Transcribe(context.Background(), path, "ar")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != "مرحبا بكم" || len(res.Segments) != 1 || res.Segments[0].End != 1.2 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestWhisperBackendAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "v.mp3")
	os.WriteFile(path, []byte("x"), 0o644)

	w := NewWhisperBackend("sk-test")
	w.endpoint = server.URL
	_, err := w.Transcribe(context.Background(), path, "en")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("expected APIError 429, got %v", err)
	}
}

func TestWhisperBackendRequiresKey(t *testing.T) {
	if _, err := NewWhisperBackend("").Transcribe(context.Background(), "x.mp3", "en"); err == nil {
		t.Error("expected error without API key")
	}
}
