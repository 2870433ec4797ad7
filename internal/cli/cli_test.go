package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFormatDurationShort(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0:00"},
		{59 * time.Second, "0:59"},
		{134 * time.Second, "2:14"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1:02:03"},
	}
	for _, tt := range tests {
		if got := FormatDurationShort(tt.in); got != tt.want {
			t.Errorf("FormatDurationShort(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if FormatSeconds(0) != "?" || FormatSeconds(61) != "1:01" {
		t.Error("FormatSeconds mismatch")
	}
}

func TestEnsureDataDirCreates(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	got := EnsureDataDir(dir)
	if !filepath.IsAbs(got) {
		t.Errorf("path %q is not absolute", got)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("directory not created: %v", err)
	}
}
