// Package config loads run settings from an optional YAML file and the
// environment. Command-line flags are applied by each binary on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file consulted when none is named.
const DefaultPath = "insight.yaml"

// Config holds every tunable the binaries share.
type Config struct {
	DataDir   string   `yaml:"data_dir"`
	Workers   int      `yaml:"workers"`
	Languages []string `yaml:"languages"`

	STT struct {
		Backend  string        `yaml:"backend"`
		Language string        `yaml:"language"`
		MaxBytes int64         `yaml:"max_bytes"`
		Rate     float64       `yaml:"rate_per_second"`
		Model    string        `yaml:"model"`
		Timeout  time.Duration `yaml:"audio_timeout"`
	} `yaml:"stt"`

	Analysis struct {
		ExtractModel    string `yaml:"extract_model"`
		AggregateModel  string `yaml:"aggregate_model"`
		TranscriptChars int    `yaml:"transcript_chars"` // 0 uses the profile default
		MaxDigestChars  int    `yaml:"max_digest_chars"`
	} `yaml:"analysis"`

	Remote struct {
		CacheBucket string `yaml:"cache_bucket"`
		CachePrefix string `yaml:"cache_prefix"`
		LedgerTable string `yaml:"ledger_table"`
		EventBus    string `yaml:"event_bus"`
	} `yaml:"remote"`
}

// Default returns the built-in settings.
func Default() *Config {
	c := &Config{
		DataDir:   "data",
		Workers:   3,
		Languages: []string{"en", "ar"},
	}
	c.STT.Backend = "whisper"
	c.STT.Language = "en"
	c.STT.MaxBytes = 25 << 20
	c.STT.Rate = 1
	c.STT.Model = "gemini-2.5-flash"
	c.STT.Timeout = 5 * time.Minute
	c.Analysis.ExtractModel = "gemini-2.5-flash"
	c.Analysis.AggregateModel = "gemini-2.5-pro"
	c.Remote.CachePrefix = "transcript-insight"
	return c
}

// Load reads the file at path over the defaults, then applies environment
// overrides. An empty path uses INSIGHT_CONFIG or DefaultPath; a missing
// default file is not an error, a missing named file is. The result is not
// validated: callers merge their flags first, then call Validate.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		if env := os.Getenv("INSIGHT_CONFIG"); env != "" {
			path, explicit = env, true
		} else {
			path = DefaultPath
		}
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		log.Debug().Str("path", path).Msg("Config file loaded")
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.DataDir, "INSIGHT_DATA_DIR")
	setString(&c.STT.Backend, "INSIGHT_STT_BACKEND")
	setString(&c.STT.Language, "INSIGHT_STT_LANGUAGE")
	setString(&c.Analysis.ExtractModel, "INSIGHT_EXTRACT_MODEL")
	setString(&c.Analysis.AggregateModel, "INSIGHT_AGGREGATE_MODEL")
	setString(&c.Remote.CacheBucket, "INSIGHT_CACHE_BUCKET")
	setString(&c.Remote.CachePrefix, "INSIGHT_CACHE_PREFIX")
	setString(&c.Remote.LedgerTable, "INSIGHT_LEDGER_TABLE")
	setString(&c.Remote.EventBus, "INSIGHT_EVENT_BUS")

	if v := os.Getenv("INSIGHT_LANGUAGES"); v != "" {
		c.Languages = SplitList(v)
	}
	if err := setInt(&c.Workers, "INSIGHT_WORKERS"); err != nil {
		return err
	}
	return setInt(&c.Analysis.TranscriptChars, "INSIGHT_TRANSCRIPT_CHARS")
}

// Validate rejects settings no run could use.
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if len(c.Languages) == 0 {
		return fmt.Errorf("at least one caption language is required")
	}
	switch c.STT.Backend {
	case "whisper", "gemini":
	default:
		return fmt.Errorf("unknown speech-to-text backend %q (want whisper or gemini)", c.STT.Backend)
	}
	if c.DataDir == "" {
		return fmt.Errorf("data directory is required")
	}
	return nil
}

// SplitList splits a comma- or space-separated list, dropping blanks.
func SplitList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func setInt(dst *int, env string) error {
	v := os.Getenv(env)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", env, err)
	}
	*dst = n
	return nil
}
