package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Server.Port != 8090 {
			t.Errorf("expected server port 8090, got %d", config.Server.Port)
		}

		if config.Extractor.Binary != "yt-dlp" {
			t.Errorf("expected extractor binary yt-dlp, got %s", config.Extractor.Binary)
		}

		if config.Extractor.WarmupTrack == "" {
			t.Error("expected a default warmup track")
		}

		if config.Cache.Capacity != 300 {
			t.Errorf("expected cache capacity 300, got %d", config.Cache.Capacity)
		}

		if config.Downloads.MaxConcurrent != 3 {
			t.Errorf("expected 3 concurrent downloads, got %d", config.Downloads.MaxConcurrent)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Database.Path != defaultConfig.Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfigMissing", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
		if !errors.Is(err, ErrMissingConfig) {
			t.Errorf("LoadConfig() error = %v, want ErrMissingConfig", err)
		}
	})

	t.Run("LoadConfigInvalid", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.toml")
		if err := os.WriteFile(path, []byte("[server\nport ="), 0644); err != nil {
			t.Fatal(err)
		}

		_, err := LoadConfig(path)
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("LoadConfig() error = %v, want ErrInvalidConfig", err)
		}
	})
}

func TestExtractorConfigDurations(t *testing.T) {
	tc := []struct {
		name string
		cfg  ExtractorConfig
		ttl  time.Duration
		ext  time.Duration
		strm time.Duration
	}{
		{
			name: "configured values",
			cfg:  ExtractorConfig{URLTTLHours: 2, ExtractTimeoutSeconds: 30, StreamTimeoutSeconds: 20},
			ttl:  2 * time.Hour,
			ext:  30 * time.Second,
			strm: 20 * time.Second,
		},
		{
			name: "zero values fall back to defaults",
			cfg:  ExtractorConfig{},
			ttl:  5 * time.Hour,
			ext:  60 * time.Second,
			strm: 45 * time.Second,
		},
		{
			name: "negative values fall back to defaults",
			cfg:  ExtractorConfig{URLTTLHours: -1, ExtractTimeoutSeconds: -1, StreamTimeoutSeconds: -1},
			ttl:  5 * time.Hour,
			ext:  60 * time.Second,
			strm: 45 * time.Second,
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.URLTTL(); got != tt.ttl {
				t.Errorf("URLTTL() = %v, want %v", got, tt.ttl)
			}
			if got := tt.cfg.ExtractTimeout(); got != tt.ext {
				t.Errorf("ExtractTimeout() = %v, want %v", got, tt.ext)
			}
			if got := tt.cfg.StreamTimeout(); got != tt.strm {
				t.Errorf("StreamTimeout() = %v, want %v", got, tt.strm)
			}
		})
	}
}
