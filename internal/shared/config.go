package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Extractor ExtractorConfig `toml:"extractor"`
	Cache     CacheConfig     `toml:"cache"`
	Database  DatabaseConfig  `toml:"database"`
	Downloads DownloadsConfig `toml:"downloads"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// ExtractorConfig contains settings for the yt-dlp extraction subprocess.
type ExtractorConfig struct {
	Binary                string `toml:"binary"`
	ProxyURL              string `toml:"proxy_url"`
	BrowserForCookies     string `toml:"browser_for_cookies"`
	CookieFile            string `toml:"cookie_file"`
	CacheDir              string `toml:"cache_dir"`
	URLTTLHours           int    `toml:"url_ttl_hours"`
	ExtractTimeoutSeconds int    `toml:"extract_timeout_seconds"`
	StreamTimeoutSeconds  int    `toml:"stream_timeout_seconds"`
	WarmupTrack           string `toml:"warmup_track"`
}

// CacheConfig contains signed URL cache settings.
type CacheConfig struct {
	Capacity int `toml:"capacity"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// DownloadsConfig contains bulk download job settings.
type DownloadsConfig struct {
	Dir           string  `toml:"dir"`
	MaxConcurrent int     `toml:"max_concurrent"`
	RateLimit     float64 `toml:"rate_limit"`
}

// URLTTL returns the configured signed URL lifetime as a [time.Duration].
func (e ExtractorConfig) URLTTL() time.Duration {
	if e.URLTTLHours <= 0 {
		return 5 * time.Hour
	}
	return time.Duration(e.URLTTLHours) * time.Hour
}

// ExtractTimeout returns the per-extraction subprocess timeout.
func (e ExtractorConfig) ExtractTimeout() time.Duration {
	if e.ExtractTimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(e.ExtractTimeoutSeconds) * time.Second
}

// StreamTimeout returns how long a stream request waits on extraction before timing out.
func (e ExtractorConfig) StreamTimeout() time.Duration {
	if e.StreamTimeoutSeconds <= 0 {
		return 45 * time.Second
	}
	return time.Duration(e.StreamTimeoutSeconds) * time.Second
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read config file: %v", ErrMissingConfig, err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
