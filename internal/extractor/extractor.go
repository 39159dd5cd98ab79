package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/J-Derek/onyxandroid/internal/shared"
	"github.com/charmbracelet/log"
)

const watchURLPrefix = "https://www.youtube.com/watch?v="

// playerClients is the extractor client chain. Android clients are listed
// first because the web player withholds audio streams from datacenter IPs
// unless a proof-of-origin token is supplied.
const playerClients = "android_music,android,web"

// Format is one media variant from an extraction result.
type Format struct {
	FormatID string  `json:"format_id"`
	Protocol string  `json:"protocol"`
	ACodec   string  `json:"acodec"`
	VCodec   string  `json:"vcodec"`
	Ext      string  `json:"ext"`
	URL      string  `json:"url"`
	ABR      float64 `json:"abr"`
	TBR      float64 `json:"tbr"`
}

// TrackInfo is the validated subset of yt-dlp's info dict that the engine needs.
type TrackInfo struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Uploader  string   `json:"uploader"`
	Channel   string   `json:"channel"`
	Thumbnail string   `json:"thumbnail"`
	Duration  float64  `json:"duration"`
	Formats   []Format `json:"formats"`
}

// Artist returns the best available artist name for display metadata.
func (t *TrackInfo) Artist() string {
	if t.Uploader != "" {
		return t.Uploader
	}
	return t.Channel
}

// Options configures a [Client].
type Options struct {
	Binary   string     // yt-dlp binary, defaults to "yt-dlp"
	ProxyURL string     // optional proxy for all subprocess calls
	CacheDir string     // private cache directory for this handle
	Cookies  *CookieJar // optional cookie source
	Timeout  time.Duration
	Logger   *log.Logger
}

// Client is a single extraction handle around the yt-dlp subprocess.
//
// The handle's cache directory holds mutable player/signature state; callers
// must serialize Extract calls per Client.
type Client struct {
	binary   string
	proxyURL string
	cacheDir string
	cookies  *CookieJar
	timeout  time.Duration
	logger   *log.Logger

	// run is the subprocess seam, replaced in tests.
	run func(ctx context.Context, name string, args ...string) ([]byte, []byte, error)
}

// NewClient creates an extraction handle with the provided options.
func NewClient(opts Options) *Client {
	if opts.Binary == "" {
		opts.Binary = "yt-dlp"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Client{
		binary:   opts.Binary,
		proxyURL: opts.ProxyURL,
		cacheDir: opts.CacheDir,
		cookies:  opts.Cookies,
		timeout:  opts.Timeout,
		logger:   opts.Logger,
		run:      runCommand,
	}
}

// Extract resolves all media variants for the given track identifier.
//
// Returns [shared.ErrExtraction] when the remote platform rejects the request
// or yt-dlp produces unusable output. The caller-supplied context bounds the
// subprocess lifetime in addition to the handle's own timeout.
func (c *Client) Extract(ctx context.Context, trackID string) (*TrackInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	args := []string{
		"-J",
		"--no-warnings",
		"--no-playlist",
		"--skip-download",
		"--extractor-args", "youtube:player_client=" + playerClients,
	}
	if c.cacheDir != "" {
		args = append(args, "--cache-dir", c.cacheDir)
	}
	args = c.appendCommonArgs(args)
	args = append(args, watchURLPrefix+trackID)

	start := time.Now()
	stdout, stderr, err := c.run(ctx, c.binary, args...)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: extraction for %s exceeded %s", shared.ErrTimeout, trackID, c.timeout)
		}
		detail := strings.TrimSpace(string(stderr))
		if len(detail) > 500 {
			detail = detail[:500]
		}
		return nil, fmt.Errorf("%w: %v: %s", shared.ErrExtraction, err, detail)
	}

	var info TrackInfo
	if err := json.Unmarshal(stdout, &info); err != nil {
		return nil, fmt.Errorf("%w: unparseable extractor output: %v", shared.ErrExtraction, err)
	}
	if info.ID == "" {
		info.ID = trackID
	}

	c.logger.Debug("extraction complete", "track", trackID, "formats", len(info.Formats), "elapsed", time.Since(start))
	return &info, nil
}

// appendCommonArgs adds proxy and cookie arguments shared by every subprocess call.
func (c *Client) appendCommonArgs(args []string) []string {
	if c.proxyURL != "" {
		args = append(args, "--proxy", c.proxyURL)
	}
	if c.cookies != nil {
		if path := c.cookies.FilePath(); path != "" {
			args = append(args, "--cookies", path)
		}
	}
	return args
}

// runCommand executes a subprocess and returns its stdout and stderr.
func runCommand(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}
