package extractor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/J-Derek/onyxandroid/internal/shared"
	"github.com/charmbracelet/log"
)

// browsers yt-dlp can export cookies from, tried after the preferred one.
var browsers = []string{"brave", "chrome", "edge", "firefox", "opera", "vivaldi", "safari"}

// cookieFileTTL bounds how long an exported cookie file is trusted before a
// re-export is attempted.
const cookieFileTTL = 4 * time.Hour

// CookieJar manages the one-time cookie bootstrap for the extraction handles.
//
// Manual cookie files always win; otherwise cookies are exported from a local
// browser into a cached Netscape file. The export is the slow part (several
// seconds), so it happens once at startup rather than per extraction.
type CookieJar struct {
	binary      string
	preferred   string
	manualPaths []string
	cacheFile   string
	logger      *log.Logger

	mu          sync.Mutex
	filePath    string
	extractedAt time.Time
	browser     string

	run func(ctx context.Context, name string, args ...string) ([]byte, []byte, error)
}

// CookieOptions configures a [CookieJar].
type CookieOptions struct {
	Binary      string   // yt-dlp binary used for the browser export
	Preferred   string   // browser tried first
	ManualPaths []string // cookie files checked before any export
	CacheFile   string   // where the exported Netscape file lives
	Logger      *log.Logger
}

// NewCookieJar creates a cookie jar with the provided options.
func NewCookieJar(opts CookieOptions) *CookieJar {
	if opts.Binary == "" {
		opts.Binary = "yt-dlp"
	}
	if opts.Preferred == "" {
		opts.Preferred = "brave"
	}
	if opts.CacheFile == "" {
		opts.CacheFile = filepath.Join(os.TempDir(), "onyx_youtube_cookies.txt")
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &CookieJar{
		binary:      opts.Binary,
		preferred:   opts.Preferred,
		manualPaths: opts.ManualPaths,
		cacheFile:   opts.CacheFile,
		logger:      opts.Logger,
		run:         runCommand,
	}
}

// FilePath returns the current valid cookie file path, or "" when no cookies
// are available. Never blocks on an export.
func (j *CookieJar) FilePath() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.validLocked() {
		return j.filePath
	}
	return ""
}

// Browser returns the browser the cached cookie file was exported from.
func (j *CookieJar) Browser() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.browser
}

// validLocked refreshes and checks the cached cookie state. Caller holds mu.
func (j *CookieJar) validLocked() bool {
	// Manual cookie files take priority and never expire.
	for _, path := range j.manualPaths {
		if info, err := os.Stat(path); err == nil && info.Size() > 0 {
			j.filePath = path
			j.extractedAt = info.ModTime()
			return true
		}
	}

	info, err := os.Stat(j.cacheFile)
	if err != nil || info.Size() == 0 {
		return false
	}
	if time.Since(info.ModTime()) >= cookieFileTTL {
		return false
	}

	j.filePath = j.cacheFile
	j.extractedAt = info.ModTime()
	return true
}

// Bootstrap ensures a usable cookie file exists, exporting browser cookies
// when the cache is missing or stale.
//
// A failed bootstrap is not fatal: extraction proceeds without cookies and
// relies on the android client chain.
func (j *CookieJar) Bootstrap(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.validLocked() {
		j.logger.Info("using cookie file", "path", j.filePath)
		return nil
	}

	order := append([]string{j.preferred}, otherBrowsers(j.preferred)...)
	j.logger.Info("exporting browser cookies (one-time operation)")

	for _, browser := range order {
		args := []string{
			"--cookies-from-browser", browser,
			"--cookies", j.cacheFile,
			"--skip-download",
			"--extract-flat", "in_playlist",
			"--no-warnings",
			watchURLPrefix + "dQw4w9WgXcQ",
		}
		if _, _, err := j.run(ctx, j.binary, args...); err != nil {
			j.logger.Debug("cookie export failed", "browser", browser, "error", err)
			continue
		}

		if info, err := os.Stat(j.cacheFile); err == nil && info.Size() > 0 {
			j.filePath = j.cacheFile
			j.extractedAt = time.Now()
			j.browser = browser
			j.logger.Info("exported cookies", "browser", browser, "path", j.cacheFile)
			return nil
		}
	}

	return fmt.Errorf("cookie export failed for all browsers")
}

func otherBrowsers(preferred string) []string {
	rest := make([]string, 0, len(browsers))
	for _, b := range browsers {
		if b != preferred {
			rest = append(rest, b)
		}
	}
	return rest
}

// PipeStrategy describes one attempt profile for the subprocess-pipe stream.
type PipeStrategy struct {
	Name         string
	PlayerClient string
	UseCookies   bool
}

// PipeStrategies returns the ordered attempt list for the pipe fallback.
//
// Cookie-less android clients go first since they work from most networks;
// the cookie-backed web client is the last resort for region or age gated
// tracks. Strategies requiring cookies are skipped when the jar has none.
func PipeStrategies(jar *CookieJar) []PipeStrategy {
	strategies := []PipeStrategy{
		{Name: "android_music", PlayerClient: "android_music"},
		{Name: "android", PlayerClient: "android"},
		{Name: "web+cookies", PlayerClient: "web", UseCookies: true},
		{Name: "web", PlayerClient: "web"},
	}

	if jar == nil || jar.FilePath() == "" {
		kept := strategies[:0]
		for _, s := range strategies {
			if !s.UseCookies {
				kept = append(kept, s)
			}
		}
		return kept
	}
	return strategies
}

// StreamCommand returns the binary and argument list that downloads a track's
// audio straight to stdout under the given strategy.
func (c *Client) StreamCommand(s PipeStrategy, trackID string) (string, []string) {
	args := []string{
		"-f", "bestaudio/best",
		"-o", "-",
		"--no-playlist",
		"--no-warnings",
		"--quiet",
		"--extractor-args", "youtube:player_client=" + s.PlayerClient,
	}
	if c.proxyURL != "" {
		args = append(args, "--proxy", c.proxyURL)
	}
	if s.UseCookies && c.cookies != nil {
		if path := c.cookies.FilePath(); path != "" {
			args = append(args, "--cookies", path)
		}
	}
	args = append(args, watchURLPrefix+trackID)
	return c.binary, args
}
