package extractor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/J-Derek/onyxandroid/internal/shared"
)

// Download fetches the best available audio for trackID into destDir and
// returns the path of the written file.
//
// The output template names the file after the video id so later lookups
// can find it without consulting a database. The final path is taken from
// the tool's own report rather than guessed, since the chosen container
// extension is not known ahead of time.
func (c *Client) Download(ctx context.Context, trackID, destDir string) (string, error) {
	args := []string{
		"-f", "bestaudio/best",
		"--no-playlist",
		"--no-warnings",
		"--no-simulate",
		"--print", "after_move:filepath",
		"-o", filepath.Join(destDir, "%(id)s.%(ext)s"),
	}
	args = c.appendCommonArgs(args)
	args = append(args, watchURLPrefix+trackID)

	stdout, stderr, err := c.run(ctx, c.binary, args...)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return "", fmt.Errorf("%w: download of %s cancelled", shared.ErrTimeout, trackID)
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: download of %s timed out", shared.ErrTimeout, trackID)
		}
		return "", fmt.Errorf("%w: download of %s failed: %v: %s", shared.ErrExtraction, trackID, err, firstLine(stderr))
	}

	path := strings.TrimSpace(string(stdout))
	if path == "" {
		return "", fmt.Errorf("%w: download of %s reported no output file", shared.ErrExtraction, trackID)
	}

	// --print can emit several lines when the tool post-processes; the
	// last one is the final location.
	lines := strings.Split(path, "\n")
	return strings.TrimSpace(lines[len(lines)-1]), nil
}

// firstLine trims stderr output down to its leading line for error messages.
func firstLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}
