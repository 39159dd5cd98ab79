// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sync/atomic"
	"testing"

	"github.com/J-Derek/onyxandroid/internal/extractor"
)

// MockExtractor is a configurable test double for the engine's extraction
// dependency. Calls are counted so tests can assert deduplication.
type MockExtractor struct {
	Info  *extractor.TrackInfo
	Err   error
	Calls atomic.Int64

	// ExtractFunc overrides the canned Info/Err when set.
	ExtractFunc func(ctx context.Context, trackID string) (*extractor.TrackInfo, error)
}

func (m *MockExtractor) Extract(ctx context.Context, trackID string) (*extractor.TrackInfo, error) {
	m.Calls.Add(1)
	if m.ExtractFunc != nil {
		return m.ExtractFunc(ctx, trackID)
	}
	return m.Info, m.Err
}

// ProgressiveInfo builds a TrackInfo with a single streamable audio format,
// enough for the default happy path in engine and handler tests.
func ProgressiveInfo(trackID, title string) *extractor.TrackInfo {
	return &extractor.TrackInfo{
		ID:       trackID,
		Title:    title,
		Uploader: "Test Uploader",
		Duration: 200,
		Formats: []extractor.Format{
			{
				FormatID: "140",
				Protocol: "https",
				ACodec:   "mp4a.40.2",
				VCodec:   "none",
				Ext:      "m4a",
				URL:      "https://media.example/audio/" + trackID,
				ABR:      128,
			},
		},
	}
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
