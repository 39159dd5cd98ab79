package server

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"strings"

	"github.com/J-Derek/onyxandroid/internal/extractor"
	"github.com/J-Derek/onyxandroid/internal/shared"
)

// pipeProcess is one spawned extraction-and-download process writing audio
// bytes to its stdout.
type pipeProcess interface {
	Stdout() io.Reader
	StderrText() string // captured stderr, for diagnostics after failure
	Close()             // terminate and reap; safe on every exit path
}

// spawnFunc launches a pipe subprocess. Replaced by a fake in tests.
type spawnFunc func(ctx context.Context, name string, args ...string) (pipeProcess, error)

// execPipeProcess runs a real subprocess via os/exec.
type execPipeProcess struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc
	stdout io.ReadCloser
	stderr *bytes.Buffer
}

func spawnPipeProcess(ctx context.Context, name string, args ...string) (pipeProcess, error) {
	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, name, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", shared.ErrProcessSpawn, err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", shared.ErrProcessSpawn, err)
	}

	return &execPipeProcess{cmd: cmd, cancel: cancel, stdout: stdout, stderr: &stderr}, nil
}

func (p *execPipeProcess) Stdout() io.Reader { return p.stdout }

func (p *execPipeProcess) StderrText() string {
	return strings.TrimSpace(p.stderr.String())
}

// Close kills the process via context cancellation and reaps it.
func (p *execPipeProcess) Close() {
	p.cancel()
	p.stdout.Close()
	p.cmd.Wait()
}

// firstRead carries the result of the bounded first-chunk read.
type firstRead struct {
	buf []byte
	err error
}

// pipeStream streams audio through a subprocess pipe when no progressive
// format exists for this network origin.
//
// Strategies are attempted in order; one succeeds only once a non-empty
// first chunk arrives within the bounded wait. Seeking is not supported in
// this mode and the response says so via Accept-Ranges: none. The content
// type is sniffed from the leading bytes because nothing declares it in
// advance.
func (h *StreamHandler) pipeStream(w http.ResponseWriter, r *http.Request, trackID string) {
	strategies := extractor.PipeStrategies(h.cookies)

	for _, strategy := range strategies {
		if r.Context().Err() != nil {
			return
		}
		if h.tryPipeStrategy(w, r, trackID, strategy) {
			return
		}
	}

	writeError(w, http.StatusBadGateway,
		fmt.Sprintf("all %d pipe strategies exhausted for %s: this track cannot be streamed", len(strategies), trackID),
		false)
}

// tryPipeStrategy runs one strategy to completion. Returns true when the
// response has been written (success or client disconnect), false when the
// next strategy should be tried.
func (h *StreamHandler) tryPipeStrategy(w http.ResponseWriter, r *http.Request, trackID string, strategy extractor.PipeStrategy) bool {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	name, args := h.pipe.StreamCommand(strategy, trackID)
	proc, err := h.spawn(ctx, name, args...)
	if err != nil {
		h.logger.Warn("pipe spawn failed", "track", trackID, "strategy", strategy.Name, "error", err)
		return false
	}
	defer proc.Close()

	first := make(chan firstRead, 1)
	go func() {
		buf := make([]byte, proxyChunkSize)
		n, readErr := io.ReadAtLeast(proc.Stdout(), buf, 1)
		first <- firstRead{buf: buf[:n], err: readErr}
	}()

	waitCtx, waitCancel := context.WithTimeout(ctx, h.firstChunkWait)
	defer waitCancel()

	select {
	case fr := <-first:
		if len(fr.buf) == 0 {
			h.logger.Warn("pipe strategy produced no output",
				"track", trackID, "strategy", strategy.Name, "stderr", proc.StderrText())
			return false
		}
		h.streamPipeBody(w, r, trackID, strategy, proc, fr.buf)
		return true
	case <-waitCtx.Done():
		if r.Context().Err() != nil {
			// Client gone; stop trying strategies.
			return true
		}
		h.logger.Warn("pipe strategy timed out waiting for first chunk",
			"track", trackID, "strategy", strategy.Name, "stderr", proc.StderrText())
		return false
	}
}

// streamPipeBody writes the first chunk and forwards the rest of the pipe.
func (h *StreamHandler) streamPipeBody(w http.ResponseWriter, r *http.Request, trackID string, strategy extractor.PipeStrategy, proc pipeProcess, first []byte) {
	header := w.Header()
	header.Set("Content-Type", sniffAudioType(first))
	header.Set("Accept-Ranges", "none")
	header.Set("Cache-Control", "no-cache")
	header.Set("X-Content-Type-Options", "nosniff")
	header.Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	if _, err := w.Write(first); err != nil {
		return
	}
	if flusher != nil {
		flusher.Flush()
	}

	h.logger.Info("pipe stream started", "track", trackID, "strategy", strategy.Name)

	buf := make([]byte, proxyChunkSize)
	for {
		n, readErr := proc.Stdout().Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr != nil {
			return
		}
	}
}

// sniffAudioType detects the container from the leading bytes of the stream.
func sniffAudioType(b []byte) string {
	switch {
	case len(b) >= 3 && bytes.Equal(b[:3], []byte("ID3")):
		return "audio/mpeg"
	case len(b) >= 2 && b[0] == 0xFF && b[1]&0xE0 == 0xE0:
		return "audio/mpeg" // bare MPEG frame sync
	case len(b) >= 12 && bytes.Equal(b[4:8], []byte("ftyp")):
		return "audio/mp4"
	case len(b) >= 4 && bytes.Equal(b[:4], []byte("OggS")):
		return "audio/ogg"
	case len(b) >= 4 && binary.BigEndian.Uint32(b[:4]) == 0x1A45DFA3:
		return "audio/webm" // EBML header (webm/mkv)
	case len(b) >= 4 && bytes.Equal(b[:4], []byte("fLaC")):
		return "audio/flac"
	case len(b) >= 12 && bytes.Equal(b[:4], []byte("RIFF")) && bytes.Equal(b[8:12], []byte("WAVE")):
		return "audio/wav"
	default:
		return http.DetectContentType(b)
	}
}
