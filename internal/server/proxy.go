package server

import (
	"fmt"
	"io"
	"net/http"

	"github.com/J-Derek/onyxandroid/internal/shared"
	"github.com/J-Derek/onyxandroid/internal/stream"
)

// proxyChunkSize is deliberately small to minimize time-to-first-byte.
const proxyChunkSize = 64 * 1024

// browserUserAgent is sent upstream; the CDN rejects bare client requests.
const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// passthroughHeaders must be forwarded exactly for range-based media playback
// to work in browsers.
var passthroughHeaders = []string{
	"Content-Length",
	"Content-Range",
	"Accept-Ranges",
	"Last-Modified",
	"ETag",
}

// proxyStream forwards the signed-URL body to the caller with byte-range
// semantics intact.
//
// The caller's Range header is forwarded verbatim. Upstream statuses >= 400
// are surfaced as JSON errors; 403 is annotated because it almost always
// means the streaming IP differs from the extraction IP. Once bytes are
// flowing, upstream read errors are swallowed and the client sees a
// truncated stream.
func (h *StreamHandler) proxyStream(w http.ResponseWriter, r *http.Request, artifact *stream.Artifact) {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, artifact.URL, nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to build upstream request", false)
		return
	}

	req.Header.Set("User-Agent", browserUserAgent)
	if rng := r.Header.Get("Range"); rng != "" {
		req.Header.Set("Range", rng)
	}

	resp, err := h.upstream.Do(req)
	if err != nil {
		h.logger.Error("upstream connection failed", "track", artifact.TrackID, "error", err)
		writeError(w, http.StatusBadGateway, "upstream connection failed", true)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		statusErr := fmt.Errorf("%w: %d", shared.ErrUpstreamStatus, resp.StatusCode)
		h.logger.Warn("upstream error", "track", artifact.TrackID, "error", statusErr, "body", string(body))

		detail := statusErr.Error()
		if resp.StatusCode == http.StatusForbidden {
			detail += ": the streaming IP likely does not match the extraction IP (IP-locking)"
		}
		writeError(w, resp.StatusCode, detail, false)
		return
	}

	header := w.Header()
	header.Set("Cache-Control", "no-cache")
	header.Set("X-Content-Type-Options", "nosniff")
	header.Set("Access-Control-Allow-Origin", "*")
	header.Set("Access-Control-Expose-Headers", "Content-Length, Content-Range, Content-Type, Accept-Ranges")
	for _, name := range passthroughHeaders {
		if v := resp.Header.Get(name); v != "" {
			header.Set(name, v)
		}
	}

	// Trust the CDN's label for the bytes it is actually serving; the MIME
	// type chosen at format selection only covers for an unlabeled response.
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = artifact.ContentType
	}
	header.Set("Content-Type", contentType)
	w.WriteHeader(resp.StatusCode)

	flusher, _ := w.(http.Flusher)
	buf := make([]byte, proxyChunkSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				// Client disconnected; upstream body is closed by the defer.
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr != nil {
			if readErr != io.EOF {
				h.logger.Debug("upstream read ended early", "track", artifact.TrackID, "error", readErr)
			}
			return
		}
	}
}
