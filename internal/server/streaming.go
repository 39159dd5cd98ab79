package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/J-Derek/onyxandroid/internal/extractor"
	"github.com/J-Derek/onyxandroid/internal/shared"
	"github.com/J-Derek/onyxandroid/internal/stream"
	"github.com/charmbracelet/log"
)

// StreamHandler serves the /stream endpoints: proxied audio, prefetch, info
// and stats.
type StreamHandler struct {
	engine  *stream.Engine
	pipe    *extractor.Client
	cookies *extractor.CookieJar
	logger  *log.Logger

	// upstream performs signed-URL fetches; swapped for httptest clients in tests.
	upstream *http.Client
	// timeout bounds how long a stream request waits on extraction.
	timeout time.Duration
	// firstChunkWait bounds how long a pipe strategy may take to produce bytes.
	firstChunkWait time.Duration
	// spawn launches the pipe fallback subprocess; replaced in tests.
	spawn spawnFunc
}

// StreamHandlerOpts configures a [StreamHandler].
type StreamHandlerOpts struct {
	Engine         *stream.Engine
	Pipe           *extractor.Client
	Cookies        *extractor.CookieJar
	Upstream       *http.Client
	Timeout        time.Duration
	FirstChunkWait time.Duration
	Logger         *log.Logger
}

// NewStreamHandler creates the streaming handler.
func NewStreamHandler(opts StreamHandlerOpts) *StreamHandler {
	if opts.Upstream == nil {
		opts.Upstream = &http.Client{Timeout: 2 * time.Minute}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 45 * time.Second
	}
	if opts.FirstChunkWait <= 0 {
		opts.FirstChunkWait = 15 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &StreamHandler{
		engine:         opts.Engine,
		pipe:           opts.Pipe,
		cookies:        opts.Cookies,
		logger:         opts.Logger,
		upstream:       opts.Upstream,
		timeout:        opts.Timeout,
		firstChunkWait: opts.FirstChunkWait,
		spawn:          spawnPipeProcess,
	}
}

// Routes returns the route patterns this handler serves.
func (h *StreamHandler) Routes() []string {
	return []string{"GET /stream/", "GET /stream/stats"}
}

// ServeHTTP dispatches /stream/{trackId}[/prefetch|/info] and /stream/stats.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/stream/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")

	switch {
	case len(parts) == 1 && parts[0] == "stats":
		writeJSON(w, http.StatusOK, h.engine.Stats())
	case len(parts) == 1 && parts[0] != "":
		h.handleStream(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "prefetch":
		h.handlePrefetch(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "info":
		h.handleInfo(w, r, parts[0])
	default:
		writeError(w, http.StatusNotFound, "unknown stream route", false)
	}
}

// handleStream resolves an artifact (urgent path) and proxies the audio body.
func (h *StreamHandler) handleStream(w http.ResponseWriter, r *http.Request, trackID string) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	artifact, err := h.engine.Resolve(ctx, trackID, priorityParam(r, stream.PriorityUrgent))
	switch {
	case err == nil:
		h.proxyStream(w, r, artifact)
	case errors.Is(err, shared.ErrNoFormatAvailable):
		h.logger.Warn("no progressive format, using pipe fallback", "track", trackID)
		h.pipeStream(w, r, trackID)
	case errors.Is(err, shared.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, "stream authorization timed out, please try again", true)
	default:
		h.logger.Error("extraction failed", "track", trackID, "error", err)
		writeError(w, http.StatusBadGateway, err.Error(), false)
	}
}

// handlePrefetch enqueues a speculative extraction and returns immediately.
func (h *StreamHandler) handlePrefetch(w http.ResponseWriter, r *http.Request, trackID string) {
	priority := priorityParam(r, stream.PriorityVisible)
	_, cached := h.engine.Cached(trackID)
	queued := false
	if !cached {
		queued = h.engine.Prefetch(trackID, priority)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"trackId":  trackID,
		"queued":   queued,
		"cached":   cached,
		"priority": priority,
	})
}

// handleInfo returns display metadata, resolving through the background path
// on cache miss.
func (h *StreamHandler) handleInfo(w http.ResponseWriter, r *http.Request, trackID string) {
	if artifact, ok := h.engine.Cached(trackID); ok {
		writeJSON(w, http.StatusOK, artifact)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	artifact, err := h.engine.Resolve(ctx, trackID, stream.PriorityNext)
	if err != nil {
		if errors.Is(err, shared.ErrTimeout) {
			writeError(w, http.StatusGatewayTimeout, "metadata lookup timed out", true)
			return
		}
		writeError(w, http.StatusBadGateway, err.Error(), false)
		return
	}
	writeJSON(w, http.StatusOK, artifact)
}

// priorityParam parses ?priority=N, defaulting and clamping to the known tiers.
func priorityParam(r *http.Request, def int) int {
	raw := r.URL.Query().Get("priority")
	if raw == "" {
		return def
	}
	p, err := strconv.Atoi(raw)
	if err != nil || p < stream.PriorityUrgent {
		return def
	}
	return p
}
