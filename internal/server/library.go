package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/J-Derek/onyxandroid/internal/library"
	"github.com/J-Derek/onyxandroid/internal/shared"
	"github.com/charmbracelet/log"
)

// LibraryHandler serves locally stored tracks under /library.
type LibraryHandler struct {
	repo   *library.TrackRepository
	logger *log.Logger
}

// NewLibraryHandler creates the library handler.
func NewLibraryHandler(repo *library.TrackRepository, logger *log.Logger) *LibraryHandler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &LibraryHandler{repo: repo, logger: logger}
}

// Routes returns the route patterns this handler serves.
func (h *LibraryHandler) Routes() []string {
	return []string{"GET /library/tracks", "GET /library/tracks/"}
}

// ServeHTTP dispatches /library/tracks and /library/tracks/{id}[/stream].
func (h *LibraryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/library/tracks"), "/")
	if rest == "" {
		h.handleList(w)
		return
	}

	parts := strings.Split(rest, "/")
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "track id must be an integer", false)
		return
	}

	switch {
	case len(parts) == 1:
		h.handleGet(w, id)
	case len(parts) == 2 && parts[1] == "stream":
		h.handleStream(w, r, id)
	default:
		writeError(w, http.StatusNotFound, "unknown library route", false)
	}
}

func (h *LibraryHandler) handleList(w http.ResponseWriter) {
	tracks, err := h.repo.List()
	if err != nil {
		h.logger.Error("library list failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list tracks", true)
		return
	}
	if tracks == nil {
		tracks = []*library.Track{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tracks": tracks})
}

func (h *LibraryHandler) handleGet(w http.ResponseWriter, id int64) {
	track, err := h.repo.Get(id)
	if err != nil {
		if errors.Is(err, shared.ErrTrackNotFound) {
			writeError(w, http.StatusNotFound, err.Error(), false)
			return
		}
		h.logger.Error("library lookup failed", "track", id, "error", err)
		writeError(w, http.StatusInternalServerError, "track lookup failed", true)
		return
	}
	writeJSON(w, http.StatusOK, track)
}

// handleStream serves the track's audio file. http.ServeFile handles Range
// requests, so local playback seeks for free.
func (h *LibraryHandler) handleStream(w http.ResponseWriter, r *http.Request, id int64) {
	path, err := h.repo.ResolveFile(id)
	if err != nil {
		if errors.Is(err, shared.ErrTrackNotFound) {
			writeError(w, http.StatusNotFound, err.Error(), false)
			return
		}
		h.logger.Error("library file resolution failed", "track", id, "error", err)
		writeError(w, http.StatusInternalServerError, "could not resolve track file", true)
		return
	}

	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeFile(w, r, path)
}
