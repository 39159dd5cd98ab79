package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/J-Derek/onyxandroid/internal/downloads"
	"github.com/J-Derek/onyxandroid/internal/shared"
	"github.com/charmbracelet/log"
)

// DownloadsHandler exposes the background download manager under /downloads.
type DownloadsHandler struct {
	manager *downloads.Manager
	logger  *log.Logger
}

// NewDownloadsHandler creates the downloads handler.
func NewDownloadsHandler(manager *downloads.Manager, logger *log.Logger) *DownloadsHandler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &DownloadsHandler{manager: manager, logger: logger}
}

// Routes returns the route patterns this handler serves. The task routes are
// method-qualified so the router rejects anything but start, inspect and
// cancel; dispatch between those stays here.
func (h *DownloadsHandler) Routes() []string {
	return []string{
		"POST /downloads",
		"GET /downloads",
		"GET /downloads/",
		"DELETE /downloads/",
	}
}

// ServeHTTP dispatches POST /downloads, GET /downloads and
// GET|DELETE /downloads/{taskId}.
func (h *DownloadsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	taskID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/downloads"), "/")

	switch {
	case taskID == "" && r.Method == http.MethodPost:
		h.handleStart(w, r)
	case taskID == "" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"tasks": h.manager.List()})
	case taskID != "" && r.Method == http.MethodGet:
		h.handleGet(w, taskID)
	case taskID != "" && r.Method == http.MethodDelete:
		h.handleCancel(w, taskID)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleStart accepts {"videoId": "..."} and returns the created task.
func (h *DownloadsHandler) handleStart(w http.ResponseWriter, r *http.Request) {
	var body struct {
		VideoID string `json:"videoId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "request body must be JSON with a videoId field", false)
		return
	}

	task, err := h.manager.Start(body.VideoID)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error(), false)
			return
		}
		h.logger.Error("download start failed", "video", body.VideoID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not start download", true)
		return
	}

	writeJSON(w, http.StatusAccepted, task)
}

func (h *DownloadsHandler) handleGet(w http.ResponseWriter, taskID string) {
	task, err := h.manager.Get(taskID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error(), false)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *DownloadsHandler) handleCancel(w http.ResponseWriter, taskID string) {
	err := h.manager.Cancel(taskID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"taskId": taskID, "cancelled": true})
	case errors.Is(err, shared.ErrTaskNotFound):
		writeError(w, http.StatusNotFound, err.Error(), false)
	default:
		writeError(w, http.StatusConflict, err.Error(), false)
	}
}
