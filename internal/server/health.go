package server

import (
	"net/http"

	"github.com/J-Derek/onyxandroid/internal/stream"
)

// HealthHandler reports process liveness and engine warm-up state.
type HealthHandler struct {
	engine *stream.Engine
}

// NewHealthHandler creates the health handler.
func NewHealthHandler(engine *stream.Engine) *HealthHandler {
	return &HealthHandler{engine: engine}
}

// Routes returns the route patterns this handler serves.
func (h *HealthHandler) Routes() []string {
	return []string{"GET /health"}
}

// ServeHTTP returns 200 with the warm-up flag. The process is healthy even
// before warm-up; clients use warmedUp to decide whether first-play latency
// will include a cold extraction.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	stats := h.engine.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"warmedUp": stats.WarmedUp,
	})
}
