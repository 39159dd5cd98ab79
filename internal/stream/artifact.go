package stream

import "time"

// SafetyMargin is the pessimistic validity window: an artifact this close to
// its expiry is treated as already expired so it cannot die mid-transfer.
const SafetyMargin = 90 * time.Second

// Artifact is a resolved, time-limited authorization to fetch bytes for a
// track. Artifacts are immutable; a refresh replaces the whole value.
type Artifact struct {
	TrackID     string `json:"trackId"`
	URL         string `json:"-"`
	ContentType string `json:"contentType"`

	ExpiresAt time.Time `json:"expiresAt"`

	// Display metadata captured during extraction.
	Title           string `json:"title,omitempty"`
	Artist          string `json:"artist,omitempty"`
	ThumbnailURL    string `json:"thumbnailUrl,omitempty"`
	DurationSeconds int    `json:"durationSeconds,omitempty"`
}

// ValidAt reports whether the artifact is usable at the given instant,
// honoring the safety margin.
func (a *Artifact) ValidAt(now time.Time) bool {
	return now.Add(SafetyMargin).Before(a.ExpiresAt)
}

// Valid reports whether the artifact is usable right now.
func (a *Artifact) Valid() bool {
	return a.ValidAt(time.Now())
}
