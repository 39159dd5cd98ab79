package library

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/J-Derek/onyxandroid/internal/shared"
)

// audioExtensions lists the container suffixes a downloads-directory scan
// recognizes, in preference order.
var audioExtensions = []string{".m4a", ".webm", ".opus", ".mp3", ".ogg", ".flac"}

// Track is one locally stored audio file and its metadata.
type Track struct {
	ID          int64     `json:"id"`
	VideoID     string    `json:"videoId"`
	Title       string    `json:"title"`
	Artist      string    `json:"artist"`
	FilePath    string    `json:"-"`
	ContentType string    `json:"contentType"`
	Duration    int       `json:"durationSeconds"`
	CreatedAt   time.Time `json:"createdAt"`
}

// TrackRepository stores [Track] rows in sqlite.
type TrackRepository struct {
	db           *sql.DB
	downloadsDir string
}

// NewTrackRepository creates a repository over db, scanning downloadsDir as
// a fallback for files that were never registered.
func NewTrackRepository(db *sql.DB, downloadsDir string) *TrackRepository {
	return &TrackRepository{db: db, downloadsDir: downloadsDir}
}

// Init creates the tracks table when it does not exist.
func (r *TrackRepository) Init() error {
	query := `
		CREATE TABLE IF NOT EXISTS tracks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			video_id TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			artist TEXT NOT NULL DEFAULT '',
			file_path TEXT NOT NULL,
			content_type TEXT NOT NULL DEFAULT '',
			duration INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_tracks_video_id ON tracks(video_id);
	`

	if _, err := r.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create tracks table: %w", err)
	}

	return nil
}

// Create inserts a new track row and sets its generated ID.
func (r *TrackRepository) Create(track *Track) error {
	if track.VideoID == "" || track.FilePath == "" {
		return fmt.Errorf("%w: track requires a video id and a file path", shared.ErrInvalidInput)
	}

	if track.CreatedAt.IsZero() {
		track.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO tracks (video_id, title, artist, file_path, content_type, duration, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Exec(query,
		track.VideoID,
		track.Title,
		track.Artist,
		track.FilePath,
		track.ContentType,
		track.Duration,
		track.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert track: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read inserted id: %w", err)
	}

	track.ID = id
	return nil
}

// Get retrieves a track by its integer row id.
func (r *TrackRepository) Get(id int64) (*Track, error) {
	query := `
		SELECT id, video_id, title, artist, file_path, content_type, duration, created_at
		FROM tracks
		WHERE id = ?
	`

	return r.scanOne(r.db.QueryRow(query, id))
}

// GetByVideoID retrieves the most recently stored track for a video id.
func (r *TrackRepository) GetByVideoID(videoID string) (*Track, error) {
	query := `
		SELECT id, video_id, title, artist, file_path, content_type, duration, created_at
		FROM tracks
		WHERE video_id = ?
		ORDER BY id DESC
		LIMIT 1
	`

	return r.scanOne(r.db.QueryRow(query, videoID))
}

// List retrieves all stored tracks, newest first.
func (r *TrackRepository) List() ([]*Track, error) {
	query := `
		SELECT id, video_id, title, artist, file_path, content_type, duration, created_at
		FROM tracks
		ORDER BY id DESC
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []*Track
	for rows.Next() {
		var t Track
		if err := rows.Scan(&t.ID, &t.VideoID, &t.Title, &t.Artist, &t.FilePath, &t.ContentType, &t.Duration, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan track: %w", err)
		}
		tracks = append(tracks, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return tracks, nil
}

// Delete removes a track row. The audio file on disk is left alone.
func (r *TrackRepository) Delete(id int64) error {
	result, err := r.db.Exec(`DELETE FROM tracks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete track: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %d", shared.ErrTrackNotFound, id)
	}

	return nil
}

// ResolveFile returns the on-disk path for a track id. When the stored path
// no longer exists, or the row is missing entirely, the downloads directory
// is scanned for a file named after the track's video id.
func (r *TrackRepository) ResolveFile(id int64) (string, error) {
	track, err := r.Get(id)
	if err != nil {
		return "", err
	}

	if track.FilePath != "" {
		if _, statErr := os.Stat(track.FilePath); statErr == nil {
			return track.FilePath, nil
		}
	}

	if path := r.scanDownloads(track.VideoID); path != "" {
		return path, nil
	}

	return "", fmt.Errorf("%w: no file on disk for track %d (%s)", shared.ErrTrackNotFound, id, track.VideoID)
}

// scanDownloads looks for <videoID><ext> in the downloads directory.
func (r *TrackRepository) scanDownloads(videoID string) string {
	if r.downloadsDir == "" || videoID == "" {
		return ""
	}

	for _, ext := range audioExtensions {
		candidate := filepath.Join(r.downloadsDir, videoID+ext)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	return ""
}

func (r *TrackRepository) scanOne(row *sql.Row) (*Track, error) {
	var t Track

	err := row.Scan(&t.ID, &t.VideoID, &t.Title, &t.Artist, &t.FilePath, &t.ContentType, &t.Duration, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: no such row", shared.ErrTrackNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan track: %w", err)
	}

	return &t, nil
}
