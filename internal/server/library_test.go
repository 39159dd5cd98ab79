package server

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/J-Derek/onyxandroid/internal/library"
	_ "github.com/mattn/go-sqlite3"
)

func libraryHandlerWith(t *testing.T, downloadsDir string) (*LibraryHandler, *library.TrackRepository) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	repo := library.NewTrackRepository(db, downloadsDir)
	if err := repo.Init(); err != nil {
		t.Fatal(err)
	}
	return NewLibraryHandler(repo, nil), repo
}

func TestLibraryStreamServesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "abc123.m4a")
	if err := os.WriteFile(path, []byte("local-audio-bytes"), 0644); err != nil {
		t.Fatal(err)
	}

	h, repo := libraryHandlerWith(t, dir)
	track := &library.Track{VideoID: "abc123", FilePath: path}
	if err := repo.Create(track); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/library/tracks/%d/stream", track.ID), nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "local-audio-bytes" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestLibraryStreamSupportsRange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "abc123.m4a")
	if err := os.WriteFile(path, []byte("0123456789"), 0644); err != nil {
		t.Fatal(err)
	}

	h, repo := libraryHandlerWith(t, dir)
	track := &library.Track{VideoID: "abc123", FilePath: path}
	if err := repo.Create(track); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/library/tracks/%d/stream", track.ID), nil)
	req.Header.Set("Range", "bytes=2-5")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206", rec.Code)
	}
	if rec.Body.String() != "2345" {
		t.Errorf("body = %q, want requested range", rec.Body.String())
	}
}

func TestLibraryStreamMissingTrack(t *testing.T) {
	h, _ := libraryHandlerWith(t, t.TempDir())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/library/tracks/42/stream", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestLibraryRejectsNonNumericID(t *testing.T) {
	h, _ := libraryHandlerWith(t, t.TempDir())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/library/tracks/notanumber/stream", nil))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestLibraryList(t *testing.T) {
	h, repo := libraryHandlerWith(t, t.TempDir())
	if err := repo.Create(&library.Track{VideoID: "abc123", FilePath: "/x", Title: "A Song"}); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/library/tracks", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Tracks []*library.Track `json:"tracks"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Tracks) != 1 || body.Tracks[0].Title != "A Song" {
		t.Errorf("list response = %+v", body.Tracks)
	}
}
