package library

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/J-Derek/onyxandroid/internal/shared"
	_ "github.com/mattn/go-sqlite3"
)

func testRepo(t *testing.T, downloadsDir string) *TrackRepository {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo := NewTrackRepository(db, downloadsDir)
	if err := repo.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	return repo
}

func TestTrackCreateAndGet(t *testing.T) {
	repo := testRepo(t, "")

	track := &Track{
		VideoID:     "abc123",
		Title:       "A Song",
		Artist:      "Someone",
		FilePath:    "/data/abc123.m4a",
		ContentType: "audio/mp4",
		Duration:    215,
	}
	if err := repo.Create(track); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if track.ID == 0 {
		t.Fatal("Create() should assign a row id")
	}

	got, err := repo.Get(track.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.VideoID != "abc123" || got.Title != "A Song" || got.FilePath != "/data/abc123.m4a" {
		t.Errorf("Get() = %+v", got)
	}
}

func TestTrackCreateValidation(t *testing.T) {
	repo := testRepo(t, "")

	err := repo.Create(&Track{Title: "No IDs"})
	if !errors.Is(err, shared.ErrInvalidInput) {
		t.Errorf("Create() error = %v, want ErrInvalidInput", err)
	}
}

func TestTrackGetMissing(t *testing.T) {
	repo := testRepo(t, "")

	_, err := repo.Get(42)
	if !errors.Is(err, shared.ErrTrackNotFound) {
		t.Errorf("Get() error = %v, want ErrTrackNotFound", err)
	}
}

func TestTrackGetByVideoIDReturnsNewest(t *testing.T) {
	repo := testRepo(t, "")

	for _, path := range []string{"/old.m4a", "/new.m4a"} {
		if err := repo.Create(&Track{VideoID: "abc123", FilePath: path}); err != nil {
			t.Fatal(err)
		}
	}

	got, err := repo.GetByVideoID("abc123")
	if err != nil {
		t.Fatalf("GetByVideoID() error = %v", err)
	}
	if got.FilePath != "/new.m4a" {
		t.Errorf("GetByVideoID() path = %q, want newest row", got.FilePath)
	}
}

func TestTrackListNewestFirst(t *testing.T) {
	repo := testRepo(t, "")

	for _, id := range []string{"first", "second", "third"} {
		if err := repo.Create(&Track{VideoID: id, FilePath: "/" + id}); err != nil {
			t.Fatal(err)
		}
	}

	tracks, err := repo.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(tracks) != 3 {
		t.Fatalf("List() count = %d", len(tracks))
	}
	if tracks[0].VideoID != "third" {
		t.Errorf("List() first = %q, want newest", tracks[0].VideoID)
	}
}

func TestTrackDelete(t *testing.T) {
	repo := testRepo(t, "")

	track := &Track{VideoID: "abc123", FilePath: "/x"}
	if err := repo.Create(track); err != nil {
		t.Fatal(err)
	}
	if err := repo.Delete(track.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if err := repo.Delete(track.ID); !errors.Is(err, shared.ErrTrackNotFound) {
		t.Errorf("second Delete() error = %v, want ErrTrackNotFound", err)
	}
}

func TestResolveFilePrefersStoredPath(t *testing.T) {
	dir := t.TempDir()
	stored := filepath.Join(dir, "stored.m4a")
	if err := os.WriteFile(stored, []byte("audio"), 0644); err != nil {
		t.Fatal(err)
	}

	repo := testRepo(t, dir)
	track := &Track{VideoID: "abc123", FilePath: stored}
	if err := repo.Create(track); err != nil {
		t.Fatal(err)
	}

	got, err := repo.ResolveFile(track.ID)
	if err != nil {
		t.Fatalf("ResolveFile() error = %v", err)
	}
	if got != stored {
		t.Errorf("ResolveFile() = %q, want %q", got, stored)
	}
}

func TestResolveFileFallsBackToDownloadsDir(t *testing.T) {
	dir := t.TempDir()
	fallback := filepath.Join(dir, "abc123.webm")
	if err := os.WriteFile(fallback, []byte("audio"), 0644); err != nil {
		t.Fatal(err)
	}

	repo := testRepo(t, dir)
	track := &Track{VideoID: "abc123", FilePath: filepath.Join(dir, "gone.m4a")}
	if err := repo.Create(track); err != nil {
		t.Fatal(err)
	}

	got, err := repo.ResolveFile(track.ID)
	if err != nil {
		t.Fatalf("ResolveFile() error = %v", err)
	}
	if got != fallback {
		t.Errorf("ResolveFile() = %q, want downloads fallback %q", got, fallback)
	}
}

func TestResolveFileNothingOnDisk(t *testing.T) {
	repo := testRepo(t, t.TempDir())
	track := &Track{VideoID: "abc123", FilePath: "/nowhere/abc123.m4a"}
	if err := repo.Create(track); err != nil {
		t.Fatal(err)
	}

	_, err := repo.ResolveFile(track.ID)
	if !errors.Is(err, shared.ErrTrackNotFound) {
		t.Errorf("ResolveFile() error = %v, want ErrTrackNotFound", err)
	}
}
