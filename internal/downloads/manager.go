package downloads

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/J-Derek/onyxandroid/internal/library"
	"github.com/J-Derek/onyxandroid/internal/shared"
	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

// Task status values, from acceptance through terminal states.
const (
	StatusQueued      = "queued"
	StatusDownloading = "downloading"
	StatusFinished    = "finished"
	StatusError       = "error"
	StatusCancelled   = "cancelled"
)

// Task is one download job and its observable state.
type Task struct {
	ID        string    `json:"taskId"`
	VideoID   string    `json:"videoId"`
	Status    string    `json:"status"`
	FilePath  string    `json:"filePath,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// terminal reports whether the task has reached a final state.
func (t *Task) terminal() bool {
	switch t.Status {
	case StatusFinished, StatusError, StatusCancelled:
		return true
	}
	return false
}

// Downloader fetches a track's audio into a directory and returns the
// written file's path. Satisfied by the extractor client.
type Downloader interface {
	Download(ctx context.Context, trackID, destDir string) (string, error)
}

// ManagerOpts configures a [Manager].
type ManagerOpts struct {
	Downloader    Downloader
	Dir           string                   // destination directory, created on demand
	MaxConcurrent int                      // simultaneous downloads (default: 3)
	RateLimit     float64                  // launches per second (default: 1)
	Library       *library.TrackRepository // optional; finished files are registered here
	Logger        *log.Logger
}

// Manager tracks download tasks and runs them with bounded concurrency.
type Manager struct {
	downloader  Downloader
	dir         string
	libraryRepo *library.TrackRepository
	sem         chan struct{}
	limiter     *rate.Limiter
	logger      *log.Logger

	mu      sync.Mutex
	tasks   map[string]*Task
	cancels map[string]context.CancelFunc

	wg     sync.WaitGroup
	closed bool
}

// NewManager creates a download manager with the given options.
func NewManager(opts ManagerOpts) (*Manager, error) {
	if opts.Downloader == nil {
		return nil, fmt.Errorf("%w: downloader is required", shared.ErrMissingConfig)
	}
	if opts.Dir == "" {
		return nil, fmt.Errorf("%w: downloads directory is required", shared.ErrMissingConfig)
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 3
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 1.0
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Manager{
		downloader:  opts.Downloader,
		dir:         opts.Dir,
		libraryRepo: opts.Library,
		sem:         make(chan struct{}, opts.MaxConcurrent),
		limiter:     rate.NewLimiter(rate.Limit(opts.RateLimit), 1),
		logger:      opts.Logger,
		tasks:       make(map[string]*Task),
		cancels:     make(map[string]context.CancelFunc),
	}, nil
}

// Start accepts a download job for videoID and returns its task record.
// The download itself runs in the background; poll [Manager.Get] for state.
func (m *Manager) Start(videoID string) (*Task, error) {
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return nil, fmt.Errorf("%w: video id is required", shared.ErrInvalidInput)
	}

	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create downloads directory: %w", err)
	}

	now := time.Now()
	task := &Task{
		ID:        shared.GenerateID(),
		VideoID:   videoID,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}

	ctx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		cancel()
		return nil, fmt.Errorf("%w: manager is shut down", shared.ErrInvalidInput)
	}
	m.tasks[task.ID] = task
	m.cancels[task.ID] = cancel
	m.wg.Add(1)
	m.mu.Unlock()

	go m.runTask(ctx, task)

	return m.snapshot(task.ID)
}

// Get returns a copy of the task's current state.
func (m *Manager) Get(taskID string) (*Task, error) {
	return m.snapshot(taskID)
}

// List returns copies of all known tasks, newest first.
func (m *Manager) List() []*Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		c := *t
		out = append(out, &c)
	}

	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].CreatedAt.After(out[i].CreatedAt) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}

	return out
}

// Cancel stops a running or queued task. Cancelling a finished task is an
// error so callers can distinguish a no-op from a real cancellation.
func (m *Manager) Cancel(taskID string) error {
	m.mu.Lock()
	task, ok := m.tasks[taskID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", shared.ErrTaskNotFound, taskID)
	}
	if task.terminal() {
		m.mu.Unlock()
		return fmt.Errorf("%w: task %s already %s", shared.ErrInvalidInput, taskID, task.Status)
	}
	cancel := m.cancels[taskID]
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return nil
}

// Close cancels every outstanding task and waits for workers to exit.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	for _, cancel := range m.cancels {
		cancel()
	}
	m.mu.Unlock()

	m.wg.Wait()
}

// runTask drives one task through the launch gate and the download.
func (m *Manager) runTask(ctx context.Context, task *Task) {
	defer m.wg.Done()
	defer m.release(task.ID)

	if err := m.limiter.Wait(ctx); err != nil {
		m.setCancelled(task.ID)
		return
	}

	select {
	case m.sem <- struct{}{}:
		defer func() { <-m.sem }()
	case <-ctx.Done():
		m.setCancelled(task.ID)
		return
	}

	m.setStatus(task.ID, StatusDownloading)
	m.logger.Info("download started", "task", task.ID, "video", task.VideoID)

	path, err := m.downloader.Download(ctx, task.VideoID, m.dir)
	if err != nil {
		if ctx.Err() != nil {
			m.setCancelled(task.ID)
			m.logger.Info("download cancelled", "task", task.ID, "video", task.VideoID)
			return
		}
		m.setError(task.ID, err)
		m.logger.Error("download failed", "task", task.ID, "video", task.VideoID, "error", err)
		return
	}

	m.setFinished(task.ID, path)
	m.logger.Info("download finished", "task", task.ID, "video", task.VideoID, "file", path)

	if m.libraryRepo != nil {
		track := &library.Track{
			VideoID:     task.VideoID,
			FilePath:    path,
			ContentType: contentTypeForFile(path),
		}
		if err := m.libraryRepo.Create(track); err != nil {
			m.logger.Warn("failed to register download in library", "task", task.ID, "error", err)
		}
	}
}

func (m *Manager) snapshot(taskID string) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrTaskNotFound, taskID)
	}

	c := *task
	return &c, nil
}

func (m *Manager) setStatus(taskID, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if task, ok := m.tasks[taskID]; ok && !task.terminal() {
		task.Status = status
		task.UpdatedAt = time.Now()
	}
}

func (m *Manager) setFinished(taskID, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if task, ok := m.tasks[taskID]; ok && !task.terminal() {
		task.Status = StatusFinished
		task.FilePath = path
		task.UpdatedAt = time.Now()
	}
}

func (m *Manager) setError(taskID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if task, ok := m.tasks[taskID]; ok && !task.terminal() {
		task.Status = StatusError
		task.Error = err.Error()
		task.UpdatedAt = time.Now()
	}
}

func (m *Manager) setCancelled(taskID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if task, ok := m.tasks[taskID]; ok && !task.terminal() {
		task.Status = StatusCancelled
		task.UpdatedAt = time.Now()
	}
}

// release drops the task's cancel func once the worker is done with it.
func (m *Manager) release(taskID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cancel, ok := m.cancels[taskID]; ok {
		cancel()
		delete(m.cancels, taskID)
	}
}

// contentTypeForFile maps a downloaded file's extension to a MIME type.
func contentTypeForFile(path string) string {
	switch filepath.Ext(path) {
	case ".m4a", ".mp4":
		return "audio/mp4"
	case ".webm":
		return "audio/webm"
	case ".opus", ".ogg":
		return "audio/ogg"
	case ".mp3":
		return "audio/mpeg"
	case ".flac":
		return "audio/flac"
	case ".wav":
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}
