package ui

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/J-Derek/onyxandroid/internal/stream"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// pollInterval is how often the dashboard refreshes stats on its own.
const pollInterval = 2 * time.Second

// StatsFetcher retrieves a stats snapshot from a running engine.
type StatsFetcher interface {
	Fetch(ctx context.Context) (stream.Stats, error)
}

// HTTPStatsClient fetches stats over the engine's HTTP surface.
type HTTPStatsClient struct {
	BaseURL string
	Client  *http.Client
}

// Fetch implements [StatsFetcher] against GET {base}/stream/stats.
func (c *HTTPStatsClient) Fetch(ctx context.Context) (stream.Stats, error) {
	var stats stream.Stats

	client := c.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}

	url := strings.TrimRight(c.BaseURL, "/") + "/stream/stats"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return stats, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return stats, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return stats, fmt.Errorf("stats endpoint returned %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return stats, err
	}
	return stats, nil
}

type statsFetchedMsg struct {
	stats stream.Stats
	err   error
}

type tickMsg time.Time

// Model represents the dashboard state.
type Model struct {
	ctx     context.Context
	fetcher StatsFetcher
	stats   stream.Stats
	fetched bool
	err     error
	spin    spinner.Model
	help    help.Model
	keys    keyMap
}

// NewModel creates a dashboard polling the given fetcher.
func NewModel(ctx context.Context, fetcher StatsFetcher) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.title

	return &Model{
		ctx:     ctx,
		fetcher: fetcher,
		spin:    s,
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Init starts the spinner and the first fetch.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.fetchStats(), m.schedule())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.refresh):
			return m, m.fetchStats()
		}
		return m, nil

	case statsFetchedMsg:
		m.fetched = true
		m.err = msg.err
		if msg.err == nil {
			m.stats = msg.stats
		}
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.fetchStats(), m.schedule())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the dashboard.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(styles.title.Render("Stream Engine"))
	b.WriteString("\n")

	switch {
	case !m.fetched:
		b.WriteString(fmt.Sprintf("%s connecting...\n", m.spin.View()))
	case m.err != nil:
		b.WriteString(styles.err.Render(fmt.Sprintf("stats unavailable: %v", m.err)))
		b.WriteString("\n")
	default:
		b.WriteString(m.renderStats())
	}

	b.WriteString("\n")
	b.WriteString(styles.help.Render(m.help.View(m.keys)))
	return b.String()
}

func (m *Model) renderStats() string {
	warm := styles.warn.Render("warming up")
	if m.stats.WarmedUp {
		warm = styles.ok.Render("warmed")
	}

	rows := []string{
		fmt.Sprintf("  cached URLs     %d (%d still valid)", m.stats.CacheSize, m.stats.CacheValid),
		fmt.Sprintf("  pending         %d", m.stats.PendingExtractions),
		fmt.Sprintf("  queued          %d", m.stats.QueueSize),
		fmt.Sprintf("  extractor       %s", warm),
	}

	return strings.Join(rows, "\n") + "\n"
}

// fetchStats returns a command performing one stats fetch.
func (m *Model) fetchStats() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, pollInterval)
		defer cancel()

		stats, err := m.fetcher.Fetch(ctx)
		return statsFetchedMsg{stats: stats, err: err}
	}
}

// schedule arms the next automatic refresh.
func (m *Model) schedule() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
