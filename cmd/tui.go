package main

import (
	"context"
	"fmt"

	"github.com/J-Derek/onyxandroid/internal/shared"
	"github.com/J-Derek/onyxandroid/internal/ui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive dashboard against a running instance.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd.String("config"))

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/onyx-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	fetcher := &ui.HTTPStatsClient{
		BaseURL: r.serverURL(cmd.String("server")),
		Client:  r.httpClient,
	}

	model := ui.NewModel(ctx, fetcher)
	p := tea.NewProgram(model)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
