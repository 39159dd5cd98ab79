package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/J-Derek/onyxandroid/internal/extractor"
	"github.com/J-Derek/onyxandroid/internal/library"
	"github.com/J-Derek/onyxandroid/internal/shared"
	"github.com/J-Derek/onyxandroid/internal/ui"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes a starter configuration file.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("output")
	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}
	return r.writePlainln("Wrote %s", path)
}

// SetupDatabase creates the library database and its schema.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd.String("config"))
	cfg := r.config

	db, err := shared.NewDatabase(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	repo := library.NewTrackRepository(db, cfg.Downloads.Dir)
	if err := repo.Init(); err != nil {
		return err
	}

	return r.writePlainln("Initialized database at %s", cfg.Database.Path)
}

// Resolve runs a one-shot extraction and prints the resulting artifact.
func (r *Runner) Resolve(ctx context.Context, cmd *cli.Command) error {
	trackID := cmd.StringArg("trackId")
	if trackID == "" {
		return fmt.Errorf("%w: trackId", shared.ErrMissingArgument)
	}

	r.reloadConfig(cmd.String("config"))

	_, clients, err := r.buildExtraction(ctx)
	if err != nil {
		return err
	}

	info, err := clients.urgent.Extract(ctx, trackID)
	if err != nil {
		return err
	}

	format := extractor.SelectProgressiveAudio(info)
	if format == nil {
		return fmt.Errorf("%w: %s only offers segmented formats", shared.ErrNoFormatAvailable, trackID)
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{
			"trackId":         info.ID,
			"title":           info.Title,
			"artist":          info.Artist(),
			"durationSeconds": int(info.Duration),
			"contentType":     extractor.MIMEType(format),
			"formatId":        format.FormatID,
			"url":             format.URL,
		}, cmd.Bool("pretty"))
	}

	r.writePlainln("%s - %s (%s, itag %s)", info.Title, info.Artist(), extractor.MIMEType(format), format.FormatID)
	return r.writePlain("%s\n", format.URL)
}

// Prefetch asks a running instance to queue a speculative extraction.
func (r *Runner) Prefetch(ctx context.Context, cmd *cli.Command) error {
	trackID := cmd.StringArg("trackId")
	if trackID == "" {
		return fmt.Errorf("%w: trackId", shared.ErrMissingArgument)
	}

	r.reloadConfig(cmd.String("config"))

	url := fmt.Sprintf("%s/stream/%s/prefetch?priority=%d",
		r.serverURL(cmd.String("server")), trackID, cmd.Int("priority"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to running instance failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("prefetch returned %s: %s", resp.Status, body)
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("unparseable prefetch response: %w", err)
	}
	return r.writeJSON(payload, true)
}

// Stats prints engine stats from a running instance.
func (r *Runner) Stats(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd.String("config"))

	fetcher := &ui.HTTPStatsClient{
		BaseURL: r.serverURL(cmd.String("server")),
		Client:  r.httpClient,
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	stats, err := fetcher.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("stats fetch failed: %w", err)
	}

	return r.writeJSON(stats, cmd.Bool("pretty"))
}

// Download fetches a track's audio to local storage and registers it in the
// library database.
func (r *Runner) Download(ctx context.Context, cmd *cli.Command) error {
	trackID := cmd.StringArg("trackId")
	if trackID == "" {
		return fmt.Errorf("%w: trackId", shared.ErrMissingArgument)
	}

	r.reloadConfig(cmd.String("config"))
	cfg := r.config

	_, clients, err := r.buildExtraction(ctx)
	if err != nil {
		return err
	}

	info, err := clients.background.Extract(ctx, trackID)
	if err != nil {
		return err
	}

	r.logger.Info("downloading", "track", trackID, "title", info.Title)
	path, err := clients.background.Download(ctx, trackID, cfg.Downloads.Dir)
	if err != nil {
		return err
	}

	db, err := shared.NewDatabase(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	repo := library.NewTrackRepository(db, cfg.Downloads.Dir)
	if err := repo.Init(); err != nil {
		return err
	}

	track := &library.Track{
		VideoID:  trackID,
		Title:    info.Title,
		Artist:   info.Artist(),
		FilePath: path,
		Duration: int(info.Duration),
	}
	if err := repo.Create(track); err != nil {
		r.logger.Warn("downloaded but not registered in library", "error", err)
	}

	return r.writePlainln("Saved %s", path)
}
