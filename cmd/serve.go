package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/J-Derek/onyxandroid/internal/downloads"
	"github.com/J-Derek/onyxandroid/internal/extractor"
	"github.com/J-Derek/onyxandroid/internal/library"
	"github.com/J-Derek/onyxandroid/internal/server"
	"github.com/J-Derek/onyxandroid/internal/shared"
	"github.com/J-Derek/onyxandroid/internal/stream"
	"github.com/urfave/cli/v3"
)

// shutdownGrace is how long in-flight requests get to finish on SIGTERM.
const shutdownGrace = 10 * time.Second

// Serve wires up the engine, the library and the download manager, then
// runs the HTTP service until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd.String("config"))
	cfg := r.config

	host := cfg.Server.Host
	if flagHost := cmd.String("host"); flagHost != "" {
		host = flagHost
	}
	port := cfg.Server.Port
	if flagPort := int(cmd.Int("port")); flagPort != 0 {
		port = flagPort
	}
	if port == 0 {
		port = 8090
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	jar, clients, err := r.buildExtraction(ctx)
	if err != nil {
		return err
	}

	warmup := cfg.Extractor.WarmupTrack
	if cmd.Bool("no-warmup") {
		warmup = ""
	}

	engine := stream.NewEngine(stream.EngineOpts{
		Background:  clients.background,
		Urgent:      clients.urgent,
		Cache:       stream.NewArtifactCache(cfg.Cache.Capacity),
		Horizon:     cfg.Extractor.URLTTL(),
		WarmupTrack: warmup,
		Logger:      shared.WithLogger(r.logger, "component", "engine"),
	})
	engine.Start(ctx)
	defer engine.Close()

	db, err := shared.NewDatabase(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	shared.ConfigureDatabase(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)

	repo := library.NewTrackRepository(db, cfg.Downloads.Dir)
	if err := repo.Init(); err != nil {
		return err
	}

	manager, err := downloads.NewManager(downloads.ManagerOpts{
		Downloader:    clients.background,
		Dir:           cfg.Downloads.Dir,
		MaxConcurrent: cfg.Downloads.MaxConcurrent,
		RateLimit:     cfg.Downloads.RateLimit,
		Library:       repo,
		Logger:        shared.WithLogger(r.logger, "component", "downloads"),
	})
	if err != nil {
		return err
	}
	defer manager.Close()

	router := server.NewBasicRouter()
	router.Use(
		server.Recover(r.logger),
		server.Logging(r.logger),
		server.CORS(),
	)
	router.Handler(server.NewStreamHandler(server.StreamHandlerOpts{
		Engine:  engine,
		Pipe:    clients.pipe,
		Cookies: jar,
		Timeout: cfg.Extractor.StreamTimeout(),
		Logger:  shared.WithLogger(r.logger, "component", "stream"),
	}))
	router.Handler(server.NewLibraryHandler(repo, shared.WithLogger(r.logger, "component", "library")))
	router.Handler(server.NewDownloadsHandler(manager, shared.WithLogger(r.logger, "component", "downloads")))
	router.Handler(server.NewHealthHandler(engine))

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", host, port),
		Handler: router,
	}

	errs := make(chan error, 1)
	go func() {
		r.logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	select {
	case err := <-errs:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	r.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// extractionClients are the per-purpose yt-dlp handles. Each keeps its own
// cache directory so the background and urgent paths never contend on
// player/signature state.
type extractionClients struct {
	background *extractor.Client
	urgent     *extractor.Client
	pipe       *extractor.Client
}

// buildExtraction constructs the cookie jar and the extraction handles from
// the runner's config. Cookie bootstrap failures are logged, not fatal: most
// tracks stream fine without cookies.
func (r *Runner) buildExtraction(ctx context.Context) (*extractor.CookieJar, *extractionClients, error) {
	cfg := r.config.Extractor

	cacheRoot := cfg.CacheDir
	if cacheRoot == "" {
		cacheRoot = filepath.Join(os.TempDir(), "onyx-extractor")
	}
	if err := os.MkdirAll(cacheRoot, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create extractor cache dir: %w", err)
	}

	var manual []string
	if cfg.CookieFile != "" {
		manual = append(manual, cfg.CookieFile)
	}

	jar := extractor.NewCookieJar(extractor.CookieOptions{
		Binary:      cfg.Binary,
		Preferred:   cfg.BrowserForCookies,
		ManualPaths: manual,
		CacheFile:   filepath.Join(cacheRoot, "cookies.txt"),
		Logger:      shared.WithLogger(r.logger, "component", "cookies"),
	})
	if err := jar.Bootstrap(ctx); err != nil {
		r.logger.Warn("cookie bootstrap failed, continuing without cookies", "error", err)
	}

	newClient := func(purpose string) *extractor.Client {
		return extractor.NewClient(extractor.Options{
			Binary:   cfg.Binary,
			ProxyURL: cfg.ProxyURL,
			CacheDir: filepath.Join(cacheRoot, purpose),
			Cookies:  jar,
			Timeout:  cfg.ExtractTimeout(),
			Logger:   shared.WithLogger(r.logger, "extractor", purpose),
		})
	}

	return jar, &extractionClients{
		background: newClient("background"),
		urgent:     newClient("urgent"),
		pipe:       newClient("pipe"),
	}, nil
}
