// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

func serverFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "server",
		Aliases: []string{"s"},
		Usage:   "Base URL of a running instance (default: from config)",
	}
}

// serveCommand runs the HTTP streaming service.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the audio streaming service",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:  "host",
				Usage: "Bind address (overrides config)",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Listen port (overrides config)",
			},
			&cli.BoolFlag{
				Name:  "no-warmup",
				Usage: "Skip the startup warm-up extraction",
			},
		},
		Action: r.Serve,
	}
}

// setupCommand handles setup operations for configuration and the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Write a starter config.toml",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Where to write the config file",
						Value:   "config.toml",
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Initialize the library database",
				Flags: []cli.Flag{
					configFlag(),
				},
				Action: r.SetupDatabase,
			},
		},
	}
}

// resolveCommand runs a one-shot extraction and prints the stream artifact.
func resolveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "resolve",
		Usage: "Extract a playable URL for a track and print it",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "trackId",
			},
		},
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
				Value: true,
			},
		},
		Action: r.Resolve,
	}
}

// prefetchCommand asks a running instance to warm a track.
func prefetchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "prefetch",
		Usage: "Queue a speculative extraction on a running instance",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "trackId",
			},
		},
		Flags: []cli.Flag{
			configFlag(),
			serverFlag(),
			&cli.IntFlag{
				Name:  "priority",
				Usage: "Queue priority (1=urgent, 2=next, 3=visible)",
				Value: 3,
			},
		},
		Action: r.Prefetch,
	}
}

// statsCommand prints a running instance's engine stats.
func statsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Print cache and queue stats from a running instance",
		Flags: []cli.Flag{
			configFlag(),
			serverFlag(),
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
				Value: true,
			},
		},
		Action: r.Stats,
	}
}

// downloadCommand fetches a track's audio to local storage.
func downloadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "download",
		Aliases: []string{"dl"},
		Usage:   "Download a track's audio to the downloads directory",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "trackId",
			},
		},
		Flags: []cli.Flag{
			configFlag(),
		},
		Action: r.Download,
	}
}

// tuiCommand launches the stats dashboard.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tui",
		Usage: "Interactive dashboard for a running instance",
		Flags: []cli.Flag{
			configFlag(),
			serverFlag(),
		},
		Action: r.TUI,
	}
}
