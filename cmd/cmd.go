// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// syncCommand handles sync runs
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Sync accepted submissions onto task boards",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run full judge → board sync",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
					&cli.BoolFlag{
						Name:  "reset",
						Usage: "Clear recorded submissions, uploads, and watermarks before syncing",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output run summary as JSON",
					},
				},
				Action: r.SyncRun,
			},
			{
				Name:   "ui",
				Usage:  "Interactive TUI for sync runs",
				Action: r.TUI,
			},
		},
	}
}

// storeCommand inspects and manages the local record store
func storeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "store",
		Usage: "Inspect the local record store",
		Commands: []*cli.Command{
			{
				Name:  "ls",
				Usage: "List recorded submissions",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "judge",
						Usage: "Filter by judge",
					},
					&cli.StringFlag{
						Name:  "status",
						Usage: "Filter by verdict (accepted, other)",
					},
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
				Action: r.StoreLs,
			},
			{
				Name:  "pending",
				Usage: "List submissions awaiting upload to a destination",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "dest",
						Usage: "Destination to check (default: all configured)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.StorePending,
			},
			{
				Name:  "export",
				Usage: "Export recorded submissions to a file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "format",
						Usage: "Export format: json, csv, markdown",
						Value: "json",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path",
					},
				},
				Action: r.StoreExport,
			},
			{
				Name:  "reset",
				Usage: "Clear all recorded submissions, uploads, watermarks, and logins",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Skip confirmation",
					},
				},
				Action: r.StoreReset,
			},
		},
	}
}

// setupCommand handles setup operations for database and authentication.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "database",
				Usage: "Initialize database and run migrations",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.SetupDatabase,
			},
			{
				Name:  "trello",
				Usage: "Authorize with Trello in the browser and save the token",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.SetupTrello,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for interactive sync runs.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch interactive TUI for sync runs",
		Action:  r.TUI,
	}
}
