// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/urfave/cli/v3"
)

func reportFlags(defaultFormat string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Report format: text, markdown, csv or json",
			Value:   defaultFormat,
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write the report to a file instead of stdout",
		},
	}
}

// runCommand harvests the history and publishes both playlists
func runCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Collect FIP play history, rank it and publish the two playlists",
		Flags: append([]cli.Flag{
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Resolve tracks but leave the playlists unchanged",
			},
			&cli.DurationFlag{
				Name:    "lookback",
				Aliases: []string{"l"},
				Usage:   "How far back to walk the history (default from config)",
			},
			&cli.BoolFlag{
				Name:  "allow-partial",
				Usage: "Keep the pages already fetched when the feed fails part way",
			},
		}, reportFlags("text")...),
		Action: r.Harvest,
	}
}

// rankCommand prints the ranking without touching Spotify
func rankCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "rank",
		Usage: "Collect FIP play history and report the ranking without publishing",
		Flags: append([]cli.Flag{
			&cli.DurationFlag{
				Name:    "lookback",
				Aliases: []string{"l"},
				Usage:   "How far back to walk the history (default from config)",
			},
			&cli.IntFlag{
				Name:  "rank",
				Usage: "Position whose play count is the most played cutoff (default from config)",
			},
			&cli.IntFlag{
				Name:  "once",
				Usage: "Limit the played once section, 0 for all (default from config)",
			},
			&cli.BoolFlag{
				Name:  "allow-partial",
				Usage: "Keep the pages already fetched when the feed fails part way",
			},
		}, reportFlags("text")...),
		Action: r.Rank,
	}
}

// authCommand handles Spotify authorization
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Spotify authorization",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Authorize fiply with Spotify using OAuth2 and store the tokens",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for the browser callback",
						Value: 2 * time.Minute,
					},
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the authorization URL instead of opening a browser",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Show which Spotify account the stored token belongs to",
				Action: r.AuthStatus,
			},
		},
	}
}

// setupCommand creates the config file and the journal database
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize configuration and database",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write a config file from the built-in template",
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Create the run journal and apply migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Roll back the most recent migration instead",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}

// historyCommand reads the run journal
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List recorded runs, or the tracks a run published",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of runs to list",
				Value:   10,
			},
			&cli.StringFlag{
				Name:  "status",
				Usage: "Only list runs with this status (running, completed, failed, dry_run)",
			},
			&cli.StringFlag{
				Name:  "run",
				Usage: "Show the tracks published by this run id",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.History,
	}
}
