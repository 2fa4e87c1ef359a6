package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/fiply/internal/shared"
)

func newApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "fiply",
		Usage:   "Turn FIP's play history into Spotify playlists",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
				Sources: cli.EnvVars("FIPLY_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "env",
				Usage: "Path to a .env file with credential overrides",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error (default from config)",
			},
		},
		Before:   r.before,
		Commands: r.register(),
	}
}

func main() {
	logger := shared.NewLogger(nil)
	fd := os.Stdout.Fd()

	runner := NewRunner(RunnerOpts{
		Logger:      logger,
		Interactive: isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newApp(runner).Run(ctx, os.Args)
	stop()

	if err != nil {
		logger.Fatalf("application error: %v", err)
	}
}
