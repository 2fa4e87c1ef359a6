package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/fiply/internal/shared"
)

// SetupConfig writes the built-in config template to the --config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	if err := shared.CreateConfigFile(r.configPath); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", r.configPath)

	r.writePlain("✓ Config written to %s\n", r.configPath)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set credentials.spotify.client_id and client_secret (or SPOTIFY_CLIENT_ID/SPOTIFY_CLIENT_SECRET in .env)\n")
	r.writePlain("2. Set the two playlist ids under [playlists]\n")
	r.writePlain("3. Run 'fiply auth login'\n")
	return nil
}

// SetupDatabase initializes the journal database and runs migrations, or rolls back the latest
// migration with --rollback.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	cfg := r.config.Database
	r.logger.Info("initializing database", "path", cfg.Path)

	if cmd.Bool("rollback") {
		db, err := shared.NewDatabase(cfg.Path)
		if err != nil {
			return fmt.Errorf("failed to create database: %w", err)
		}
		defer closeDB(db, r.logger)

		if err := shared.RollbackMigration(db); err != nil {
			return fmt.Errorf("failed to roll back migration: %w", err)
		}
		r.logger.Info("rolled back latest migration", "path", cfg.Path)
		return r.writePlain("✓ Rolled back the latest migration on %s\n", cfg.Path)
	}

	db, err := shared.OpenJournal(cfg)
	if err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}
	defer closeDB(db, r.logger)

	r.logger.Infof("setup complete for database: %v", cfg.Path)
	return r.writePlain("✓ Database ready at %s\n", cfg.Path)
}
