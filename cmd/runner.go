package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"

	"github.com/desertthunder/fiply/internal/feed"
	"github.com/desertthunder/fiply/internal/repositories"
	"github.com/desertthunder/fiply/internal/services"
	"github.com/desertthunder/fiply/internal/shared"
	"github.com/desertthunder/fiply/internal/tasks"
	"github.com/desertthunder/fiply/internal/ui"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config      *shared.Config
	configPath  string
	envPath     string
	catalog     services.Catalog
	fetcher     tasks.HistoryFetcher
	logger      *log.Logger
	output      io.Writer
	interactive bool
	now         func() time.Time
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Catalog and Fetcher are built from the configuration when nil.
type RunnerOpts struct {
	Config      *shared.Config
	ConfigPath  string
	EnvPath     string
	Catalog     services.Catalog
	Fetcher     tasks.HistoryFetcher
	Logger      *log.Logger
	Output      io.Writer
	Interactive bool
	Now         func() time.Time
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Runner{
		config:      opts.Config,
		configPath:  opts.ConfigPath,
		envPath:     opts.EnvPath,
		catalog:     opts.Catalog,
		fetcher:     opts.Fetcher,
		logger:      opts.Logger,
		output:      opts.Output,
		interactive: opts.Interactive,
		now:         opts.Now,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		runCommand, rankCommand, authCommand, setupCommand, historyCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger used by commands and the components they build.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// before loads the configuration named by --config, applies the .env overrides and sets the log
// level. A missing config file falls back to the defaults so setup and help still work.
func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	r.configPath = cmd.String("config")
	r.envPath = cmd.String("env")

	if _, err := os.Stat(r.configPath); err == nil {
		config, err := shared.LoadConfig(r.configPath)
		if err != nil {
			return ctx, err
		}
		r.config = config
	} else {
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
	}

	if err := r.config.ApplyEnv(r.envPath); err != nil {
		return ctx, err
	}

	level := r.config.Log.Level
	if cmd.IsSet("log-level") {
		level = cmd.String("log-level")
	}
	shared.SetLogLevel(r.logger, shared.ParseLogLevel(level))
	return ctx, nil
}

// saveTokens stores token in the configuration and writes it to the config file when one is known.
func (r *Runner) saveTokens(token *oauth2.Token) error {
	if r.config == nil {
		return fmt.Errorf("%w: config is nil", shared.ErrMissingConfig)
	}
	if err := r.config.Credentials.Spotify.Update(token); err != nil {
		return fmt.Errorf("failed to update spotify configuration: %w", err)
	}
	if r.configPath == "" {
		return nil
	}
	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	r.logger.Debug("spotify tokens saved", "path", r.configPath)
	return nil
}

// spotifyService builds an authenticated client from the stored token. Refreshed tokens are
// written back to the config file.
func (r *Runner) spotifyService(ctx context.Context) (*services.SpotifyService, error) {
	svc, err := services.NewSpotifyService(r.config.Credentials.Spotify.Map())
	if err != nil {
		return nil, err
	}

	token := r.config.Credentials.Spotify.Token()
	if token == nil {
		return nil, fmt.Errorf("%w: run 'fiply auth login' first", shared.ErrNotAuthenticated)
	}

	svc.SetTokenRefreshCallback(func(t *oauth2.Token) {
		if err := r.saveTokens(t); err != nil {
			r.logger.Warn("failed to persist refreshed token", "error", err)
		}
	})
	svc.SetToken(ctx, token)
	return svc, nil
}

func (r *Runner) catalogService(ctx context.Context) (services.Catalog, error) {
	if r.catalog != nil {
		return r.catalog, nil
	}
	svc, err := r.spotifyService(ctx)
	if err != nil {
		return nil, err
	}
	return svc, nil
}

func (r *Runner) newCollector(logger *log.Logger, allowPartial bool) *tasks.Collector {
	fetcher := r.fetcher
	if fetcher == nil {
		fetcher = feed.NewClientFromConfig(r.config.Feed, logger)
	}
	return tasks.NewCollector(fetcher, tasks.CollectorConfig{
		PageCap:      r.config.Harvest.PageCap,
		Policy:       tasks.PolicyFromConfig(r.config.Harvest),
		AllowPartial: allowPartial,
		Now:          r.now,
		Logger:       logger,
	})
}

// openJournal opens the run journal. The returned close function is safe to call when the
// journal is nil.
func (r *Runner) openJournal() (*repositories.RunRepository, func(), error) {
	db, err := shared.OpenJournal(r.config.Database)
	if err != nil {
		return nil, func() {}, err
	}
	return repositories.NewRunRepository(db), func() { closeDB(db, r.logger) }, nil
}

func closeDB(db *sql.DB, logger *log.Logger) {
	if err := db.Close(); err != nil {
		logger.Warn("failed to close database", "error", err)
	}
}

// jobLogger is the logger long-running jobs should use. While the progress view owns the
// terminal, logs go to the configured log file instead.
func (r *Runner) jobLogger() (*log.Logger, func()) {
	if !r.interactive || r.config.Log.File == "" {
		return r.logger, func() {}
	}
	fileLogger, file, err := shared.NewFileLogger(r.config.Log.File)
	if err != nil {
		r.logger.Warn("failed to open log file, logging to stderr", "error", err)
		return r.logger, func() {}
	}
	fileLogger.SetLevel(r.logger.GetLevel())
	return fileLogger, func() {
		if err := file.Close(); err != nil {
			r.logger.Warn("failed to close log file", "error", err)
		}
	}
}

// runJob runs job behind the progress view on a terminal, or logs its progress otherwise.
func (r *Runner) runJob(ctx context.Context, title string, job ui.Job) error {
	if r.interactive {
		return ui.Run(ctx, title, job)
	}

	progress := make(chan tasks.ProgressUpdate, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for u := range progress {
			r.logger.Info(u.Message, "phase", u.Phase)
		}
	}()

	err := job(ctx, progress)
	close(progress)
	<-done
	return err
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
