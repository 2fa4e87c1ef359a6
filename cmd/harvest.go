package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/fiply/internal/formatter"
	"github.com/desertthunder/fiply/internal/models"
	"github.com/desertthunder/fiply/internal/shared"
	"github.com/desertthunder/fiply/internal/tasks"
)

// Harvest walks the lookback window, ranks it and replaces both playlists.
//
// The report is written even when the run fails part way, so a playlist left unchanged because
// nothing resolved still shows what was tried.
func (r *Runner) Harvest(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	opts := tasks.HarvestOptionsFromConfig(r.config)
	opts.DryRun = cmd.Bool("dry-run")
	if cmd.IsSet("lookback") {
		opts.Lookback = cmd.Duration("lookback")
	}

	catalog, err := r.catalogService(ctx)
	if err != nil {
		return err
	}

	var journal tasks.RunJournal
	repo, closeJournal, err := r.openJournal()
	if err != nil {
		r.logger.Warn("run journal unavailable, continuing without it", "error", err)
	} else {
		journal = repo
	}
	defer closeJournal()

	logger, closeLog := r.jobLogger()
	defer closeLog()
	harvester := tasks.NewHarvester(r.newCollector(logger, r.allowPartial(cmd)), catalog, journal, logger)
	harvester.SetRetryPolicy(tasks.PolicyFromConfig(r.config.Harvest))

	r.logger.Info("starting harvest", "lookback", opts.Lookback, "dry_run", opts.DryRun)

	var result *tasks.HarvestResult
	runErr := r.runJob(ctx, "fiply run", func(ctx context.Context, progress chan<- tasks.ProgressUpdate) error {
		var err error
		result, err = harvester.Run(ctx, opts, progress)
		return err
	})

	if result != nil && result.Stats != nil {
		report := formatter.NewHarvestReport(result, r.now())
		if err := r.writeReport(format, report, cmd.String("output")); err != nil {
			return errors.Join(runErr, err)
		}
	}

	if errors.Is(runErr, shared.ErrTokenExpired) {
		return fmt.Errorf("%w: run 'fiply auth login' to authorize again", runErr)
	}
	return runErr
}

// Rank walks the lookback window and reports the ranking without publishing.
func (r *Runner) Rank(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	lookback := r.config.Harvest.Lookback.Duration
	if cmd.IsSet("lookback") {
		lookback = cmd.Duration("lookback")
	}
	rank := r.config.Playlists.CandidateRank
	if cmd.IsSet("rank") {
		rank = cmd.Int("rank")
	}
	once := r.config.Playlists.OnceCandidates
	if cmd.IsSet("once") {
		once = cmd.Int("once")
	}

	logger, closeLog := r.jobLogger()
	defer closeLog()
	collector := r.newCollector(logger, r.allowPartial(cmd))

	var (
		events []models.PlayEvent
		stats  *tasks.CollectStats
	)
	err = r.runJob(ctx, "fiply rank", func(ctx context.Context, progress chan<- tasks.ProgressUpdate) error {
		var err error
		events, stats, err = collector.CollectSince(ctx, lookback, progress)
		return err
	})
	if err != nil {
		return err
	}

	ranking := tasks.Rank(events)
	r.logger.Info("ranked history", "events", len(events), "titles", len(ranking.MostPlayed), "played_once", len(ranking.PlayedOnce))

	return r.writeReport(format, formatter.NewRankingReport(ranking, stats, rank, once, r.now()), cmd.String("output"))
}

func (r *Runner) allowPartial(cmd *cli.Command) bool {
	return r.config.Harvest.AllowPartial || cmd.Bool("allow-partial")
}

func (r *Runner) writeReport(format formatter.Format, report *formatter.Report, path string) error {
	if path == "" {
		return formatter.WriteReport(r.output, format, report)
	}

	written, err := formatter.WriteReportFile(format, report, path)
	if err != nil {
		return err
	}
	return r.writePlain("✓ Report written to %s\n", written)
}
