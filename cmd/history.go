package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/fiply/internal/models"
)

// runView is the JSON shape of a journal run.
type runView struct {
	ID          string     `json:"id"`
	Sequence    int        `json:"sequence"`
	Status      string     `json:"status"`
	Lookback    string     `json:"lookback"`
	Pages       int        `json:"pages"`
	Events      int        `json:"events"`
	Titles      int        `json:"titles"`
	Partial     bool       `json:"partial"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func newRunView(run *models.Run) runView {
	stats := run.Stats()
	return runView{
		ID:          run.ID(),
		Sequence:    run.Sequence(),
		Status:      string(run.Status()),
		Lookback:    run.Lookback().String(),
		Pages:       stats.PagesFetched,
		Events:      stats.EventsCollected,
		Titles:      stats.DistinctTitles,
		Partial:     stats.Partial,
		Error:       run.ErrorMessage(),
		StartedAt:   run.StartedAt(),
		CompletedAt: run.CompletedAt(),
	}
}

// History lists recent runs, or with --run the tracks one run published.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	repo, closeJournal, err := r.openJournal()
	if err != nil {
		return err
	}
	defer closeJournal()

	useJSON := cmd.Bool("json")

	if id := cmd.String("run"); id != "" {
		run, err := repo.Get(id)
		if err != nil {
			return err
		}
		tracks, err := repo.Tracks(id)
		if err != nil {
			return err
		}

		if useJSON {
			return r.writeJSON(struct {
				Run    runView           `json:"run"`
				Tracks []models.RunTrack `json:"tracks"`
			}{newRunView(run), tracks}, true)
		}

		r.writePlainHeader(fmt.Sprintf("Run #%d %s (%s)", run.Sequence(), run.ID(), run.Status()))
		playlist := ""
		for _, t := range tracks {
			if t.PlaylistID != playlist {
				playlist = t.PlaylistID
				r.writePlain("\nPlaylist %s\n", playlist)
			}
			r.writePlain("%3d. %s (%d plays, popularity %d)\n", t.Position+1, t.Title, t.Plays, t.Popularity)
		}
		if len(tracks) == 0 {
			r.writePlain("No tracks were published by this run.\n")
		}
		return nil
	}

	criteria := map[string]any{"limit": cmd.Int("limit")}
	if status := cmd.String("status"); status != "" {
		criteria["status"] = status
	}

	runs, err := repo.List(criteria)
	if err != nil {
		return err
	}

	if useJSON {
		views := make([]runView, len(runs))
		for i, run := range runs {
			views[i] = newRunView(run)
		}
		return r.writeJSON(views, true)
	}

	if len(runs) == 0 {
		return r.writePlain("No runs recorded yet.\n")
	}

	for _, run := range runs {
		stats := run.Stats()
		line := fmt.Sprintf("#%-4d %-9s %s  %4d pages %6d plays %5d titles", run.Sequence(), run.Status(),
			run.StartedAt().Local().Format("2006-01-02 15:04"), stats.PagesFetched, stats.EventsCollected, stats.DistinctTitles)
		if stats.Partial {
			line += "  partial"
		}
		r.writePlain("%s  %s\n", line, run.ID())
		if msg := run.ErrorMessage(); msg != "" {
			r.writePlain("      error: %s\n", msg)
		}
	}
	return nil
}
