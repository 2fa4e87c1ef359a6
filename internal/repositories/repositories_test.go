package repositories

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/fiply/internal/models"
	"github.com/desertthunder/fiply/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.OpenJournal(shared.DatabaseConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	return db
}

func newTestRun(t *testing.T, repo *RunRepository) *models.Run {
	t.Helper()
	run := models.NewRun(0, 7*24*time.Hour, time.Now().Add(-time.Minute))
	if err := repo.Create(run); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}
	return run
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	for want := 1; want <= 3; want++ {
		got, err := NextSequence(db, "runs")
		if err != nil {
			t.Fatalf("failed to get sequence: %v", err)
		}
		if got != want {
			t.Errorf("expected sequence %d, got %d", want, got)
		}
	}

	if _, err := NextSequence(db, "missing"); !errors.Is(err, shared.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for a table without a sequence, got %v", err)
	}

	t.Run("Missing Counter Row", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		if _, err := db.Exec(`DELETE FROM runs_sequence`); err != nil {
			t.Fatalf("failed to clear counter: %v", err)
		}
		if _, err := NextSequence(db, "runs"); err == nil {
			t.Error("expected error when the counter row is missing")
		}
	})
}

func TestRunRepository(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewRunRepository(db)
		first := newTestRun(t, repo)
		second := newTestRun(t, repo)

		if first.ID() == "" {
			t.Error("run ID should be set after creation")
		}
		if first.Sequence() != 1 || second.Sequence() != 2 {
			t.Errorf("expected sequences 1 and 2, got %d and %d", first.Sequence(), second.Sequence())
		}
	})

	t.Run("Get", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewRunRepository(db)
		run := newTestRun(t, repo)

		retrieved, err := repo.Get(run.ID())
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}
		if retrieved.Status() != models.RunRunning {
			t.Errorf("expected running status, got %s", retrieved.Status())
		}
		if retrieved.Lookback() != 7*24*time.Hour {
			t.Errorf("expected 168h lookback, got %s", retrieved.Lookback())
		}
		if retrieved.StartedAt().Unix() != run.StartedAt().Unix() {
			t.Errorf("expected started at %v, got %v", run.StartedAt(), retrieved.StartedAt())
		}
		if retrieved.CompletedAt() != nil {
			t.Error("expected no completion time")
		}
	})

	t.Run("Update", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewRunRepository(db)
		run := newTestRun(t, repo)

		run.SetStats(models.RunStats{PagesFetched: 12, EventsCollected: 1180, DistinctTitles: 640, Partial: true})
		run.Finish(models.RunCompleted, nil, time.Now())
		if err := repo.Update(run); err != nil {
			t.Fatalf("failed to update run: %v", err)
		}

		retrieved, err := repo.Get(run.ID())
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}
		if retrieved.Status() != models.RunCompleted {
			t.Errorf("expected completed status, got %s", retrieved.Status())
		}
		if retrieved.Stats() != run.Stats() {
			t.Errorf("expected stats %+v, got %+v", run.Stats(), retrieved.Stats())
		}
		if retrieved.CompletedAt() == nil {
			t.Error("expected completion time to be stored")
		}
	})

	t.Run("Update Failed Run", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewRunRepository(db)
		run := newTestRun(t, repo)

		run.Finish(models.RunCompleted, shared.ErrRetriesExhausted, time.Now())
		if err := repo.Update(run); err != nil {
			t.Fatalf("failed to update run: %v", err)
		}

		retrieved, _ := repo.Get(run.ID())
		if retrieved.Status() != models.RunFailed {
			t.Errorf("expected failed status, got %s", retrieved.Status())
		}
		if retrieved.ErrorMessage() != shared.ErrRetriesExhausted.Error() {
			t.Errorf("expected error message to round trip, got %q", retrieved.ErrorMessage())
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewRunRepository(db)
		run := newTestRun(t, repo)

		if err := repo.Delete(run.ID()); err != nil {
			t.Fatalf("failed to delete run: %v", err)
		}

		_, err := repo.Get(run.ID())
		if !errors.Is(err, shared.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewRunRepository(db)
		first := newTestRun(t, repo)
		second := newTestRun(t, repo)
		third := newTestRun(t, repo)

		first.Finish(models.RunCompleted, nil, time.Now())
		third.Finish(models.RunDryRun, nil, time.Now())
		for _, run := range []*models.Run{first, third} {
			if err := repo.Update(run); err != nil {
				t.Fatalf("failed to update run: %v", err)
			}
		}

		all, err := repo.List(map[string]any{})
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("expected 3 runs, got %d", len(all))
		}
		if all[0].ID() != third.ID() || all[2].ID() != first.ID() {
			t.Error("expected newest run first")
		}

		completed, err := repo.List(map[string]any{"status": models.RunCompleted})
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(completed) != 1 || completed[0].ID() != first.ID() {
			t.Errorf("expected only the completed run, got %d runs", len(completed))
		}

		running, _ := repo.List(map[string]any{"status": "running"})
		if len(running) != 1 || running[0].ID() != second.ID() {
			t.Errorf("expected only the running run, got %d runs", len(running))
		}

		limited, _ := repo.List(map[string]any{"limit": 2})
		if len(limited) != 2 {
			t.Errorf("expected 2 runs with limit, got %d", len(limited))
		}
	})

	t.Run("Tracks", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewRunRepository(db)
		run := newTestRun(t, repo)

		tracks := []models.RunTrack{
			{PlaylistID: "b-list", Position: 0, URI: "spotify:track:3", Title: "Three", Plays: 1, Popularity: 5},
			{PlaylistID: "a-list", Position: 1, URI: "spotify:track:2", Title: "Two", Plays: 4, Popularity: 30},
			{PlaylistID: "a-list", Position: 0, URI: "spotify:track:1", Title: "One", Plays: 9, Popularity: 60},
		}
		if err := repo.AddTracks(run.ID(), tracks); err != nil {
			t.Fatalf("failed to add tracks: %v", err)
		}

		got, err := repo.Tracks(run.ID())
		if err != nil {
			t.Fatalf("failed to get tracks: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("expected 3 tracks, got %d", len(got))
		}
		if got[0].Title != "One" || got[1].Title != "Two" || got[2].Title != "Three" {
			t.Errorf("unexpected track order %+v", got)
		}
		if got[0].RunID != run.ID() {
			t.Errorf("expected run id %s, got %s", run.ID(), got[0].RunID)
		}

		if err := repo.AddTracks(run.ID(), nil); err != nil {
			t.Errorf("expected no error for empty tracks, got %v", err)
		}
	})
}
