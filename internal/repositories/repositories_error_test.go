package repositories

import (
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/fiply/internal/models"
	"github.com/desertthunder/fiply/internal/shared"
)

func TestRunRepositoryErrors(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		t.Run("ValidationError", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewRunRepository(db)
			run := models.NewRun(0, 0, time.Now())

			if err := repo.Create(run); err == nil {
				t.Fatal("expected validation error for zero lookback")
			}
			if run.ID() != "" {
				t.Error("run ID should not be set when validation fails")
			}
		})

		t.Run("ClosedDatabase", func(t *testing.T) {
			db := setupTestDB(t)
			db.Close()

			repo := NewRunRepository(db)
			if err := repo.Create(models.NewRun(0, time.Hour, time.Now())); err == nil {
				t.Fatal("expected error on closed database")
			}
		})
	})

	t.Run("Get", func(t *testing.T) {
		t.Run("NotFound", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			_, err := NewRunRepository(db).Get("nonexistent-id")
			if !errors.Is(err, shared.ErrRunNotFound) {
				t.Fatalf("expected ErrRunNotFound, got %v", err)
			}
		})
	})

	t.Run("Update", func(t *testing.T) {
		t.Run("NotFound", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			run := models.NewRun(1, time.Hour, time.Now())
			run.SetID("nonexistent-id")

			err := NewRunRepository(db).Update(run)
			if !errors.Is(err, shared.ErrRunNotFound) {
				t.Fatalf("expected ErrRunNotFound, got %v", err)
			}
		})

		t.Run("FailedWithoutMessage", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewRunRepository(db)
			run := newTestRun(t, repo)
			run.SetStatus(models.RunFailed)

			if err := repo.Update(run); err == nil {
				t.Fatal("expected validation error for failed run without message")
			}
		})
	})

	t.Run("Delete", func(t *testing.T) {
		t.Run("NotFound", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			err := NewRunRepository(db).Delete("nonexistent-id")
			if !errors.Is(err, shared.ErrRunNotFound) {
				t.Fatalf("expected ErrRunNotFound, got %v", err)
			}
		})

		t.Run("AlreadyDeleted", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewRunRepository(db)
			run := newTestRun(t, repo)

			if err := repo.Delete(run.ID()); err != nil {
				t.Fatalf("failed to delete run: %v", err)
			}
			if err := repo.Delete(run.ID()); !errors.Is(err, shared.ErrRunNotFound) {
				t.Fatalf("expected ErrRunNotFound on second delete, got %v", err)
			}
		})
	})

	t.Run("AddTracks", func(t *testing.T) {
		t.Run("UnknownRun", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			tracks := []models.RunTrack{{PlaylistID: "p", URI: "spotify:track:1", Title: "One", Plays: 1}}
			if err := NewRunRepository(db).AddTracks("nonexistent-id", tracks); err == nil {
				t.Fatal("expected foreign key error for unknown run")
			}
		})

		t.Run("DuplicatePosition", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewRunRepository(db)
			run := newTestRun(t, repo)
			tracks := []models.RunTrack{
				{PlaylistID: "p", Position: 0, URI: "spotify:track:1", Title: "One"},
				{PlaylistID: "p", Position: 0, URI: "spotify:track:2", Title: "Two"},
			}

			if err := repo.AddTracks(run.ID(), tracks); err == nil {
				t.Fatal("expected primary key error for duplicate position")
			}

			got, _ := repo.Tracks(run.ID())
			if len(got) != 0 {
				t.Errorf("expected the failed batch to be rolled back, got %d tracks", len(got))
			}
		})
	})
}
