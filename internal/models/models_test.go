package models

import (
	"errors"
	"testing"
	"time"
)

func TestRun(t *testing.T) {
	started := time.Date(2026, 10, 15, 6, 0, 0, 0, time.UTC)

	t.Run("NewRun", func(t *testing.T) {
		run := NewRun(1, 24*time.Hour, started)
		if run.Status() != RunRunning {
			t.Errorf("expected running status, got %s", run.Status())
		}
		if err := run.Validate(); err != nil {
			t.Errorf("expected valid run, got %v", err)
		}
	})

	t.Run("Finish With Error Marks Failed", func(t *testing.T) {
		run := NewRun(1, time.Hour, started)
		run.Finish(RunCompleted, errors.New("feed down"), started.Add(time.Minute))

		if run.Status() != RunFailed {
			t.Errorf("expected failed status, got %s", run.Status())
		}
		if run.ErrorMessage() != "feed down" {
			t.Errorf("unexpected error message %q", run.ErrorMessage())
		}
		if run.CompletedAt() == nil {
			t.Error("expected completed_at to be set")
		}
	})

	t.Run("Validate", func(t *testing.T) {
		tc := []struct {
			name   string
			mutate func(*Run)
		}{
			{name: "unknown status", mutate: func(r *Run) { r.SetStatus("paused") }},
			{name: "failed without message", mutate: func(r *Run) { r.SetStatus(RunFailed) }},
			{name: "completed before start", mutate: func(r *Run) {
				before := started.Add(-time.Hour)
				r.SetCompletedAt(&before)
			}},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				run := NewRun(1, time.Hour, started)
				tt.mutate(run)
				if err := run.Validate(); err == nil {
					t.Error("expected validation error")
				}
			})
		}

		if err := NewRun(1, 0, started).Validate(); err == nil {
			t.Error("expected error for zero lookback")
		}
	})

	t.Run("Soft Delete", func(t *testing.T) {
		run := NewRun(1, time.Hour, started)
		if run.DeletedAt() != nil {
			t.Error("expected new run to be live")
		}
		deleted := started.Add(time.Hour)
		run.SetDeletedAt(&deleted)
		if got := run.DeletedAt(); got == nil || !got.Equal(deleted) {
			t.Errorf("unexpected deleted_at %v", got)
		}
	})
}

func TestPlayEvent(t *testing.T) {
	ev := PlayEvent{Title: "Cheney Lane", Interpreters: []string{"Nostalgia 77", "Guest"}, StartTime: 1572251703}
	if ev.PrimaryInterpreter() != "Nostalgia 77" {
		t.Errorf("unexpected primary interpreter %q", ev.PrimaryInterpreter())
	}
	if (PlayEvent{}).PrimaryInterpreter() != "" {
		t.Error("expected empty primary interpreter")
	}
	if ev.Started().Unix() != 1572251703 {
		t.Errorf("unexpected start time %v", ev.Started())
	}
}
